package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/limits"
	"tradingcore/src/model"
	"tradingcore/src/repository"
	"tradingcore/src/traderr"
)

// SeriesProvider supplies daily return series for volatility checks. The
// returns command feeds these from exchange klines; a nil provider skips
// the volatility metric.
type SeriesProvider interface {
	DailyReturns(ctx context.Context, symbol string, days int) ([]decimal.Decimal, error)
}

// volatilityLookbackDays is the window handed to the series provider.
const volatilityLookbackDays = 30

// Monitor computes portfolio risk and raises alerts when configured
// thresholds are crossed. It only ever reads trading state; the single
// write it owns is the alert log.
type Monitor struct {
	cfg        limits.Config
	portfolios *repository.PortfolioRepository
	positions  *repository.PositionRepository
	alerts     *repository.RiskAlertRepository
	series     SeriesProvider
}

// NewMonitor wires a monitor on the main database. series may be nil.
func NewMonitor(cfg limits.Config, series SeriesProvider) *Monitor {
	return &Monitor{
		cfg:        cfg,
		portfolios: repository.NewPortfolioRepository(),
		positions:  repository.NewPositionRepository(),
		alerts:     repository.NewRiskAlertRepository(),
		series:     series,
	}
}

// WithRepositories overrides the repository set for tests.
func (m *Monitor) WithRepositories(
	portfolios *repository.PortfolioRepository,
	positions *repository.PositionRepository,
	alerts *repository.RiskAlertRepository,
) *Monitor {
	clone := *m
	clone.portfolios = portfolios
	clone.positions = positions
	clone.alerts = alerts
	return &clone
}

// Metrics computes the risk report for one portfolio without touching the
// alert log.
func (m *Monitor) Metrics(ctx context.Context, userID, portfolioID uint) (*Report, error) {
	portfolio, err := m.portfolios.FindByIDForUser(ctx, portfolioID, userID)
	if err != nil {
		return nil, err
	}
	if portfolio == nil {
		return nil, traderr.NotFound("portfolio %d not found", portfolioID)
	}

	positions, err := m.positions.ListOpenByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	total, exposures := ComputeExposures(portfolio.CurrentBalance, positions)

	maxConcentration := decimal.Zero
	maxSymbol := ""
	for _, exposure := range exposures {
		if exposure.Pct.GreaterThan(maxConcentration) {
			maxConcentration = exposure.Pct
			maxSymbol = exposure.Symbol
		}
	}

	cashPct := hundred
	if total.GreaterThan(decimal.Zero) {
		cashPct = portfolio.CurrentBalance.Div(total).Mul(hundred).Round(4)
	}

	report := &Report{
		TotalValue:       total,
		CashPct:          cashPct,
		Exposures:        exposures,
		MaxConcentration: maxConcentration,
		TypeAllocation:   TypeAllocation(total, positions),
		DrawdownPct:      DrawdownPct(portfolio.InitialBalance, total),
	}

	if m.series != nil && maxSymbol != "" {
		returns, err := m.series.DailyReturns(ctx, maxSymbol, volatilityLookbackDays)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"monitor": "risk",
				"symbol":  maxSymbol,
			}).WithError(err).Warn("Return series unavailable, skipping volatility")
		} else {
			vol := AnnualizedVolatilityPct(returns)
			report.VolatilityPct = &vol
		}
	}

	return report, nil
}

// CheckLimits computes the report and raises or escalates alerts for every
// crossed threshold. Returns the alerts that are active after the check.
func (m *Monitor) CheckLimits(ctx context.Context, userID, portfolioID uint) ([]model.RiskAlert, error) {
	report, err := m.Metrics(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}

	if severity := ConcentrationSeverity(report.MaxConcentration); severity != "" &&
		report.MaxConcentration.GreaterThan(m.cfg.ConcentrationThreshold()) {
		err = m.raise(ctx, userID, portfolioID, model.AlertTypeConcentration, severity,
			report.MaxConcentration, m.cfg.ConcentrationThreshold(),
			fmt.Sprintf("largest position is %s%% of portfolio value", report.MaxConcentration))
		if err != nil {
			return nil, err
		}
	}

	if severity := DrawdownSeverity(report.DrawdownPct); severity != "" &&
		report.DrawdownPct.GreaterThan(m.cfg.DrawdownThreshold()) {
		err = m.raise(ctx, userID, portfolioID, model.AlertTypeDrawdown, severity,
			report.DrawdownPct, m.cfg.DrawdownThreshold(),
			fmt.Sprintf("portfolio is down %s%% from initial capital", report.DrawdownPct))
		if err != nil {
			return nil, err
		}
	}

	if report.VolatilityPct != nil {
		if severity := VolatilitySeverity(*report.VolatilityPct); severity != "" &&
			report.VolatilityPct.GreaterThan(m.cfg.VolatilityThreshold()) {
			err = m.raise(ctx, userID, portfolioID, model.AlertTypeVolatility, severity,
				*report.VolatilityPct, m.cfg.VolatilityThreshold(),
				fmt.Sprintf("annualized volatility is %s%%", report.VolatilityPct))
			if err != nil {
				return nil, err
			}
		}
	}

	return m.alerts.ListActive(ctx, userID, &portfolioID, 0)
}

// raise creates a new alert or escalates the active one of the same type.
// One active alert per (portfolio, type); severity only moves up.
func (m *Monitor) raise(
	ctx context.Context,
	userID uint,
	portfolioID uint,
	alertType string,
	severity string,
	current decimal.Decimal,
	threshold decimal.Decimal,
	message string,
) error {

	existing, err := m.alerts.FindActiveByType(ctx, portfolioID, alertType)
	if err != nil {
		return err
	}

	if existing != nil {
		changed := false

		if severityRank(severity) > severityRank(existing.Severity) {
			existing.Severity = severity
			changed = true
		}
		if existing.CurrentValue == nil || !existing.CurrentValue.Equal(current) {
			existing.CurrentValue = &current
			existing.Message = message
			changed = true
		}

		if !changed {
			return nil
		}
		return m.alerts.Save(ctx, existing)
	}

	return m.alerts.Create(ctx, &model.RiskAlert{
		UserID:         userID,
		PortfolioID:    &portfolioID,
		AlertType:      alertType,
		Severity:       severity,
		Message:        message,
		CurrentValue:   &current,
		ThresholdValue: &threshold,
		IsActive:       true,
	})
}

// ActiveAlerts lists unresolved alerts for a user, optionally narrowed to
// one portfolio.
func (m *Monitor) ActiveAlerts(ctx context.Context, userID uint, portfolioID *uint) ([]model.RiskAlert, error) {
	return m.alerts.ListActive(ctx, userID, portfolioID, 0)
}

// Acknowledge stamps an alert as seen. It stays active until resolved.
func (m *Monitor) Acknowledge(ctx context.Context, userID, alertID uint) error {
	alert, err := m.alerts.FindByIDForUser(ctx, alertID, userID)
	if err != nil {
		return err
	}
	if alert == nil {
		return traderr.NotFound("alert %d not found", alertID)
	}

	return m.alerts.Acknowledge(ctx, alertID, time.Now().UTC())
}

// Resolve deactivates an alert. A later threshold crossing creates a new
// one.
func (m *Monitor) Resolve(ctx context.Context, userID, alertID uint) error {
	alert, err := m.alerts.FindByIDForUser(ctx, alertID, userID)
	if err != nil {
		return err
	}
	if alert == nil {
		return traderr.NotFound("alert %d not found", alertID)
	}

	return m.alerts.Resolve(ctx, alertID, time.Now().UTC())
}

// SetStopLoss places or moves the stop price on an open position.
func (m *Monitor) SetStopLoss(
	ctx context.Context,
	userID uint,
	portfolioID uint,
	positionID uint,
	stopPrice decimal.Decimal,
) error {

	if stopPrice.LessThanOrEqual(decimal.Zero) {
		return traderr.MissingPrice("stop price must be positive, got %s", stopPrice)
	}

	portfolio, err := m.portfolios.FindByIDForUser(ctx, portfolioID, userID)
	if err != nil {
		return err
	}
	if portfolio == nil {
		return traderr.NotFound("portfolio %d not found", portfolioID)
	}

	positions, err := m.positions.ListOpenByPortfolio(ctx, portfolioID)
	if err != nil {
		return err
	}

	for i := range positions {
		if positions[i].ID == positionID {
			return m.positions.UpdateStopLoss(ctx, positionID, stopPrice)
		}
	}

	return traderr.NotFound("position %d not open in portfolio %d", positionID, portfolioID)
}
