package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"tradingcore/src/model"
)

// ----- alert severity escalation -----

const (
	ConcentrationMediumPct = 25.0
	ConcentrationHighPct   = 40.0
	DrawdownHighPct        = 10.0
	DrawdownCriticalPct    = 20.0
	VolatilityMediumPct    = 30.0
)

var hundred = decimal.NewFromInt(100)

// Exposure is one position's share of total portfolio value.
type Exposure struct {
	AssetID uint
	Symbol  string
	Value   decimal.Decimal
	Pct     decimal.Decimal
}

// Report is the computed risk picture of one portfolio. All percentages
// are 0..100.
type Report struct {
	TotalValue       decimal.Decimal            `json:"total_value"`
	CashPct          decimal.Decimal            `json:"cash_pct"`
	Exposures        []Exposure                 `json:"exposures"`
	MaxConcentration decimal.Decimal            `json:"max_concentration_pct"`
	TypeAllocation   map[string]decimal.Decimal `json:"type_allocation_pct"`
	DrawdownPct      decimal.Decimal            `json:"drawdown_pct"`
	VolatilityPct    *decimal.Decimal           `json:"volatility_pct,omitempty"`
}

// ComputeExposures values every open position against the portfolio total
// and returns per-asset shares, largest first is not guaranteed.
func ComputeExposures(cash decimal.Decimal, positions []model.Position) (decimal.Decimal, []Exposure) {
	total := cash
	for i := range positions {
		total = total.Add(positions[i].MarketValue())
	}

	exposures := make([]Exposure, 0, len(positions))
	for i := range positions {
		position := &positions[i]

		value := position.MarketValue()
		pct := decimal.Zero
		if total.GreaterThan(decimal.Zero) {
			pct = value.Div(total).Mul(hundred).Round(4)
		}

		symbol := ""
		if position.Asset != nil {
			symbol = position.Asset.Symbol
		}

		exposures = append(exposures, Exposure{
			AssetID: position.AssetID,
			Symbol:  symbol,
			Value:   value,
			Pct:     pct,
		})
	}

	return total, exposures
}

// TypeAllocation groups exposure percentages by asset type. Positions
// without a preloaded asset fall under "unknown".
func TypeAllocation(total decimal.Decimal, positions []model.Position) map[string]decimal.Decimal {
	allocation := make(map[string]decimal.Decimal)
	if total.LessThanOrEqual(decimal.Zero) {
		return allocation
	}

	for i := range positions {
		position := &positions[i]

		assetType := "unknown"
		if position.Asset != nil {
			assetType = position.Asset.AssetType
		}

		pct := position.MarketValue().Div(total).Mul(hundred).Round(4)
		allocation[assetType] = allocation[assetType].Add(pct)
	}

	return allocation
}

// DrawdownPct measures how far the portfolio has fallen from its starting
// capital, in percent. A portfolio above water reports zero.
func DrawdownPct(initialBalance, totalValue decimal.Decimal) decimal.Decimal {
	if initialBalance.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	loss := initialBalance.Sub(totalValue)
	if loss.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	return loss.Div(initialBalance).Mul(hundred).Round(4)
}

// AnnualizedVolatilityPct is the sample standard deviation of daily
// returns scaled to a year of 252 trading days, in percent. Fewer than
// two observations yield zero.
func AnnualizedVolatilityPct(dailyReturns []decimal.Decimal) decimal.Decimal {
	n := len(dailyReturns)
	if n < 2 {
		return decimal.Zero
	}

	mean := 0.0
	values := make([]float64, n)
	for i, r := range dailyReturns {
		values[i], _ = r.Float64()
		mean += values[i]
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n - 1)

	vol := math.Sqrt(variance) * math.Sqrt(252) * 100
	return decimal.NewFromFloat(vol).Round(4)
}

// ConcentrationSeverity maps a concentration percentage onto an alert
// severity, or "" when below every threshold.
func ConcentrationSeverity(pct decimal.Decimal) string {
	switch {
	case pct.GreaterThan(decimal.NewFromFloat(ConcentrationHighPct)):
		return model.SeverityHigh
	case pct.GreaterThan(decimal.NewFromFloat(ConcentrationMediumPct)):
		return model.SeverityMedium
	}
	return ""
}

// DrawdownSeverity maps a drawdown percentage onto an alert severity, or
// "" when below every threshold.
func DrawdownSeverity(pct decimal.Decimal) string {
	switch {
	case pct.GreaterThan(decimal.NewFromFloat(DrawdownCriticalPct)):
		return model.SeverityCritical
	case pct.GreaterThan(decimal.NewFromFloat(DrawdownHighPct)):
		return model.SeverityHigh
	}
	return ""
}

// VolatilitySeverity maps an annualized volatility percentage onto an
// alert severity, or "" when below the threshold.
func VolatilitySeverity(pct decimal.Decimal) string {
	if pct.GreaterThan(decimal.NewFromFloat(VolatilityMediumPct)) {
		return model.SeverityMedium
	}
	return ""
}

// severityRank orders severities for escalation. Unknown severities rank
// lowest.
func severityRank(severity string) int {
	switch severity {
	case model.SeverityCritical:
		return 4
	case model.SeverityHigh:
		return 3
	case model.SeverityMedium:
		return 2
	case model.SeverityLow:
		return 1
	}
	return 0
}
