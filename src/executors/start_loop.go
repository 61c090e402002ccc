package executors

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/execution"
	"tradingcore/src/limits"
	"tradingcore/src/model"
	"tradingcore/src/pricing"
	"tradingcore/src/repository"
	"tradingcore/src/risk"
	"tradingcore/src/security"
	"tradingcore/src/traderr"
	"tradingcore/src/trading"
)

// Loop is the periodic maintenance pass behind the executor command. Each
// tick expires stale orders, resubmits pending ones to the worker pool,
// fires crossed stop losses and sweeps every portfolio for risk limit
// breaches.
type Loop struct {
	cfg        Config
	trading    *trading.Service
	monitor    *risk.Monitor
	pool       trading.Submitter
	orders     *repository.OrderRepository
	portfolios *repository.PortfolioRepository
	positions  *repository.PositionRepository
}

// NewLoop assembles a loop from already wired collaborators.
func NewLoop(
	cfg Config,
	tradingSvc *trading.Service,
	monitor *risk.Monitor,
	pool trading.Submitter,
	orders *repository.OrderRepository,
	portfolios *repository.PortfolioRepository,
	positions *repository.PositionRepository,
) *Loop {
	return &Loop{
		cfg:        cfg,
		trading:    tradingSvc,
		monitor:    monitor,
		pool:       pool,
		orders:     orders,
		portfolios: portfolios,
		positions:  positions,
	}
}

// StartLoop wires the production loop and runs it until ctx is cancelled.
func StartLoop(ctx context.Context) error {
	config := GetConfig()
	limitsCfg := limits.GetConfig()
	execCfg := execution.GetConfig()

	prices := pricing.NewRestSource(pricing.GetConfig())

	var adapter execution.Adapter
	if limitsCfg.PaperTrading {
		adapter = execution.NewSimulatedAdapter(limitsCfg.FeeRateDecimal(), "EUR")
	} else {
		securityCfg := security.GetConfig()

		apiKey, err := security.DecryptString(execCfg.APIKey, securityCfg.ExchangeCRKey)
		if err != nil {
			logger.WithError(err).Error("Failed to decrypt API Key")
			return err
		}
		apiSecret, err := security.DecryptString(execCfg.APISecret, securityCfg.ExchangeCRKey)
		if err != nil {
			logger.WithError(err).Error("Failed to decrypt API Secret")
			return err
		}
		adapter = execution.NewLiveAdapter(execCfg, apiKey, apiSecret)
	}

	pool := execution.NewPool(execution.NewEngine(adapter, prices), execCfg)
	pool.Start(ctx)
	defer pool.Stop()

	loop := NewLoop(
		config,
		trading.NewService(limitsCfg, prices, pool),
		risk.NewMonitor(limitsCfg, nil),
		pool,
		repository.NewOrderRepository(),
		repository.NewPortfolioRepository(),
		repository.NewPositionRepository(),
	)

	return loop.Run(ctx)
}

// Run ticks until the context is cancelled. Individual tick failures are
// logged and retried on the next tick rather than killing the loop.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.LoopPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("executor loop stopped")
			return nil

		case <-ticker.C:
			logger.Info("executor loop tick")
			l.Tick(ctx)
		}
	}
}

// Tick runs one maintenance pass.
func (l *Loop) Tick(ctx context.Context) {
	if expired, err := l.trading.ExpirePending(ctx, l.cfg.ExpireAfter, l.cfg.BatchSize); err != nil {
		logger.WithError(err).Error("Failed to expire stale orders")
	} else if expired > 0 {
		logger.WithField("expired", expired).Info("Expired stale orders")
	}

	l.resubmitPending(ctx)
	l.fireStopLosses(ctx)

	if l.cfg.RiskSweep {
		l.sweepRisk(ctx)
	}
}

// resubmitPending pushes pending orders back onto the worker queue. An
// order can sit pending after a crash or a full queue; the grace period
// keeps freshly created orders out of the way of their first submission.
func (l *Loop) resubmitPending(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-l.cfg.SubmitGrace)

	pending, err := l.orders.ListPendingOlderThan(ctx, cutoff, l.cfg.BatchSize)
	if err != nil {
		logger.WithError(err).Error("Failed to list pending orders")
		return
	}

	for i := range pending {
		if err := l.pool.Submit(pending[i].ID); err != nil {
			logger.WithFields(map[string]interface{}{
				"loop":     "executor",
				"order_id": pending[i].ID,
			}).WithError(err).Warn("Execution queue full, deferring to next tick")
			return
		}
	}
}

// fireStopLosses turns crossed stop prices into protective sell orders.
// The trigger is cleared once the order is accepted so it cannot fire
// again while the sell is in flight.
func (l *Loop) fireStopLosses(ctx context.Context) {
	triggered, err := l.positions.ListStopLossTriggered(ctx, l.cfg.BatchSize)
	if err != nil {
		logger.WithError(err).Error("Failed to list triggered stop losses")
		return
	}

	for i := range triggered {
		position := &triggered[i]
		if position.Asset == nil || position.StopLossPrice == nil {
			continue
		}

		portfolio, err := l.portfolios.FindByID(ctx, position.PortfolioID)
		if err != nil || portfolio == nil {
			logger.WithError(err).WithField("portfolio_id", position.PortfolioID).
				Error("Failed to resolve portfolio for stop loss")
			continue
		}

		stopPrice := *position.StopLossPrice
		order, err := l.trading.CreateOrder(ctx, portfolio.UserID, trading.CreateOrderInput{
			PortfolioID: position.PortfolioID,
			Symbol:      position.Asset.Symbol,
			OrderType:   model.OrderTypeStopLoss,
			Quantity:    position.Quantity,
			Price:       &stopPrice,
		})
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"loop":        "executor",
				"position_id": position.ID,
				"code":        string(traderr.CodeOf(err)),
			}).WithError(err).Error("Failed to place stop loss order")
			continue
		}

		if err := l.positions.ClearStopLoss(ctx, position.ID); err != nil {
			logger.WithError(err).WithField("position_id", position.ID).
				Error("Failed to clear fired stop loss")
		}

		logger.WithFields(map[string]interface{}{
			"loop":        "executor",
			"position_id": position.ID,
			"order_id":    order.ID,
			"stop_price":  stopPrice,
		}).Info("Stop loss fired")
	}
}

// sweepRisk runs the threshold checks over every portfolio.
func (l *Loop) sweepRisk(ctx context.Context) {
	offset := 0
	for {
		portfolios, err := l.portfolios.ListAll(ctx, l.cfg.BatchSize, offset)
		if err != nil {
			logger.WithError(err).Error("Failed to list portfolios for risk sweep")
			return
		}
		if len(portfolios) == 0 {
			return
		}

		for i := range portfolios {
			p := &portfolios[i]
			if _, err := l.monitor.CheckLimits(ctx, p.UserID, p.ID); err != nil {
				logger.WithFields(map[string]interface{}{
					"loop":         "executor",
					"portfolio_id": p.ID,
				}).WithError(err).Error("Risk sweep failed for portfolio")
			}
		}

		offset += len(portfolios)
	}
}
