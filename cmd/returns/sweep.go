package returns

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/database"
	"tradingcore/src/limits"
	"tradingcore/src/repository"
	"tradingcore/src/risk"
)

type Sweep struct {
}

// Start runs one volatility-aware risk pass over every portfolio, using
// daily klines as the return series. Meant to run from a scheduler.
func (s *Sweep) Start() error {
	config := GetConfig()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	monitor := risk.NewMonitor(limits.GetConfig(), NewProvider(config.Quote))
	portfolios := repository.NewPortfolioRepository()

	checked := 0
	offset := 0
	for {
		page, err := portfolios.ListAll(ctx, config.BatchSize, offset)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			p := &page[i]

			alerts, err := monitor.CheckLimits(ctx, p.UserID, p.ID)
			if err != nil {
				logger.WithFields(map[string]interface{}{
					"cmd":          "returns",
					"portfolio_id": p.ID,
				}).WithError(err).Error("Risk check failed for portfolio")
				continue
			}

			checked++
			if len(alerts) > 0 {
				logger.WithFields(map[string]interface{}{
					"cmd":          "returns",
					"portfolio_id": p.ID,
					"alerts":       len(alerts),
				}).Warn("Portfolio has active risk alerts")
			}
		}

		offset += len(page)
	}

	logger.WithField("portfolios", checked).Info("Returns sweep finished")

	return nil
}
