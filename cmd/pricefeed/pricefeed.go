package pricefeed

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/database"
	"tradingcore/src/ledger"
	"tradingcore/src/pricing"
	"tradingcore/src/repository"
)

type PriceFeed struct {
}

// Start streams mark prices from the websocket feed and revalues every
// open position on each tick. Runs until SIGINT or SIGTERM.
func (p *PriceFeed) Start() error {
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

	assets := repository.NewAssetRepository()
	book := ledger.New()

	// Symbol to asset id resolution is cached for the process lifetime;
	// the asset catalogue is read-mostly reference data.
	assetIDs := make(map[string]uint)

	handler := func(symbol string, price decimal.Decimal, at time.Time) {
		assetID, ok := assetIDs[symbol]
		if !ok {
			asset, err := assets.FindActiveBySymbol(ctx, symbol)
			if err != nil || asset == nil {
				logger.WithError(err).WithField("symbol", symbol).
					Warn("Tick for unknown asset, skipping")
				return
			}
			assetID = asset.ID
			assetIDs[symbol] = assetID
		}

		updated, err := book.MarkToMarket(ctx, assetID, price)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).
				Error("Failed to mark positions to market")
			return
		}

		if updated > 0 {
			logger.WithFields(map[string]interface{}{
				"cmd":     "pricefeed",
				"symbol":  symbol,
				"price":   price,
				"updated": updated,
			}).Info("Positions revalued")
		}
	}

	feed := pricing.NewFeed(pricing.GetConfig(), handler)
	if err := feed.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start price feed")
		return err
	}

	<-ctx.Done()

	return feed.Stop()
}
