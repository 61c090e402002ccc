package execution

import (
	"context"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/ledger"
	"tradingcore/src/model"
	"tradingcore/src/pricing"
	"tradingcore/src/repository"
	"tradingcore/src/traderr"
)

// orderStore is the slice of the order repository the engine needs.
type orderStore interface {
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	Save(ctx context.Context, order *model.Order) error
}

// assetStore resolves asset symbols for price lookups.
type assetStore interface {
	FindByID(ctx context.Context, id uint) (*model.Asset, error)
}

// fillApplier is the ledger surface the engine drives.
type fillApplier interface {
	ApplyFill(ctx context.Context, orderID uint, fill ledger.Fill) (*model.Order, error)
}

// Engine owns the execution path: resolve a reference price, hand the
// order to the adapter, apply the resulting fill through the ledger.
// Adapter failures fail the order; ledger rejections are surfaced as-is.
type Engine struct {
	adapter Adapter
	prices  pricing.Source
	orders  orderStore
	assets  assetStore
	applier fillApplier
}

// NewEngine wires an engine on the main database.
func NewEngine(adapter Adapter, prices pricing.Source) *Engine {
	return &Engine{
		adapter: adapter,
		prices:  prices,
		orders:  repository.NewOrderRepository(),
		assets:  repository.NewAssetRepository(),
		applier: ledger.New(),
	}
}

// NewEngineWith injects every collaborator. Used by tests and by callers
// running against a non-default database.
func NewEngineWith(adapter Adapter, prices pricing.Source, orders orderStore, assets assetStore, applier fillApplier) *Engine {
	return &Engine{
		adapter: adapter,
		prices:  prices,
		orders:  orders,
		assets:  assets,
		applier: applier,
	}
}

// ExecuteOrder runs one order through the adapter and the ledger. It is
// safe to call again after a transient failure; terminal orders are
// rejected before any exchange call is made.
func (e *Engine) ExecuteOrder(ctx context.Context, orderID uint) (*model.Order, error) {
	order, err := e.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, traderr.NotFound("order %d not found", orderID)
	}

	if order.IsTerminal() {
		return nil, traderr.InvalidState("order %d is %s and cannot be executed", order.ID, order.Status)
	}

	refPrice, err := e.referencePrice(ctx, order)
	if err != nil {
		return nil, err
	}

	fill, err := e.adapter.Execute(ctx, order, refPrice)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"engine":   "execution",
			"order_id": order.ID,
		}).WithError(err).Error("Adapter execution failed")

		e.failOrder(ctx, order, err)
		return nil, traderr.ExecutionFailed(err, "execution of order %d failed", order.ID)
	}

	return e.applier.ApplyFill(ctx, order.ID, *fill)
}

// referencePrice resolves the price the adapter executes against. Limit
// orders carry their own price; everything else needs a live quote.
func (e *Engine) referencePrice(ctx context.Context, order *model.Order) (decimal.Decimal, error) {
	if order.OrderType == model.OrderTypeLimit && order.Price != nil {
		return *order.Price, nil
	}

	asset := order.Asset
	if asset == nil {
		var err error
		asset, err = e.assets.FindByID(ctx, order.AssetID)
		if err != nil {
			return decimal.Zero, err
		}
		if asset == nil {
			return decimal.Zero, traderr.NotFound("asset %d not found", order.AssetID)
		}
		order.Asset = asset
	}

	return e.prices.LatestPrice(ctx, asset.Symbol)
}

func (e *Engine) failOrder(ctx context.Context, order *model.Order, cause error) {
	reason := cause.Error()
	if len(reason) > 200 {
		reason = reason[:200]
	}

	order.Status = model.OrderStatusFailed
	order.FailureReason = reason

	if err := e.orders.Save(ctx, order); err != nil {
		logger.WithFields(map[string]interface{}{
			"engine":   "execution",
			"order_id": order.ID,
		}).WithError(err).Error("Failed to mark order failed")
	}
}
