package execution

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingcore/src/ledger"
	"tradingcore/src/model"
	"tradingcore/src/pricing"
	"tradingcore/src/traderr"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeOrderStore struct {
	orders map[uint]*model.Order
	saved  []*model.Order
}

func (f *fakeOrderStore) FindByID(_ context.Context, id uint) (*model.Order, error) {
	return f.orders[id], nil
}

func (f *fakeOrderStore) Save(_ context.Context, order *model.Order) error {
	f.saved = append(f.saved, order)
	return nil
}

type fakeAssetStore struct {
	assets map[uint]*model.Asset
}

func (f *fakeAssetStore) FindByID(_ context.Context, id uint) (*model.Asset, error) {
	return f.assets[id], nil
}

type fakeApplier struct {
	applied []ledger.Fill
	err     error
}

func (f *fakeApplier) ApplyFill(_ context.Context, orderID uint, fill ledger.Fill) (*model.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.applied = append(f.applied, fill)
	return &model.Order{ID: orderID, Status: model.OrderStatusExecuted}, nil
}

type failingAdapter struct{ err error }

func (a failingAdapter) Execute(context.Context, *model.Order, decimal.Decimal) (*ledger.Fill, error) {
	return nil, a.err
}

func newTestEngine(orders *fakeOrderStore, assets *fakeAssetStore, applier *fakeApplier, adapter Adapter, prices pricing.Source) *Engine {
	return NewEngineWith(adapter, prices, orders, assets, applier)
}

func TestEngineExecutesMarketOrder(t *testing.T) {
	orders := &fakeOrderStore{orders: map[uint]*model.Order{
		1: {
			ID: 1, PortfolioID: 1, AssetID: 10,
			OrderType: model.OrderTypeBuy, Side: model.OrderSideBuy,
			Quantity: d("0.1"), Status: model.OrderStatusPending,
		},
	}}
	assets := &fakeAssetStore{assets: map[uint]*model.Asset{
		10: {ID: 10, Symbol: "BTC", IsActive: true},
	}}
	applier := &fakeApplier{}

	prices := pricing.NewStaticSource(0)
	prices.Set("BTC", d("45000"))

	adapter := NewSimulatedAdapter(d("0.0015"), "EUR")
	engine := newTestEngine(orders, assets, applier, adapter, prices)

	result, err := engine.ExecuteOrder(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusExecuted, result.Status)

	require.Len(t, applier.applied, 1)
	fill := applier.applied[0]
	assert.True(t, fill.Quantity.Equal(d("0.1")))
	assert.True(t, fill.Price.Equal(d("45000")))
	// 0.1 * 45000 * 0.0015 = 6.75
	assert.True(t, fill.Fee.Equal(d("6.75")), "fee %s", fill.Fee)
	assert.True(t, strings.HasPrefix(fill.ExternalOrderID, "PAPER_"))
}

func TestEngineUsesLimitPrice(t *testing.T) {
	limit := d("44000")
	orders := &fakeOrderStore{orders: map[uint]*model.Order{
		1: {
			ID: 1, AssetID: 10,
			OrderType: model.OrderTypeLimit, Side: model.OrderSideBuy,
			Quantity: d("1"), Price: &limit, Status: model.OrderStatusPending,
		},
	}}
	applier := &fakeApplier{}

	// No quote available; the limit price must be enough.
	engine := newTestEngine(orders, &fakeAssetStore{}, applier,
		NewSimulatedAdapter(d("0"), "EUR"), pricing.NewStaticSource(0))

	_, err := engine.ExecuteOrder(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, applier.applied, 1)
	assert.True(t, applier.applied[0].Price.Equal(limit))
}

func TestEngineRejectsTerminalOrder(t *testing.T) {
	orders := &fakeOrderStore{orders: map[uint]*model.Order{
		1: {ID: 1, Status: model.OrderStatusExecuted},
	}}
	engine := newTestEngine(orders, &fakeAssetStore{}, &fakeApplier{},
		NewSimulatedAdapter(d("0"), "EUR"), pricing.NewStaticSource(0))

	_, err := engine.ExecuteOrder(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, traderr.CodeInvalidState, traderr.CodeOf(err))
}

func TestEngineMissingPriceBlocksExecution(t *testing.T) {
	orders := &fakeOrderStore{orders: map[uint]*model.Order{
		1: {
			ID: 1, AssetID: 10,
			OrderType: model.OrderTypeBuy, Side: model.OrderSideBuy,
			Quantity: d("1"), Status: model.OrderStatusPending,
		},
	}}
	assets := &fakeAssetStore{assets: map[uint]*model.Asset{
		10: {ID: 10, Symbol: "BTC"},
	}}
	applier := &fakeApplier{}

	engine := newTestEngine(orders, assets, applier,
		NewSimulatedAdapter(d("0"), "EUR"), pricing.NewStaticSource(0))

	_, err := engine.ExecuteOrder(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, traderr.CodeMissingPrice, traderr.CodeOf(err))
	assert.Empty(t, applier.applied)
}

func TestEngineFailsOrderOnAdapterError(t *testing.T) {
	orders := &fakeOrderStore{orders: map[uint]*model.Order{
		1: {
			ID: 1, AssetID: 10,
			OrderType: model.OrderTypeBuy, Side: model.OrderSideBuy,
			Quantity: d("1"), Status: model.OrderStatusPending,
		},
	}}
	assets := &fakeAssetStore{assets: map[uint]*model.Asset{
		10: {ID: 10, Symbol: "BTC"},
	}}
	applier := &fakeApplier{}

	prices := pricing.NewStaticSource(0)
	prices.Set("BTC", d("45000"))

	engine := newTestEngine(orders, assets, applier,
		failingAdapter{err: errors.New("exchange down")}, prices)

	_, err := engine.ExecuteOrder(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, traderr.CodeExecutionFailed, traderr.CodeOf(err))

	require.Len(t, orders.saved, 1)
	assert.Equal(t, model.OrderStatusFailed, orders.saved[0].Status)
	assert.Contains(t, orders.saved[0].FailureReason, "exchange down")
	assert.Empty(t, applier.applied)
}

func TestPoolExecutesSubmittedOrders(t *testing.T) {
	orders := &fakeOrderStore{orders: map[uint]*model.Order{
		1: {
			ID: 1, AssetID: 10,
			OrderType: model.OrderTypeBuy, Side: model.OrderSideBuy,
			Quantity: d("1"), Status: model.OrderStatusPending,
		},
		2: {
			ID: 2, AssetID: 10,
			OrderType: model.OrderTypeBuy, Side: model.OrderSideBuy,
			Quantity: d("2"), Status: model.OrderStatusPending,
		},
	}}
	assets := &fakeAssetStore{assets: map[uint]*model.Asset{
		10: {ID: 10, Symbol: "BTC"},
	}}
	applier := &fakeApplier{}

	prices := pricing.NewStaticSource(0)
	prices.Set("BTC", d("100"))

	engine := newTestEngine(orders, assets, applier, NewSimulatedAdapter(d("0"), "EUR"), prices)
	pool := NewPool(engine, Config{Workers: 1, QueueSize: 8})

	pool.Start(context.Background())
	require.NoError(t, pool.Submit(1))
	require.NoError(t, pool.Submit(2))
	pool.Stop()

	assert.Len(t, applier.applied, 2)
}

func TestSimulatedAdapterFillsRemainingQuantity(t *testing.T) {
	order := &model.Order{
		ID: 1, OrderType: model.OrderTypeBuy, Side: model.OrderSideBuy,
		Quantity:         d("1"),
		ExecutedQuantity: d("0.4"),
		Status:           model.OrderStatusPartial,
	}

	adapter := NewSimulatedAdapter(d("0.0015"), "EUR")
	fill, err := adapter.Execute(context.Background(), order, d("100"))
	require.NoError(t, err)

	assert.True(t, fill.Quantity.Equal(d("0.6")))
	assert.Equal(t, "EUR", fill.FeeCurrency)
	assert.WithinDuration(t, time.Now(), fill.ExecutedAt, time.Minute)
}
