package trading

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradingcore/src/limits"
	"tradingcore/src/model"
	"tradingcore/src/pricing"
	"tradingcore/src/repository"
	"tradingcore/src/traderr"
)

var testDBCounter int

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingSubmitter struct {
	submitted []uint
}

func (r *recordingSubmitter) Submit(orderID uint) error {
	r.submitted = append(r.submitted, orderID)
	return nil
}

type fixture struct {
	db        *gorm.DB
	service   *Service
	submitter *recordingSubmitter
	prices    *pricing.StaticSource
	portfolio *model.Portfolio
	asset     *model.Asset
}

func setup(t *testing.T) *fixture {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:trading_test_%d?mode=memory&cache=shared", testDBCounter)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Portfolio{},
		&model.Asset{},
		&model.Position{},
		&model.Order{},
	))

	portfolio := &model.Portfolio{
		UserID: 1, Name: "main", Currency: "EUR",
		InitialBalance: d("10000"), CurrentBalance: d("10000"),
	}
	require.NoError(t, db.Create(portfolio).Error)

	asset := &model.Asset{Symbol: "BTC", Name: "Bitcoin", AssetType: model.AssetTypeCrypto, IsActive: true}
	require.NoError(t, db.Create(asset).Error)

	prices := pricing.NewStaticSource(0)
	prices.Set("BTC", d("45000"))

	submitter := &recordingSubmitter{}

	cfg := limits.Config{
		MinTradeAmount: 10.0,
		MaxDailyTrades: 50,
		FeeRate:        0.0015,
	}

	service := NewService(cfg, prices, submitter).WithRepositories(
		repository.NewOrderRepository().WithDB(db),
		repository.NewPortfolioRepository().WithDB(db),
		repository.NewPositionRepository().WithDB(db),
		repository.NewAssetRepository().WithDB(db),
	)

	return &fixture{
		db: db, service: service, submitter: submitter,
		prices: prices, portfolio: portfolio, asset: asset,
	}
}

func TestCreateOrderBuy(t *testing.T) {
	f := setup(t)

	order, err := f.service.CreateOrder(context.Background(), 1, CreateOrderInput{
		PortfolioID: f.portfolio.ID,
		Symbol:      "BTC",
		OrderType:   model.OrderTypeBuy,
		Quantity:    d("0.1"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.OrderSideBuy, order.Side)
	assert.Equal(t, "EUR", order.FeeCurrency)
	assert.Equal(t, []uint{order.ID}, f.submitter.submitted)
}

func TestCreateOrderValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	stop := d("40000")

	tests := []struct {
		name     string
		input    CreateOrderInput
		wantCode traderr.Code
	}{
		{
			name: "zero quantity",
			input: CreateOrderInput{
				PortfolioID: f.portfolio.ID, Symbol: "BTC",
				OrderType: model.OrderTypeBuy, Quantity: decimal.Zero,
			},
			wantCode: traderr.CodeInvalidQuantity,
		},
		{
			name: "limit order without price",
			input: CreateOrderInput{
				PortfolioID: f.portfolio.ID, Symbol: "BTC",
				OrderType: model.OrderTypeLimit, Quantity: d("0.1"),
			},
			wantCode: traderr.CodeMissingPrice,
		},
		{
			name: "limit order with only a stop price",
			input: CreateOrderInput{
				PortfolioID: f.portfolio.ID, Symbol: "BTC",
				OrderType: model.OrderTypeLimit, Quantity: d("0.1"),
				StopPrice: &stop,
			},
			wantCode: traderr.CodeMissingPrice,
		},
		{
			name: "unknown asset",
			input: CreateOrderInput{
				PortfolioID: f.portfolio.ID, Symbol: "DOGE",
				OrderType: model.OrderTypeBuy, Quantity: d("1"),
			},
			wantCode: traderr.CodeAssetNotFound,
		},
		{
			name: "below minimum notional",
			input: CreateOrderInput{
				PortfolioID: f.portfolio.ID, Symbol: "BTC",
				OrderType: model.OrderTypeBuy, Quantity: d("0.0000001"),
			},
			wantCode: traderr.CodeBelowMinimumTrade,
		},
		{
			name: "insufficient balance",
			input: CreateOrderInput{
				PortfolioID: f.portfolio.ID, Symbol: "BTC",
				OrderType: model.OrderTypeBuy, Quantity: d("1"),
			},
			wantCode: traderr.CodeInsufficientBalance,
		},
		{
			name: "sell without position",
			input: CreateOrderInput{
				PortfolioID: f.portfolio.ID, Symbol: "BTC",
				OrderType: model.OrderTypeSell, Quantity: d("0.1"),
			},
			wantCode: traderr.CodeInsufficientPosition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateOrder(ctx, 1, tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, traderr.CodeOf(err))
		})
	}

	assert.Empty(t, f.submitter.submitted, "rejected orders must not reach execution")
}

func TestCreateOrderOwnership(t *testing.T) {
	f := setup(t)

	_, err := f.service.CreateOrder(context.Background(), 99, CreateOrderInput{
		PortfolioID: f.portfolio.ID,
		Symbol:      "BTC",
		OrderType:   model.OrderTypeBuy,
		Quantity:    d("0.1"),
	})
	require.Error(t, err)
	assert.Equal(t, traderr.CodeNotFound, traderr.CodeOf(err))
}

func TestCreateOrderDailyLimit(t *testing.T) {
	f := setup(t)
	f.service.cfg.MaxDailyTrades = 2
	ctx := context.Background()

	input := CreateOrderInput{
		PortfolioID: f.portfolio.ID, Symbol: "BTC",
		OrderType: model.OrderTypeBuy, Quantity: d("0.001"),
	}

	for i := 0; i < 2; i++ {
		_, err := f.service.CreateOrder(ctx, 1, input)
		require.NoError(t, err)
	}

	_, err := f.service.CreateOrder(ctx, 1, input)
	require.Error(t, err)
	assert.Equal(t, traderr.CodeDailyLimitExceeded, traderr.CodeOf(err))
}

func TestQuickTradeDerivesQuantity(t *testing.T) {
	f := setup(t)

	order, err := f.service.QuickTrade(context.Background(), 1, f.portfolio.ID, "BTC", model.OrderSideBuy, d("4500"))
	require.NoError(t, err)

	// 4500 / 45000 = 0.1
	assert.True(t, order.Quantity.Equal(d("0.1")), "quantity %s", order.Quantity)
	assert.Equal(t, model.OrderSideBuy, order.Side)
}

func TestCancelOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, 1, CreateOrderInput{
		PortfolioID: f.portfolio.ID, Symbol: "BTC",
		OrderType: model.OrderTypeBuy, Quantity: d("0.1"),
	})
	require.NoError(t, err)

	cancelled, err := f.service.CancelOrder(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	// Terminal states are final.
	_, err = f.service.CancelOrder(ctx, 1, order.ID)
	require.Error(t, err)
	assert.Equal(t, traderr.CodeInvalidState, traderr.CodeOf(err))
}

func TestUpdateOrderPendingOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	limit := d("44000")
	order, err := f.service.CreateOrder(ctx, 1, CreateOrderInput{
		PortfolioID: f.portfolio.ID, Symbol: "BTC",
		OrderType: model.OrderTypeLimit, Quantity: d("0.1"), Price: &limit,
	})
	require.NoError(t, err)

	newQty := d("0.2")
	updated, err := f.service.UpdateOrder(ctx, 1, order.ID, UpdateOrderInput{Quantity: &newQty})
	require.NoError(t, err)
	assert.True(t, updated.Quantity.Equal(newQty))

	require.NoError(t, f.db.Model(&model.Order{}).
		Where("id = ?", order.ID).
		Update("status", model.OrderStatusPartial).Error)

	_, err = f.service.UpdateOrder(ctx, 1, order.ID, UpdateOrderInput{Quantity: &newQty})
	require.Error(t, err)
	assert.Equal(t, traderr.CodeInvalidState, traderr.CodeOf(err))
}

func TestExpirePending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, 1, CreateOrderInput{
		PortfolioID: f.portfolio.ID, Symbol: "BTC",
		OrderType: model.OrderTypeBuy, Quantity: d("0.1"),
	})
	require.NoError(t, err)

	// Age the order past the cutoff.
	require.NoError(t, f.db.Model(&model.Order{}).
		Where("id = ?", order.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error)

	expired, err := f.service.ExpirePending(ctx, time.Hour, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	var reloaded model.Order
	require.NoError(t, f.db.First(&reloaded, order.ID).Error)
	assert.Equal(t, model.OrderStatusCancelled, reloaded.Status)
	assert.Equal(t, "expired", reloaded.FailureReason)
}

func TestSearchOrdersEnforcesOwnership(t *testing.T) {
	f := setup(t)

	_, err := f.service.SearchOrders(context.Background(), 99, repository.OrderSearchOptions{
		PortfolioID: f.portfolio.ID,
	})
	require.Error(t, err)
	assert.Equal(t, traderr.CodeNotFound, traderr.CodeOf(err))
}
