package trading

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/limits"
	"tradingcore/src/model"
	"tradingcore/src/pricing"
	"tradingcore/src/repository"
	"tradingcore/src/traderr"
)

// Submitter hands validated orders to the execution side. The worker pool
// implements it; a nil submitter leaves orders pending for the executor
// loop to pick up.
type Submitter interface {
	Submit(orderID uint) error
}

// CreateOrderInput is the request contract for placing an order.
type CreateOrderInput struct {
	PortfolioID uint             `json:"portfolio_id"`
	Symbol      string           `json:"symbol"`
	OrderType   string           `json:"order_type"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	StopPrice   *decimal.Decimal `json:"stop_price,omitempty"`
}

// UpdateOrderInput carries the fields an open order may change.
type UpdateOrderInput struct {
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	StopPrice *decimal.Decimal `json:"stop_price,omitempty"`
}

// Service is the order manager. It owns validation and the order state
// machine; balances and positions only move downstream in the ledger.
type Service struct {
	cfg        limits.Config
	orders     *repository.OrderRepository
	portfolios *repository.PortfolioRepository
	positions  *repository.PositionRepository
	assets     *repository.AssetRepository
	prices     pricing.Source
	submitter  Submitter
}

// NewService wires an order manager on the main database.
func NewService(cfg limits.Config, prices pricing.Source, submitter Submitter) *Service {
	return &Service{
		cfg:        cfg,
		orders:     repository.NewOrderRepository(),
		portfolios: repository.NewPortfolioRepository(),
		positions:  repository.NewPositionRepository(),
		assets:     repository.NewAssetRepository(),
		prices:     prices,
		submitter:  submitter,
	}
}

// WithRepositories overrides the repository set. Used by tests running on
// a throwaway database.
func (s *Service) WithRepositories(
	orders *repository.OrderRepository,
	portfolios *repository.PortfolioRepository,
	positions *repository.PositionRepository,
	assets *repository.AssetRepository,
) *Service {
	clone := *s
	clone.orders = orders
	clone.portfolios = portfolios
	clone.positions = positions
	clone.assets = assets
	return &clone
}

// CreateOrder validates trading intent and persists it as a pending order.
// Validation is advisory for balance and holdings; the ledger re-checks
// both under lock at fill time.
func (s *Service) CreateOrder(
	ctx context.Context,
	userID uint,
	input CreateOrderInput,
) (*model.Order, error) {

	orderType := strings.ToLower(strings.TrimSpace(input.OrderType))
	side := model.ResolveSide(orderType)

	if !validOrderType(orderType) {
		return nil, traderr.InvalidState("unknown order type %q", input.OrderType)
	}

	if input.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, traderr.InvalidQuantity("quantity must be positive, got %s", input.Quantity)
	}

	if requiresPrice(orderType) {
		// Limit orders need a limit price specifically; a stop price
		// alone only satisfies the stop types.
		if orderType == model.OrderTypeLimit && input.Price == nil {
			return nil, traderr.MissingPrice("limit orders require a price")
		}
		if input.Price == nil && input.StopPrice == nil {
			return nil, traderr.MissingPrice("%s orders require a price", orderType)
		}
		if input.Price != nil && input.Price.LessThanOrEqual(decimal.Zero) {
			return nil, traderr.MissingPrice("price must be positive, got %s", input.Price)
		}
		if input.StopPrice != nil && input.StopPrice.LessThanOrEqual(decimal.Zero) {
			return nil, traderr.MissingPrice("stop price must be positive, got %s", input.StopPrice)
		}
	}

	portfolio, err := s.portfolios.FindByIDForUser(ctx, input.PortfolioID, userID)
	if err != nil {
		return nil, err
	}
	if portfolio == nil {
		return nil, traderr.NotFound("portfolio %d not found", input.PortfolioID)
	}

	asset, err := s.assets.FindActiveBySymbol(ctx, input.Symbol)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, traderr.AssetNotFound(input.Symbol)
	}

	refPrice, err := s.referencePrice(ctx, asset.Symbol, input.Price)
	if err != nil {
		return nil, err
	}

	notional := input.Quantity.Mul(refPrice)
	if notional.LessThan(s.cfg.MinTradeAmountDecimal()) {
		return nil, traderr.BelowMinimumTrade(
			"order notional %s is below the minimum %s",
			notional, s.cfg.MinTradeAmountDecimal())
	}

	if err := s.checkDailyLimit(ctx, portfolio.ID); err != nil {
		return nil, err
	}

	switch side {
	case model.OrderSideBuy:
		cost := notional.Mul(decimal.NewFromInt(1).Add(s.cfg.FeeRateDecimal()))
		if cost.GreaterThan(portfolio.CurrentBalance) {
			return nil, traderr.InsufficientBalance(
				"order costs about %s but portfolio %d holds %s",
				cost.Round(2), portfolio.ID, portfolio.CurrentBalance)
		}
	case model.OrderSideSell:
		position, err := s.positions.FindOpen(ctx, portfolio.ID, asset.ID)
		if err != nil {
			return nil, err
		}
		if position == nil || position.Quantity.LessThan(input.Quantity) {
			held := decimal.Zero
			if position != nil {
				held = position.Quantity
			}
			return nil, traderr.InsufficientPosition(
				"cannot sell %s %s, only %s held", input.Quantity, asset.Symbol, held)
		}
	}

	order := &model.Order{
		PortfolioID:      portfolio.ID,
		AssetID:          asset.ID,
		OrderType:        orderType,
		Side:             side,
		Quantity:         input.Quantity,
		Price:            input.Price,
		StopPrice:        input.StopPrice,
		Status:           model.OrderStatusPending,
		ExecutedQuantity: decimal.Zero,
		FeeCurrency:      portfolio.Currency,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	order.Asset = asset

	logger.WithFields(map[string]interface{}{
		"service":      "trading",
		"order_id":     order.ID,
		"portfolio_id": portfolio.ID,
		"symbol":       asset.Symbol,
		"side":         side,
		"quantity":     input.Quantity.String(),
	}).Info("Order created")

	s.submit(order.ID)

	return order, nil
}

// QuickTrade places a market order sized by cash notional instead of
// quantity. The quantity derives from the latest price.
func (s *Service) QuickTrade(
	ctx context.Context,
	userID uint,
	portfolioID uint,
	symbol string,
	side string,
	notional decimal.Decimal,
) (*model.Order, error) {

	if notional.LessThanOrEqual(decimal.Zero) {
		return nil, traderr.InvalidQuantity("notional must be positive, got %s", notional)
	}

	price, err := s.prices.LatestPrice(ctx, strings.ToUpper(symbol))
	if err != nil {
		return nil, err
	}

	quantity := notional.Div(price).Round(8)

	orderType := model.OrderTypeBuy
	if side == model.OrderSideSell {
		orderType = model.OrderTypeSell
	}

	return s.CreateOrder(ctx, userID, CreateOrderInput{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		OrderType:   orderType,
		Quantity:    quantity,
	})
}

// GetOrder fetches one order, enforcing portfolio ownership.
func (s *Service) GetOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, traderr.NotFound("order %d not found", orderID)
	}

	if err := s.checkOwnership(ctx, userID, order.PortfolioID); err != nil {
		return nil, err
	}

	return order, nil
}

// SearchOrders lists a portfolio's orders, newest first.
func (s *Service) SearchOrders(
	ctx context.Context,
	userID uint,
	options repository.OrderSearchOptions,
) ([]model.Order, error) {

	if err := s.checkOwnership(ctx, userID, options.PortfolioID); err != nil {
		return nil, err
	}

	return s.orders.Search(ctx, options)
}

// CancelOrder moves a pending or partial order to cancelled. Terminal
// orders cannot move.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if order.IsTerminal() {
		return nil, traderr.InvalidState("order %d is %s and cannot be cancelled", order.ID, order.Status)
	}

	now := time.Now().UTC()
	order.Status = model.OrderStatusCancelled
	order.CancelledAt = &now

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"service":  "trading",
		"order_id": order.ID,
	}).Info("Order cancelled")

	return order, nil
}

// UpdateOrder amends quantity or prices on a still-pending order. Partial
// orders are already executing and cannot change.
func (s *Service) UpdateOrder(
	ctx context.Context,
	userID uint,
	orderID uint,
	input UpdateOrderInput,
) (*model.Order, error) {

	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != model.OrderStatusPending {
		return nil, traderr.InvalidState("order %d is %s and cannot be amended", order.ID, order.Status)
	}

	if input.Quantity != nil {
		if input.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, traderr.InvalidQuantity("quantity must be positive, got %s", input.Quantity)
		}
		order.Quantity = *input.Quantity
	}
	if input.Price != nil {
		if input.Price.LessThanOrEqual(decimal.Zero) {
			return nil, traderr.MissingPrice("price must be positive, got %s", input.Price)
		}
		order.Price = input.Price
	}
	if input.StopPrice != nil {
		if input.StopPrice.LessThanOrEqual(decimal.Zero) {
			return nil, traderr.MissingPrice("stop price must be positive, got %s", input.StopPrice)
		}
		order.StopPrice = input.StopPrice
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// ExpirePending cancels pending orders older than maxAge. Run from the
// executor loop so stale intent does not linger forever.
func (s *Service) ExpirePending(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	stale, err := s.orders.ListPendingOlderThan(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		order := &stale[i]

		now := time.Now().UTC()
		order.Status = model.OrderStatusCancelled
		order.CancelledAt = &now
		order.FailureReason = "expired"

		if err := s.orders.Save(ctx, order); err != nil {
			return expired, err
		}
		expired++
	}

	if expired > 0 {
		logger.WithFields(map[string]interface{}{
			"service": "trading",
			"expired": expired,
		}).Info("Expired stale pending orders")
	}

	return expired, nil
}

func (s *Service) referencePrice(
	ctx context.Context,
	symbol string,
	limitPrice *decimal.Decimal,
) (decimal.Decimal, error) {

	if limitPrice != nil && limitPrice.GreaterThan(decimal.Zero) {
		return *limitPrice, nil
	}
	return s.prices.LatestPrice(ctx, symbol)
}

func (s *Service) checkDailyLimit(ctx context.Context, portfolioID uint) error {
	since := time.Now().UTC().Truncate(24 * time.Hour)

	count, err := s.orders.CountCreatedSince(ctx, portfolioID, since)
	if err != nil {
		return err
	}

	if count >= s.cfg.MaxDailyTrades {
		return traderr.DailyLimitExceeded(
			"portfolio %d already placed %d orders today (limit %d)",
			portfolioID, count, s.cfg.MaxDailyTrades)
	}
	return nil
}

func (s *Service) checkOwnership(ctx context.Context, userID, portfolioID uint) error {
	portfolio, err := s.portfolios.FindByIDForUser(ctx, portfolioID, userID)
	if err != nil {
		return err
	}
	if portfolio == nil {
		return traderr.NotFound("portfolio %d not found", portfolioID)
	}
	return nil
}

func (s *Service) submit(orderID uint) {
	if s.submitter == nil {
		return
	}
	if err := s.submitter.Submit(orderID); err != nil {
		logger.WithFields(map[string]interface{}{
			"service":  "trading",
			"order_id": orderID,
		}).WithError(err).Warn("Order left pending, submission failed")
	}
}

func validOrderType(orderType string) bool {
	switch orderType {
	case model.OrderTypeBuy, model.OrderTypeSell, model.OrderTypeMarket,
		model.OrderTypeLimit, model.OrderTypeStopLoss, model.OrderTypeTakeProfit:
		return true
	}
	return false
}

func requiresPrice(orderType string) bool {
	switch orderType {
	case model.OrderTypeLimit, model.OrderTypeStopLoss, model.OrderTypeTakeProfit:
		return true
	}
	return false
}
