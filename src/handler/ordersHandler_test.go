package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tradingcore/src/auth"
	"tradingcore/src/model"
	"tradingcore/src/repository"
	"tradingcore/src/traderr"
	"tradingcore/src/trading"
)

type mockOrderService struct {
	order   *model.Order
	orders  []model.Order
	stats   *repository.OrderStats
	err     error
	userID  uint
	orderID uint
	input   trading.CreateOrderInput
	update  trading.UpdateOrderInput
	options repository.OrderSearchOptions
	side    string
	symbol  string
	called  int
}

func (m *mockOrderService) CreateOrder(_ context.Context, userID uint, input trading.CreateOrderInput) (*model.Order, error) {
	m.called++
	m.userID = userID
	m.input = input
	return m.order, m.err
}

func (m *mockOrderService) QuickTrade(_ context.Context, userID, portfolioID uint, symbol, side string, notional decimal.Decimal) (*model.Order, error) {
	m.called++
	m.userID = userID
	m.symbol = symbol
	m.side = side
	return m.order, m.err
}

func (m *mockOrderService) GetOrder(_ context.Context, userID, orderID uint) (*model.Order, error) {
	m.called++
	m.userID = userID
	m.orderID = orderID
	return m.order, m.err
}

func (m *mockOrderService) SearchOrders(_ context.Context, userID uint, options repository.OrderSearchOptions) ([]model.Order, error) {
	m.called++
	m.userID = userID
	m.options = options
	return m.orders, m.err
}

func (m *mockOrderService) CancelOrder(_ context.Context, userID, orderID uint) (*model.Order, error) {
	m.called++
	m.userID = userID
	m.orderID = orderID
	return m.order, m.err
}

func (m *mockOrderService) UpdateOrder(_ context.Context, userID, orderID uint, input trading.UpdateOrderInput) (*model.Order, error) {
	m.called++
	m.userID = userID
	m.orderID = orderID
	m.update = input
	return m.order, m.err
}

func (m *mockOrderService) TradingStats(_ context.Context, userID, portfolioID uint) (*repository.OrderStats, error) {
	m.called++
	m.userID = userID
	return m.stats, m.err
}

func authed(req *http.Request, userID uint) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), auth.UserKey, userID))
}

func withChiParam(req *http.Request, name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateOrderHandler_Unauthorized(t *testing.T) {
	handler := CreateOrderHandler(&mockOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader("{}"))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestCreateOrderHandler(t *testing.T) {
	mockSvc := &mockOrderService{order: &model.Order{Quantity: decimal.RequireFromString("0.1")}}
	handler := CreateOrderHandler(mockSvc)

	body := `{"portfolio_id":1,"symbol":"BTC","order_type":"buy","quantity":"0.1"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if mockSvc.userID != 42 {
		t.Fatalf("expected user 42, got %d", mockSvc.userID)
	}
	if mockSvc.input.Symbol != "BTC" || mockSvc.input.OrderType != "buy" {
		t.Fatalf("input not forwarded: %+v", mockSvc.input)
	}
	if !mockSvc.input.Quantity.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("quantity mismatch: %s", mockSvc.input.Quantity)
	}
}

func TestCreateOrderHandler_DomainErrorMapsToStatus(t *testing.T) {
	mockSvc := &mockOrderService{err: traderr.InsufficientBalance("balance 100 below cost 200")}
	handler := CreateOrderHandler(mockSvc)

	body := `{"portfolio_id":1,"symbol":"BTC","order_type":"buy","quantity":"1"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)), 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), string(traderr.CodeInsufficientBalance)) {
		t.Fatalf("expected error code in body, got %s", rr.Body.String())
	}
}

func TestQuickTradeHandler_InvalidSide(t *testing.T) {
	mockSvc := &mockOrderService{}
	handler := QuickTradeHandler(mockSvc)

	body := `{"portfolio_id":1,"symbol":"BTC","side":"short","notional":"500"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/orders/quick", strings.NewReader(body)), 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if mockSvc.called != 0 {
		t.Fatal("service must not be called for an invalid side")
	}
}

func TestQuickTradeHandler(t *testing.T) {
	mockSvc := &mockOrderService{order: &model.Order{}}
	handler := QuickTradeHandler(mockSvc)

	body := `{"portfolio_id":1,"symbol":"ETH","side":"sell","notional":"500"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/orders/quick", strings.NewReader(body)), 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if mockSvc.symbol != "ETH" || mockSvc.side != model.OrderSideSell {
		t.Fatalf("request not forwarded: symbol=%s side=%s", mockSvc.symbol, mockSvc.side)
	}
}

func TestSearchOrdersHandler_Filters(t *testing.T) {
	mockSvc := &mockOrderService{orders: []model.Order{}}
	handler := SearchOrdersHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/portfolios/3/orders?status=executed&assetId=9&page=2&pageSize=10", nil)
	req = withChiParam(authed(req, 1), "portfolioID", "3")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if mockSvc.options.PortfolioID != 3 {
		t.Fatalf("expected portfolio 3, got %d", mockSvc.options.PortfolioID)
	}
	if mockSvc.options.Status == nil || *mockSvc.options.Status != "executed" {
		t.Fatalf("status filter not forwarded: %+v", mockSvc.options.Status)
	}
	if mockSvc.options.AssetID == nil || *mockSvc.options.AssetID != 9 {
		t.Fatalf("asset filter not forwarded: %+v", mockSvc.options.AssetID)
	}
	if mockSvc.options.Limit != 10 || mockSvc.options.Offset != 10 {
		t.Fatalf("pagination mismatch: limit=%d offset=%d", mockSvc.options.Limit, mockSvc.options.Offset)
	}
}

func TestSearchOrdersHandler_InvalidPage(t *testing.T) {
	handler := SearchOrdersHandler(&mockOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/portfolios/3/orders?page=zero", nil)
	req = withChiParam(authed(req, 1), "portfolioID", "3")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCancelOrderHandler_TerminalConflict(t *testing.T) {
	mockSvc := &mockOrderService{err: traderr.InvalidState("order 5 is executed")}
	handler := CancelOrderHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/orders/5/cancel", nil)
	req = withChiParam(authed(req, 1), "orderID", "5")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if mockSvc.orderID != 5 {
		t.Fatalf("expected order 5, got %d", mockSvc.orderID)
	}
}

func TestGetOrderHandler_ServiceError(t *testing.T) {
	mockSvc := &mockOrderService{err: assert.AnError}
	handler := GetOrderHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/orders/5", nil)
	req = withChiParam(authed(req, 1), "orderID", "5")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestTradingStatsHandler(t *testing.T) {
	mockSvc := &mockOrderService{stats: &repository.OrderStats{TotalOrders: 4}}
	handler := TradingStatsHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/portfolios/3/stats", nil)
	req = withChiParam(authed(req, 1), "portfolioID", "3")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"total_orders":4`) {
		t.Fatalf("stats not encoded: %s", rr.Body.String())
	}
}
