package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"tradingcore/src/model"
	"tradingcore/src/repository"
	"tradingcore/src/trading"
)

type orderService interface {
	CreateOrder(ctx context.Context, userID uint, input trading.CreateOrderInput) (*model.Order, error)
	QuickTrade(ctx context.Context, userID, portfolioID uint, symbol, side string, notional decimal.Decimal) (*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID uint) (*model.Order, error)
	SearchOrders(ctx context.Context, userID uint, options repository.OrderSearchOptions) ([]model.Order, error)
	CancelOrder(ctx context.Context, userID, orderID uint) (*model.Order, error)
	UpdateOrder(ctx context.Context, userID, orderID uint, input trading.UpdateOrderInput) (*model.Order, error)
	TradingStats(ctx context.Context, userID, portfolioID uint) (*repository.OrderStats, error)
}

func parseUintParam(r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// CreateOrderHandler places an order for the authenticated user.
func CreateOrderHandler(svc orderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		var input trading.CreateOrderInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		order, err := svc.CreateOrder(r.Context(), userID, input)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, order)
	}
}

type quickTradeRequest struct {
	PortfolioID uint            `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Notional    decimal.Decimal `json:"notional"`
}

// QuickTradeHandler places a market order sized by cash notional.
func QuickTradeHandler(svc orderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		var req quickTradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if req.Side != model.OrderSideBuy && req.Side != model.OrderSideSell {
			http.Error(w, "invalid side", http.StatusBadRequest)
			return
		}

		order, err := svc.QuickTrade(r.Context(), userID, req.PortfolioID, req.Symbol, req.Side, req.Notional)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, order)
	}
}

// GetOrderHandler fetches one order by id.
func GetOrderHandler(svc orderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		orderID, ok := parseUintParam(r, "orderID")
		if !ok {
			http.Error(w, "invalid orderID", http.StatusBadRequest)
			return
		}

		order, err := svc.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

// SearchOrdersHandler lists a portfolio's orders with pagination and
// filters (status, assetId).
func SearchOrdersHandler(svc orderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		portfolioID, ok := parseUintParam(r, "portfolioID")
		if !ok {
			http.Error(w, "invalid portfolioID", http.StatusBadRequest)
			return
		}

		var status *string
		if statusParam := r.URL.Query().Get("status"); statusParam != "" {
			status = &statusParam
		}

		var assetID *uint
		if assetParam := r.URL.Query().Get("assetId"); assetParam != "" {
			id, err := strconv.ParseUint(assetParam, 10, 64)
			if err != nil {
				http.Error(w, "invalid assetId", http.StatusBadRequest)
				return
			}
			asset := uint(id)
			assetID = &asset
		}

		page := 1
		if pageParam := r.URL.Query().Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 20
		if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}

		offset := (page - 1) * pageSize

		orders, err := svc.SearchOrders(r.Context(), userID, repository.OrderSearchOptions{
			PortfolioID: portfolioID,
			Status:      status,
			AssetID:     assetID,
			Limit:       pageSize,
			Offset:      offset,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, orders)
	}
}

// CancelOrderHandler cancels a pending or partial order.
func CancelOrderHandler(svc orderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		orderID, ok := parseUintParam(r, "orderID")
		if !ok {
			http.Error(w, "invalid orderID", http.StatusBadRequest)
			return
		}

		order, err := svc.CancelOrder(r.Context(), userID, orderID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

// UpdateOrderHandler amends quantity or prices on a pending order.
func UpdateOrderHandler(svc orderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		orderID, ok := parseUintParam(r, "orderID")
		if !ok {
			http.Error(w, "invalid orderID", http.StatusBadRequest)
			return
		}

		var input trading.UpdateOrderInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		order, err := svc.UpdateOrder(r.Context(), userID, orderID, input)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

// TradingStatsHandler reports the order aggregate for one portfolio.
func TradingStatsHandler(svc orderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		portfolioID, ok := parseUintParam(r, "portfolioID")
		if !ok {
			http.Error(w, "invalid portfolioID", http.StatusBadRequest)
			return
		}

		stats, err := svc.TradingStats(r.Context(), userID, portfolioID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}
