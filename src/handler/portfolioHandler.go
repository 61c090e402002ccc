package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"tradingcore/src/model"
	"tradingcore/src/portfolio"
)

type portfolioService interface {
	Create(ctx context.Context, userID uint, input portfolio.CreateInput) (*model.Portfolio, error)
	List(ctx context.Context, userID uint) ([]model.Portfolio, error)
	Get(ctx context.Context, userID, portfolioID uint) (*model.Portfolio, error)
	GetSummary(ctx context.Context, userID, portfolioID uint) (*portfolio.Summary, error)
	ListPositions(ctx context.Context, userID, portfolioID uint) ([]portfolio.PositionView, error)
	Delete(ctx context.Context, userID, portfolioID uint) error
}

// CreatePortfolioHandler opens a portfolio for the authenticated user.
func CreatePortfolioHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		var input portfolio.CreateInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		created, err := svc.Create(r.Context(), userID, input)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

// ListPortfoliosHandler lists the user's portfolios.
func ListPortfoliosHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		portfolios, err := svc.List(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, portfolios)
	}
}

// GetPortfolioHandler fetches one portfolio by id.
func GetPortfolioHandler(svc portfolioService) http.HandlerFunc {
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

		found, err := svc.Get(r.Context(), userID, portfolioID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, found)
	}
}

// PortfolioSummaryHandler reports cash, invested value and pnl for one
// portfolio.
func PortfolioSummaryHandler(svc portfolioService) http.HandlerFunc {
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

		summary, err := svc.GetSummary(r.Context(), userID, portfolioID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

// PortfolioPositionsHandler lists the portfolio's open positions with
// their current valuation.
func PortfolioPositionsHandler(svc portfolioService) http.HandlerFunc {
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

		positions, err := svc.ListPositions(r.Context(), userID, portfolioID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, positions)
	}
}

// DeletePortfolioHandler removes an empty portfolio. Portfolios with open
// positions or pending orders are refused.
func DeletePortfolioHandler(svc portfolioService) http.HandlerFunc {
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

		if err := svc.Delete(r.Context(), userID, portfolioID); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
