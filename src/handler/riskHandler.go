package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"tradingcore/src/model"
	"tradingcore/src/risk"
)

type riskMonitor interface {
	Metrics(ctx context.Context, userID, portfolioID uint) (*risk.Report, error)
	CheckLimits(ctx context.Context, userID, portfolioID uint) ([]model.RiskAlert, error)
	ActiveAlerts(ctx context.Context, userID uint, portfolioID *uint) ([]model.RiskAlert, error)
	Acknowledge(ctx context.Context, userID, alertID uint) error
	Resolve(ctx context.Context, userID, alertID uint) error
	SetStopLoss(ctx context.Context, userID, portfolioID, positionID uint, stopPrice decimal.Decimal) error
}

// RiskMetricsHandler reports exposure, drawdown and volatility for one
// portfolio without touching the alert log.
func RiskMetricsHandler(monitor riskMonitor) http.HandlerFunc {
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

		report, err := monitor.Metrics(r.Context(), userID, portfolioID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

// CheckRiskLimitsHandler runs the threshold checks and returns the alerts
// active afterwards.
func CheckRiskLimitsHandler(monitor riskMonitor) http.HandlerFunc {
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

		alerts, err := monitor.CheckLimits(r.Context(), userID, portfolioID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, alerts)
	}
}

// ActiveAlertsHandler lists unresolved alerts, optionally narrowed with
// ?portfolioId=.
func ActiveAlertsHandler(monitor riskMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		var portfolioID *uint
		if portfolioParam := r.URL.Query().Get("portfolioId"); portfolioParam != "" {
			id, err := strconv.ParseUint(portfolioParam, 10, 64)
			if err != nil {
				http.Error(w, "invalid portfolioId", http.StatusBadRequest)
				return
			}
			parsed := uint(id)
			portfolioID = &parsed
		}

		alerts, err := monitor.ActiveAlerts(r.Context(), userID, portfolioID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, alerts)
	}
}

// AcknowledgeAlertHandler stamps an alert as seen. It stays active.
func AcknowledgeAlertHandler(monitor riskMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		alertID, ok := parseUintParam(r, "alertID")
		if !ok {
			http.Error(w, "invalid alertID", http.StatusBadRequest)
			return
		}

		if err := monitor.Acknowledge(r.Context(), userID, alertID); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ResolveAlertHandler deactivates an alert.
func ResolveAlertHandler(monitor riskMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFromRequest(w, r)
		if !ok {
			return
		}

		alertID, ok := parseUintParam(r, "alertID")
		if !ok {
			http.Error(w, "invalid alertID", http.StatusBadRequest)
			return
		}

		if err := monitor.Resolve(r.Context(), userID, alertID); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type stopLossRequest struct {
	PositionID uint            `json:"position_id"`
	StopPrice  decimal.Decimal `json:"stop_price"`
}

// SetStopLossHandler places or moves the stop price on an open position.
func SetStopLossHandler(monitor riskMonitor) http.HandlerFunc {
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

		var req stopLossRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		err := monitor.SetStopLoss(r.Context(), userID, portfolioID, req.PositionID, req.StopPrice)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
