package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"tradingcore/src/model"
	"tradingcore/src/risk"
	"tradingcore/src/traderr"
)

type mockRiskMonitor struct {
	report      *risk.Report
	alerts      []model.RiskAlert
	err         error
	userID      uint
	portfolioID *uint
	alertID     uint
	positionID  uint
	stopPrice   decimal.Decimal
}

func (m *mockRiskMonitor) Metrics(_ context.Context, userID, portfolioID uint) (*risk.Report, error) {
	m.userID = userID
	m.portfolioID = &portfolioID
	return m.report, m.err
}

func (m *mockRiskMonitor) CheckLimits(_ context.Context, userID, portfolioID uint) ([]model.RiskAlert, error) {
	m.userID = userID
	m.portfolioID = &portfolioID
	return m.alerts, m.err
}

func (m *mockRiskMonitor) ActiveAlerts(_ context.Context, userID uint, portfolioID *uint) ([]model.RiskAlert, error) {
	m.userID = userID
	m.portfolioID = portfolioID
	return m.alerts, m.err
}

func (m *mockRiskMonitor) Acknowledge(_ context.Context, userID, alertID uint) error {
	m.userID = userID
	m.alertID = alertID
	return m.err
}

func (m *mockRiskMonitor) Resolve(_ context.Context, userID, alertID uint) error {
	m.userID = userID
	m.alertID = alertID
	return m.err
}

func (m *mockRiskMonitor) SetStopLoss(_ context.Context, userID, portfolioID, positionID uint, stopPrice decimal.Decimal) error {
	m.userID = userID
	m.portfolioID = &portfolioID
	m.positionID = positionID
	m.stopPrice = stopPrice
	return m.err
}

func TestRiskMetricsHandler(t *testing.T) {
	mockMon := &mockRiskMonitor{report: &risk.Report{
		TotalValue:       decimal.RequireFromString("10000"),
		MaxConcentration: decimal.RequireFromString("50"),
	}}
	handler := RiskMetricsHandler(mockMon)

	req := httptest.NewRequest(http.MethodGet, "/portfolios/3/risk", nil)
	req = withChiParam(authed(req, 1), "portfolioID", "3")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"max_concentration_pct":"50"`) {
		t.Fatalf("report not encoded: %s", rr.Body.String())
	}
}

func TestActiveAlertsHandler_PortfolioFilter(t *testing.T) {
	mockMon := &mockRiskMonitor{alerts: []model.RiskAlert{}}
	handler := ActiveAlertsHandler(mockMon)

	req := authed(httptest.NewRequest(http.MethodGet, "/risk/alerts?portfolioId=7", nil), 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if mockMon.portfolioID == nil || *mockMon.portfolioID != 7 {
		t.Fatalf("portfolio filter not forwarded: %+v", mockMon.portfolioID)
	}
}

func TestAcknowledgeAlertHandler_NotFound(t *testing.T) {
	mockMon := &mockRiskMonitor{err: traderr.NotFound("alert 9 not found")}
	handler := AcknowledgeAlertHandler(mockMon)

	req := httptest.NewRequest(http.MethodPost, "/risk/alerts/9/ack", nil)
	req = withChiParam(authed(req, 1), "alertID", "9")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestResolveAlertHandler(t *testing.T) {
	mockMon := &mockRiskMonitor{}
	handler := ResolveAlertHandler(mockMon)

	req := httptest.NewRequest(http.MethodPost, "/risk/alerts/9/resolve", nil)
	req = withChiParam(authed(req, 4), "alertID", "9")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if mockMon.userID != 4 || mockMon.alertID != 9 {
		t.Fatalf("resolve not forwarded: user=%d alert=%d", mockMon.userID, mockMon.alertID)
	}
}

func TestSetStopLossHandler(t *testing.T) {
	mockMon := &mockRiskMonitor{}
	handler := SetStopLossHandler(mockMon)

	body := `{"position_id":11,"stop_price":"42000"}`
	req := httptest.NewRequest(http.MethodPut, "/portfolios/3/stop-loss", strings.NewReader(body))
	req = withChiParam(authed(req, 1), "portfolioID", "3")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if mockMon.positionID != 11 {
		t.Fatalf("expected position 11, got %d", mockMon.positionID)
	}
	if !mockMon.stopPrice.Equal(decimal.RequireFromString("42000")) {
		t.Fatalf("stop price mismatch: %s", mockMon.stopPrice)
	}
}

func TestSetStopLossHandler_InvalidPrice(t *testing.T) {
	mockMon := &mockRiskMonitor{err: traderr.MissingPrice("stop price must be positive, got 0")}
	handler := SetStopLossHandler(mockMon)

	body := `{"position_id":11,"stop_price":"0"}`
	req := httptest.NewRequest(http.MethodPut, "/portfolios/3/stop-loss", strings.NewReader(body))
	req = withChiParam(authed(req, 1), "portfolioID", "3")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
