package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AlertTypeDrawdown      = "drawdown"
	AlertTypeConcentration = "concentration"
	AlertTypeVolatility    = "volatility"
	AlertTypeStopLoss      = "stop_loss"
	AlertTypeMarginCall    = "margin_call"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// RiskAlert is an append-only signal raised by the risk monitor when a
// threshold is crossed. The monitor never resolves alerts itself; that is
// an explicit user action, and re-crossing a threshold after resolution
// creates a fresh alert.
type RiskAlert struct {
	ID          uint  `gorm:"primaryKey" json:"id"`
	UserID      uint  `gorm:"index;not null" json:"user_id"`
	PortfolioID *uint `gorm:"index" json:"portfolio_id,omitempty"`

	AlertType string `gorm:"size:30;not null;index" json:"alert_type"`
	Severity  string `gorm:"size:10;not null;index" json:"severity"`
	Message   string `gorm:"type:text;not null" json:"message"`

	CurrentValue   *decimal.Decimal `gorm:"type:decimal(20,8)" json:"current_value,omitempty"`
	ThresholdValue *decimal.Decimal `gorm:"type:decimal(20,8)" json:"threshold_value,omitempty"`

	IsActive       bool       `gorm:"not null;default:true;index" json:"is_active"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (RiskAlert) TableName() string {
	return "risk_alerts"
}
