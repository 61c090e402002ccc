package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio holds the cash side of a trading account. The balance only
// moves through fill application or explicit deposits/withdrawals, and it
// must never be negative at a committed state.
type Portfolio struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   uint   `gorm:"index;uniqueIndex:ux_portfolios_user_name,priority:1" json:"user_id"`
	Name     string `gorm:"size:100;not null;uniqueIndex:ux_portfolios_user_name,priority:2" json:"name"`
	Currency string `gorm:"size:10;not null;default:EUR" json:"currency"`

	InitialBalance  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"initial_balance"`
	CurrentBalance  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"current_balance"`
	TotalInvested   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_invested"`
	TotalProfitLoss decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_profit_loss"`

	// Version is bumped on every fill application. Used as the optimistic
	// check when the ledger falls back to conditional updates.
	Version uint `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}
