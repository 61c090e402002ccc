package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderTypeBuy        = "buy"
	OrderTypeSell       = "sell"
	OrderTypeMarket     = "market"
	OrderTypeLimit      = "limit"
	OrderTypeStopLoss   = "stop_loss"
	OrderTypeTakeProfit = "take_profit"
)

const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPartial   = "partial"
	OrderStatusExecuted  = "executed"
	OrderStatusCancelled = "cancelled"
	OrderStatusFailed    = "failed"
)

// Order is trading intent. Rows are never deleted; every lifecycle step is
// a status transition and terminal states (executed, cancelled, failed)
// are final.
type Order struct {
	ID          uint  `gorm:"primaryKey" json:"id"`
	PortfolioID uint  `gorm:"index;not null" json:"portfolio_id"`
	PositionID  *uint `gorm:"index" json:"position_id,omitempty"`
	AssetID     uint  `gorm:"index;not null" json:"asset_id"`

	OrderType string `gorm:"size:20;not null;index" json:"order_type"`
	Side      string `gorm:"size:10;not null" json:"side"`

	Quantity  decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"quantity"`
	Price     *decimal.Decimal `gorm:"type:decimal(20,8)" json:"price,omitempty"`
	StopPrice *decimal.Decimal `gorm:"type:decimal(20,8)" json:"stop_price,omitempty"`

	Status           string           `gorm:"size:20;not null;default:pending;index" json:"status"`
	ExecutedQuantity decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"executed_quantity"`
	ExecutedPrice    *decimal.Decimal `gorm:"type:decimal(20,8)" json:"executed_price,omitempty"`
	FailureReason    string           `gorm:"size:200" json:"failure_reason,omitempty"`

	FeeAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"fee_amount"`
	FeeCurrency string          `gorm:"size:10" json:"fee_currency,omitempty"`

	ExternalOrderID string `gorm:"size:100;index" json:"external_order_id,omitempty"`

	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Asset *Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// IsTerminal reports whether the order can still change.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusExecuted, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// RemainingQuantity is the portion of the order not yet filled.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.ExecutedQuantity)
}

// FillPercentage is executed quantity over requested quantity, in percent.
func (o *Order) FillPercentage() decimal.Decimal {
	if o.Quantity.IsZero() {
		return decimal.Zero
	}
	return o.ExecutedQuantity.Div(o.Quantity).Mul(decimal.NewFromInt(100))
}

// ResolveSide maps compound order types onto a buy/sell side. Stop-loss
// and take-profit orders liquidate, so they sell.
func ResolveSide(orderType string) string {
	switch orderType {
	case OrderTypeSell, OrderTypeStopLoss, OrderTypeTakeProfit:
		return OrderSideSell
	default:
		return OrderSideBuy
	}
}
