package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Position is one holding of one asset inside a portfolio, carried at
// weighted-average cost. A portfolio has at most one open position per
// asset; a full liquidation closes the row and a later buy opens a new
// one, so history is preserved.
type Position struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	PortfolioID uint `gorm:"index;not null" json:"portfolio_id"`
	AssetID     uint `gorm:"index;not null" json:"asset_id"`

	Quantity    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	AvgBuyPrice decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"avg_buy_price"`
	// CurrentPrice stays nil until the first mark-price tick is observed.
	CurrentPrice *decimal.Decimal `gorm:"type:decimal(20,8)" json:"current_price,omitempty"`

	UnrealizedPnl decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"unrealized_pnl"`
	RealizedPnl   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"realized_pnl"`

	Status string `gorm:"size:20;not null;default:open;index" json:"status"`

	StopLossPrice   *decimal.Decimal `gorm:"type:decimal(20,8)" json:"stop_loss_price,omitempty"`
	TakeProfitPrice *decimal.Decimal `gorm:"type:decimal(20,8)" json:"take_profit_price,omitempty"`

	OpenedAt  time.Time  `gorm:"index" json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Asset *Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (Position) TableName() string {
	return "positions"
}

// MarketValue is quantity times the mark price, falling back to cost when
// no tick has been observed yet.
func (p *Position) MarketValue() decimal.Decimal {
	price := p.AvgBuyPrice
	if p.CurrentPrice != nil {
		price = *p.CurrentPrice
	}
	return p.Quantity.Mul(price)
}

// CostBasis is quantity times the weighted-average buy price.
func (p *Position) CostBasis() decimal.Decimal {
	return p.Quantity.Mul(p.AvgBuyPrice)
}
