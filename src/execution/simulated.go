package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/ledger"
	"tradingcore/src/model"
	"tradingcore/src/traderr"
)

// SimulatedAdapter fills orders deterministically for paper trading. Limit
// orders fill at their limit price, everything else at the reference
// price. The fee is a fixed rate on the notional, rounded to cents.
type SimulatedAdapter struct {
	feeRate     decimal.Decimal
	feeCurrency string
}

// NewSimulatedAdapter creates a paper trading adapter with the given fee
// rate, e.g. 0.0015 for 15 basis points.
func NewSimulatedAdapter(feeRate decimal.Decimal, feeCurrency string) *SimulatedAdapter {
	return &SimulatedAdapter{feeRate: feeRate, feeCurrency: feeCurrency}
}

// Execute fills the full remaining quantity of the order.
func (a *SimulatedAdapter) Execute(
	_ context.Context,
	order *model.Order,
	refPrice decimal.Decimal,
) (*ledger.Fill, error) {

	price := refPrice
	if order.OrderType == model.OrderTypeLimit && order.Price != nil {
		price = *order.Price
	}

	if price.LessThanOrEqual(decimal.Zero) {
		return nil, traderr.MissingPrice("no usable price for order %d", order.ID)
	}

	quantity := order.RemainingQuantity()
	fee := quantity.Mul(price).Mul(a.feeRate).Round(2)

	fill := &ledger.Fill{
		Quantity:        quantity,
		Price:           price,
		Fee:             fee,
		FeeCurrency:     a.feeCurrency,
		ExternalOrderID: "PAPER_" + uuid.NewString(),
		ExecutedAt:      time.Now().UTC(),
	}

	logger.WithFields(map[string]interface{}{
		"adapter":     "simulated",
		"order_id":    order.ID,
		"quantity":    fill.Quantity.String(),
		"price":       fill.Price.String(),
		"fee":         fill.Fee.String(),
		"external_id": fill.ExternalOrderID,
	}).Info("Simulated fill produced")

	return fill, nil
}
