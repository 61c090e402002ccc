package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"tradingcore/src/ledger"
	"tradingcore/src/model"
)

// Adapter turns a pending order into a fill. Implementations must not
// touch the database; the engine owns the single application path through
// the ledger. refPrice is the latest observed price for the order's asset
// and drives market orders.
type Adapter interface {
	Execute(ctx context.Context, order *model.Order, refPrice decimal.Decimal) (*ledger.Fill, error)
}
