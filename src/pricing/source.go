package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradingcore/src/traderr"
)

// Source supplies the reference price used for order validation and
// mark-to-market. Implementations must be safe for concurrent use.
type Source interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// quote is a cached price point.
type quote struct {
	price decimal.Decimal
	at    time.Time
}

// StaticSource is an in-memory price table. The paper trading executor and
// the tests feed it directly.
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[string]quote
	maxAge time.Duration
}

// NewStaticSource creates a source with the given staleness window.
// maxAge <= 0 disables the staleness check.
func NewStaticSource(maxAge time.Duration) *StaticSource {
	return &StaticSource{
		quotes: make(map[string]quote),
		maxAge: maxAge,
	}
}

// Set stores a price for a symbol, stamped now.
func (s *StaticSource) Set(symbol string, price decimal.Decimal) {
	s.SetAt(symbol, price, time.Now())
}

// SetAt stores a price for a symbol with an explicit timestamp.
func (s *StaticSource) SetAt(symbol string, price decimal.Decimal, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = quote{price: price, at: at}
}

// LatestPrice returns the cached price for a symbol. A missing or stale
// quote yields a MissingPrice error so callers reject rather than trade
// on bad data.
func (s *StaticSource) LatestPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[symbol]
	if !ok {
		return decimal.Zero, traderr.MissingPrice("no price available for %s", symbol)
	}

	if s.maxAge > 0 && time.Since(q.at) > s.maxAge {
		return decimal.Zero, traderr.MissingPrice("price for %s is stale", symbol)
	}

	return q.price, nil
}
