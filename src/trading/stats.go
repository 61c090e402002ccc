package trading

import (
	"context"

	"tradingcore/src/repository"
)

// TradingStats reports the order aggregate for one portfolio, enforcing
// ownership first.
func (s *Service) TradingStats(
	ctx context.Context,
	userID uint,
	portfolioID uint,
) (*repository.OrderStats, error) {

	if err := s.checkOwnership(ctx, userID, portfolioID); err != nil {
		return nil, err
	}

	return s.orders.StatsByPortfolio(ctx, portfolioID)
}
