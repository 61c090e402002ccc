package portfolio

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/model"
	"tradingcore/src/repository"
	"tradingcore/src/traderr"
)

// CreateInput is the request contract for opening a portfolio.
type CreateInput struct {
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// Summary is the read model for one portfolio: cash plus open positions
// valued at their latest mark.
type Summary struct {
	Portfolio        *model.Portfolio `json:"portfolio"`
	CashBalance      decimal.Decimal  `json:"cash_balance"`
	InvestedValue    decimal.Decimal  `json:"invested_value"`
	TotalValue       decimal.Decimal  `json:"total_value"`
	TotalPnl         decimal.Decimal  `json:"total_pnl"`
	TotalPnlPct      decimal.Decimal  `json:"total_pnl_pct"`
	CashAllocation   decimal.Decimal  `json:"cash_allocation_pct"`
	EquityAllocation decimal.Decimal  `json:"equity_allocation_pct"`
	PositionCount    int              `json:"position_count"`
}

// PositionView is one open position decorated with its current valuation.
type PositionView struct {
	Position     *model.Position `json:"position"`
	CurrentValue decimal.Decimal `json:"current_value"`
	PnlPct       decimal.Decimal `json:"pnl_pct"`
}

// Service owns portfolio lifecycle and read models. Balances only move in
// the ledger; this service never writes them.
type Service struct {
	portfolios *repository.PortfolioRepository
	positions  *repository.PositionRepository
}

// NewService wires a portfolio service on the main database.
func NewService() *Service {
	return &Service{
		portfolios: repository.NewPortfolioRepository(),
		positions:  repository.NewPositionRepository(),
	}
}

// WithRepositories overrides the repository set for tests.
func (s *Service) WithRepositories(
	portfolios *repository.PortfolioRepository,
	positions *repository.PositionRepository,
) *Service {
	return &Service{portfolios: portfolios, positions: positions}
}

// Create opens a portfolio with its starting cash.
func (s *Service) Create(ctx context.Context, userID uint, input CreateInput) (*model.Portfolio, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, traderr.InvalidState("portfolio name must not be empty")
	}

	if input.InitialBalance.IsNegative() {
		return nil, traderr.InvalidQuantity(
			"initial balance must not be negative, got %s", input.InitialBalance)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "EUR"
	}

	portfolio := &model.Portfolio{
		UserID:          userID,
		Name:            name,
		Currency:        currency,
		InitialBalance:  input.InitialBalance,
		CurrentBalance:  input.InitialBalance,
		TotalInvested:   decimal.Zero,
		TotalProfitLoss: decimal.Zero,
	}

	if err := s.portfolios.Create(ctx, portfolio); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"service":      "portfolio",
		"portfolio_id": portfolio.ID,
		"user_id":      userID,
	}).Info("Portfolio created")

	return portfolio, nil
}

// List returns all portfolios owned by the user.
func (s *Service) List(ctx context.Context, userID uint) ([]model.Portfolio, error) {
	return s.portfolios.ListByUser(ctx, userID)
}

// Get fetches one portfolio, enforcing ownership.
func (s *Service) Get(ctx context.Context, userID, portfolioID uint) (*model.Portfolio, error) {
	portfolio, err := s.portfolios.FindByIDForUser(ctx, portfolioID, userID)
	if err != nil {
		return nil, err
	}
	if portfolio == nil {
		return nil, traderr.NotFound("portfolio %d not found", portfolioID)
	}
	return portfolio, nil
}

// GetSummary values the portfolio: cash plus every open position at its
// latest mark, with the derived allocation split.
func (s *Service) GetSummary(ctx context.Context, userID, portfolioID uint) (*Summary, error) {
	portfolio, err := s.Get(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}

	positions, err := s.positions.ListOpenByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	invested := decimal.Zero
	for i := range positions {
		invested = invested.Add(positions[i].MarketValue())
	}

	totalValue := portfolio.CurrentBalance.Add(invested)
	totalPnl := totalValue.Sub(portfolio.InitialBalance)

	pnlPct := decimal.Zero
	if portfolio.InitialBalance.GreaterThan(decimal.Zero) {
		pnlPct = totalPnl.Div(portfolio.InitialBalance).Mul(decimal.NewFromInt(100)).Round(4)
	}

	cashAllocation := decimal.NewFromInt(100)
	equityAllocation := decimal.Zero
	if totalValue.GreaterThan(decimal.Zero) {
		hundred := decimal.NewFromInt(100)
		cashAllocation = portfolio.CurrentBalance.Div(totalValue).Mul(hundred).Round(4)
		equityAllocation = invested.Div(totalValue).Mul(hundred).Round(4)
	}

	return &Summary{
		Portfolio:        portfolio,
		CashBalance:      portfolio.CurrentBalance,
		InvestedValue:    invested,
		TotalValue:       totalValue,
		TotalPnl:         totalPnl,
		TotalPnlPct:      pnlPct,
		CashAllocation:   cashAllocation,
		EquityAllocation: equityAllocation,
		PositionCount:    len(positions),
	}, nil
}

// ListPositions returns the open positions with their current value and
// percentage P&L against cost.
func (s *Service) ListPositions(ctx context.Context, userID, portfolioID uint) ([]PositionView, error) {
	if _, err := s.Get(ctx, userID, portfolioID); err != nil {
		return nil, err
	}

	positions, err := s.positions.ListOpenByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	views := make([]PositionView, 0, len(positions))
	for i := range positions {
		position := &positions[i]

		value := position.MarketValue()
		cost := position.CostBasis()

		pnlPct := decimal.Zero
		if cost.GreaterThan(decimal.Zero) {
			pnlPct = value.Sub(cost).Div(cost).Mul(decimal.NewFromInt(100)).Round(4)
		}

		views = append(views, PositionView{
			Position:     position,
			CurrentValue: value,
			PnlPct:       pnlPct,
		})
	}

	return views, nil
}

// Delete removes a portfolio. The repository refuses while open positions
// or non-terminal orders exist.
func (s *Service) Delete(ctx context.Context, userID, portfolioID uint) error {
	if _, err := s.Get(ctx, userID, portfolioID); err != nil {
		return err
	}
	return s.portfolios.Delete(ctx, portfolioID)
}
