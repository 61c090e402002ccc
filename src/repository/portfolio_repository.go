package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingcore/src/database"
	"tradingcore/src/model"
	"tradingcore/src/traderr"
)

// PortfolioRepository handles read/write operations for portfolios.
type PortfolioRepository struct {
	db *gorm.DB
}

// NewPortfolioRepository creates a new repository instance using the main read/write database.
func NewPortfolioRepository() *PortfolioRepository {
	return &PortfolioRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PortfolioRepository) WithDB(db *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Create inserts a new portfolio.
func (r *PortfolioRepository) Create(
	ctx context.Context,
	portfolio *model.Portfolio,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":    "PortfolioRepository",
		"op":      "Create",
		"user_id": portfolio.UserID,
		"name":    portfolio.Name,
	}).Debug("Creating new portfolio")

	err := r.db.WithContext(ctx).Create(portfolio).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PortfolioRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create portfolio")

		return err
	}

	return nil
}

// FindByID fetches a portfolio by its primary ID.
// Returns (nil, nil) if the portfolio is not found.
func (r *PortfolioRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.Portfolio, error) {

	var portfolio model.Portfolio

	err := r.db.WithContext(ctx).First(&portfolio, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "PortfolioRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch portfolio")

		return nil, err
	}

	return &portfolio, nil
}

// FindByIDForUser fetches a portfolio only if it belongs to the user.
// Returns (nil, nil) when not found or owned by someone else.
func (r *PortfolioRepository) FindByIDForUser(
	ctx context.Context,
	id uint,
	userID uint,
) (*model.Portfolio, error) {

	var portfolio model.Portfolio

	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&portfolio).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "PortfolioRepository",
			"op":      "FindByIDForUser",
			"id":      id,
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch portfolio for user")

		return nil, err
	}

	return &portfolio, nil
}

// ListByUser returns all portfolios owned by a user.
func (r *PortfolioRepository) ListByUser(
	ctx context.Context,
	userID uint,
) ([]model.Portfolio, error) {

	var portfolios []model.Portfolio

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&portfolios).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PortfolioRepository",
			"op":      "ListByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to list portfolios")

		return nil, err
	}

	return portfolios, nil
}

// ListAll pages through every portfolio. The executor loop uses this for
// its periodic risk sweep.
func (r *PortfolioRepository) ListAll(
	ctx context.Context,
	limit int,
	offset int,
) ([]model.Portfolio, error) {

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var portfolios []model.Portfolio

	err := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&portfolios).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PortfolioRepository",
			"op":   "ListAll",
		}).WithError(err).Error("Failed to list portfolios")

		return nil, err
	}

	return portfolios, nil
}

// Delete removes a portfolio after verifying nothing alive depends on it.
// The ownership check is explicit here rather than delegated to database
// cascade rules: deletion is refused while open positions or non-terminal
// orders exist.
func (r *PortfolioRepository) Delete(
	ctx context.Context,
	id uint,
) error {

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var openPositions int64
		if err := tx.Model(&model.Position{}).
			Where("portfolio_id = ? AND status = ?", id, model.PositionStatusOpen).
			Count(&openPositions).Error; err != nil {
			return err
		}
		if openPositions > 0 {
			return traderr.InvalidState("portfolio %d has %d open positions", id, openPositions)
		}

		var liveOrders int64
		if err := tx.Model(&model.Order{}).
			Where("portfolio_id = ? AND status IN ?", id,
				[]string{model.OrderStatusPending, model.OrderStatusPartial}).
			Count(&liveOrders).Error; err != nil {
			return err
		}
		if liveOrders > 0 {
			return traderr.InvalidState("portfolio %d has %d live orders", id, liveOrders)
		}

		if err := tx.Delete(&model.Portfolio{}, id).Error; err != nil {
			logger.WithFields(map[string]interface{}{
				"repo": "PortfolioRepository",
				"op":   "Delete",
				"id":   id,
			}).WithError(err).Error("Failed to delete portfolio")

			return err
		}

		return nil
	})
}
