package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingcore/src/database"
	"tradingcore/src/model"
)

// PositionRepository handles read/write operations for positions.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main read/write database.
func NewPositionRepository() *PositionRepository {
	return &PositionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// FindOpen fetches the single open position for a portfolio/asset pair.
// Returns (nil, nil) when no open position exists.
func (r *PositionRepository) FindOpen(
	ctx context.Context,
	portfolioID uint,
	assetID uint,
) (*model.Position, error) {

	var position model.Position

	err := r.db.WithContext(ctx).
		Where("portfolio_id = ? AND asset_id = ? AND status = ?",
			portfolioID, assetID, model.PositionStatusOpen).
		First(&position).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":         "PositionRepository",
			"op":           "FindOpen",
			"portfolio_id": portfolioID,
			"asset_id":     assetID,
		}).WithError(err).Error("Failed to fetch open position")

		return nil, err
	}

	return &position, nil
}

// ListOpenByPortfolio returns all open positions for a portfolio with
// their asset reference data preloaded.
func (r *PositionRepository) ListOpenByPortfolio(
	ctx context.Context,
	portfolioID uint,
) ([]model.Position, error) {

	var positions []model.Position

	err := r.db.WithContext(ctx).
		Preload("Asset").
		Where("portfolio_id = ? AND status = ?", portfolioID, model.PositionStatusOpen).
		Order("opened_at ASC").
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":         "PositionRepository",
			"op":           "ListOpenByPortfolio",
			"portfolio_id": portfolioID,
		}).WithError(err).Error("Failed to list open positions")

		return nil, err
	}

	return positions, nil
}

// ListOpenByAsset returns every open position on an asset across all
// portfolios. Used by the mark-to-market path.
func (r *PositionRepository) ListOpenByAsset(
	ctx context.Context,
	assetID uint,
) ([]model.Position, error) {

	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND status = ?", assetID, model.PositionStatusOpen).
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "PositionRepository",
			"op":       "ListOpenByAsset",
			"asset_id": assetID,
		}).WithError(err).Error("Failed to list open positions by asset")

		return nil, err
	}

	return positions, nil
}

// UpdateStopLoss updates only the stop-loss trigger of an open position.
func (r *PositionRepository) UpdateStopLoss(
	ctx context.Context,
	id uint,
	stopPrice decimal.Decimal,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", id).
		Update("stop_loss_price", stopPrice).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "UpdateStopLoss",
			"id":   id,
		}).WithError(err).Error("Failed to update stop loss")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":       "PositionRepository",
		"op":         "UpdateStopLoss",
		"id":         id,
		"stop_price": stopPrice,
	}).Info("Position stop loss updated")

	return nil
}

// ClearStopLoss removes the stop-loss trigger from a position. Called
// once the protective order has been placed so the trigger cannot fire
// twice.
func (r *PositionRepository) ClearStopLoss(
	ctx context.Context,
	id uint,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", id).
		Update("stop_loss_price", nil).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "ClearStopLoss",
			"id":   id,
		}).WithError(err).Error("Failed to clear stop loss")

		return err
	}

	return nil
}

// ListStopLossTriggered returns open positions whose latest mark price
// has crossed their stop price, asset preloaded.
func (r *PositionRepository) ListStopLossTriggered(
	ctx context.Context,
	limit int,
) ([]model.Position, error) {

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var positions []model.Position

	err := r.db.WithContext(ctx).
		Preload("Asset").
		Where("status = ? AND stop_loss_price IS NOT NULL AND current_price IS NOT NULL"+
			" AND current_price <= stop_loss_price", model.PositionStatusOpen).
		Limit(limit).
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "ListStopLossTriggered",
		}).WithError(err).Error("Failed to list triggered positions")

		return nil, err
	}

	return positions, nil
}

// Save persists all mutated fields of a position.
func (r *PositionRepository) Save(
	ctx context.Context,
	position *model.Position,
) error {

	err := r.db.WithContext(ctx).Save(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "Save",
			"position_id": position.ID,
		}).WithError(err).Error("Failed to save position")

		return err
	}

	return nil
}
