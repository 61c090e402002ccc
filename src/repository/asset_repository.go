package repository

import (
	"context"
	"errors"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingcore/src/database"
	"tradingcore/src/model"
)

// AssetRepository provides read access to the shared asset catalogue.
// Nothing here mutates assets; reference data is seeded by migration.
type AssetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new repository instance using the main read/write database.
func NewAssetRepository() *AssetRepository {
	return &AssetRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *AssetRepository) WithDB(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// FindActiveBySymbol fetches an active (tradeable) asset by symbol.
// Returns (nil, nil) if no active asset matches.
func (r *AssetRepository) FindActiveBySymbol(
	ctx context.Context,
	symbol string,
) (*model.Asset, error) {

	var asset model.Asset

	err := r.db.WithContext(ctx).
		Where("symbol = ? AND is_active = ?", strings.ToUpper(symbol), true).
		First(&asset).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "AssetRepository",
			"op":     "FindActiveBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch asset")

		return nil, err
	}

	return &asset, nil
}

// FindByID fetches an asset by primary ID. Returns (nil, nil) if missing.
func (r *AssetRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.Asset, error) {

	var asset model.Asset

	err := r.db.WithContext(ctx).First(&asset, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "AssetRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch asset by ID")

		return nil, err
	}

	return &asset, nil
}

// Search lists active assets, optionally filtered by type or a symbol/name
// fragment.
func (r *AssetRepository) Search(
	ctx context.Context,
	assetType string,
	term string,
	limit int,
) ([]model.Asset, error) {

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("is_active = ?", true)

	if assetType != "" {
		query = query.Where("asset_type = ?", assetType)
	}

	if term != "" {
		pattern := "%" + strings.ToUpper(term) + "%"
		query = query.Where("upper(symbol) LIKE ? OR upper(name) LIKE ?", pattern, pattern)
	}

	var assets []model.Asset
	err := query.Order("symbol ASC").Limit(limit).Find(&assets).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "AssetRepository",
			"op":   "Search",
		}).WithError(err).Error("Failed to search assets")

		return nil, err
	}

	return assets, nil
}
