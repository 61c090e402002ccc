package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingcore/src/database"
	"tradingcore/src/model"
)

// RiskAlertRepository handles the append-only risk alert log.
type RiskAlertRepository struct {
	db *gorm.DB
}

// NewRiskAlertRepository creates a new repository instance using the main read/write database.
func NewRiskAlertRepository() *RiskAlertRepository {
	return &RiskAlertRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *RiskAlertRepository) WithDB(db *gorm.DB) *RiskAlertRepository {
	return &RiskAlertRepository{db: db}
}

// Create appends a new alert.
func (r *RiskAlertRepository) Create(
	ctx context.Context,
	alert *model.RiskAlert,
) error {

	err := r.db.WithContext(ctx).Create(alert).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "RiskAlertRepository",
			"op":   "Create",
			"type": alert.AlertType,
		}).WithError(err).Error("Failed to create risk alert")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "RiskAlertRepository",
		"op":       "Create",
		"alert_id": alert.ID,
		"type":     alert.AlertType,
		"severity": alert.Severity,
	}).Info("Risk alert created")

	return nil
}

// FindByIDForUser fetches an alert owned by the user.
// Returns (nil, nil) if not found.
func (r *RiskAlertRepository) FindByIDForUser(
	ctx context.Context,
	id uint,
	userID uint,
) (*model.RiskAlert, error) {

	var alert model.RiskAlert

	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&alert).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "RiskAlertRepository",
			"op":   "FindByIDForUser",
			"id":   id,
		}).WithError(err).Error("Failed to fetch risk alert")

		return nil, err
	}

	return &alert, nil
}

// FindActiveByType fetches the unresolved active alert of one type for a
// portfolio, if any. The monitor uses this to avoid duplicate alerts.
func (r *RiskAlertRepository) FindActiveByType(
	ctx context.Context,
	portfolioID uint,
	alertType string,
) (*model.RiskAlert, error) {

	var alert model.RiskAlert

	err := r.db.WithContext(ctx).
		Where("portfolio_id = ? AND alert_type = ? AND is_active = ? AND resolved_at IS NULL",
			portfolioID, alertType, true).
		First(&alert).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":         "RiskAlertRepository",
			"op":           "FindActiveByType",
			"portfolio_id": portfolioID,
			"type":         alertType,
		}).WithError(err).Error("Failed to fetch active alert")

		return nil, err
	}

	return &alert, nil
}

// ListActive returns unresolved active alerts for a user, newest first,
// optionally narrowed to one portfolio.
func (r *RiskAlertRepository) ListActive(
	ctx context.Context,
	userID uint,
	portfolioID *uint,
	limit int,
) ([]model.RiskAlert, error) {

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND resolved_at IS NULL", userID, true)

	if portfolioID != nil {
		query = query.Where("portfolio_id = ?", *portfolioID)
	}

	var alerts []model.RiskAlert
	err := query.Order("created_at DESC").Limit(limit).Find(&alerts).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "RiskAlertRepository",
			"op":      "ListActive",
			"user_id": userID,
		}).WithError(err).Error("Failed to list active alerts")

		return nil, err
	}

	return alerts, nil
}

// Save persists all mutated fields of an alert. The monitor uses this to
// escalate severity on an already active alert.
func (r *RiskAlertRepository) Save(
	ctx context.Context,
	alert *model.RiskAlert,
) error {

	err := r.db.WithContext(ctx).Save(alert).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "RiskAlertRepository",
			"op":       "Save",
			"alert_id": alert.ID,
		}).WithError(err).Error("Failed to save risk alert")

		return err
	}

	return nil
}

// Acknowledge stamps acknowledged_at on an alert. The alert stays active.
func (r *RiskAlertRepository) Acknowledge(
	ctx context.Context,
	id uint,
	at time.Time,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.RiskAlert{}).
		Where("id = ?", id).
		Update("acknowledged_at", at).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "RiskAlertRepository",
			"op":   "Acknowledge",
			"id":   id,
		}).WithError(err).Error("Failed to acknowledge alert")

		return err
	}

	return nil
}

// Resolve deactivates an alert and stamps resolved_at. A later threshold
// crossing creates a new alert instead of reactivating this one.
func (r *RiskAlertRepository) Resolve(
	ctx context.Context,
	id uint,
	at time.Time,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.RiskAlert{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":   false,
			"resolved_at": at,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "RiskAlertRepository",
			"op":   "Resolve",
			"id":   id,
		}).WithError(err).Error("Failed to resolve alert")

		return err
	}

	return nil
}
