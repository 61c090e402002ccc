package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingcore/src/database"
	"tradingcore/src/model"
)

// OrderRepository handles read/write operations for orders.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new repository instance using the main read/write database.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order into the database.
// The given order will be updated with the generated ID and timestamps.
func (r *OrderRepository) Create(
	ctx context.Context,
	order *model.Order,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":         "OrderRepository",
		"op":           "Create",
		"portfolio_id": order.PortfolioID,
		"asset_id":     order.AssetID,
		"type":         order.OrderType,
		"qty":          order.Quantity,
	}).Debug("Creating new order")

	err := r.db.WithContext(ctx).Create(order).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create order")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "Create",
		"order_id": order.ID,
	}).Info("Order created successfully")

	return nil
}

// FindByID fetches a single order by its primary ID.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.Order, error) {

	var order model.Order

	err := r.db.WithContext(ctx).
		Preload("Asset").
		First(&order, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch order by ID")

		return nil, err
	}

	return &order, nil
}

// OrderSearchOptions narrows a Search call. Zero values mean "no filter".
type OrderSearchOptions struct {
	PortfolioID uint
	Status      *string
	AssetID     *uint
	Limit       int
	Offset      int
}

// Search lists orders for a portfolio, newest first.
func (r *OrderRepository) Search(
	ctx context.Context,
	options OrderSearchOptions,
) ([]model.Order, error) {

	query := r.db.WithContext(ctx).
		Where("portfolio_id = ?", options.PortfolioID)

	if options.Status != nil {
		query = query.Where("status = ?", *options.Status)
	}

	if options.AssetID != nil {
		query = query.Where("asset_id = ?", *options.AssetID)
	}

	query = query.Order("created_at DESC, id DESC")

	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var orders []model.Order
	if err := query.Find(&orders).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":         "OrderRepository",
			"op":           "Search",
			"portfolio_id": options.PortfolioID,
		}).WithError(err).Error("Failed to search orders")

		return nil, err
	}

	return orders, nil
}

// CountCreatedSince counts orders created for a portfolio at or after the
// given instant. Used for the daily trade limit check.
func (r *OrderRepository) CountCreatedSince(
	ctx context.Context,
	portfolioID uint,
	since time.Time,
) (int64, error) {

	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("portfolio_id = ? AND created_at >= ?", portfolioID, since).
		Count(&count).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":         "OrderRepository",
			"op":           "CountCreatedSince",
			"portfolio_id": portfolioID,
		}).WithError(err).Error("Failed to count orders")

		return 0, err
	}

	return count, nil
}

// ListPendingOlderThan returns pending orders created before the cutoff.
// The expiry scheduler feeds these through the normal cancellation path.
func (r *OrderRepository) ListPendingOlderThan(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]model.Order, error) {

	if limit <= 0 {
		limit = 100
	}

	var orders []model.Order

	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "ListPendingOlderThan",
		}).WithError(err).Error("Failed to list pending orders")

		return nil, err
	}

	return orders, nil
}

// Save persists all mutated fields of an order.
func (r *OrderRepository) Save(
	ctx context.Context,
	order *model.Order,
) error {

	err := r.db.WithContext(ctx).Save(order).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "Save",
			"order_id": order.ID,
		}).WithError(err).Error("Failed to save order")

		return err
	}

	return nil
}

// OrderStats is the aggregate the trading stats endpoint reports.
type OrderStats struct {
	TotalOrders     int64           `json:"total_orders"`
	ExecutedOrders  int64           `json:"executed_orders"`
	CancelledOrders int64           `json:"cancelled_orders"`
	FailedOrders    int64           `json:"failed_orders"`
	PendingOrders   int64           `json:"pending_orders"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	ExecutedVolume  decimal.Decimal `json:"executed_volume"`
}

// StatsByPortfolio aggregates order counts, fees and executed volume for
// one portfolio.
func (r *OrderRepository) StatsByPortfolio(
	ctx context.Context,
	portfolioID uint,
) (*OrderStats, error) {

	var row struct {
		TotalOrders     int64
		ExecutedOrders  int64
		CancelledOrders int64
		FailedOrders    int64
		PendingOrders   int64
		TotalFees       decimal.Decimal
		ExecutedVolume  decimal.Decimal
	}

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select(`count(*) AS total_orders,
			count(*) FILTER (WHERE status = 'executed') AS executed_orders,
			count(*) FILTER (WHERE status = 'cancelled') AS cancelled_orders,
			count(*) FILTER (WHERE status = 'failed') AS failed_orders,
			count(*) FILTER (WHERE status IN ('pending','partial')) AS pending_orders,
			coalesce(sum(fee_amount), 0) AS total_fees,
			coalesce(sum(executed_quantity * coalesce(executed_price, 0)), 0) AS executed_volume`).
		Where("portfolio_id = ?", portfolioID).
		Scan(&row).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":         "OrderRepository",
			"op":           "StatsByPortfolio",
			"portfolio_id": portfolioID,
		}).WithError(err).Error("Failed to aggregate order stats")

		return nil, err
	}

	return &OrderStats{
		TotalOrders:     row.TotalOrders,
		ExecutedOrders:  row.ExecutedOrders,
		CancelledOrders: row.CancelledOrders,
		FailedOrders:    row.FailedOrders,
		PendingOrders:   row.PendingOrders,
		TotalFees:       row.TotalFees,
		ExecutedVolume:  row.ExecutedVolume,
	}, nil
}

// CountPendingByPortfolio counts non-terminal orders for a portfolio.
// Used by the portfolio deletion ownership check.
func (r *OrderRepository) CountPendingByPortfolio(
	ctx context.Context,
	portfolioID uint,
) (int64, error) {

	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("portfolio_id = ? AND status IN ?", portfolioID,
			[]string{model.OrderStatusPending, model.OrderStatusPartial}).
		Count(&count).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":         "OrderRepository",
			"op":           "CountPendingByPortfolio",
			"portfolio_id": portfolioID,
		}).WithError(err).Error("Failed to count pending orders")

		return 0, err
	}

	return count, nil
}
