package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradingcore/src/database"
	"tradingcore/src/model"
	"tradingcore/src/repository"
	"tradingcore/src/traderr"
)

// Fill is the execution result handed to the ledger for application.
// The fee is taken as reported by the executing adapter.
type Fill struct {
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	Fee             decimal.Decimal
	FeeCurrency     string
	ExternalOrderID string
	ExecutedAt      time.Time
}

// applyRetries bounds how often a fill application is retried when the
// database reports a serialization conflict.
const applyRetries = 3

// Ledger applies fills to orders, positions and portfolio balances in one
// transaction. All writes to these three tables go through here; the
// portfolio row is locked first so concurrent fills on one portfolio
// serialize.
type Ledger struct {
	db         *gorm.DB
	exceptions *repository.ExceptionRepository
}

// New creates a ledger on the main read/write database.
func New() *Ledger {
	return &Ledger{
		db:         database.MainDB,
		exceptions: repository.NewExceptionRepository(),
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (l *Ledger) WithDB(db *gorm.DB) *Ledger {
	return &Ledger{
		db:         db,
		exceptions: repository.NewExceptionRepository().WithDB(db),
	}
}

// ApplyFill applies one fill to an order. The effect is atomic: order,
// position and portfolio either all move or none do. Re-applying a fill to
// an already terminal order is a no-op when the external reference matches,
// so the execution path can safely retry.
//
// A fill that would breach an invariant (balance below zero, selling more
// than held) marks the order failed and returns the corresponding error;
// the portfolio and positions stay untouched.
func (l *Ledger) ApplyFill(
	ctx context.Context,
	orderID uint,
	fill Fill,
) (*model.Order, error) {

	if fill.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, traderr.InvalidQuantity("fill quantity must be positive, got %s", fill.Quantity)
	}
	if fill.Price.LessThanOrEqual(decimal.Zero) {
		return nil, traderr.MissingPrice("fill price must be positive, got %s", fill.Price)
	}
	if fill.Fee.IsNegative() {
		return nil, traderr.InvalidQuantity("fill fee must not be negative, got %s", fill.Fee)
	}

	var (
		applied *model.Order
		err     error
	)

	for attempt := 0; attempt < applyRetries; attempt++ {
		applied, err = l.applyOnce(ctx, orderID, fill)
		if err == nil || !isSerializationFailure(err) {
			return applied, err
		}

		logger.WithFields(map[string]interface{}{
			"ledger":   "ApplyFill",
			"order_id": orderID,
			"attempt":  attempt + 1,
		}).WithError(err).Warn("Fill application conflicted, retrying")
	}

	l.exceptions.Persist(ctx, &model.Exception{
		Module:  "ledger",
		Method:  "ApplyFill",
		Message: err.Error(),
	})

	return nil, traderr.Conflict("fill application for order %d kept conflicting after %d attempts", orderID, applyRetries)
}

func (l *Ledger) applyOnce(
	ctx context.Context,
	orderID uint,
	fill Fill,
) (*model.Order, error) {

	var result *model.Order

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return traderr.NotFound("order %d not found", orderID)
			}
			return err
		}

		// Idempotency guard. A terminal order never moves again; a
		// replay of the same execution is acknowledged silently.
		if order.IsTerminal() {
			if order.Status == model.OrderStatusExecuted &&
				fill.ExternalOrderID != "" &&
				order.ExternalOrderID == fill.ExternalOrderID {
				result = &order
				return nil
			}
			return traderr.InvalidState("order %d is %s and cannot accept fills", order.ID, order.Status)
		}

		// A non-terminal order replaying the execution it already
		// absorbed is the adapter re-acknowledging, not new volume.
		// External ids are unique per fill.
		if fill.ExternalOrderID != "" &&
			order.ExternalOrderID == fill.ExternalOrderID {
			result = &order
			return nil
		}

		if fill.Quantity.GreaterThan(order.RemainingQuantity()) {
			return traderr.InvalidQuantity(
				"fill quantity %s exceeds remaining %s on order %d",
				fill.Quantity, order.RemainingQuantity(), order.ID)
		}

		// Lock the portfolio row. Every fill on this portfolio queues here.
		var portfolio model.Portfolio
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&portfolio, order.PortfolioID).Error; err != nil {
			return err
		}

		var applyErr error
		switch order.Side {
		case model.OrderSideBuy:
			applyErr = l.applyBuy(tx, &order, &portfolio, fill)
		case model.OrderSideSell:
			applyErr = l.applySell(tx, &order, &portfolio, fill)
		default:
			return traderr.InvalidState("order %d has unknown side %q", order.ID, order.Side)
		}

		if applyErr != nil {
			// Hard rejection: the order fails, nothing else moves.
			// The order update must survive the rollback of this
			// transaction, so it is written separately below.
			result = &order
			return applyErr
		}

		advanceOrder(&order, fill)

		portfolio.Version++
		if err := tx.Save(&portfolio).Error; err != nil {
			return err
		}
		if err := tx.Save(&order).Error; err != nil {
			return err
		}

		result = &order
		return nil
	})

	if err != nil && result != nil && isRejection(err) {
		l.failOrder(ctx, result.ID, err)
		return nil, err
	}

	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"ledger":       "ApplyFill",
		"order_id":     result.ID,
		"portfolio_id": result.PortfolioID,
		"status":       result.Status,
		"executed_qty": result.ExecutedQuantity.String(),
	}).Info("Fill applied")

	return result, nil
}

// applyBuy charges cash for the fill and folds the quantity into the open
// position at weighted-average cost.
func (l *Ledger) applyBuy(
	tx *gorm.DB,
	order *model.Order,
	portfolio *model.Portfolio,
	fill Fill,
) error {

	cost := fill.Quantity.Mul(fill.Price).Add(fill.Fee)

	// Re-check under lock. Validation at order creation ran outside this
	// transaction and the balance may have moved since.
	if cost.GreaterThan(portfolio.CurrentBalance) {
		return traderr.InsufficientBalance(
			"fill costs %s but portfolio %d holds %s",
			cost, portfolio.ID, portfolio.CurrentBalance)
	}

	var position model.Position
	err := tx.Where("portfolio_id = ? AND asset_id = ? AND status = ?",
		portfolio.ID, order.AssetID, model.PositionStatusOpen).
		First(&position).Error

	switch {
	case err == gorm.ErrRecordNotFound:
		position = model.Position{
			PortfolioID: portfolio.ID,
			AssetID:     order.AssetID,
			Quantity:    fill.Quantity,
			AvgBuyPrice: fill.Price,
			Status:      model.PositionStatusOpen,
			OpenedAt:    fill.ExecutedAt,
		}
	case err != nil:
		return err
	default:
		// new_avg = (old_qty*old_avg + fill_qty*fill_price) / (old_qty + fill_qty)
		oldCost := position.Quantity.Mul(position.AvgBuyPrice)
		newQty := position.Quantity.Add(fill.Quantity)
		position.AvgBuyPrice = oldCost.Add(fill.Quantity.Mul(fill.Price)).Div(newQty)
		position.Quantity = newQty
	}

	if err := tx.Save(&position).Error; err != nil {
		return err
	}

	order.PositionID = &position.ID
	portfolio.CurrentBalance = portfolio.CurrentBalance.Sub(cost)
	portfolio.TotalInvested = portfolio.TotalInvested.Add(fill.Quantity.Mul(fill.Price))

	return nil
}

// applySell releases quantity from the open position, realizes P&L against
// the average cost and credits the proceeds net of fee.
func (l *Ledger) applySell(
	tx *gorm.DB,
	order *model.Order,
	portfolio *model.Portfolio,
	fill Fill,
) error {

	var position model.Position
	err := tx.Where("portfolio_id = ? AND asset_id = ? AND status = ?",
		portfolio.ID, order.AssetID, model.PositionStatusOpen).
		First(&position).Error

	if err == gorm.ErrRecordNotFound {
		return traderr.InsufficientPosition(
			"portfolio %d holds no open position in asset %d", portfolio.ID, order.AssetID)
	}
	if err != nil {
		return err
	}

	if fill.Quantity.GreaterThan(position.Quantity) {
		return traderr.InsufficientPosition(
			"fill quantity %s exceeds held %s", fill.Quantity, position.Quantity)
	}

	// realized = filled_qty * (filled_price - avg_buy_price) - fee
	realized := fill.Quantity.Mul(fill.Price.Sub(position.AvgBuyPrice)).Sub(fill.Fee)

	position.Quantity = position.Quantity.Sub(fill.Quantity)
	position.RealizedPnl = position.RealizedPnl.Add(realized)

	if position.Quantity.IsZero() {
		// Average cost stays on the closed row for audit.
		now := fill.ExecutedAt
		position.Status = model.PositionStatusClosed
		position.ClosedAt = &now
		position.UnrealizedPnl = decimal.Zero
	}

	if err := tx.Save(&position).Error; err != nil {
		return err
	}

	order.PositionID = &position.ID
	portfolio.CurrentBalance = portfolio.CurrentBalance.
		Add(fill.Quantity.Mul(fill.Price)).
		Sub(fill.Fee)
	portfolio.TotalProfitLoss = portfolio.TotalProfitLoss.Add(realized)
	portfolio.TotalInvested = portfolio.TotalInvested.Sub(fill.Quantity.Mul(position.AvgBuyPrice))

	if portfolio.TotalInvested.IsNegative() {
		portfolio.TotalInvested = decimal.Zero
	}

	return nil
}

// advanceOrder folds the fill into the order and moves its status.
func advanceOrder(order *model.Order, fill Fill) {
	prevExecuted := order.ExecutedQuantity
	order.ExecutedQuantity = order.ExecutedQuantity.Add(fill.Quantity)

	// Executed price is the volume-weighted average across fills.
	if order.ExecutedPrice == nil || prevExecuted.IsZero() {
		p := fill.Price
		order.ExecutedPrice = &p
	} else {
		weighted := prevExecuted.Mul(*order.ExecutedPrice).
			Add(fill.Quantity.Mul(fill.Price)).
			Div(order.ExecutedQuantity)
		order.ExecutedPrice = &weighted
	}

	order.FeeAmount = order.FeeAmount.Add(fill.Fee)
	if fill.FeeCurrency != "" {
		order.FeeCurrency = fill.FeeCurrency
	}
	if fill.ExternalOrderID != "" {
		order.ExternalOrderID = fill.ExternalOrderID
	}

	if order.RemainingQuantity().IsZero() {
		at := fill.ExecutedAt
		order.Status = model.OrderStatusExecuted
		order.ExecutedAt = &at
	} else {
		order.Status = model.OrderStatusPartial
	}
}

// failOrder stamps the order failed outside the rolled-back transaction.
func (l *Ledger) failOrder(ctx context.Context, orderID uint, cause error) {
	reason := cause.Error()
	if len(reason) > 200 {
		reason = reason[:200]
	}

	err := l.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status IN ?", orderID,
			[]string{model.OrderStatusPending, model.OrderStatusPartial}).
		Updates(map[string]interface{}{
			"status":         model.OrderStatusFailed,
			"failure_reason": reason,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"ledger":   "failOrder",
			"order_id": orderID,
		}).WithError(err).Error("Failed to mark order failed")
	}
}

// isRejection reports whether the error is a domain rejection that should
// fail the order, as opposed to an infrastructure error worth retrying.
func isRejection(err error) bool {
	switch traderr.CodeOf(err) {
	case traderr.CodeInsufficientBalance, traderr.CodeInsufficientPosition:
		return true
	}
	return false
}

// isSerializationFailure matches the errors Postgres raises when
// concurrent transactions collide.
func isSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "serialization") ||
		strings.Contains(msg, "deadlock")
}

// MarkToMarket recomputes unrealized P&L for every open position on an
// asset from a new mark price. This is a pure recompute, so it runs in
// plain updates without touching the portfolio lock.
func (l *Ledger) MarkToMarket(
	ctx context.Context,
	assetID uint,
	markPrice decimal.Decimal,
) (int, error) {

	if markPrice.LessThanOrEqual(decimal.Zero) {
		return 0, traderr.MissingPrice("mark price must be positive, got %s", markPrice)
	}

	positions, err := repository.NewPositionRepository().WithDB(l.db).ListOpenByAsset(ctx, assetID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range positions {
		position := &positions[i]

		// unrealized = quantity * (mark_price - avg_buy_price)
		unrealized := position.Quantity.Mul(markPrice.Sub(position.AvgBuyPrice))

		err := l.db.WithContext(ctx).
			Model(&model.Position{}).
			Where("id = ? AND status = ?", position.ID, model.PositionStatusOpen).
			Updates(map[string]interface{}{
				"current_price":  markPrice,
				"unrealized_pnl": unrealized,
			}).Error

		if err != nil {
			logger.WithFields(map[string]interface{}{
				"ledger":      "MarkToMarket",
				"position_id": position.ID,
			}).WithError(err).Error("Failed to update mark price")

			return updated, err
		}

		updated++
	}

	return updated, nil
}
