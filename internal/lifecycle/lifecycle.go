package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// ErrStatusConflict is returned by OrderStore.TransitionStatus when the
// order's status changed between read and write. The controller re-reads and
// re-evaluates its guards, so a concurrent webhook and verify call converge on
// exactly one state advance.
var ErrStatusConflict = errors.New("order status changed concurrently")

// OrderStore is the durable order collaborator. TransitionStatus must apply
// the status update and the timeline append atomically, and only when the
// stored status still equals expected (compare-and-set).
type OrderStore interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	TransitionStatus(ctx context.Context, id string, expected, target models.OrderStatus, entry models.TimelineEntry) (*models.Order, error)
}

// NotificationSink delivers order status updates to the buyer. Invoked by the
// controller's caller, never by the controller itself, so notification
// failures cannot roll back a transition.
type NotificationSink interface {
	SendOrderStatusUpdate(ctx context.Context, order *models.Order, email, phone string, oldStatus models.OrderStatus) error
}

// casRetries bounds re-evaluation under contention. Two concurrent writers per
// order is the realistic worst case (webhook vs. verify).
const casRetries = 3

// Controller validates and applies order status transitions.
type Controller struct {
	store  OrderStore
	logger *zap.Logger
}

// NewController creates the lifecycle controller.
func NewController(store OrderStore, logger *zap.Logger) *Controller {
	return &Controller{store: store, logger: logger}
}

// Transition moves the order to target and appends a timeline entry, as one
// atomic update. It returns the updated order and whether the transition was
// applied: re-confirming an order already at confirmed or later is a
// successful no-op with applied=false, which makes duplicate webhook
// deliveries safe.
//
// Cancellation is only permitted from pending or confirmed. No transition
// leaves a terminal state. Forward stage-skipping is allowed.
func (c *Controller) Transition(ctx context.Context, orderID string, target models.OrderStatus, note string) (*models.Order, bool, error) {
	if !target.IsValid() {
		return nil, false, apperrors.NewValidationError("status", "unknown order status: "+string(target))
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		order, err := c.store.GetByID(ctx, orderID)
		if err != nil {
			return nil, false, err
		}

		if applied, err := c.guard(order, target); err != nil {
			return nil, false, err
		} else if !applied {
			c.logger.Info("Transition already applied, no-op",
				zap.String("order_id", orderID),
				zap.String("status", string(order.Status)),
				zap.String("target", string(target)),
			)
			return order, false, nil
		}

		entry := models.TimelineEntry{
			Status:      target,
			Title:       target.Title(),
			Note:        note,
			CompletedAt: time.Now(),
		}

		updated, err := c.store.TransitionStatus(ctx, orderID, order.Status, target, entry)
		if errors.Is(err, ErrStatusConflict) {
			c.logger.Debug("Transition lost compare-and-set race, retrying",
				zap.String("order_id", orderID),
				zap.String("target", string(target)),
			)
			continue
		}
		if err != nil {
			return nil, false, err
		}

		c.logger.Info("Order status transitioned",
			zap.String("order_id", orderID),
			zap.String("from", string(order.Status)),
			zap.String("to", string(target)),
		)
		return updated, true, nil
	}

	// Retries exhausted means another writer kept advancing the order; treat
	// the final state as authoritative and re-run the guard once more.
	order, err := c.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if applied, err := c.guard(order, target); err != nil {
		return nil, false, err
	} else if !applied {
		return order, false, nil
	}
	return nil, false, apperrors.ErrInvalidTransition
}

// guard decides whether target may be applied from the order's current state.
// It returns false with nil error for the idempotent no-op cases.
func (c *Controller) guard(order *models.Order, target models.OrderStatus) (bool, error) {
	current := order.Status

	if current == target {
		return false, nil
	}

	// Re-delivered payment confirmations for an already progressed order are
	// no-ops, not errors.
	if target == models.OrderStatusConfirmed && current.AtOrBeyond(models.OrderStatusConfirmed) {
		return false, nil
	}

	if current.IsTerminal() {
		return false, apperrors.ErrInvalidTransition
	}

	if target == models.OrderStatusCancelled && !current.CanCancel() {
		return false, apperrors.ErrInvalidTransition
	}

	return true, nil
}
