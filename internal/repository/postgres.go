package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/lifecycle"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// PostgresOrderStore implements lifecycle.OrderStore and the payment attempt
// store on PostgreSQL. Items and timeline live in JSONB columns; the partial
// unique index uq_payment_attempts_active(order_id) WHERE active backs the
// one-active-attempt invariant.
type PostgresOrderStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresOrderStore creates a new PostgreSQL order store.
func NewPostgresOrderStore(db *sql.DB, logger *zap.Logger) *PostgresOrderStore {
	return &PostgresOrderStore{db: db, logger: logger}
}

// Create persists a new order.
func (s *PostgresOrderStore) Create(ctx context.Context, order *models.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	timelineJSON, err := json.Marshal(order.Timeline)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			id, user_id, status, items, total_amount, currency,
			estimated_delivery, timeline, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.Status,
		itemsJSON,
		order.TotalAmount.Amount,
		order.Currency,
		order.EstimatedDelivery,
		timelineJSON,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("Failed to create order",
			zap.String("user_id", order.UserID),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
	)
	return nil
}

// GetByID retrieves an order by its identifier.
func (s *PostgresOrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `
		SELECT id, user_id, status, items, total_amount, currency,
		       estimated_delivery, timeline, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	order, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrOrderNotFound
	}
	if err != nil {
		s.logger.Error("Failed to fetch order",
			zap.String("order_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	return order, nil
}

// ListByUser retrieves a user's orders, newest first.
func (s *PostgresOrderStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	query := `
		SELECT id, user_id, status, items, total_amount, currency,
		       estimated_delivery, timeline, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// TransitionStatus applies the compare-and-set status update and the timeline
// append as one statement. A zero-row update with an existing order means the
// status moved underneath us, which the lifecycle controller handles.
func (s *PostgresOrderStore) TransitionStatus(ctx context.Context, id string, expected, target models.OrderStatus, entry models.TimelineEntry) (*models.Order, error) {
	entryJSON, err := json.Marshal([]models.TimelineEntry{entry})
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE orders
		SET status = $3, timeline = timeline || $4::jsonb, updated_at = $5
		WHERE id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, id, expected, target, entryJSON, time.Now())
	if err != nil {
		s.logger.Error("Failed to transition order status",
			zap.String("order_id", id),
			zap.String("target", string(target)),
			zap.Error(err),
		)
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, lifecycle.ErrStatusConflict
	}

	return s.GetByID(ctx, id)
}

// CreateAttempt records a new active payment attempt, deactivating any prior
// active attempt for the order in the same transaction.
func (s *PostgresOrderStore) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE payment_attempts SET active = FALSE, provider_status = 'superseded' WHERE order_id = $1 AND active`,
		attempt.OrderID,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payment_attempts (
			id, order_id, gateway, provider_handle, amount, currency,
			provider_status, active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		attempt.ID,
		attempt.OrderID,
		attempt.Gateway,
		attempt.ProviderHandle,
		attempt.Amount.Amount,
		attempt.Currency,
		attempt.ProviderStatus,
		attempt.Active,
		attempt.CreatedAt,
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info("Payment attempt recorded",
		zap.String("order_id", attempt.OrderID),
		zap.String("gateway", attempt.Gateway),
		zap.String("provider_handle", attempt.ProviderHandle),
	)
	return nil
}

// GetAttemptByHandle retrieves an attempt by its provider handle.
func (s *PostgresOrderStore) GetAttemptByHandle(ctx context.Context, handle string) (*models.PaymentAttempt, error) {
	query := `
		SELECT id, order_id, gateway, provider_handle, amount, currency,
		       provider_status, active, created_at
		FROM payment_attempts
		WHERE provider_handle = $1
	`

	var attempt models.PaymentAttempt
	err := s.db.QueryRowContext(ctx, query, handle).Scan(
		&attempt.ID,
		&attempt.OrderID,
		&attempt.Gateway,
		&attempt.ProviderHandle,
		&attempt.Amount.Amount,
		&attempt.Currency,
		&attempt.ProviderStatus,
		&attempt.Active,
		&attempt.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	return &attempt, nil
}

// UpdateAttemptStatus records the provider's status for an attempt. Final
// statuses deactivate the attempt.
func (s *PostgresOrderStore) UpdateAttemptStatus(ctx context.Context, handle, providerStatus string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE payment_attempts SET provider_status = $2, active = $3 WHERE provider_handle = $1`,
		handle, providerStatus, active,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperrors.ErrOrderNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var itemsJSON, timelineJSON []byte

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&itemsJSON,
		&order.TotalAmount.Amount,
		&order.Currency,
		&order.EstimatedDelivery,
		&timelineJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(timelineJSON, &order.Timeline); err != nil {
		return nil, err
	}

	return &order, nil
}
