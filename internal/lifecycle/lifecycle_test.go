package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/lifecycle"
	"github.com/craftlane/craftlane-orders-service/internal/models"
	"github.com/craftlane/craftlane-orders-service/internal/repository"
)

func seedOrder(t *testing.T, store *repository.MemoryOrderStore, status models.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:          models.NewOrderID(),
		UserID:      "user_1",
		Status:      status,
		TotalAmount: models.NewMoney("299.00"),
		Currency:    "USD",
		Timeline: []models.TimelineEntry{{
			Status:      status,
			Title:       status.Title(),
			CompletedAt: time.Now(),
		}},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), order))
	return order
}

func TestTransitionForward(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	ctrl := lifecycle.NewController(store, zap.NewNop())
	order := seedOrder(t, store, models.OrderStatusPending)

	updated, applied, err := ctrl.Transition(context.Background(), order.ID, models.OrderStatusConfirmed, "payment received")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)

	require.Len(t, updated.Timeline, 2)
	last := updated.Timeline[len(updated.Timeline)-1]
	assert.Equal(t, models.OrderStatusConfirmed, last.Status)
	assert.Equal(t, "Payment Confirmed", last.Title)
	assert.Equal(t, "payment received", last.Note)
}

func TestTransitionSkipsStages(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	ctrl := lifecycle.NewController(store, zap.NewNop())
	order := seedOrder(t, store, models.OrderStatusConfirmed)

	updated, applied, err := ctrl.Transition(context.Background(), order.ID, models.OrderStatusShipped, "")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
}

func TestTransitionReconfirmIsNoOp(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	ctrl := lifecycle.NewController(store, zap.NewNop())
	order := seedOrder(t, store, models.OrderStatusInProduction)

	updated, applied, err := ctrl.Transition(context.Background(), order.ID, models.OrderStatusConfirmed, "duplicate webhook")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.OrderStatusInProduction, updated.Status)
	assert.Len(t, updated.Timeline, 1, "no-op must not append a timeline entry")
}

func TestTransitionFromTerminalFails(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	ctrl := lifecycle.NewController(store, zap.NewNop())

	for _, terminal := range []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled} {
		order := seedOrder(t, store, terminal)
		_, _, err := ctrl.Transition(context.Background(), order.ID, models.OrderStatusShipped, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "from %s", terminal)
	}
}

func TestCancellationGuard(t *testing.T) {
	tests := []struct {
		from    models.OrderStatus
		allowed bool
	}{
		{models.OrderStatusPending, true},
		{models.OrderStatusConfirmed, true},
		{models.OrderStatusDesignApproved, false},
		{models.OrderStatusInProduction, false},
		{models.OrderStatusShipped, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			store := repository.NewMemoryOrderStore()
			ctrl := lifecycle.NewController(store, zap.NewNop())
			order := seedOrder(t, store, tt.from)

			updated, applied, err := ctrl.Transition(context.Background(), order.ID, models.OrderStatusCancelled, "customer request")
			if tt.allowed {
				require.NoError(t, err)
				assert.True(t, applied)
				assert.Equal(t, models.OrderStatusCancelled, updated.Status)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
			}
		})
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	ctrl := lifecycle.NewController(store, zap.NewNop())
	order := seedOrder(t, store, models.OrderStatusPending)

	var validationErr *apperrors.ValidationError
	_, _, err := ctrl.Transition(context.Background(), order.ID, "refunded", "")
	require.ErrorAs(t, err, &validationErr)
}

func TestTransitionUnknownOrder(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	ctrl := lifecycle.NewController(store, zap.NewNop())

	_, _, err := ctrl.Transition(context.Background(), "ord_missing", models.OrderStatusConfirmed, "")
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
}

// racingStore simulates a concurrent writer winning the compare-and-set: the
// first transition attempt is beaten by a competing confirmation.
type racingStore struct {
	*repository.MemoryOrderStore
	raced bool
}

func (s *racingStore) TransitionStatus(ctx context.Context, id string, expected, target models.OrderStatus, entry models.TimelineEntry) (*models.Order, error) {
	if !s.raced {
		s.raced = true
		_, err := s.MemoryOrderStore.TransitionStatus(ctx, id, expected, models.OrderStatusConfirmed, models.TimelineEntry{
			Status:      models.OrderStatusConfirmed,
			Title:       models.OrderStatusConfirmed.Title(),
			CompletedAt: time.Now(),
		})
		if err != nil {
			return nil, err
		}
		return nil, lifecycle.ErrStatusConflict
	}
	return s.MemoryOrderStore.TransitionStatus(ctx, id, expected, target, entry)
}

func TestTransitionLosesRaceToConcurrentConfirmation(t *testing.T) {
	inner := repository.NewMemoryOrderStore()
	store := &racingStore{MemoryOrderStore: inner}
	ctrl := lifecycle.NewController(store, zap.NewNop())
	order := seedOrder(t, inner, models.OrderStatusPending)

	// A webhook confirms the order between this caller's read and write. The
	// retry must observe the new state and settle on the idempotent no-op.
	updated, applied, err := ctrl.Transition(context.Background(), order.ID, models.OrderStatusConfirmed, "verify poll")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)
	assert.Len(t, updated.Timeline, 2, "exactly one confirmation entry between both writers")
}

func TestTransitionRetryAppliesDistinctTarget(t *testing.T) {
	inner := repository.NewMemoryOrderStore()
	store := &racingStore{MemoryOrderStore: inner}
	ctrl := lifecycle.NewController(store, zap.NewNop())
	order := seedOrder(t, inner, models.OrderStatusPending)

	// The competing writer confirms; this caller wants shipped, which is still
	// valid from confirmed, so the retry applies it.
	updated, applied, err := ctrl.Transition(context.Background(), order.ID, models.OrderStatusShipped, "")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
}
