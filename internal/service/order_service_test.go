package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/events"
	"github.com/craftlane/craftlane-orders-service/internal/lifecycle"
	"github.com/craftlane/craftlane-orders-service/internal/models"
	"github.com/craftlane/craftlane-orders-service/internal/repository"
)

func newOrderService(store *repository.MemoryOrderStore, publisher *events.MockPublisher) *OrderService {
	logger := zap.NewNop()
	return NewOrderService(
		store,
		repository.NoopOrderCache{},
		lifecycle.NewController(store, logger),
		publisher,
		"USD",
		logger,
	)
}

func TestCreateOrder(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	publisher := events.NewMockPublisher()
	svc := newOrderService(store, publisher)

	order, err := svc.CreateOrder(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "USD", order.Currency)
	assert.False(t, order.EstimatedDelivery.IsZero())

	require.Len(t, order.Timeline, 1)
	assert.Equal(t, models.OrderStatusPending, order.Timeline[0].Status)
	assert.Equal(t, "Order Placed", order.Timeline[0].Title)

	stored, err := store.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)

	assert.Len(t, publisher.ByType(events.EventTypeOrderCreated), 1)
}

func TestCreateOrderRejectsInvalidRequest(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	svc := newOrderService(store, events.NewMockPublisher())

	req := validCreateRequest()
	req.UserID = ""

	var validationErr *apperrors.ValidationError
	_, err := svc.CreateOrder(context.Background(), req)
	require.ErrorAs(t, err, &validationErr)
}

func TestGetOrderNotFound(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	svc := newOrderService(store, events.NewMockPublisher())

	_, err := svc.GetOrder(context.Background(), "ord_missing")
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
}

func TestListOrdersClampsLimit(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	svc := newOrderService(store, events.NewMockPublisher())

	for i := 0; i < 25; i++ {
		_, err := svc.CreateOrder(context.Background(), validCreateRequest())
		require.NoError(t, err)
	}

	orders, err := svc.ListOrders(context.Background(), "user_1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 20, "limit 0 falls back to the default page size")

	orders, err = svc.ListOrders(context.Background(), "user_1", 1000, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 20, "limit above the cap falls back to the default page size")
}

func TestUpdateStatusPublishesChange(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	publisher := events.NewMockPublisher()
	svc := newOrderService(store, publisher)

	order, err := svc.CreateOrder(context.Background(), validCreateRequest())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusConfirmed, "manual confirmation")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)

	changes := publisher.ByType(events.EventTypeOrderStatusChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, models.OrderStatusPending, changes[0].PreviousStatus)
	assert.Equal(t, models.OrderStatusConfirmed, changes[0].NewStatus)
}

func TestUpdateStatusNoOpDoesNotPublish(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	publisher := events.NewMockPublisher()
	svc := newOrderService(store, publisher)

	order, err := svc.CreateOrder(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusConfirmed, "")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusConfirmed, "")
	require.NoError(t, err)

	assert.Len(t, publisher.ByType(events.EventTypeOrderStatusChanged), 1)
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	svc := newOrderService(store, events.NewMockPublisher())

	order, err := svc.CreateOrder(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusInProduction, "")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusCancelled, "too late")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}
