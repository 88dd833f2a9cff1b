package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/clients"
	"github.com/craftlane/craftlane-orders-service/internal/models"
	"github.com/craftlane/craftlane-orders-service/internal/repository"
)

func consumerFixture(t *testing.T) (*NotificationConsumer, *repository.MemoryOrderStore, *clients.MockNotificationSink) {
	t.Helper()

	store := repository.NewMemoryOrderStore()
	sink := &clients.MockNotificationSink{}
	consumer := &NotificationConsumer{
		orders: store,
		users: &clients.MockUserClient{Contacts: map[string]clients.Contact{
			"user_1": {Email: "buyer@example.com", Phone: "+15550100"},
		}},
		sink:   sink,
		logger: zap.NewNop(),
	}
	return consumer, store, sink
}

func statusChangedMessage(t *testing.T, orderID string) kafka.Message {
	t.Helper()
	event := OrderEvent{
		ID:             "evt_1",
		Type:           EventTypeOrderStatusChanged,
		OrderID:        orderID,
		UserID:         "user_1",
		PreviousStatus: models.OrderStatusPending,
		NewStatus:      models.OrderStatusConfirmed,
		Timestamp:      time.Now(),
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: data}
}

func TestConsumerDispatchesStatusNotification(t *testing.T) {
	consumer, store, sink := consumerFixture(t)

	order := &models.Order{
		ID:     "ord_1",
		UserID: "user_1",
		Status: models.OrderStatusConfirmed,
	}
	require.NoError(t, store.Create(context.Background(), order))

	consumer.handleMessage(context.Background(), statusChangedMessage(t, order.ID))

	require.Equal(t, 1, sink.Sent())
	update := sink.Updates[0]
	assert.Equal(t, "ord_1", update.OrderID)
	assert.Equal(t, "buyer@example.com", update.Email)
	assert.Equal(t, models.OrderStatusPending, update.OldStatus)
	assert.Equal(t, models.OrderStatusConfirmed, update.NewStatus)
}

func TestConsumerIgnoresOtherEventTypes(t *testing.T) {
	consumer, _, sink := consumerFixture(t)

	event := OrderEvent{ID: "evt_1", Type: EventTypeOrderCreated, OrderID: "ord_1"}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	consumer.handleMessage(context.Background(), kafka.Message{Value: data})
	assert.Zero(t, sink.Sent())
}

func TestConsumerSkipsUnknownOrder(t *testing.T) {
	consumer, _, sink := consumerFixture(t)

	consumer.handleMessage(context.Background(), statusChangedMessage(t, "ord_missing"))
	assert.Zero(t, sink.Sent())
}

func TestConsumerSwallowsSinkFailure(t *testing.T) {
	consumer, store, sink := consumerFixture(t)
	sink.Err = errors.New("smtp down")

	order := &models.Order{ID: "ord_1", UserID: "user_1", Status: models.OrderStatusConfirmed}
	require.NoError(t, store.Create(context.Background(), order))

	// Must not panic or retry; the status change stands regardless.
	consumer.handleMessage(context.Background(), statusChangedMessage(t, order.ID))
	assert.Zero(t, sink.Sent())
}

func TestConsumerIgnoresMalformedPayload(t *testing.T) {
	consumer, _, sink := consumerFixture(t)

	consumer.handleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Zero(t, sink.Sent())
}
