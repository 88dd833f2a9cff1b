package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// EventType represents the type of order event.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderRefunded      EventType = "order.refunded"
	EventTypePaymentCompleted   EventType = "payment.completed"
)

// OrderEvent is one message on the orders topic.
type OrderEvent struct {
	ID             string             `json:"id"`
	Type           EventType          `json:"type"`
	OrderID        string             `json:"order_id"`
	UserID         string             `json:"user_id"`
	PreviousStatus models.OrderStatus `json:"previous_status,omitempty"`
	NewStatus      models.OrderStatus `json:"new_status,omitempty"`
	Data           json.RawMessage    `json:"data,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

// Publisher publishes order events. Services treat publish failures as
// non-fatal: events feed notifications and reporting, not the source of truth.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error
	PublishOrderRefunded(ctx context.Context, order *models.Order, refund *models.RefundResult) error
	PublishPaymentCompleted(ctx context.Context, order *models.Order, result *models.NormalizedEvent) error
}

// KafkaPublisher publishes order events to Kafka.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OrdersTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{writer: writer, logger: logger}
}

// PublishOrderCreated publishes an order created event.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return p.publish(ctx, &OrderEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      EventTypeOrderCreated,
		OrderID:   order.ID,
		UserID:    order.UserID,
		NewStatus: order.Status,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// PublishOrderStatusChanged publishes an order status change event.
func (p *KafkaPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	return p.publish(ctx, &OrderEvent{
		ID:             "evt_" + uuid.NewString(),
		Type:           EventTypeOrderStatusChanged,
		OrderID:        order.ID,
		UserID:         order.UserID,
		PreviousStatus: previousStatus,
		NewStatus:      order.Status,
		Timestamp:      time.Now(),
	})
}

// PublishOrderRefunded publishes a refund event.
func (p *KafkaPublisher) PublishOrderRefunded(ctx context.Context, order *models.Order, refund *models.RefundResult) error {
	data, err := json.Marshal(refund)
	if err != nil {
		return err
	}
	return p.publish(ctx, &OrderEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      EventTypeOrderRefunded,
		OrderID:   order.ID,
		UserID:    order.UserID,
		NewStatus: order.Status,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// PublishPaymentCompleted publishes a normalized completed-payment event.
func (p *KafkaPublisher) PublishPaymentCompleted(ctx context.Context, order *models.Order, result *models.NormalizedEvent) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return p.publish(ctx, &OrderEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      EventTypePaymentCompleted,
		OrderID:   order.ID,
		UserID:    order.UserID,
		NewStatus: order.Status,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func (p *KafkaPublisher) publish(ctx context.Context, event *OrderEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("Event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("order_id", event.OrderID),
	)
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// MockPublisher records events for tests.
type MockPublisher struct {
	Events []*OrderEvent
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Events: make([]*OrderEvent, 0)}
}

func (m *MockPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	m.Events = append(m.Events, &OrderEvent{Type: EventTypeOrderCreated, OrderID: order.ID})
	return nil
}

func (m *MockPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	m.Events = append(m.Events, &OrderEvent{
		Type:           EventTypeOrderStatusChanged,
		OrderID:        order.ID,
		PreviousStatus: previousStatus,
		NewStatus:      order.Status,
	})
	return nil
}

func (m *MockPublisher) PublishOrderRefunded(ctx context.Context, order *models.Order, refund *models.RefundResult) error {
	m.Events = append(m.Events, &OrderEvent{Type: EventTypeOrderRefunded, OrderID: order.ID})
	return nil
}

func (m *MockPublisher) PublishPaymentCompleted(ctx context.Context, order *models.Order, result *models.NormalizedEvent) error {
	m.Events = append(m.Events, &OrderEvent{Type: EventTypePaymentCompleted, OrderID: order.ID})
	return nil
}

// ByType returns the recorded events of one type.
func (m *MockPublisher) ByType(t EventType) []*OrderEvent {
	var out []*OrderEvent
	for _, e := range m.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
