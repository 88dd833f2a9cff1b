package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/clients"
	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/lifecycle"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// OrderReader fetches the order an event refers to.
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
}

// NotificationConsumer turns order status-change events into buyer
// notifications. Running this off the event stream keeps notification
// failures away from the transition path: a failed send is logged and the
// status change stands.
type NotificationConsumer struct {
	reader *kafka.Reader
	orders OrderReader
	users  clients.UserClient
	sink   lifecycle.NotificationSink
	logger *zap.Logger
	stopCh chan struct{}
}

// NewNotificationConsumer creates the Kafka-based notification dispatcher.
func NewNotificationConsumer(cfg config.KafkaConfig, orders OrderReader, users clients.UserClient, sink lifecycle.NotificationSink, logger *zap.Logger) *NotificationConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.OrdersTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return &NotificationConsumer{
		reader: reader,
		orders: orders,
		users:  users,
		sink:   sink,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins consuming events until the context is cancelled or Stop is
// called.
func (c *NotificationConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting notification consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Notification consumer stopped")
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("Failed to read message", zap.Error(err))
				continue
			}

			c.handleMessage(ctx, msg)
		}
	}
}

// Stop stops the consumer.
func (c *NotificationConsumer) Stop() {
	close(c.stopCh)
	c.reader.Close()
}

func (c *NotificationConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var event OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Malformed event payload",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}

	if event.Type != EventTypeOrderStatusChanged {
		return
	}

	order, err := c.orders.GetByID(ctx, event.OrderID)
	if err != nil {
		c.logger.Error("Failed to load order for notification",
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
		return
	}

	contact, err := c.users.GetContact(ctx, order.UserID)
	if err != nil {
		c.logger.Error("Failed to resolve buyer contact",
			zap.String("order_id", order.ID),
			zap.String("user_id", order.UserID),
			zap.Error(err),
		)
		return
	}

	if err := c.sink.SendOrderStatusUpdate(ctx, order, contact.Email, contact.Phone, event.PreviousStatus); err != nil {
		// Swallowed: notifications never gate order state.
		c.logger.Error("Failed to send status notification",
			zap.String("order_id", order.ID),
			zap.String("new_status", string(event.NewStatus)),
			zap.Error(err),
		)
		return
	}

	c.logger.Info("Status notification dispatched",
		zap.String("order_id", order.ID),
		zap.String("new_status", string(event.NewStatus)),
	)
}
