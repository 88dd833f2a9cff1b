package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/lifecycle"
	"github.com/craftlane/craftlane-orders-service/internal/middleware"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// Ensure HTTPNotificationClient implements lifecycle.NotificationSink
var _ lifecycle.NotificationSink = (*HTTPNotificationClient)(nil)

// HTTPNotificationClient delivers order status updates through the
// notification service. Template rendering happens on the other side; this
// client only ships the order context.
type HTTPNotificationClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *zap.Logger
}

// NewHTTPNotificationClient creates a new HTTP-based notification client.
func NewHTTPNotificationClient(cfg config.ServiceConfig, logger *zap.Logger) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

type orderStatusUpdate struct {
	OrderID   string             `json:"order_id"`
	UserID    string             `json:"user_id"`
	Email     string             `json:"email,omitempty"`
	Phone     string             `json:"phone,omitempty"`
	OldStatus models.OrderStatus `json:"old_status"`
	NewStatus models.OrderStatus `json:"new_status"`
	Title     string             `json:"title"`
}

// SendOrderStatusUpdate notifies the buyer that their order moved to a new
// status.
func (c *HTTPNotificationClient) SendOrderStatusUpdate(ctx context.Context, order *models.Order, email, phone string, oldStatus models.OrderStatus) error {
	payload := orderStatusUpdate{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Email:     email,
		Phone:     phone,
		OldStatus: oldStatus,
		NewStatus: order.Status,
		Title:     order.Status.Title(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/notifications/order-status", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to send status notification",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	c.logger.Info("Status notification sent",
		zap.String("order_id", order.ID),
		zap.String("new_status", string(order.Status)),
	)
	return nil
}

func (c *HTTPNotificationClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if requestID, ok := ctx.Value(middleware.RequestIDKey).(string); ok {
		req.Header.Set(middleware.HeaderRequestID, requestID)
	}
}

// MockNotificationSink records status updates for tests.
type MockNotificationSink struct {
	Updates []orderStatusUpdate
	Err     error
}

func (m *MockNotificationSink) SendOrderStatusUpdate(ctx context.Context, order *models.Order, email, phone string, oldStatus models.OrderStatus) error {
	if m.Err != nil {
		return m.Err
	}
	m.Updates = append(m.Updates, orderStatusUpdate{
		OrderID:   order.ID,
		Email:     email,
		Phone:     phone,
		OldStatus: oldStatus,
		NewStatus: order.Status,
	})
	return nil
}

// Sent returns how many updates were recorded.
func (m *MockNotificationSink) Sent() int { return len(m.Updates) }
