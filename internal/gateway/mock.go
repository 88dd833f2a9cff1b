package gateway

import (
	"context"
	"time"

	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// MockGateway is a fake adapter for tests. The registry holds the Gateway
// interface, so tests can substitute this for any real provider.
type MockGateway struct {
	GatewayName  string
	IsConfigured bool

	CreateFunc  func(ctx context.Context, order *models.Order, returnURL, cancelURL string) (*models.PaymentHandle, error)
	VerifyFunc  func(ctx context.Context, providerID string) (*models.PaymentResult, error)
	WebhookFunc func(ctx context.Context, payload []byte, headers map[string]string) (*models.NormalizedEvent, error)
	RefundFunc  func(ctx context.Context, providerID string, amount *models.Money) (*models.RefundResult, error)
}

func (m *MockGateway) Name() string { return m.GatewayName }

func (m *MockGateway) Configured() bool { return m.IsConfigured }

func (m *MockGateway) CreatePayment(ctx context.Context, order *models.Order, returnURL, cancelURL string) (*models.PaymentHandle, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order, returnURL, cancelURL)
	}
	return &models.PaymentHandle{ProviderID: "mock_" + order.ID, URL: "https://pay.example/" + order.ID}, nil
}

func (m *MockGateway) VerifyPayment(ctx context.Context, providerID string) (*models.PaymentResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, providerID)
	}
	return &models.PaymentResult{
		Success:       true,
		TransactionID: providerID,
		Method:        m.GatewayName,
		Status:        models.PaymentStatusCompleted,
		Timestamp:     time.Now(),
	}, nil
}

func (m *MockGateway) HandleWebhook(ctx context.Context, payload []byte, headers map[string]string) (*models.NormalizedEvent, error) {
	if m.WebhookFunc != nil {
		return m.WebhookFunc(ctx, payload, headers)
	}
	return &models.NormalizedEvent{Type: models.EventIgnored, Method: m.GatewayName}, nil
}

func (m *MockGateway) RefundPayment(ctx context.Context, providerID string, amount *models.Money) (*models.RefundResult, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, providerID, amount)
	}
	result := &models.RefundResult{
		RefundID:      "refund_" + providerID,
		TransactionID: providerID,
		Status:        "completed",
		Timestamp:     time.Now(),
	}
	if amount != nil {
		result.Amount = *amount
	}
	return result, nil
}
