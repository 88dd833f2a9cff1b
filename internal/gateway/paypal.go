package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// PayPalGateway implements the redirect-approval flow through the v2 Checkout
// Orders API. PayPal amounts are major-unit decimal strings.
type PayPalGateway struct {
	cfg        config.PayPalConfig
	currency   string
	httpClient *http.Client
	logger     *zap.Logger

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalGateway creates the PayPal adapter.
func NewPayPalGateway(cfg config.PayPalConfig, currency string, logger *zap.Logger) *PayPalGateway {
	return &PayPalGateway{
		cfg:        cfg,
		currency:   strings.ToUpper(currency),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (g *PayPalGateway) Name() string { return "paypal" }

func (g *PayPalGateway) Configured() bool { return g.cfg.Configured() }

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalCapture struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Amount paypalAmount `json:"amount"`
}

type paypalOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		CustomID string       `json:"custom_id"`
		Amount   paypalAmount `json:"amount"`
		Payments struct {
			Captures []paypalCapture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreatePayment creates a v2 checkout order with the order id as custom_id and
// returns the buyer approval link.
func (g *PayPalGateway) CreatePayment(ctx context.Context, order *models.Order, returnURL, cancelURL string) (*models.PaymentHandle, error) {
	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"custom_id": order.ID,
			"amount": paypalAmount{
				CurrencyCode: g.currency,
				Value:        order.TotalAmount.String(),
			},
		}},
		"application_context": map[string]string{
			"return_url": returnURL,
			"cancel_url": cancelURL,
		},
	}

	var created paypalOrder
	if err := g.call(ctx, http.MethodPost, "/v2/checkout/orders", body, &created); err != nil {
		return nil, err
	}

	handle := &models.PaymentHandle{ProviderID: created.ID}
	for _, link := range created.Links {
		if link.Rel == "approve" {
			handle.URL = link.Href
		}
	}

	g.logger.Info("PayPal order created",
		zap.String("order_id", order.ID),
		zap.String("paypal_order_id", created.ID),
	)

	return handle, nil
}

// VerifyPayment polls the order and captures it once the buyer has approved.
// Only a COMPLETED order (captured funds) counts as success.
func (g *PayPalGateway) VerifyPayment(ctx context.Context, providerID string) (*models.PaymentResult, error) {
	var order paypalOrder
	if err := g.call(ctx, http.MethodGet, "/v2/checkout/orders/"+providerID, nil, &order); err != nil {
		return nil, err
	}

	// Buyer approved but funds not yet captured; capture now so the return
	// navigation completes the payment.
	if order.Status == "APPROVED" {
		if err := g.call(ctx, http.MethodPost, "/v2/checkout/orders/"+providerID+"/capture", struct{}{}, &order); err != nil {
			return nil, err
		}
	}

	result := &models.PaymentResult{
		TransactionID: order.ID,
		Currency:      g.currency,
		Method:        g.Name(),
		Timestamp:     time.Now(),
	}
	if len(order.PurchaseUnits) > 0 {
		result.Amount = models.NewMoney(order.PurchaseUnits[0].Amount.Value)
		result.Currency = order.PurchaseUnits[0].Amount.CurrencyCode
	}

	switch order.Status {
	case "COMPLETED":
		result.Success = true
		result.Status = models.PaymentStatusCompleted
	case "CREATED", "SAVED", "PAYER_ACTION_REQUIRED":
		result.Status = models.PaymentStatusPending
	case "APPROVED":
		result.Status = models.PaymentStatusProcessing
	default:
		result.Status = models.PaymentStatusFailed
	}

	return result, nil
}

type paypalWebhookEvent struct {
	ID         string `json:"id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Resource   struct {
		ID       string       `json:"id"`
		CustomID string       `json:"custom_id"`
		Amount   paypalAmount `json:"amount"`
	} `json:"resource"`
}

// HandleWebhook authenticates the delivery through PayPal's
// verify-webhook-signature endpoint before normalizing the event.
func (g *PayPalGateway) HandleWebhook(ctx context.Context, payload []byte, headers map[string]string) (*models.NormalizedEvent, error) {
	if err := g.verifySignature(ctx, payload, headers); err != nil {
		return nil, err
	}

	var event paypalWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("paypal: malformed webhook payload: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, event.CreateTime)
	if err != nil {
		ts = time.Now()
	}

	normalized := &models.NormalizedEvent{
		Type:          models.EventIgnored,
		OrderID:       event.Resource.CustomID,
		TransactionID: event.Resource.ID,
		Amount:        models.NewMoney(event.Resource.Amount.Value),
		Currency:      event.Resource.Amount.CurrencyCode,
		Method:        g.Name(),
		Timestamp:     ts,
	}

	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		normalized.Type = models.EventPaymentCompleted
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		normalized.Type = models.EventPaymentFailed
	case "PAYMENT.CAPTURE.REFUNDED":
		normalized.Type = models.EventPaymentRefunded
	}

	return normalized, nil
}

// RefundPayment refunds the capture behind the checkout order.
func (g *PayPalGateway) RefundPayment(ctx context.Context, providerID string, amount *models.Money) (*models.RefundResult, error) {
	var order paypalOrder
	if err := g.call(ctx, http.MethodGet, "/v2/checkout/orders/"+providerID, nil, &order); err != nil {
		return nil, err
	}

	var captureID string
	for _, unit := range order.PurchaseUnits {
		if len(unit.Payments.Captures) > 0 {
			captureID = unit.Payments.Captures[0].ID
		}
	}
	if captureID == "" {
		return nil, fmt.Errorf("paypal: order %s has no capture: %w", providerID, apperrors.ErrPaymentNotCompleted)
	}

	var body interface{} = struct{}{}
	if amount != nil {
		body = map[string]interface{}{
			"amount": paypalAmount{CurrencyCode: g.currency, Value: amount.String()},
		}
	}

	var refund struct {
		ID     string       `json:"id"`
		Status string       `json:"status"`
		Amount paypalAmount `json:"amount"`
	}
	if err := g.call(ctx, http.MethodPost, "/v2/payments/captures/"+captureID+"/refund", body, &refund); err != nil {
		return nil, err
	}

	g.logger.Info("PayPal refund created",
		zap.String("paypal_order_id", providerID),
		zap.String("refund_id", refund.ID),
	)

	return &models.RefundResult{
		RefundID:      refund.ID,
		TransactionID: providerID,
		Amount:        models.NewMoney(refund.Amount.Value),
		Status:        refund.Status,
		Timestamp:     time.Now(),
	}, nil
}

func (g *PayPalGateway) verifySignature(ctx context.Context, payload []byte, headers map[string]string) error {
	required := []string{
		"paypal-auth-algo",
		"paypal-cert-url",
		"paypal-transmission-id",
		"paypal-transmission-sig",
		"paypal-transmission-time",
	}
	for _, h := range required {
		if headers[h] == "" {
			return apperrors.AuthenticationFailed(g.Name(), "missing "+h+" header")
		}
	}

	body := map[string]interface{}{
		"auth_algo":         headers["paypal-auth-algo"],
		"cert_url":          headers["paypal-cert-url"],
		"transmission_id":   headers["paypal-transmission-id"],
		"transmission_sig":  headers["paypal-transmission-sig"],
		"transmission_time": headers["paypal-transmission-time"],
		"webhook_id":        g.cfg.WebhookID,
		"webhook_event":     json.RawMessage(payload),
	}

	var verification struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := g.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", body, &verification); err != nil {
		return err
	}

	if verification.VerificationStatus != "SUCCESS" {
		return apperrors.AuthenticationFailed(g.Name(), "verification status "+verification.VerificationStatus)
	}

	return nil
}

func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	g.tokenMu.Lock()
	defer g.tokenMu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.cfg.ClientID, g.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", apperrors.ProviderUnavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.ProviderUnavailable(g.Name(), fmt.Errorf("token request status %d", resp.StatusCode))
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", err
	}

	g.accessToken = token.AccessToken
	// Refresh one minute early.
	g.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn-60) * time.Second)

	return g.accessToken, nil
}

func (g *PayPalGateway) call(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := g.token(ctx)
	if err != nil {
		return err
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return apperrors.ProviderUnavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return apperrors.ProviderUnavailable(g.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("paypal: %s %s failed with status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
