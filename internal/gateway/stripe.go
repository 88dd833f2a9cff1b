package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// signatureTolerance bounds the age of a stripe-signature timestamp to guard
// against replayed webhook payloads.
const signatureTolerance = 5 * time.Minute

// StripeGateway implements the card-checkout flow through Stripe Checkout
// Sessions. Stripe amounts are in minor units (cents).
type StripeGateway struct {
	cfg        config.StripeConfig
	currency   string
	httpClient *http.Client
	logger     *zap.Logger

	// now is swappable for signature tolerance tests.
	now func() time.Time
}

// NewStripeGateway creates the Stripe adapter.
func NewStripeGateway(cfg config.StripeConfig, currency string, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{
		cfg:        cfg,
		currency:   strings.ToLower(currency),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) Configured() bool { return g.cfg.Configured() }

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
	PaymentIntent string `json:"payment_intent"`
	Created       int64  `json:"created"`
	Metadata      struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
}

// CreatePayment opens a Checkout Session. The order id rides in session
// metadata so checkout.session.completed events carry it back.
func (g *StripeGateway) CreatePayment(ctx context.Context, order *models.Order, returnURL, cancelURL string) (*models.PaymentHandle, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", returnURL)
	form.Set("cancel_url", cancelURL)
	form.Set("metadata[order_id]", order.ID)
	form.Set("client_reference_id", order.ID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", g.currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(order.TotalAmount.MinorUnits(), 10))
	form.Set("line_items[0][price_data][product_data][name]", fmt.Sprintf("Order %s", order.ID))

	var session stripeSession
	if err := g.post(ctx, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}

	g.logger.Info("Stripe checkout session created",
		zap.String("order_id", order.ID),
		zap.String("session_id", session.ID),
	)

	return &models.PaymentHandle{
		ProviderID: session.ID,
		URL:        session.URL,
	}, nil
}

// VerifyPayment polls the session; only payment_status "paid" is success.
func (g *StripeGateway) VerifyPayment(ctx context.Context, providerID string) (*models.PaymentResult, error) {
	session, err := g.getSession(ctx, providerID)
	if err != nil {
		return nil, err
	}

	result := &models.PaymentResult{
		TransactionID: session.ID,
		Amount:        models.NewMoneyFromMinorUnits(session.AmountTotal),
		Currency:      strings.ToUpper(session.Currency),
		Method:        g.Name(),
		Timestamp:     time.Unix(session.Created, 0),
	}

	switch session.PaymentStatus {
	case "paid":
		result.Success = true
		result.Status = models.PaymentStatusCompleted
	case "unpaid", "no_payment_required":
		result.Status = models.PaymentStatusPending
	default:
		result.Status = models.PaymentStatusFailed
	}

	return result, nil
}

// HandleWebhook verifies the stripe-signature header (t=<unix>,v1=<hmac>) and
// normalizes checkout.session events.
func (g *StripeGateway) HandleWebhook(ctx context.Context, payload []byte, headers map[string]string) (*models.NormalizedEvent, error) {
	sigHeader := headers["stripe-signature"]
	if err := g.verifySignature(payload, sigHeader); err != nil {
		return nil, err
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			Object stripeSession `json:"object"`
		} `json:"data"`
		Created int64 `json:"created"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("stripe: malformed webhook payload: %w", err)
	}

	session := event.Data.Object
	normalized := &models.NormalizedEvent{
		Type:          models.EventIgnored,
		OrderID:       session.Metadata.OrderID,
		TransactionID: session.ID,
		Amount:        models.NewMoneyFromMinorUnits(session.AmountTotal),
		Currency:      strings.ToUpper(session.Currency),
		Method:        g.Name(),
		Timestamp:     time.Unix(event.Created, 0),
	}

	switch event.Type {
	case "checkout.session.completed":
		if session.PaymentStatus == "paid" {
			normalized.Type = models.EventPaymentCompleted
		}
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		normalized.Type = models.EventPaymentFailed
	case "charge.refunded":
		normalized.Type = models.EventPaymentRefunded
	}

	return normalized, nil
}

// RefundPayment refunds through the session's payment intent.
func (g *StripeGateway) RefundPayment(ctx context.Context, providerID string, amount *models.Money) (*models.RefundResult, error) {
	session, err := g.getSession(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if session.PaymentIntent == "" {
		return nil, fmt.Errorf("stripe: session %s has no payment intent: %w", providerID, apperrors.ErrPaymentNotCompleted)
	}

	form := url.Values{}
	form.Set("payment_intent", session.PaymentIntent)
	if amount != nil {
		form.Set("amount", strconv.FormatInt(amount.MinorUnits(), 10))
	}

	var refund struct {
		ID      string `json:"id"`
		Amount  int64  `json:"amount"`
		Status  string `json:"status"`
		Created int64  `json:"created"`
	}
	if err := g.post(ctx, "/v1/refunds", form, &refund); err != nil {
		return nil, err
	}

	g.logger.Info("Stripe refund created",
		zap.String("session_id", providerID),
		zap.String("refund_id", refund.ID),
	)

	return &models.RefundResult{
		RefundID:      refund.ID,
		TransactionID: providerID,
		Amount:        models.NewMoneyFromMinorUnits(refund.Amount),
		Status:        refund.Status,
		Timestamp:     time.Unix(refund.Created, 0),
	}, nil
}

func (g *StripeGateway) verifySignature(payload []byte, header string) error {
	if header == "" {
		return apperrors.AuthenticationFailed(g.Name(), "missing stripe-signature header")
	}

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return apperrors.AuthenticationFailed(g.Name(), "malformed timestamp")
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return apperrors.AuthenticationFailed(g.Name(), "incomplete signature header")
	}

	age := g.now().Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return apperrors.AuthenticationFailed(g.Name(), "timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(g.cfg.WebhookSecret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}

	return apperrors.AuthenticationFailed(g.Name(), "signature mismatch")
}

func (g *StripeGateway) getSession(ctx context.Context, id string) (*stripeSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/v1/checkout/sessions/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)

	var session stripeSession
	if err := g.do(req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return g.do(req, out)
}

func (g *StripeGateway) do(req *http.Request, out interface{}) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return apperrors.ProviderUnavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return apperrors.ProviderUnavailable(g.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stripe: request failed with status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
