package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

const stripeTestSecret = "whsec_test_secret"

func testStripeGateway(baseURL string) *StripeGateway {
	return NewStripeGateway(config.StripeConfig{
		BaseURL:       baseURL,
		SecretKey:     "sk_test_123",
		WebhookSecret: stripeTestSecret,
		Timeout:       5 * time.Second,
	}, "usd", zap.NewNop())
}

func stripeSignHeader(t *testing.T, payload []byte, at time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(stripeTestSecret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeCreatePayment(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())

		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		fmt.Fprint(w, `{"id":"cs_test_1","url":"https://checkout.stripe.com/pay/cs_test_1"}`)
	}))
	defer server.Close()

	g := testStripeGateway(server.URL)
	order := &models.Order{ID: "ord_1", TotalAmount: models.NewMoney("299.00")}

	handle, err := g.CreatePayment(context.Background(), order, "https://shop/return", "https://shop/cancel")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", handle.ProviderID)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_1", handle.URL)

	assert.Equal(t, "ord_1", gotForm["metadata[order_id]"])
	assert.Equal(t, "29900", gotForm["line_items[0][price_data][unit_amount]"], "amount must be in minor units")
	assert.Equal(t, "usd", gotForm["line_items[0][price_data][currency]"])
}

func TestStripeVerifyPayment(t *testing.T) {
	tests := []struct {
		paymentStatus string
		success       bool
		status        models.PaymentStatus
	}{
		{"paid", true, models.PaymentStatusCompleted},
		{"unpaid", false, models.PaymentStatusPending},
		{"canceled", false, models.PaymentStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.paymentStatus, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)
				fmt.Fprintf(w, `{"id":"cs_test_1","payment_status":%q,"amount_total":29900,"currency":"usd","created":1700000000}`, tt.paymentStatus)
			}))
			defer server.Close()

			g := testStripeGateway(server.URL)
			result, err := g.VerifyPayment(context.Background(), "cs_test_1")
			require.NoError(t, err)
			assert.Equal(t, tt.success, result.Success)
			assert.Equal(t, tt.status, result.Status)
			assert.Equal(t, "299.00", result.Amount.String())
			assert.Equal(t, "USD", result.Currency)
		})
	}
}

func TestStripeWebhookValidSignature(t *testing.T) {
	payload := []byte(`{
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_test_1",
			"payment_status": "paid",
			"amount_total": 29900,
			"currency": "usd",
			"metadata": {"order_id": "ord_1"}
		}}
	}`)

	g := testStripeGateway("")
	now := time.Now()
	g.now = func() time.Time { return now }

	event, err := g.HandleWebhook(context.Background(), payload, map[string]string{
		"stripe-signature": stripeSignHeader(t, payload, now),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventPaymentCompleted, event.Type)
	assert.Equal(t, "ord_1", event.OrderID)
	assert.Equal(t, "cs_test_1", event.TransactionID)
	assert.Equal(t, "299.00", event.Amount.String())
}

func TestStripeWebhookCompletedButUnpaidIsIgnored(t *testing.T) {
	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_status":"unpaid"}}}`)

	g := testStripeGateway("")
	now := time.Now()
	g.now = func() time.Time { return now }

	event, err := g.HandleWebhook(context.Background(), payload, map[string]string{
		"stripe-signature": stripeSignHeader(t, payload, now),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventIgnored, event.Type)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	payload := []byte(`{"type":"checkout.session.completed"}`)
	g := testStripeGateway("")
	now := time.Now()
	g.now = func() time.Time { return now }

	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), "deadbeef")
	_, err := g.HandleWebhook(context.Background(), payload, map[string]string{"stripe-signature": header})
	assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestStripeWebhookRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"type":"checkout.session.completed"}`)
	g := testStripeGateway("")
	now := time.Now()
	g.now = func() time.Time { return now }

	header := stripeSignHeader(t, payload, now)
	tampered := []byte(`{"type":"charge.refunded"}`)
	_, err := g.HandleWebhook(context.Background(), tampered, map[string]string{"stripe-signature": header})
	assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestStripeWebhookRejectsMissingHeader(t *testing.T) {
	g := testStripeGateway("")
	_, err := g.HandleWebhook(context.Background(), []byte(`{}`), map[string]string{})
	assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestStripeWebhookRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"type":"checkout.session.completed"}`)
	g := testStripeGateway("")
	now := time.Now()
	g.now = func() time.Time { return now }

	header := stripeSignHeader(t, payload, now.Add(-6*time.Minute))
	_, err := g.HandleWebhook(context.Background(), payload, map[string]string{"stripe-signature": header})
	assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestStripeRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/checkout/sessions/cs_test_1":
			fmt.Fprint(w, `{"id":"cs_test_1","payment_status":"paid","payment_intent":"pi_1"}`)
		case "/v1/refunds":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "pi_1", r.PostForm.Get("payment_intent"))
			require.Equal(t, "5000", r.PostForm.Get("amount"))
			fmt.Fprint(w, `{"id":"re_1","amount":5000,"status":"succeeded","created":1700000000}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	g := testStripeGateway(server.URL)
	amount := models.NewMoney("50.00")

	result, err := g.RefundPayment(context.Background(), "cs_test_1", &amount)
	require.NoError(t, err)
	assert.Equal(t, "re_1", result.RefundID)
	assert.Equal(t, "50.00", result.Amount.String())
}

func TestStripeProviderUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	g := testStripeGateway(server.URL)
	_, err := g.VerifyPayment(context.Background(), "cs_test_1")
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}
