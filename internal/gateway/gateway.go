package gateway

import (
	"context"

	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// Gateway is the uniform payment contract implemented once per provider.
// Implementations embed the order id in provider metadata at creation time so
// webhook events correlate back to the order without a lookup table, and they
// convert between provider minor units and major-unit decimals at this
// boundary.
type Gateway interface {
	// Name returns the method identifier the registry keys on.
	Name() string

	// Configured reports whether credentials are present. Unconfigured
	// gateways stay registered so capability queries keep working.
	Configured() bool

	// CreatePayment opens a provider session for the order and returns its
	// handle (checkout URL or QR payload). The order itself is not touched.
	CreatePayment(ctx context.Context, order *models.Order, returnURL, cancelURL string) (*models.PaymentHandle, error)

	// VerifyPayment polls the provider for the session/transaction state.
	// Anything short of the provider's paid state yields Success=false.
	VerifyPayment(ctx context.Context, providerID string) (*models.PaymentResult, error)

	// HandleWebhook authenticates the raw payload against the provider
	// signature before interpreting it. Authentication failure returns
	// apperrors.ErrAuthenticationFailed and the payload is never acted on.
	HandleWebhook(ctx context.Context, payload []byte, headers map[string]string) (*models.NormalizedEvent, error)

	// RefundPayment refunds a captured payment, partially when amount is
	// non-nil, fully otherwise.
	RefundPayment(ctx context.Context, providerID string, amount *models.Money) (*models.RefundResult, error)
}
