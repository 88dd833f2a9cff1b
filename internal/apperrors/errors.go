package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the payment and order lifecycle taxonomy. Handlers map
// these to HTTP status codes in exactly one place; adapters wrap provider
// failures instead of leaking raw transport errors.
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrUnsupportedMethod    = errors.New("unsupported payment method")
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrAuthenticationFailed = errors.New("webhook authentication failed")
	ErrPaymentNotCompleted  = errors.New("payment not completed")
	ErrProviderUnavailable  = errors.New("payment provider unavailable")
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ProviderUnavailable wraps a transport or provider-side failure so callers can
// match it with errors.Is(err, ErrProviderUnavailable) and retry with backoff.
func ProviderUnavailable(provider string, err error) error {
	return fmt.Errorf("%s: %w: %v", provider, ErrProviderUnavailable, err)
}

// AuthenticationFailed wraps a signature verification failure with the reason.
// The payload must not be acted on once this is returned.
func AuthenticationFailed(provider, reason string) error {
	return fmt.Errorf("%s: %w: %s", provider, ErrAuthenticationFailed, reason)
}
