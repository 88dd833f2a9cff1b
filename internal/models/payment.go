package models

import "time"

// PaymentStatus is the normalized provider-agnostic payment state.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// PaymentAttempt is one gateway session/transaction created for an order.
// At most one attempt per order is active at a time; superseded attempts are
// deactivated, never rewritten.
type PaymentAttempt struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	Gateway        string    `json:"gateway"`
	ProviderHandle string    `json:"provider_handle"`
	Amount         Money     `json:"amount"`
	Currency       string    `json:"currency"`
	ProviderStatus string    `json:"provider_status"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// PaymentHandle is what a gateway returns on payment creation: either a
// checkout/approval URL or a QR payload, plus the provider's identifier.
type PaymentHandle struct {
	ProviderID string `json:"provider_id"`
	URL        string `json:"url,omitempty"`
	QRCode     string `json:"qr_code,omitempty"`
}

// PaymentResult is the normalized outcome of a verify call or a webhook event.
type PaymentResult struct {
	Success       bool          `json:"success"`
	TransactionID string        `json:"transaction_id"`
	Amount        Money         `json:"amount"`
	Currency      string        `json:"currency"`
	Method        string        `json:"method"`
	Status        PaymentStatus `json:"status"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NormalizedEventType classifies a provider webhook after verification.
type NormalizedEventType string

const (
	EventPaymentCompleted NormalizedEventType = "payment.completed"
	EventPaymentFailed    NormalizedEventType = "payment.failed"
	EventPaymentRefunded  NormalizedEventType = "payment.refunded"
	EventIgnored          NormalizedEventType = "ignored"
)

// NormalizedEvent is the provider-agnostic form of an authenticated webhook
// payload. OrderID comes from the provider metadata the adapter embedded at
// creation time, so no separate correlation lookup is needed.
type NormalizedEvent struct {
	Type          NormalizedEventType `json:"type"`
	OrderID       string              `json:"order_id"`
	TransactionID string              `json:"transaction_id"`
	Amount        Money               `json:"amount"`
	Currency      string              `json:"currency"`
	Method        string              `json:"method"`
	Timestamp     time.Time           `json:"timestamp"`
}

// RefundResult is the outcome of a refund request.
type RefundResult struct {
	RefundID      string    `json:"refund_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        Money     `json:"amount"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}
