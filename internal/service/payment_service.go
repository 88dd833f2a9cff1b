package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/events"
	"github.com/craftlane/craftlane-orders-service/internal/gateway"
	"github.com/craftlane/craftlane-orders-service/internal/lifecycle"
	"github.com/craftlane/craftlane-orders-service/internal/middleware"
	"github.com/craftlane/craftlane-orders-service/internal/models"
	"github.com/craftlane/craftlane-orders-service/internal/repository"
)

// PaymentStore is the attempt-tracking surface the payment service needs on
// top of order reads.
type PaymentStore interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	GetAttemptByHandle(ctx context.Context, handle string) (*models.PaymentAttempt, error)
	UpdateAttemptStatus(ctx context.Context, handle, providerStatus string, active bool) error
}

// Dispatcher is the slice of the gateway registry the service uses; tests
// substitute a registry of mock gateways.
type Dispatcher interface {
	CreatePayment(ctx context.Context, method string, order *models.Order, returnURL, cancelURL string) (*models.PaymentHandle, error)
	VerifyPayment(ctx context.Context, method, providerID string) (*models.PaymentResult, error)
	HandleWebhook(ctx context.Context, method string, payload []byte, headers map[string]string) (*models.NormalizedEvent, error)
	RefundPayment(ctx context.Context, method, providerID string, amount *models.Money) (*models.RefundResult, error)
	SupportedMethods() []string
	MethodInfos() []gateway.MethodInfo
	CalculateFees(amount models.Money, method string) models.Money
}

// PaymentService orchestrates payment creation, verification, webhooks and
// refunds across the gateway registry and the order lifecycle.
type PaymentService struct {
	dispatcher Dispatcher
	store      PaymentStore
	cache      repository.OrderCache
	controller *lifecycle.Controller
	publisher  events.Publisher
	currency   string
	logger     *zap.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	dispatcher Dispatcher,
	store PaymentStore,
	cache repository.OrderCache,
	controller *lifecycle.Controller,
	publisher events.Publisher,
	currency string,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		dispatcher: dispatcher,
		store:      store,
		cache:      cache,
		controller: controller,
		publisher:  publisher,
		currency:   currency,
		logger:     logger,
	}
}

// CreatePayment opens a provider session for the order. The order itself is
// untouched; the attempt is only recorded after the provider call succeeds,
// so a timed-out call leaves nothing behind and the buyer can retry cleanly.
func (s *PaymentService) CreatePayment(ctx context.Context, orderID, method, returnURL, cancelURL string) (*models.PaymentHandle, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := ValidatePayableOrder(order); err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, apperrors.NewValidationError("order", "order is not awaiting payment")
	}

	handle, err := s.dispatcher.CreatePayment(ctx, method, order, returnURL, cancelURL)
	if err != nil {
		middleware.PaymentOperations.WithLabelValues(method, "create", "error").Inc()
		return nil, err
	}

	attempt := &models.PaymentAttempt{
		ID:             "att_" + uuid.NewString(),
		OrderID:        order.ID,
		Gateway:        method,
		ProviderHandle: handle.ProviderID,
		Amount:         order.TotalAmount,
		Currency:       s.currency,
		ProviderStatus: "created",
		Active:         true,
		CreatedAt:      time.Now(),
	}
	if err := s.store.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	middleware.PaymentOperations.WithLabelValues(method, "create", "ok").Inc()
	s.logger.Info("Payment created",
		zap.String("order_id", order.ID),
		zap.String("method", method),
		zap.String("provider_handle", handle.ProviderID),
	)
	return handle, nil
}

// VerifyPayment polls the provider for the session state. On the provider's
// paid state the order is confirmed through the same idempotent transition
// the webhook path uses; anything else returns ErrPaymentNotCompleted and
// leaves the order untouched.
func (s *PaymentService) VerifyPayment(ctx context.Context, method, providerID string) (*models.PaymentResult, error) {
	result, err := s.dispatcher.VerifyPayment(ctx, method, providerID)
	if err != nil {
		middleware.PaymentOperations.WithLabelValues(method, "verify", "error").Inc()
		return nil, err
	}

	if !result.Success {
		middleware.PaymentOperations.WithLabelValues(method, "verify", "pending").Inc()
		return result, fmt.Errorf("%s %s: %w", method, providerID, apperrors.ErrPaymentNotCompleted)
	}

	middleware.PaymentOperations.WithLabelValues(method, "verify", "ok").Inc()

	attempt, err := s.store.GetAttemptByHandle(ctx, providerID)
	if err != nil {
		return nil, err
	}

	if err := s.confirmOrder(ctx, attempt.OrderID, method, providerID, &models.NormalizedEvent{
		Type:          models.EventPaymentCompleted,
		OrderID:       attempt.OrderID,
		TransactionID: result.TransactionID,
		Amount:        result.Amount,
		Currency:      result.Currency,
		Method:        method,
		Timestamp:     result.Timestamp,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ProcessWebhook authenticates and normalizes a provider notification, then
// applies the confirmed transition for completed payments. Re-delivery of an
// already applied event is a successful no-op.
func (s *PaymentService) ProcessWebhook(ctx context.Context, method string, payload []byte, headers map[string]string) (*models.NormalizedEvent, error) {
	event, err := s.dispatcher.HandleWebhook(ctx, method, payload, headers)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthenticationFailed) {
			// Distinct from business rejection: a forged or tampered payload.
			middleware.WebhookEvents.WithLabelValues(method, "auth_failed").Inc()
			s.logger.Warn("Webhook rejected: authentication failed",
				zap.String("method", method),
				zap.Error(err),
			)
		} else {
			middleware.WebhookEvents.WithLabelValues(method, "error").Inc()
		}
		return nil, err
	}

	switch event.Type {
	case models.EventPaymentCompleted:
		if event.OrderID == "" {
			middleware.WebhookEvents.WithLabelValues(method, "unroutable").Inc()
			return nil, apperrors.NewValidationError("order_id", "completed event carries no order reference")
		}
		if err := s.confirmOrder(ctx, event.OrderID, method, event.TransactionID, event); err != nil {
			return nil, err
		}
		middleware.WebhookEvents.WithLabelValues(method, "completed").Inc()

	case models.EventPaymentFailed:
		if err := s.store.UpdateAttemptStatus(ctx, event.TransactionID, "failed", false); err != nil && !errors.Is(err, apperrors.ErrOrderNotFound) {
			s.logger.Error("Failed to mark attempt failed",
				zap.String("provider_handle", event.TransactionID),
				zap.Error(err),
			)
		}
		middleware.WebhookEvents.WithLabelValues(method, "failed").Inc()

	default:
		middleware.WebhookEvents.WithLabelValues(method, "ignored").Inc()
	}

	return event, nil
}

// Refund refunds the payment behind a provider handle, partially when amount
// is non-nil.
func (s *PaymentService) Refund(ctx context.Context, providerID string, amount *models.Money, reason string) (*models.RefundResult, error) {
	attempt, err := s.store.GetAttemptByHandle(ctx, providerID)
	if err != nil {
		return nil, err
	}

	result, err := s.dispatcher.RefundPayment(ctx, attempt.Gateway, providerID, amount)
	if err != nil {
		middleware.PaymentOperations.WithLabelValues(attempt.Gateway, "refund", "error").Inc()
		return nil, err
	}
	middleware.PaymentOperations.WithLabelValues(attempt.Gateway, "refund", "ok").Inc()

	if err := s.store.UpdateAttemptStatus(ctx, providerID, "refunded", false); err != nil {
		s.logger.Error("Failed to mark attempt refunded",
			zap.String("provider_handle", providerID),
			zap.Error(err),
		)
	}

	order, err := s.store.GetByID(ctx, attempt.OrderID)
	if err == nil {
		if err := s.publisher.PublishOrderRefunded(ctx, order, result); err != nil {
			s.logger.Error("Failed to publish refund event",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Refund processed",
		zap.String("order_id", attempt.OrderID),
		zap.String("provider_handle", providerID),
		zap.String("refund_id", result.RefundID),
		zap.String("reason", reason),
	)
	return result, nil
}

// SupportedMethods returns the registered method identifiers.
func (s *PaymentService) SupportedMethods() []string {
	return s.dispatcher.SupportedMethods()
}

// MethodInfos returns capability details for the methods endpoint.
func (s *PaymentService) MethodInfos() []gateway.MethodInfo {
	return s.dispatcher.MethodInfos()
}

// CalculateFees exposes the registry fee table.
func (s *PaymentService) CalculateFees(amount models.Money, method string) models.Money {
	return s.dispatcher.CalculateFees(amount, method)
}

// confirmOrder applies the confirmed transition once per external
// confirmation, finalizes the attempt, and publishes events when the
// transition was actually applied.
func (s *PaymentService) confirmOrder(ctx context.Context, orderID, method, handle string, event *models.NormalizedEvent) error {
	note := fmt.Sprintf("Payment received via %s (%s)", method, event.TransactionID)
	order, applied, err := s.controller.Transition(ctx, orderID, models.OrderStatusConfirmed, note)
	if err != nil {
		return err
	}

	if err := s.store.UpdateAttemptStatus(ctx, handle, "completed", false); err != nil && !errors.Is(err, apperrors.ErrOrderNotFound) {
		s.logger.Error("Failed to finalize payment attempt",
			zap.String("provider_handle", handle),
			zap.Error(err),
		)
	}

	if !applied {
		return nil
	}

	if err := s.cache.Delete(ctx, orderID); err != nil {
		s.logger.Warn("Failed to invalidate order cache", zap.String("order_id", orderID), zap.Error(err))
	}

	if err := s.publisher.PublishPaymentCompleted(ctx, order, event); err != nil {
		s.logger.Error("Failed to publish payment completed event",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, order, models.OrderStatusPending); err != nil {
		s.logger.Error("Failed to publish status change event",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}

	return nil
}
