package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/events"
	"github.com/craftlane/craftlane-orders-service/internal/lifecycle"
	"github.com/craftlane/craftlane-orders-service/internal/models"
	"github.com/craftlane/craftlane-orders-service/internal/repository"
)

// OrderRepository is the durable store surface the order service needs.
type OrderRepository interface {
	lifecycle.OrderStore
	Create(ctx context.Context, order *models.Order) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
}

// defaultProductionDays estimates completion for customized goods when the
// caller provides no date.
const defaultProductionDays = 14

// OrderService handles order business logic outside the payment flow.
type OrderService struct {
	repo       OrderRepository
	cache      repository.OrderCache
	controller *lifecycle.Controller
	publisher  events.Publisher
	currency   string
	logger     *zap.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	repo OrderRepository,
	cache repository.OrderCache,
	controller *lifecycle.Controller,
	publisher events.Publisher,
	currency string,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		repo:       repo,
		cache:      cache,
		controller: controller,
		publisher:  publisher,
		currency:   currency,
		logger:     logger,
	}
}

// CreateOrder persists a new order in pending state with its first timeline
// entry.
func (s *OrderService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	if err := ValidateCreateOrderRequest(req); err != nil {
		return nil, err
	}

	now := time.Now()
	estimated := req.EstimatedDelivery
	if estimated.IsZero() {
		estimated = now.AddDate(0, 0, defaultProductionDays)
	}

	order := &models.Order{
		ID:                models.NewOrderID(),
		UserID:            req.UserID,
		Items:             req.Items,
		Status:            models.OrderStatusPending,
		TotalAmount:       req.TotalAmount,
		Currency:          s.currency,
		EstimatedDelivery: estimated,
		Timeline: []models.TimelineEntry{{
			Status:      models.OrderStatusPending,
			Title:       models.OrderStatusPending.Title(),
			CompletedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, order); err != nil {
		s.logger.Warn("Failed to cache order", zap.String("order_id", order.ID), zap.Error(err))
	}

	if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
		s.logger.Error("Failed to publish order created event",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("total", order.TotalAmount.String()),
	)
	return order, nil
}

// GetOrder retrieves an order, cache first.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if cached, err := s.cache.Get(ctx, id); err == nil && cached != nil {
		return cached, nil
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, order); err != nil {
		s.logger.Warn("Failed to cache order", zap.String("order_id", id), zap.Error(err))
	}

	return order, nil
}

// ListOrders retrieves a user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// UpdateStatus applies an order status transition through the lifecycle
// controller, then invalidates the cache and publishes the change. The event
// stream carries the notification side effect, so a failed publish is logged
// and never rolls back the transition.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, target models.OrderStatus, note string) (*models.Order, error) {
	previous, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order, applied, err := s.controller.Transition(ctx, orderID, target, note)
	if err != nil {
		return nil, err
	}

	if !applied {
		return order, nil
	}

	if err := s.cache.Delete(ctx, orderID); err != nil {
		s.logger.Warn("Failed to invalidate order cache", zap.String("order_id", orderID), zap.Error(err))
	}

	if err := s.publisher.PublishOrderStatusChanged(ctx, order, previous.Status); err != nil {
		s.logger.Error("Failed to publish status change event",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}

	return order, nil
}
