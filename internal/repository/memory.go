package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/lifecycle"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// MemoryOrderStore is an in-memory store for tests. It mirrors the
// PostgresOrderStore semantics, including the compare-and-set transition and
// single-active-attempt behavior.
type MemoryOrderStore struct {
	mu       sync.Mutex
	orders   map[string]*models.Order
	attempts map[string]*models.PaymentAttempt
}

// NewMemoryOrderStore creates an empty in-memory store.
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders:   make(map[string]*models.Order),
		attempts: make(map[string]*models.PaymentAttempt),
	}
}

func (s *MemoryOrderStore) Create(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = copyOrder(order)
	return nil
}

func (s *MemoryOrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (s *MemoryOrderStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			out = append(out, copyOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryOrderStore) TransitionStatus(ctx context.Context, id string, expected, target models.OrderStatus, entry models.TimelineEntry) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	if order.Status != expected {
		return nil, lifecycle.ErrStatusConflict
	}

	order.Status = target
	order.Timeline = append(order.Timeline, entry)
	order.UpdatedAt = time.Now()
	return copyOrder(order), nil
}

func (s *MemoryOrderStore) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.attempts {
		if existing.OrderID == attempt.OrderID && existing.Active {
			existing.Active = false
			existing.ProviderStatus = "superseded"
		}
	}

	stored := *attempt
	s.attempts[attempt.ProviderHandle] = &stored
	return nil
}

func (s *MemoryOrderStore) GetAttemptByHandle(ctx context.Context, handle string) (*models.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[handle]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	out := *attempt
	return &out, nil
}

func (s *MemoryOrderStore) UpdateAttemptStatus(ctx context.Context, handle, providerStatus string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[handle]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	attempt.ProviderStatus = providerStatus
	attempt.Active = active
	return nil
}

// ActiveAttempts returns the active attempts recorded for an order.
func (s *MemoryOrderStore) ActiveAttempts(orderID string) []*models.PaymentAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PaymentAttempt
	for _, attempt := range s.attempts {
		if attempt.OrderID == orderID && attempt.Active {
			copied := *attempt
			out = append(out, &copied)
		}
	}
	return out
}

func copyOrder(order *models.Order) *models.Order {
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	copied.Timeline = append([]models.TimelineEntry(nil), order.Timeline...)
	return &copied
}
