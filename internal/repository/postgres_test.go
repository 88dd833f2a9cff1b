package repository

import (
	"context"
	"testing"
	"time"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/lifecycle"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

func TestPostgresOrderStore_Create(t *testing.T) {
	t.Skip("Integration test - requires database")
}

func TestPostgresOrderStore_TransitionStatus(t *testing.T) {
	t.Skip("Integration test - requires database")
}

func TestPostgresOrderStore_Attempts(t *testing.T) {
	t.Skip("Integration test - requires database")
}

func seedMemoryOrder(t *testing.T, store *MemoryOrderStore, status models.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:          models.NewOrderID(),
		UserID:      "user_1",
		Status:      status,
		TotalAmount: models.NewMoney("100.00"),
		Timeline: []models.TimelineEntry{{
			Status:      status,
			Title:       status.Title(),
			CompletedAt: time.Now(),
		}},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := store.Create(context.Background(), order); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return order
}

func TestMemoryStoreTransitionCompareAndSet(t *testing.T) {
	store := NewMemoryOrderStore()
	order := seedMemoryOrder(t, store, models.OrderStatusPending)

	entry := models.TimelineEntry{
		Status:      models.OrderStatusConfirmed,
		Title:       models.OrderStatusConfirmed.Title(),
		CompletedAt: time.Now(),
	}

	updated, err := store.TransitionStatus(context.Background(), order.ID, models.OrderStatusPending, models.OrderStatusConfirmed, entry)
	if err != nil {
		t.Fatalf("TransitionStatus() failed: %v", err)
	}
	if updated.Status != models.OrderStatusConfirmed {
		t.Errorf("Expected status confirmed, got %s", updated.Status)
	}
	if len(updated.Timeline) != 2 {
		t.Errorf("Expected 2 timeline entries, got %d", len(updated.Timeline))
	}

	// Second writer still expecting pending must lose.
	_, err = store.TransitionStatus(context.Background(), order.ID, models.OrderStatusPending, models.OrderStatusCancelled, entry)
	if err != lifecycle.ErrStatusConflict {
		t.Errorf("Expected ErrStatusConflict, got %v", err)
	}
}

func TestMemoryStoreTransitionUnknownOrder(t *testing.T) {
	store := NewMemoryOrderStore()

	_, err := store.TransitionStatus(context.Background(), "ord_missing", models.OrderStatusPending, models.OrderStatusConfirmed, models.TimelineEntry{})
	if err != apperrors.ErrOrderNotFound {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestMemoryStoreGetByIDReturnsCopy(t *testing.T) {
	store := NewMemoryOrderStore()
	order := seedMemoryOrder(t, store, models.OrderStatusPending)

	got, err := store.GetByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	got.Status = models.OrderStatusCancelled
	got.Timeline = append(got.Timeline, models.TimelineEntry{})

	again, err := store.GetByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if again.Status != models.OrderStatusPending {
		t.Error("Mutating a returned order must not affect the store")
	}
	if len(again.Timeline) != 1 {
		t.Errorf("Expected 1 timeline entry, got %d", len(again.Timeline))
	}
}

func TestMemoryStoreAttemptSupersession(t *testing.T) {
	store := NewMemoryOrderStore()
	order := seedMemoryOrder(t, store, models.OrderStatusPending)

	for _, handle := range []string{"sess_1", "sess_2", "sess_3"} {
		err := store.CreateAttempt(context.Background(), &models.PaymentAttempt{
			ID:             "att_" + handle,
			OrderID:        order.ID,
			Gateway:        "stripe",
			ProviderHandle: handle,
			Active:         true,
			CreatedAt:      time.Now(),
		})
		if err != nil {
			t.Fatalf("CreateAttempt(%s) failed: %v", handle, err)
		}
	}

	active := store.ActiveAttempts(order.ID)
	if len(active) != 1 {
		t.Fatalf("Expected 1 active attempt, got %d", len(active))
	}
	if active[0].ProviderHandle != "sess_3" {
		t.Errorf("Expected sess_3 active, got %s", active[0].ProviderHandle)
	}

	superseded, err := store.GetAttemptByHandle(context.Background(), "sess_1")
	if err != nil {
		t.Fatalf("GetAttemptByHandle() failed: %v", err)
	}
	if superseded.Active || superseded.ProviderStatus != "superseded" {
		t.Errorf("Expected sess_1 superseded, got active=%v status=%s", superseded.Active, superseded.ProviderStatus)
	}
}

func TestMemoryStoreListByUserNewestFirst(t *testing.T) {
	store := NewMemoryOrderStore()

	base := time.Now()
	for i := 0; i < 3; i++ {
		order := &models.Order{
			ID:        models.NewOrderID(),
			UserID:    "user_1",
			Status:    models.OrderStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Create(context.Background(), order); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	orders, err := store.ListByUser(context.Background(), "user_1", 2, 0)
	if err != nil {
		t.Fatalf("ListByUser() failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("Expected 2 orders, got %d", len(orders))
	}
	if !orders[0].CreatedAt.After(orders[1].CreatedAt) {
		t.Error("Expected newest order first")
	}
}
