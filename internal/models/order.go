package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is the aggregate root for a customized-goods purchase. Status is only
// mutated through the lifecycle controller; Timeline is append-only and its
// last entry always matches Status.
type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Items             []OrderItem     `json:"items"`
	Status            OrderStatus     `json:"status"`
	TotalAmount       Money           `json:"total_amount"`
	Currency          string          `json:"currency"`
	EstimatedDelivery time.Time       `json:"estimated_completion_date"`
	Timeline          []TimelineEntry `json:"timeline"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// OrderItem is a purchased product with its customization snapshot.
type OrderItem struct {
	ProductID      string            `json:"product_id"`
	ProductName    string            `json:"product_name"`
	Size           string            `json:"size"`
	Accessories    []string          `json:"accessories,omitempty"`
	Customizations map[string]string `json:"customizations,omitempty"`
	Quantity       int               `json:"quantity"`
	UnitPrice      Money             `json:"unit_price"`
	Total          Money             `json:"total"`
}

// TimelineEntry is one status change in the order's append-only history.
type TimelineEntry struct {
	Status      OrderStatus `json:"status"`
	Title       string      `json:"title"`
	Note        string      `json:"note,omitempty"`
	CompletedAt time.Time   `json:"completed_at"`
}

// NewOrderID generates an order identifier.
func NewOrderID() string {
	return "ord_" + uuid.NewString()
}

// ItemsTotal sums the per-item totals.
func (o *Order) ItemsTotal() Money {
	total := Money{}
	for _, item := range o.Items {
		total.Amount = total.Amount.Add(item.Total.Amount)
	}
	return total
}

// CreateOrderRequest is the checkout payload that reaches this subsystem after
// catalog and pricing have computed item totals.
type CreateOrderRequest struct {
	UserID            string      `json:"user_id"`
	Items             []OrderItem `json:"items" binding:"required"`
	TotalAmount       Money       `json:"total_amount"`
	EstimatedDelivery time.Time   `json:"estimated_completion_date"`
}

// UpdateOrderStatusRequest is the admin status transition payload.
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
	Note   string      `json:"note"`
}
