package models

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusDesignApproved OrderStatus = "design_approved"
	OrderStatusInProduction   OrderStatus = "in_production"
	OrderStatusQualityCheck   OrderStatus = "quality_check"
	OrderStatusPackaging      OrderStatus = "packaging"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// statusRank orders the forward progression. cancelled sits outside the
// forward chain and is handled by the cancellation guard.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:        0,
	OrderStatusConfirmed:      1,
	OrderStatusDesignApproved: 2,
	OrderStatusInProduction:   3,
	OrderStatusQualityCheck:   4,
	OrderStatusPackaging:      5,
	OrderStatusShipped:        6,
	OrderStatusDelivered:      7,
}

var statusTitles = map[OrderStatus]string{
	OrderStatusPending:        "Order Placed",
	OrderStatusConfirmed:      "Payment Confirmed",
	OrderStatusDesignApproved: "Design Approved",
	OrderStatusInProduction:   "In Production",
	OrderStatusQualityCheck:   "Quality Check",
	OrderStatusPackaging:      "Packaging",
	OrderStatusShipped:        "Shipped",
	OrderStatusDelivered:      "Delivered",
	OrderStatusCancelled:      "Order Cancelled",
}

// IsValid reports whether s is one of the nine enumerated statuses.
func (s OrderStatus) IsValid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether no further transition is permitted from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// AtOrBeyond reports whether s has reached other in the forward progression.
// Both statuses must be forward-chain statuses; cancelled never compares.
func (s OrderStatus) AtOrBeyond(other OrderStatus) bool {
	sr, ok := statusRank[s]
	if !ok {
		return false
	}
	or, ok := statusRank[other]
	if !ok {
		return false
	}
	return sr >= or
}

// Title returns the human-readable timeline title for a status.
func (s OrderStatus) Title() string {
	if t, ok := statusTitles[s]; ok {
		return t
	}
	return string(s)
}

// CanCancel reports whether cancellation is permitted from s.
// Orders already paid into production cannot be cancelled, only refunded.
func (s OrderStatus) CanCancel() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}
