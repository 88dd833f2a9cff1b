package service

import (
	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// ValidateCreateOrderRequest checks the checkout payload before anything is
// persisted. Pricing happens upstream; the one money rule enforced here is
// that the stated total equals the sum of item totals.
func ValidateCreateOrderRequest(req *models.CreateOrderRequest) error {
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id", "user_id is required")
	}
	if len(req.Items) == 0 {
		return apperrors.NewValidationError("items", "order must contain at least one item")
	}

	sum := models.Money{}
	for i, item := range req.Items {
		if item.ProductID == "" {
			return apperrors.NewValidationError("items", "item is missing product_id")
		}
		if item.Quantity <= 0 {
			return apperrors.NewValidationError("items", "item quantity must be positive")
		}
		if !item.Total.IsPositive() {
			return apperrors.NewValidationError("items", "item total must be positive")
		}
		sum.Amount = sum.Amount.Add(req.Items[i].Total.Amount)
	}

	if !req.TotalAmount.IsPositive() {
		return apperrors.NewValidationError("total_amount", "total amount must be positive")
	}
	if !req.TotalAmount.Equal(sum) {
		return apperrors.NewValidationError("total_amount", "total amount does not equal sum of item totals")
	}

	return nil
}

// ValidatePayableOrder checks an order can be sent to a payment provider.
func ValidatePayableOrder(order *models.Order) error {
	if len(order.Items) == 0 {
		return apperrors.NewValidationError("order", "order has no items")
	}
	if !order.TotalAmount.IsPositive() {
		return apperrors.NewValidationError("order", "order total must be positive")
	}
	return nil
}
