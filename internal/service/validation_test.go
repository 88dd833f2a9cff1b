package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

func validCreateRequest() *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		UserID: "user_1",
		Items: []models.OrderItem{
			{
				ProductID:   "prod_hoodie",
				ProductName: "Custom Hoodie",
				Size:        "L",
				Quantity:    2,
				UnitPrice:   models.NewMoney("99.50"),
				Total:       models.NewMoney("199.00"),
			},
			{
				ProductID: "prod_patch",
				Quantity:  1,
				UnitPrice: models.NewMoney("100.00"),
				Total:     models.NewMoney("100.00"),
			},
		},
		TotalAmount: models.NewMoney("299.00"),
	}
}

func TestValidateCreateOrderRequest(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.CreateOrderRequest)
		wantErr string
	}{
		{"valid", func(r *models.CreateOrderRequest) {}, ""},
		{"missing user", func(r *models.CreateOrderRequest) { r.UserID = "" }, "user_id"},
		{"no items", func(r *models.CreateOrderRequest) { r.Items = nil }, "items"},
		{"missing product id", func(r *models.CreateOrderRequest) { r.Items[0].ProductID = "" }, "items"},
		{"zero quantity", func(r *models.CreateOrderRequest) { r.Items[0].Quantity = 0 }, "items"},
		{"negative item total", func(r *models.CreateOrderRequest) { r.Items[0].Total = models.NewMoney("-5.00") }, "items"},
		{"zero total", func(r *models.CreateOrderRequest) { r.TotalAmount = models.Money{} }, "total_amount"},
		{"total mismatch", func(r *models.CreateOrderRequest) { r.TotalAmount = models.NewMoney("300.00") }, "total_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)

			err := ValidateCreateOrderRequest(req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			var validationErr *apperrors.ValidationError
			if assert.ErrorAs(t, err, &validationErr) {
				assert.Equal(t, tt.wantErr, validationErr.Field)
			}
		})
	}
}

func TestValidatePayableOrder(t *testing.T) {
	order := &models.Order{
		Items:       []models.OrderItem{{ProductID: "prod_1", Quantity: 1, Total: models.NewMoney("10.00")}},
		TotalAmount: models.NewMoney("10.00"),
	}
	assert.NoError(t, ValidatePayableOrder(order))

	assert.Error(t, ValidatePayableOrder(&models.Order{TotalAmount: models.NewMoney("10.00")}))
	assert.Error(t, ValidatePayableOrder(&models.Order{
		Items: []models.OrderItem{{ProductID: "prod_1"}},
	}))
}
