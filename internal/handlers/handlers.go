package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/service"
)

// Handlers holds all HTTP handlers for the orders service.
type Handlers struct {
	orderService   *service.OrderService
	paymentService *service.PaymentService
	config         *config.Config
	logger         *zap.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	cfg *config.Config,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		orderService:   orderService,
		paymentService: paymentService,
		config:         cfg,
		logger:         logger,
	}
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

// handleError maps the error taxonomy to HTTP codes in one place.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var validationErr *apperrors.ValidationError
	switch {
	case errors.Is(err, apperrors.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, "OrderNotFound", "order not found")
	case errors.Is(err, apperrors.ErrInvalidTransition):
		respondError(c, http.StatusConflict, "InvalidTransition", "status transition not permitted")
	case errors.Is(err, apperrors.ErrUnsupportedMethod):
		respondError(c, http.StatusBadRequest, "UnsupportedMethod", "payment method not supported")
	case errors.Is(err, apperrors.ErrGatewayNotConfigured):
		respondError(c, http.StatusServiceUnavailable, "GatewayNotConfigured", "payment method not available")
	case errors.Is(err, apperrors.ErrAuthenticationFailed):
		respondError(c, http.StatusUnauthorized, "AuthenticationFailed", "webhook authentication failed")
	case errors.Is(err, apperrors.ErrPaymentNotCompleted):
		respondError(c, http.StatusBadRequest, "PaymentNotCompleted", "payment has not completed")
	case errors.Is(err, apperrors.ErrProviderUnavailable):
		respondError(c, http.StatusBadGateway, "ProviderUnavailable", "payment provider unavailable, retry later")
	case errors.As(err, &validationErr):
		respondError(c, http.StatusBadRequest, "ValidationError", validationErr.Error())
	default:
		respondError(c, http.StatusInternalServerError, "InternalError", "internal server error")
	}
}
