package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/apperrors"
	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// Signature headers extracted per provider. WeChat and Alipay carry their
// signatures inside the payload itself.
var providerSignatureHeaders = map[string][]string{
	"stripe": {"stripe-signature"},
	"paypal": {
		"paypal-auth-algo",
		"paypal-cert-url",
		"paypal-transmission-id",
		"paypal-transmission-sig",
		"paypal-transmission-time",
	},
	"wechat": {},
	"alipay": {},
}

// CreatePayment handles POST /payments/create
func (h *Handlers) CreatePayment(c *gin.Context) {
	var req struct {
		OrderID   string `json:"orderId" binding:"required"`
		Method    string `json:"method" binding:"required"`
		ReturnURL string `json:"returnUrl"`
		CancelURL string `json:"cancelUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}

	handle, err := h.paymentService.CreatePayment(c.Request.Context(), req.OrderID, req.Method, req.ReturnURL, req.CancelURL)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"paymentId": handle.ProviderID,
		"url":       handle.URL,
		"qrCode":    handle.QRCode,
	})
}

// VerifyPayment handles GET /payments/verify/:id?method=
func (h *Handlers) VerifyPayment(c *gin.Context) {
	providerID := c.Param("id")
	method := c.Query("method")
	if method == "" {
		respondError(c, http.StatusBadRequest, "ValidationError", "method query parameter is required")
		return
	}

	result, err := h.paymentService.VerifyPayment(c.Request.Context(), method, providerID)
	if err != nil {
		// A still-pending session is a normal outcome for the buyer's return
		// navigation, not a transport failure.
		if errors.Is(err, apperrors.ErrPaymentNotCompleted) {
			c.JSON(http.StatusOK, gin.H{
				"success": false,
				"error":   gin.H{"code": "PaymentNotCompleted", "message": "payment has not completed"},
				"data":    result,
			})
			return
		}
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

// Webhook handles POST /payments/webhook/:provider
//
// The provider is acknowledged with 200 once the event has been applied;
// downstream notification runs off the event stream and can never turn a
// processed delivery into a provider-side retry.
func (h *Handlers) Webhook(c *gin.Context) {
	provider := strings.ToLower(c.Param("provider"))
	signatureHeaders, ok := providerSignatureHeaders[provider]
	if !ok {
		respondError(c, http.StatusBadRequest, "UnsupportedMethod", "unknown webhook provider")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ValidationError", "failed to read request body")
		return
	}

	headers := make(map[string]string, len(signatureHeaders))
	for _, name := range signatureHeaders {
		headers[name] = c.GetHeader(name)
	}

	event, err := h.paymentService.ProcessWebhook(c.Request.Context(), provider, payload, headers)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			// Business-level rejection (e.g. payment completed for a
			// cancelled order). Acknowledge so the provider stops retrying;
			// the mismatch is already logged for reconciliation.
			h.logger.Warn("Webhook event not applicable to order state",
				zap.String("provider", provider),
				zap.Error(err),
			)
			respond(c, http.StatusOK, gin.H{"type": "rejected"})
			return
		}
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, event)
}

// Refund handles POST /payments/:id/refund
func (h *Handlers) Refund(c *gin.Context) {
	providerID := c.Param("id")

	var req struct {
		Method string `json:"method"`
		Amount string `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}

	var amount *models.Money
	if req.Amount != "" {
		m := models.NewMoney(req.Amount)
		if !m.IsPositive() {
			respondError(c, http.StatusBadRequest, "ValidationError", "refund amount must be a positive decimal")
			return
		}
		amount = &m
	}

	result, err := h.paymentService.Refund(c.Request.Context(), providerID, amount, req.Reason)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

// Methods handles GET /payments/methods
func (h *Handlers) Methods(c *gin.Context) {
	respond(c, http.StatusOK, h.paymentService.MethodInfos())
}
