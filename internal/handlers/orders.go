package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/models"
)

// CreateOrder handles POST /orders
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind order request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusCreated, order)
}

// GetOrder handles GET /orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, order)
}

// GetOrderTimeline handles GET /orders/:id/timeline
func (h *Handlers) GetOrderTimeline(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, order.Timeline)
}

// ListOrders handles GET /orders?userId=&limit=&offset=
func (h *Handlers) ListOrders(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "ValidationError", "userId query parameter is required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.orderService.ListOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, orders)
}

// UpdateOrderStatus handles POST /orders/:id/status
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Note)
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, order)
}
