package handler

import (
	"net/http"

	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/cartlyfy/api-cartlyfy/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const orderListLimit = 50

// OrderHandler serves the customer order history
type OrderHandler struct {
	orderRepo *repository.OrderRepository
}

func NewOrderHandler(orderRepo *repository.OrderRepository) *OrderHandler {
	return &OrderHandler{orderRepo: orderRepo}
}

// ListOrders godoc
// @Summary List the current customer's orders
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.OrderResponse
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	orders, err := h.orderRepo.FindByUser(c.Request.Context(), userID, orderListLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to load orders"})
		return
	}

	result := make([]model.OrderResponse, 0, len(orders))
	for _, o := range orders {
		result = append(result, o.ToResponse())
	}
	c.JSON(http.StatusOK, result)
}

// GetOrder godoc
// @Summary Get one of the current customer's orders
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} model.OrderResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid order id"})
		return
	}

	order, err := h.orderRepo.FindByID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to load order"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "Order not found"})
		return
	}
	if order.UserID != userID {
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: "Forbidden"})
		return
	}

	c.JSON(http.StatusOK, order.ToResponse())
}
