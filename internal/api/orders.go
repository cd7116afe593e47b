package api

import (
	"net/http"

	"shop-service/internal/models"
	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
)

type cancelQuery struct {
	UserID int64 `form:"userId" binding:"required"`
}

type statusQuery struct {
	Status models.OrderStatus `form:"status" binding:"required"`
}

// createOrder handles order placement
func (h *Handler) createOrder(c *gin.Context) {
	var req service.OrderCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	resp, err := h.svc.Orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUserOrders(c *gin.Context) {
	userID, ok := h.pathID(c, "userId")
	if !ok {
		return
	}
	resp, err := h.svc.Orders.GetUserOrders(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getOrderEvents(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Orders.ListOrderEvents(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q cancelQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondBindError(c, err)
		return
	}

	if err := h.svc.Orders.CancelOrderByUser(c.Request.Context(), id, q.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) changeOrderStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q statusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondBindError(c, err)
		return
	}

	if err := h.svc.Orders.ChangeStatusByAdmin(c.Request.Context(), id, q.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
