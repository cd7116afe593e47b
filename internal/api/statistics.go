package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type monthlyQuery struct {
	Year  int `form:"year" binding:"required"`
	Month int `form:"month"`
}

type periodQuery struct {
	From time.Time `form:"from" time_format:"2006-01-02" time_utc:"1" binding:"required"`
	To   time.Time `form:"to" time_format:"2006-01-02" time_utc:"1" binding:"required"`
}

func (h *Handler) userOrders(c *gin.Context) {
	userID, ok := h.pathID(c, "userId")
	if !ok {
		return
	}
	resp, err := h.svc.Statistics.UserOrders(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) userPayments(c *gin.Context) {
	userID, ok := h.pathID(c, "userId")
	if !ok {
		return
	}
	resp, err := h.svc.Statistics.UserPayments(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) userMonthlyStats(c *gin.Context) {
	userID, ok := h.pathID(c, "userId")
	if !ok {
		return
	}
	var q monthlyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondBindError(c, err)
		return
	}

	resp, err := h.svc.Statistics.UserMonthlyStats(c.Request.Context(), userID, q.Year, q.Month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) userProductStats(c *gin.Context) {
	userID, ok := h.pathID(c, "userId")
	if !ok {
		return
	}
	var q periodQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondBindError(c, err)
		return
	}

	resp, err := h.svc.Statistics.UserProductStats(c.Request.Context(), userID, q.From, q.To)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) productUserCount(c *gin.Context) {
	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}
	resp, err := h.svc.Statistics.ProductUserCount(c.Request.Context(), productID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
