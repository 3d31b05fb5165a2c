package controllers

import (
	"net/http"
	"strconv"

	"companion-service/middleware"
	"companion-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderController struct {
	orderService services.OrderService
	auditService services.AuditService
}

func NewOrderController(orderService services.OrderService, auditService services.AuditService) *OrderController {
	return &OrderController{
		orderService: orderService,
		auditService: auditService,
	}
}

// CreateOrder handles order creation by the patient.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	actorID := middleware.GetUserID(c)

	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, serr := oc.orderService.CreateOrder(c.Request.Context(), actorID, &req)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// GetOrders returns paginated orders for the authenticated actor.
func (oc *OrderController) GetOrders(c *gin.Context) {
	actorID := middleware.GetUserID(c)
	scope := c.DefaultQuery("scope", "all")
	page, limit := parsePaginationParams(c)

	result, serr := oc.orderService.ListOrders(c.Request.Context(), actorID, scope, page, limit)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOrderByID returns a specific order; parties only.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	actorID := middleware.GetUserID(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	order, serr := oc.orderService.GetOrder(c.Request.Context(), orderID, actorID)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateOrderStatus applies a lifecycle transition requested by a party.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	actorID := middleware.GetUserID(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	var req services.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, serr := oc.orderService.UpdateStatus(c.Request.Context(), orderID, actorID, &req)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// GetTracking returns the order's service log and derived current step.
func (oc *OrderController) GetTracking(c *gin.Context) {
	actorID := middleware.GetUserID(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	tracking, serr := oc.auditService.ListForOrder(c.Request.Context(), orderID, actorID)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusOK, tracking)
}

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
