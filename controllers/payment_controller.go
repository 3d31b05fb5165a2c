package controllers

import (
	"net/http"

	"companion-service/middleware"
	"companion-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentController struct {
	paymentService services.PaymentService
}

func NewPaymentController(paymentService services.PaymentService) *PaymentController {
	return &PaymentController{paymentService: paymentService}
}

// CreateDeposit creates (or retrieves) the deposit payment intent for an
// order and returns what the client forwards to the payment provider.
func (pc *PaymentController) CreateDeposit(c *gin.Context) {
	actorID := middleware.GetUserID(c)

	var req struct {
		OrderID uuid.UUID `json:"order_id" binding:"required"`
		Amount  int       `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, serr := pc.paymentService.CreateDeposit(c.Request.Context(), req.OrderID, req.Amount, actorID)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Refund requests a deposit refund for the patient.
func (pc *PaymentController) Refund(c *gin.Context) {
	actorID := middleware.GetUserID(c)

	var req struct {
		OrderID uuid.UUID `json:"order_id" binding:"required"`
		Amount  int       `json:"amount" binding:"required,min=1"`
		Reason  string    `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	refund, serr := pc.paymentService.Refund(c.Request.Context(), req.OrderID, req.Amount, req.Reason, actorID)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusOK, gin.H{"refund": refund})
}
