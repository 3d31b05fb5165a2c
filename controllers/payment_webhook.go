package controllers

import (
	"net/http"

	"companion-service/providers"
	"companion-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebhookController struct {
	provider       providers.PaymentProvider
	paymentService services.PaymentService
	logger         *zap.Logger
}

func NewWebhookController(provider providers.PaymentProvider, paymentService services.PaymentService, logger *zap.Logger) *WebhookController {
	return &WebhookController{
		provider:       provider,
		paymentService: paymentService,
		logger:         logger,
	}
}

// HandleCallback receives provider notifications. Signature verification is
// the authentication for this route; this is the only entry point that acts
// as the system principal.
func (wc *WebhookController) HandleCallback(c *gin.Context) {
	evt, err := wc.provider.ParseCallback(c.Request)
	if err != nil {
		wc.logger.Warn("Webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	if serr := wc.paymentService.ApplyCallback(c.Request.Context(), evt); serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
