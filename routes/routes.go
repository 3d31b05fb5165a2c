package routes

import (
	"net/http"

	"companion-service/controllers"
	"companion-service/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Register(
	r *gin.Engine,
	oc *controllers.OrderController,
	pc *controllers.PaymentController,
	wc *controllers.WebhookController,
	rc *controllers.ReviewController,
) {
	orders := r.Group("/orders")
	orders.Use(middleware.AuthMiddleware())
	orders.POST("", oc.CreateOrder)
	orders.GET("", oc.GetOrders)
	orders.GET("/:id", oc.GetOrderByID)
	orders.PATCH("/:id/status", oc.UpdateOrderStatus)
	orders.GET("/:id/tracking", oc.GetTracking)

	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware())
	payments.POST("", pc.CreateDeposit)
	payments.POST("/refund", pc.Refund)

	reviews := r.Group("/reviews")
	reviews.Use(middleware.AuthMiddleware())
	reviews.POST("", rc.CreateReview)
	reviews.GET("", rc.GetReviews)
	reviews.GET("/stats", rc.GetStats)

	// Provider webhook authenticates by signature, not by actor header.
	r.POST("/payments/webhook", wc.HandleCallback)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
