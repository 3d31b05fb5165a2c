package main

import (
	"context"
	"log"
	"strings"
	"time"

	"companion-service/config"
	"companion-service/controllers"
	"companion-service/database"
	"companion-service/kafka"
	"companion-service/metrics"
	"companion-service/middleware"
	"companion-service/models"
	"companion-service/providers"
	"companion-service/repository"
	"companion-service/routes"
	"companion-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[CompanionService] Failed to load config:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("[CompanionService] Failed to initialize logger:", err)
	}
	defer logger.Sync()

	db, err := database.ConnectPostgres(cfg, logger,
		&models.Order{},
		&models.Payment{},
		&models.Refund{},
		&models.ServiceLog{},
		&models.Review{},
	)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer database.Close(db)

	orderRepo := repository.NewGormOrderRepository(db)
	paymentRepo := repository.NewGormPaymentRepo(db)
	auditRepo := repository.NewGormAuditRepo(db)
	reviewRepo := repository.NewGormReviewRepo(db)

	var events services.EventPublisher
	if cfg.KafkaBrokers != "" {
		producer := kafka.NewOrderEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic, logger)
		defer producer.Close()
		events = producer
	} else {
		logger.Info("KAFKA_BROKERS not set, order events disabled")
	}

	cache := database.NewRedisClient(cfg.RedisURL, logger)

	provider := providers.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	auditService := services.NewAuditService(auditRepo, orderRepo, logger)
	orderService := services.NewOrderService(orderRepo, auditService, events, cfg.DepositAmount, logger)
	paymentService := services.NewPaymentService(paymentRepo, orderRepo, provider, auditService, events, cfg.Currency, logger)
	reviewService := services.NewReviewService(reviewRepo, orderRepo, cache, logger)

	oc := controllers.NewOrderController(orderService, auditService)
	pc := controllers.NewPaymentController(paymentService)
	wc := controllers.NewWebhookController(provider, paymentService, logger)
	rc := controllers.NewReviewController(reviewService)

	if cfg.PendingPaymentTTL > 0 {
		go runPendingReaper(orderService, cfg.PendingPaymentTTL, logger)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(metrics.HTTPMiddleware())

	routes.Register(r, oc, pc, wc, rc)

	logger.Info("Companion service running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// runPendingReaper periodically cancels orders that sat in pending_payment
// past the TTL. It checks at a fraction of the TTL so expiry lag stays small.
func runPendingReaper(orderService services.OrderService, ttl time.Duration, logger *zap.Logger) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Pending-payment expiry enabled", zap.Duration("ttl", ttl), zap.Duration("interval", interval))
	for range ticker.C {
		orderService.ExpireStalePending(context.Background(), ttl)
	}
}
