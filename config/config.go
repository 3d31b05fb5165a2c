package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey     string
	StripeWebhookSecret string

	KafkaBrokers string
	KafkaTopic   string

	RedisURL string

	// DepositAmount is the default deposit in minor units when the order
	// does not carry its own.
	DepositAmount int
	Currency      string

	// PendingPaymentTTL expires unpaid orders when > 0. Zero disables the
	// reaper.
	PendingPaymentTTL time.Duration
}

func LoadConfig() (*Config, error) {
	// .env is a local-dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8086"),
		PostgresUser:        os.Getenv("POSTGRES_USER"),
		PostgresPassword:    os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:          os.Getenv("POSTGRES_DB"),
		PostgresHost:        getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:        getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:     getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone:    getEnv("POSTGRES_TIMEZONE", "UTC"),
		StripeSecretKey:     os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		KafkaBrokers:        os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "order-events"),
		RedisURL:            os.Getenv("REDIS_URL"),
		DepositAmount:       getEnvInt("DEPOSIT_AMOUNT", 3000),
		Currency:            getEnv("CURRENCY", "usd"),
		PendingPaymentTTL:   getEnvDuration("PENDING_PAYMENT_TTL", 0),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" ||
		cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
