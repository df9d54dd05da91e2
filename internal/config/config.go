package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PaymentConfig describes the fixed payee bank account the QR descriptor is
// built from, plus the marker token used to correlate webhook narrations.
type PaymentConfig struct {
	QRBaseURL   string
	AccountNo   string
	BankCode    string
	BankName    string
	AccountName string
	Template    string
	// Marker is the recognizable token embedded into every payment narration
	// and searched for when a webhook arrives without a correlation id.
	Marker string
}

// AppConfig aggregates runtime configuration, injected via environment
// variables to avoid hardcoding.
type AppConfig struct {
	HTTPAddr string
	DBPath   string
	Env      string

	RedisAddr string
	RedisDB   int

	// Kafka cluster (comma separated), topic and consumer group for the
	// order lifecycle event stream.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox: services append atomically on the request path,
	// the relay forwards to Kafka asynchronously.
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// Order-creation rate limit and payment state cache policy.
	OrderRateLimit  int
	OrderRateWindow time.Duration
	PaymentStateTTL time.Duration

	Payment PaymentConfig
}

// Load reads and validates configuration, falling back to defaults.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8081"),
		DBPath:             getEnv("DB_PATH", "cosrent.db"),
		Env:                getEnv("APP_ENV", "dev"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "cosrent-order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "cosrent-event-log"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "cosrent:order_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "cosrent-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "cosrent-relay-1"),
		OrderRateLimit:     60,
		OrderRateWindow:    time.Minute,
		PaymentStateTTL:    24 * time.Hour,
		Payment: PaymentConfig{
			QRBaseURL:   getEnv("SEPAY_QR_BASE_URL", "https://qr.sepay.vn"),
			AccountNo:   getEnv("SEPAY_ACCOUNT_NO", "109876820087"),
			BankCode:    getEnv("SEPAY_BANK_CODE", "ICB"),
			BankName:    getEnv("SEPAY_BANK_NAME", "Ngan hang TMCP Cong Thuong Viet Nam"),
			AccountName: getEnv("SEPAY_ACCOUNT_NAME", "NGUYEN DUC HAU"),
			Template:    getEnv("SEPAY_QR_TEMPLATE", "compact2"),
			Marker:      getEnv("SEPAY_MARKER", "SEVQR"),
		},
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("ORDER_RATE_LIMIT", cfg.OrderRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_LIMIT must be > 0")
	}
	cfg.OrderRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("ORDER_RATE_WINDOW_SEC", int(cfg.OrderRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_WINDOW_SEC must be > 0")
	}
	cfg.OrderRateWindow = time.Duration(rateWindowSec) * time.Second

	stateTTLHour, err := getEnvInt("PAYMENT_STATE_TTL_HOUR", int(cfg.PaymentStateTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid PAYMENT_STATE_TTL_HOUR: %w", err)
	}
	if stateTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("PAYMENT_STATE_TTL_HOUR must be > 0")
	}
	cfg.PaymentStateTTL = time.Duration(stateTTLHour) * time.Hour

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.OrderEventStream == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM must not be empty")
	}
	if cfg.OrderEventGroup == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
	}
	if cfg.OrderEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
	}
	if cfg.Payment.AccountNo == "" {
		return AppConfig{}, fmt.Errorf("SEPAY_ACCOUNT_NO must not be empty")
	}
	if cfg.Payment.Marker == "" {
		return AppConfig{}, fmt.Errorf("SEPAY_MARKER must not be empty")
	}

	return cfg, nil
}

// getEnv reads a string env var, returning the fallback when unset or blank.
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt reads an integer env var, returning the fallback when unset.
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV parses a comma-separated string into a slice.
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
