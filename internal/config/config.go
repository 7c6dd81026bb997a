// Package config reads service settings from the environment, after
// loading a .env file when one is present.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL          = "https://zerotohero.tech"
	DefaultOrderEventsTopic = "order.events"
)

type Config struct {
	Port        string
	PostgresURL string
	Kafka       KafkaConfig
	Redis       RedisConfig
	Services    ServiceURLs
	Auth        AuthConfig
	Referral    ReferralConfig
	Release     ReleaseConfig
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type ServiceURLs struct {
	Catalog   string
	Orders    string
	Affiliate string
	Email     string
}

type AuthConfig struct {
	AdminSecret string
}

type ReferralConfig struct {
	BaseURL    string
	CookieDays int
	RateLimit  string
}

type ReleaseConfig struct {
	ClawbackDays int
	At           string
}

// Load reads every key with its default. port is used when PORT is unset.
func Load(logger *slog.Logger, port string) Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	return Config{
		Port:        getEnv("PORT", port),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("ORDER_EVENTS_TOPIC", DefaultOrderEventsTopic),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt(logger, "REDIS_DB", 0),
			TTL:      getDuration(logger, "CATALOG_CACHE_TTL", 5*time.Minute),
		},
		Services: ServiceURLs{
			Catalog:   os.Getenv("CATALOG_SERVICE_URL"),
			Orders:    os.Getenv("ORDERS_SERVICE_URL"),
			Affiliate: os.Getenv("AFFILIATE_SERVICE_URL"),
			Email:     os.Getenv("EMAIL_SERVICE_URL"),
		},
		Auth: AuthConfig{
			AdminSecret: os.Getenv("ADMIN_JWT_SECRET"),
		},
		Referral: ReferralConfig{
			BaseURL:    getEnv("BASE_URL", DefaultBaseURL),
			CookieDays: getInt(logger, "REFERRAL_COOKIE_DAYS", 30),
			RateLimit:  getEnv("REFERRAL_RATE_LIMIT", "60-M"),
		},
		Release: ReleaseConfig{
			ClawbackDays: getInt(logger, "CLAWBACK_DAYS", 14),
			At:           getEnv("RELEASE_AT", "00:00:00"),
		},
	}
}

// Require logs and exits when any of the named settings is empty.
func Require(logger *slog.Logger, values map[string]string) {
	missing := false
	for key, value := range values {
		if value == "" {
			logger.Error(key + " environment variable is required")
			missing = true
		}
	}
	if missing {
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(logger *slog.Logger, key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn("invalid integer setting, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

func getDuration(logger *slog.Logger, key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("invalid duration setting, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
