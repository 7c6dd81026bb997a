package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"go.opentelemetry.io/otel"

	"github.com/faizu526/zerotohero/internal/affiliate"
	"github.com/faizu526/zerotohero/internal/config"
	"github.com/faizu526/zerotohero/internal/httpx"
	"github.com/faizu526/zerotohero/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "affiliate", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("affiliate", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	cfg := config.Load(logger, "8083")
	config.Require(logger, map[string]string{
		"POSTGRES_URL":     cfg.PostgresURL,
		"ADMIN_JWT_SECRET": cfg.Auth.AdminSecret,
	})

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, "affiliate")
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	metrics, err := affiliate.NewMetrics(otel.Meter("affiliate"))
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	limit, err := httpx.RateLimit(cfg.Referral.RateLimit)
	if err != nil {
		logger.Error("invalid REFERRAL_RATE_LIMIT", "error", err, "value", cfg.Referral.RateLimit)
		os.Exit(1)
	}

	store := affiliate.NewPostgresStore(db)
	ledger := affiliate.NewLedger(store, metrics, logger)
	handler := affiliate.NewHandler(ledger, store, affiliate.HandlerConfig{
		BaseURL:    cfg.Referral.BaseURL,
		CookieDays: cfg.Referral.CookieDays,
	}, logger)

	mux := http.NewServeMux()
	handler.Routes(mux, []byte(cfg.Auth.AdminSecret), limit)
	mux.Handle("GET /metrics", metricsHandler)

	if err := httpx.Run(logger, "affiliate", cfg.Port, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
