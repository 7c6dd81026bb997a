package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/faizu526/zerotohero/internal/config"
	"github.com/faizu526/zerotohero/internal/httpx"
	"github.com/faizu526/zerotohero/internal/messaging"
	"github.com/faizu526/zerotohero/internal/orders"
	"github.com/faizu526/zerotohero/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	cfg := config.Load(logger, "8081")
	config.Require(logger, map[string]string{
		"POSTGRES_URL":          cfg.PostgresURL,
		"CATALOG_SERVICE_URL":   cfg.Services.Catalog,
		"AFFILIATE_SERVICE_URL": cfg.Services.Affiliate,
		"ADMIN_JWT_SECRET":      cfg.Auth.AdminSecret,
	})

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, "orders")
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var producer messaging.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = p.Close() }()
		producer = p
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}

	client := httpx.NewClient(5 * time.Second)
	service := orders.NewService(
		orders.NewOrderRepository(db),
		orders.NewCatalogClient(cfg.Services.Catalog, client),
		orders.NewAffiliateClient(cfg.Services.Affiliate, client),
		producer,
		logger,
	)
	handler := orders.NewHandler(service, logger)

	mux := http.NewServeMux()
	handler.Routes(mux, []byte(cfg.Auth.AdminSecret))

	if err := httpx.Run(logger, "orders", cfg.Port, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
