package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/faizu526/zerotohero/internal/config"
	"github.com/faizu526/zerotohero/internal/gateway"
	"github.com/faizu526/zerotohero/internal/httpx"
	"github.com/faizu526/zerotohero/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	cfg := config.Load(logger, "8080")
	config.Require(logger, map[string]string{
		"CATALOG_SERVICE_URL":   cfg.Services.Catalog,
		"ORDERS_SERVICE_URL":    cfg.Services.Orders,
		"AFFILIATE_SERVICE_URL": cfg.Services.Affiliate,
	})

	client := gateway.NewProxyClient(10 * time.Second)
	handler := gateway.NewHandler(
		gateway.NewServiceProxy(cfg.Services.Catalog, client),
		gateway.NewServiceProxy(cfg.Services.Orders, client),
		gateway.NewServiceProxy(cfg.Services.Affiliate, client),
		logger,
	)

	mux := http.NewServeMux()
	handler.Routes(mux)

	if err := httpx.Run(logger, "gateway", cfg.Port, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
