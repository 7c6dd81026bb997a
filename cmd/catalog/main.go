package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/faizu526/zerotohero/internal/catalog"
	"github.com/faizu526/zerotohero/internal/config"
	"github.com/faizu526/zerotohero/internal/httpx"
	"github.com/faizu526/zerotohero/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "catalog", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	cfg := config.Load(logger, "8082")
	config.Require(logger, map[string]string{
		"POSTGRES_URL":       cfg.PostgresURL,
		"ADMIN_JWT_SECRET": cfg.Auth.AdminSecret,
	})

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, "catalog")
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Without Redis every read goes to Postgres.
	var cache catalog.Cache
	if cfg.Redis.Addr != "" {
		client, err := catalog.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()
		cache = catalog.NewRedisCache(client)
	}

	service := catalog.NewService(catalog.NewPostgresStore(db), cache, cfg.Redis.TTL, logger)
	handler := catalog.NewHandler(service, logger)

	mux := http.NewServeMux()
	handler.Routes(mux, []byte(cfg.Auth.AdminSecret))

	if err := httpx.Run(logger, "catalog", cfg.Port, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
