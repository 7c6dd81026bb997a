package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/faizu526/zerotohero/internal/affiliate"
	"github.com/faizu526/zerotohero/internal/config"
	"github.com/faizu526/zerotohero/internal/email"
	"github.com/faizu526/zerotohero/internal/httpx"
	"github.com/faizu526/zerotohero/internal/messaging"
	"github.com/faizu526/zerotohero/internal/telemetry"
	"github.com/faizu526/zerotohero/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	cfg := config.Load(logger, "9090")
	config.Require(logger, map[string]string{
		"POSTGRES_URL":      cfg.PostgresURL,
		"KAFKA_BROKERS":     strings.Join(cfg.Kafka.Brokers, ","),
		"EMAIL_SERVICE_URL": cfg.Services.Email,
	})

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, "affiliate")
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	metrics, err := affiliate.NewMetrics(otel.Meter("worker"))
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	store := affiliate.NewPostgresStore(db)
	ledger := affiliate.NewLedger(store, metrics, logger)
	mailer := email.NewClient(cfg.Services.Email, httpx.NewClient(10*time.Second))
	handler := worker.NewOrderEventHandler(ledger, store, mailer, logger)

	consumer := messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, "affiliate-ledger")
	defer func() { _ = consumer.Close() }()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() { _ = metricsServer.Shutdown(context.Background()) }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting order event worker", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
