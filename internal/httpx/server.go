package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/faizu526/zerotohero/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Instrument wraps a mux with server spans named after the matched route.
func Instrument(mux http.Handler, service string) http.Handler {
	return otelhttp.NewHandler(telemetry.WithHTTPRoute(mux), service,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// NewClient returns an HTTP client that propagates trace context.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Run serves handler on port until SIGINT or SIGTERM, then shuts down
// gracefully.
func Run(logger *slog.Logger, service, port string, handler http.Handler) error {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      Instrument(handler, service),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting "+service+" service", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(ctx)
}
