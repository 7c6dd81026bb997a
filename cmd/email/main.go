package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/faizu526/zerotohero/internal/config"
	"github.com/faizu526/zerotohero/internal/email"
	"github.com/faizu526/zerotohero/internal/httpx"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load(logger, "8084")

	handler := email.NewHandler(logger)

	mux := http.NewServeMux()
	handler.Routes(mux)

	if err := httpx.Run(logger, "email", cfg.Port, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
