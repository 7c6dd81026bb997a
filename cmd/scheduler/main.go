package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jasonlvhit/gocron"

	"github.com/faizu526/zerotohero/internal/affiliate"
	"github.com/faizu526/zerotohero/internal/config"
	"github.com/faizu526/zerotohero/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	once := flag.Bool("once", false, "run the release job once and exit")
	flag.Parse()

	ctx := context.Background()
	cfg := config.Load(logger, "")
	config.Require(logger, map[string]string{
		"POSTGRES_URL": cfg.PostgresURL,
	})

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, "affiliate")
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ledger := affiliate.NewLedger(affiliate.NewPostgresStore(db), nil, logger)
	job := affiliate.NewReleaseJob(ledger, cfg.Release.ClawbackDays, logger)

	if *once {
		if _, err := job.Run(ctx); err != nil {
			os.Exit(1)
		}
		return
	}

	s := gocron.NewScheduler()
	s.Every(1).Day().At(cfg.Release.At).Do(job.Tick)
	done := s.Start()

	logger.Info("commission release scheduled", "at", cfg.Release.At, "clawback_days", cfg.Release.ClawbackDays)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	close(done)
}
