package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"cassette_tracking_backend/internal/events"
	"cassette_tracking_backend/internal/repairs/repository"
	"cassette_tracking_backend/internal/repairs/service"
	"cassette_tracking_backend/platform/config"
	"cassette_tracking_backend/platform/db"
	"cassette_tracking_backend/platform/logger"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "resolve without writing attributions")
	batchSize := flag.Int("batch-size", 0, "events per store round trip (0 uses BACKFILL_BATCH_SIZE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting repair attribution backfill", "dryRun", *dryRun)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	size := *batchSize
	if size <= 0 {
		size = cfg.GetBackfillBatchSize()
	}

	eventBus := events.NewInMemoryBus(log)
	events.RegisterAuditLog(eventBus, log)

	svc := service.New(repository.New(pool), eventBus, log)
	result, err := svc.Backfill(ctx, service.BackfillOptions{
		DryRun:    *dryRun,
		BatchSize: size,
	})
	if err != nil {
		log.Error("backfill aborted", "error", err,
			"attributed", result.Attributed,
			"unattributable", result.Unattributable,
			"errored", result.Errored,
		)
		os.Exit(1)
	}

	log.Info("backfill complete",
		"attributed", result.Attributed,
		"unattributable", result.Unattributable,
		"errored", result.Errored,
		"dryRun", *dryRun,
	)
}
