package scheduler

import (
	"context"
	"fmt"

	"cassette_tracking_backend/internal/events"
	repairrepo "cassette_tracking_backend/internal/repairs/repository"
	repairservice "cassette_tracking_backend/internal/repairs/service"
	"cassette_tracking_backend/platform/config"
	"cassette_tracking_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	repairs *repairservice.Service
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		repairs: repairservice.New(repairrepo.New(pool), bus, log),
		log:     log,
	}

	mux.HandleFunc(TaskAttributionBackfill, w.handleAttributionBackfill)

	return w, nil
}

func (w *Worker) handleAttributionBackfill(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAttributionBackfillPayload(task)
	if err != nil {
		return err
	}

	result, err := w.repairs.Backfill(ctx, repairservice.BackfillOptions{
		DryRun:    payload.DryRun,
		BatchSize: payload.BatchSize,
	})
	if err != nil {
		return err
	}

	w.log.Info("scheduled attribution backfill done",
		"attributed", result.Attributed,
		"unattributable", result.Unattributable,
		"errored", result.Errored,
		"dryRun", payload.DryRun,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
