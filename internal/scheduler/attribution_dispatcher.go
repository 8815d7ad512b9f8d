package scheduler

import (
	"context"
	"time"

	"cassette_tracking_backend/platform/config"
	"cassette_tracking_backend/platform/logger"
)

// AttributionDispatcher enqueues a periodic attribution backfill so repair
// events imported without a ticket get attributed without operator action.
type AttributionDispatcher struct {
	client    *Client
	interval  time.Duration
	batchSize int
	log       *logger.Logger
}

func NewAttributionDispatcher(cfg config.SchedulerConfig, batchSize int, log *logger.Logger) (*AttributionDispatcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.GetAttributionBackfillInterval()
	if interval <= 0 {
		interval = time.Hour
	}

	return &AttributionDispatcher{
		client:    client,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}, nil
}

func (d *AttributionDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *AttributionDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := d.client.EnqueueAttributionBackfill(ctx, AttributionBackfillPayload{
			BatchSize: d.batchSize,
		})
		if err != nil {
			d.log.Warn("enqueue attribution backfill failed", "error", err)
		}
	}
}
