package scheduler

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string                        { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool                  { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string                  { return "cassette-tracking" }
func (c testSchedulerConfig) GetAsynqConcurrency() int                   { return 1 }
func (c testSchedulerConfig) GetAttributionBackfillInterval() time.Duration { return time.Hour }

func TestAttributionBackfillTaskRoundTrip(t *testing.T) {
	payload := AttributionBackfillPayload{DryRun: true, BatchSize: 250}

	task, err := NewAttributionBackfillTask(payload)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if task.Type() != TaskAttributionBackfill {
		t.Errorf("type = %q, want %q", task.Type(), TaskAttributionBackfill)
	}

	got, err := ParseAttributionBackfillPayload(task)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if got != payload {
		t.Errorf("payload = %+v, want %+v", got, payload)
	}
}

func TestParseAttributionBackfillPayloadRejectsGarbage(t *testing.T) {
	task := asynq.NewTask(TaskAttributionBackfill, []byte("{not json"))
	if _, err := ParseAttributionBackfillPayload(task); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestRedisClientOptParsesURL(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@localhost:6399/2", false)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opt.Addr != "localhost:6399" {
		t.Errorf("addr = %q", opt.Addr)
	}
	if opt.Password != "secret" {
		t.Errorf("password = %q", opt.Password)
	}
	if opt.DB != 2 {
		t.Errorf("db = %d", opt.DB)
	}
	if opt.TLSConfig != nil {
		t.Error("expected no TLS config for redis scheme")
	}

	if _, err := redisClientOpt("not a url", false); err == nil {
		t.Error("expected error for malformed url")
	}
}

func TestClientEnqueueAttributionBackfill(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(testSchedulerConfig{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer func() { _ = client.Close() }()

	err = client.EnqueueAttributionBackfill(t.Context(), AttributionBackfillPayload{BatchSize: 100})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var queued bool
	for _, key := range srv.Keys() {
		if strings.Contains(key, "cassette-tracking") {
			queued = true
			break
		}
	}
	if !queued {
		t.Errorf("no task landed on the queue, keys = %v", srv.Keys())
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Error("expected error without redis url")
	}
}
