package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskAttributionBackfill = "repairs.attribution.backfill"

type AttributionBackfillPayload struct {
	DryRun    bool `json:"dryRun"`
	BatchSize int  `json:"batchSize"`
}

func NewAttributionBackfillTask(payload AttributionBackfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAttributionBackfill, data), nil
}

func ParseAttributionBackfillPayload(task *asynq.Task) (AttributionBackfillPayload, error) {
	var payload AttributionBackfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AttributionBackfillPayload{}, err
	}
	return payload, nil
}
