package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/botforge/botforge/internal/domain"
)

const (
	TaskTypeAnalyticsRecord    = "analytics:record"
	TaskTypeIdempotencyCleanup = "idempotency:cleanup"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultQueues weights the queues served by a Worker.
var DefaultQueues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

type AnalyticsRecordPayload struct {
	Event domain.AnalyticsEvent `json:"event"`
}

type IdempotencyCleanupPayload struct {
	MaxTTL time.Duration `json:"max_ttl"`
}

func NewAnalyticsRecordTask(event domain.AnalyticsEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(AnalyticsRecordPayload{Event: event})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeAnalyticsRecord, payload, asynq.Queue(QueueLow), asynq.MaxRetry(5)), nil
}

func NewIdempotencyCleanupTask(maxTTL time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(IdempotencyCleanupPayload{MaxTTL: maxTTL})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeIdempotencyCleanup, payload, asynq.Queue(QueueLow), asynq.MaxRetry(1)), nil
}
