// Package analytics records usage events without ever failing the caller.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/jobs"
	"github.com/botforge/botforge/pkg/metrics"
)

// Writer persists a single event.
type Writer interface {
	RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error
}

// StoreSink writes events straight to storage.
type StoreSink struct {
	store Writer
	now   func() time.Time
	log   *slog.Logger
}

func NewStoreSink(store Writer, log *slog.Logger) *StoreSink {
	if log == nil {
		log = slog.Default()
	}
	return &StoreSink{store: store, now: time.Now, log: log}
}

// Record stores event. Failures are logged and dropped.
func (s *StoreSink) Record(ctx context.Context, event domain.AnalyticsEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}

	if err := s.store.RecordEvent(ctx, event); err != nil {
		metrics.RecordError("analytics", "warning")
		s.log.WarnContext(ctx, "failed to record analytics event",
			slog.Int64("bot_id", event.BotID),
			slog.String("event_type", event.Type),
			slog.Any("error", err))
	}
}

// QueueSink hands events to the background worker. When the queue is
// unreachable it falls back to the wrapped StoreSink.
type QueueSink struct {
	queue    jobs.Manager
	fallback *StoreSink
	log      *slog.Logger
}

func NewQueueSink(queue jobs.Manager, fallback *StoreSink, log *slog.Logger) *QueueSink {
	if log == nil {
		log = slog.Default()
	}
	return &QueueSink{queue: queue, fallback: fallback, log: log}
}

func (s *QueueSink) Record(ctx context.Context, event domain.AnalyticsEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.fallback.now().UTC()
	}

	task, err := jobs.NewAnalyticsRecordTask(event)
	if err == nil {
		_, err = s.queue.Enqueue(ctx, task)
	}
	if err != nil {
		s.log.WarnContext(ctx, "analytics queue unavailable, writing directly", slog.Any("error", err))
		s.fallback.Record(ctx, event)
	}
}
