// Package handlers holds asynq task handlers.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/jobs"
)

// EventWriter persists analytics events.
type EventWriter interface {
	RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error
}

// AnalyticsRecordHandler writes queued analytics events to storage.
type AnalyticsRecordHandler struct {
	store EventWriter
	log   *slog.Logger
}

func NewAnalyticsRecordHandler(store EventWriter, log *slog.Logger) *AnalyticsRecordHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AnalyticsRecordHandler{store: store, log: log}
}

func (h *AnalyticsRecordHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.AnalyticsRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "analytics record: failed to decode payload",
			slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		// A malformed payload will never succeed.
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.store.RecordEvent(ctx, payload.Event); err != nil {
		h.log.WarnContext(ctx, "analytics record: store failed",
			slog.Int64("bot_id", payload.Event.BotID),
			slog.String("event_type", payload.Event.Type),
			slog.Any("error", err))
		return err
	}

	return nil
}
