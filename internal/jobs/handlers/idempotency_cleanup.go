package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/botforge/botforge/internal/idempotency"
	"github.com/botforge/botforge/internal/jobs"
)

// IdempotencyCleanupHandler removes stale deduplication keys.
type IdempotencyCleanupHandler struct {
	client redis.Cmdable
	log    *slog.Logger
}

func NewIdempotencyCleanupHandler(client redis.Cmdable, log *slog.Logger) *IdempotencyCleanupHandler {
	if log == nil {
		log = slog.Default()
	}
	return &IdempotencyCleanupHandler{client: client, log: log}
}

func (h *IdempotencyCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	deleted, err := idempotency.NewCleaner(h.client, payload.MaxTTL, h.log).Cleanup(ctx)
	if err != nil {
		return err
	}

	h.log.DebugContext(ctx, "idempotency cleanup: done", slog.Int("deleted", deleted))
	return nil
}
