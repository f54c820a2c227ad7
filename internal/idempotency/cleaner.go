package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cleaner removes idempotency keys that lost their expiry or carry one far
// beyond the configured retention.
type Cleaner struct {
	client redis.Cmdable
	log    *slog.Logger
	maxTTL time.Duration
}

// NewCleaner creates a Cleaner. Keys with a remaining TTL above maxTTL are
// treated as stale.
func NewCleaner(client redis.Cmdable, maxTTL time.Duration, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client: client,
		log:    log,
		maxTTL: maxTTL,
	}
}

// Cleanup scans all idempotency keys once and returns how many it deleted.
func (c *Cleaner) Cleanup(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		deleted int
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, "idempotency:*", 100).Result()
		if err != nil {
			c.log.Error("idempotency cleaner scan failed", slog.Any("error", err))
			return deleted, err
		}

		for _, key := range keys {
			ttl, err := c.client.TTL(ctx, key).Result()
			if err != nil {
				c.log.Warn("failed to get key ttl", slog.String("key", key), slog.Any("error", err))
				continue
			}

			// -2 means the key vanished between SCAN and TTL.
			if ttl == -2 {
				continue
			}

			if ttl < 0 || (c.maxTTL > 0 && ttl > c.maxTTL) {
				if err := c.client.Del(ctx, key).Err(); err != nil {
					c.log.Warn("failed to delete stale idempotency key", slog.String("key", key), slog.Any("error", err))
					continue
				}
				deleted++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if deleted > 0 {
		c.log.Info("idempotency cleanup finished", slog.Int("deleted", deleted))
	}
	return deleted, nil
}
