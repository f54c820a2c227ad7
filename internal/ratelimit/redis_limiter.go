package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisLimiter keeps one sorted set of request timestamps per key so the
// limit holds across replicas.
type RedisLimiter struct {
	client redis.Cmdable
	now    func() time.Time
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client redis.Cmdable, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, now: time.Now, log: log}
}

// Check records the attempt and admits it while the window holds at most
// rule.Limit entries.
func (l *RedisLimiter) Check(ctx context.Context, key string, rule Rule) (*Result, error) {
	now := l.now()
	if !rule.Enabled() {
		return allowAll(now, rule), nil
	}

	redisKey := redisKeyPrefix + key
	cutoff := now.Add(-rule.Window).UnixMicro()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("(%d", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*rule.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	count := int(countCmd.Val())
	return &Result{
		Allowed:   count <= rule.Limit,
		Remaining: max(rule.Limit-count, 0),
		ResetAt:   now.Add(rule.Window),
	}, nil
}
