package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	lockKeyPattern       = "lock:%s"
	defaultLockTTL       = 5 * time.Second
	defaultWaitTimeout   = 5 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
	releaseTimeout       = time.Second
)

// releaseScript deletes the lock only if it is still owned by the caller's token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisClient is the subset of the Redis wrapper used for locking.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RedisOptions tunes a RedisLocker. Zero values use the defaults.
type RedisOptions struct {
	TTL           time.Duration
	WaitTimeout   time.Duration
	RetryInterval time.Duration
}

// RedisLocker holds locks as Redis keys set with NX and a TTL so a crashed
// holder cannot block a key forever.
type RedisLocker struct {
	client RedisClient
	log    *slog.Logger
	opts   RedisOptions
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client RedisClient, log *slog.Logger, opts RedisOptions) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultLockTTL
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}

	return &RedisLocker{client: client, log: log, opts: opts}
}

// Lock polls SET NX until the key is acquired, ctx ends or the wait timeout passes.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	if l.client == nil {
		return nil, errors.New("redis client not configured for locks")
	}

	ctx, cancel := context.WithTimeout(ctx, l.opts.WaitTimeout)
	defer cancel()

	redisKey := fmt.Sprintf(lockKeyPattern, key)
	token := uuid.NewString()

	for {
		acquired, err := l.client.SetNX(ctx, redisKey, token, l.opts.TTL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrLockTimeout, ctx.Err())
			}
			l.log.Error("failed to acquire lock", slog.String("key", key), slog.Any("error", err))
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}

		if acquired {
			return l.unlockFunc(key, redisKey, token), nil
		}

		timer := time.NewTimer(l.opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.log.Warn("lock wait timed out", slog.String("key", key))
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) unlockFunc(key, redisKey, token string) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()

			if _, err := l.client.Eval(ctx, releaseScript, []string{redisKey}, token); err != nil {
				l.log.Warn("failed to release lock", slog.String("key", key), slog.Any("error", err))
			}
		})
	}
}
