package lock

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/botforge/pkg/redis"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func exerciseMutualExclusion(t *testing.T, locker Locker) {
	t.Helper()

	const workers = 20
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock, err := locker.Lock(context.Background(), "progress:1:1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			current := counter
			time.Sleep(time.Millisecond)
			counter = current + 1
		}()
	}

	wg.Wait()
	assert.Equal(t, workers, counter)
}

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	locker := NewMemoryLocker()
	exerciseMutualExclusion(t, locker)
	assert.Equal(t, 0, locker.size())
}

func TestMemoryLocker_ContextCancel(t *testing.T) {
	locker := NewMemoryLocker()

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock()
	assert.Equal(t, 0, locker.size())

	other, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	other()
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	client, _ := setupTestRedis(t)
	locker := NewRedisLocker(client, testLogger(), RedisOptions{RetryInterval: time.Millisecond})

	exerciseMutualExclusion(t, locker)
}

func TestRedisLocker_TimeoutAndOwnership(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, testLogger(), RedisOptions{
		WaitTimeout:   30 * time.Millisecond,
		RetryInterval: 5 * time.Millisecond,
	})

	unlock, err := locker.Lock(context.Background(), "progress:7:9")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:progress:7:9"))

	_, err = locker.Lock(context.Background(), "progress:7:9")
	assert.ErrorIs(t, err, ErrLockTimeout)

	// a foreign holder's key must survive our release
	mr.Set("lock:progress:7:9", "someone-else")
	unlock()
	assert.True(t, mr.Exists("lock:progress:7:9"))

	mr.Del("lock:progress:7:9")
	again, err := locker.Lock(context.Background(), "progress:7:9")
	require.NoError(t, err)
	again()
	assert.False(t, mr.Exists("lock:progress:7:9"))
}
