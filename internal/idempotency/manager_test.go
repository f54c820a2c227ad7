package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_RunsOnce(t *testing.T) {
	_, client := newTestRedis(t)
	m := NewManager(NewRedisStore(client, discardLogger()), discardLogger())
	ctx := context.Background()

	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	ran, err := m.Once(ctx, UpdateKey(1, 100), time.Hour, op)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = m.Once(ctx, UpdateKey(1, 100), time.Hour, op)
	require.NoError(t, err)
	assert.False(t, ran)

	ran, err = m.Once(ctx, UpdateKey(2, 100), time.Hour, op)
	require.NoError(t, err)
	assert.True(t, ran)

	assert.Equal(t, 2, calls)
}

func TestManager_FailedOperationCanRetry(t *testing.T) {
	mr, client := newTestRedis(t)
	m := NewManager(NewRedisStore(client, discardLogger()), discardLogger())
	ctx := context.Background()
	key := UpdateKey(1, 5)

	boom := errors.New("boom")
	ran, err := m.Once(ctx, key, time.Hour, func(context.Context) error { return boom })
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(lockKey(key)))
	assert.False(t, mr.Exists(recordKey(key)))

	ran, err = m.Once(ctx, key, time.Hour, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestManager_InProgress(t *testing.T) {
	mr, client := newTestRedis(t)
	m := NewManager(NewRedisStore(client, discardLogger()), discardLogger())
	key := UpdateKey(3, 9)

	require.NoError(t, mr.Set(lockKey(key), StatusProcessing))

	ran, err := m.Once(context.Background(), key, time.Hour, func(context.Context) error { return nil })
	assert.False(t, ran)
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestManager_RecordExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	m := NewManager(NewRedisStore(client, discardLogger()), discardLogger())
	ctx := context.Background()
	key := UpdateKey(1, 1)
	noop := func(context.Context) error { return nil }

	_, err := m.Once(ctx, key, time.Minute, noop)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(recordKey(key)))

	mr.FastForward(2 * time.Minute)

	ran, err := m.Once(ctx, key, time.Minute, noop)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestManager_NilOperation(t *testing.T) {
	_, client := newTestRedis(t)
	m := NewManager(NewRedisStore(client, discardLogger()), discardLogger())

	_, err := m.Once(context.Background(), "k", time.Minute, nil)
	assert.Error(t, err)
}

func TestCleaner_RemovesStaleKeys(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("idempotency:no-ttl", "x"))
	require.NoError(t, mr.Set("idempotency:too-long", "x"))
	mr.SetTTL("idempotency:too-long", 48*time.Hour)
	require.NoError(t, mr.Set("idempotency:fresh", "x"))
	mr.SetTTL("idempotency:fresh", time.Hour)
	require.NoError(t, mr.Set("other:no-ttl", "x"))

	deleted, err := NewCleaner(client, 24*time.Hour, discardLogger()).Cleanup(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, deleted)
	assert.False(t, mr.Exists("idempotency:no-ttl"))
	assert.False(t, mr.Exists("idempotency:too-long"))
	assert.True(t, mr.Exists("idempotency:fresh"))
	assert.True(t, mr.Exists("other:no-ttl"))
}

func TestUpdateKey(t *testing.T) {
	assert.Equal(t, "update:7:42", UpdateKey(7, 42))
	assert.Equal(t, "idempotency:update:7:42", recordKey(UpdateKey(7, 42)))
}
