package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/jobs"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	return m.Called(ctx, event).Error(0)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAnalyticsRecordHandler_Stores(t *testing.T) {
	event := domain.AnalyticsEvent{
		BotID:     3,
		UserID:    7,
		Type:      domain.EventTap,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	task, err := jobs.NewAnalyticsRecordTask(event)
	require.NoError(t, err)

	w := &mockWriter{}
	w.On("RecordEvent", mock.Anything, event).Return(nil).Once()

	require.NoError(t, NewAnalyticsRecordHandler(w, discard()).ProcessTask(context.Background(), task))
	w.AssertExpectations(t)
}

func TestAnalyticsRecordHandler_StoreErrorRetries(t *testing.T) {
	task, err := jobs.NewAnalyticsRecordTask(domain.AnalyticsEvent{BotID: 1, Type: domain.EventMessage})
	require.NoError(t, err)

	w := &mockWriter{}
	w.On("RecordEvent", mock.Anything, mock.Anything).Return(errors.New("db down"))

	err = NewAnalyticsRecordHandler(w, discard()).ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestAnalyticsRecordHandler_BadPayloadSkipsRetry(t *testing.T) {
	task := asynq.NewTask(jobs.TaskTypeAnalyticsRecord, []byte("{"))

	err := NewAnalyticsRecordHandler(&mockWriter{}, discard()).ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestIdempotencyCleanupHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set("idempotency:stale", "x"))
	require.NoError(t, mr.Set("idempotency:fresh", "x"))
	mr.SetTTL("idempotency:fresh", time.Minute)

	task, err := jobs.NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)

	require.NoError(t, NewIdempotencyCleanupHandler(client, discard()).ProcessTask(context.Background(), task))
	assert.False(t, mr.Exists("idempotency:stale"))
	assert.True(t, mr.Exists("idempotency:fresh"))
}
