// Package idempotency makes sure a keyed operation runs to completion at most
// once within a retention window. The webhook uses it to ignore updates that
// Telegram redelivers.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrRequestInProgress is returned when another caller holds the key.
var ErrRequestInProgress = errors.New("request with this key is already in progress")

// DefaultLockTTL bounds how long a crashed caller can block a key.
const DefaultLockTTL = 5 * time.Minute

// Operation is the work guarded by a key.
type Operation func(ctx context.Context) error

// Manager runs operations at most once per key.
type Manager struct {
	store   Store
	lockTTL time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewManager creates a Manager over store.
func NewManager(store Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		store:   store,
		lockTTL: DefaultLockTTL,
		now:     time.Now,
		log:     log,
	}
}

// Once runs fn unless key already completed within ttl. ran reports whether
// fn was executed. A failed fn leaves no record so the key can be retried.
func (m *Manager) Once(ctx context.Context, key string, ttl time.Duration, fn Operation) (ran bool, err error) {
	if fn == nil {
		return false, errors.New("operation fn cannot be nil")
	}

	record, err := m.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if record != nil && record.Status == StatusCompleted {
		m.log.Debug("idempotent operation already completed", slog.String("key", key))
		return false, nil
	}

	locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return false, err
	}
	if !locked {
		return false, ErrRequestInProgress
	}
	defer func() {
		// Release with a fresh context so a canceled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = m.store.ReleaseLock(releaseCtx, key)
	}()

	// Another caller may have completed between Get and Lock.
	record, err = m.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if record != nil && record.Status == StatusCompleted {
		return false, nil
	}

	if err := fn(ctx); err != nil {
		return true, err
	}

	if err := m.store.Set(ctx, key, &Record{Status: StatusCompleted, CompletedAt: m.now()}, ttl); err != nil {
		return true, err
	}

	return true, nil
}
