package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/botforge/internal/health"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdown_StagesRunInOrder(t *testing.T) {
	s := NewShutdown(discard())

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	s.Register(Hook{Name: "http", Fn: record("http")}, Hook{Name: "worker", Fn: record("worker")})
	s.Register(Hook{Name: "store", Fn: record("store")})

	require.NoError(t, s.Execute(context.Background()))
	require.Len(t, order, 3)
	assert.ElementsMatch(t, []string{"http", "worker"}, order[:2])
	assert.Equal(t, "store", order[2])
}

func TestShutdown_CollectsErrorsAndAppliesTimeout(t *testing.T) {
	s := NewShutdown(discard())
	s.Register(
		Hook{Name: "broken", Fn: CloseHook(func() error { return errors.New("close failed") })},
		Hook{Name: "slow", Timeout: 10 * time.Millisecond, Fn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)
	s.Register(Hook{Name: "nil"})

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: close failed")
	assert.Contains(t, err.Error(), "slow: context deadline exceeded")
}

func TestProbes(t *testing.T) {
	healthy := true
	checker := health.NewChecker(discard(), time.Second)
	checker.AddCheck("database", health.CheckFunc(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}))

	p := NewProbes(checker, discard())
	ctx := context.Background()

	assert.NoError(t, p.Liveness(ctx))
	report, err := p.Readiness(ctx)
	assert.NoError(t, err)
	assert.True(t, report.Healthy)

	healthy = false
	report, err = p.Readiness(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, "down", report.Components["database"])

	p.MarkShuttingDown()
	assert.ErrorIs(t, p.Liveness(ctx), ErrShuttingDown)
	_, err = p.Readiness(ctx)
	assert.ErrorIs(t, err, ErrShuttingDown)
}
