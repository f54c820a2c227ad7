package ratelimit

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

	"github.com/botforge/botforge/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct{ t time.Time }

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func allowed(t *testing.T, r *Result) bool {
	t.Helper()
	require.NotNil(t, r)
	return r.Allowed
}

func newRedisLimiter(t *testing.T, c *clock) *RedisLimiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, testLogger())
	l.now = c.now
	return l
}

func newMemoryLimiter(c *clock) *MemoryLimiter {
	l := NewMemoryLimiter(testLogger())
	l.now = c.now
	return l
}

func TestLimiters_SlidingWindow(t *testing.T) {
	backends := map[string]func(*testing.T, *clock) Limiter{
		"memory": func(_ *testing.T, c *clock) Limiter { return newMemoryLimiter(c) },
		"redis":  func(t *testing.T, c *clock) Limiter { return newRedisLimiter(t, c) },
	}
	rule := Rule{Limit: 2, Window: time.Second}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			c := newClock()
			l := build(t, c)
			ctx := context.Background()

			for i := 0; i < 2; i++ {
				r, err := l.Check(ctx, TapKey(1, 7), rule)
				require.NoError(t, err)
				assert.True(t, allowed(t, r))
			}

			r, err := l.Check(ctx, TapKey(1, 7), rule)
			require.NoError(t, err)
			assert.False(t, allowed(t, r))
			assert.Zero(t, r.Remaining)

			r, err = l.Check(ctx, TapKey(1, 8), rule)
			require.NoError(t, err)
			assert.True(t, allowed(t, r), "other users keep their own window")

			c.advance(1500 * time.Millisecond)

			r, err = l.Check(ctx, TapKey(1, 7), rule)
			require.NoError(t, err)
			assert.True(t, allowed(t, r))
		})
	}
}

func TestLimiters_DisabledRule(t *testing.T) {
	c := newClock()
	l := newMemoryLimiter(c)

	for i := 0; i < 100; i++ {
		r, err := l.Check(context.Background(), "k", Rule{})
		require.NoError(t, err)
		assert.True(t, r.Allowed)
	}
	assert.Empty(t, l.windows)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	c := newClock()
	l := newMemoryLimiter(c)
	rule := Rule{Limit: 5, Window: time.Second}

	_, _ = l.Check(context.Background(), "old", rule)
	c.advance(time.Minute)
	_, _ = l.Check(context.Background(), "fresh", rule)

	assert.Equal(t, 1, l.cleanup(30*time.Second))
	assert.Contains(t, l.windows, "fresh")
	assert.NotContains(t, l.windows, "old")
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, Rule) (*Result, error) {
	return nil, errors.New("redis down")
}

func TestFallbackLimiter_HalvesLimitOnPrimaryFailure(t *testing.T) {
	c := newClock()
	l := NewFallbackLimiter(failingLimiter{}, newMemoryLimiter(c), testLogger())
	rule := Rule{Limit: 4, Window: time.Second}
	ctx := context.Background()

	var admitted int
	for i := 0; i < 4; i++ {
		r, err := l.Check(ctx, "k", rule)
		require.NoError(t, err)
		if r.Allowed {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)
}

func TestRuleFromConfig(t *testing.T) {
	assert.False(t, RuleFromConfig(config.RateLimitConfig{Taps: 10, Window: time.Second}).Enabled())

	rule := RuleFromConfig(config.RateLimitConfig{Enabled: true, Taps: 10, Window: time.Second})
	assert.Equal(t, Rule{Limit: 10, Window: time.Second}, rule)
	assert.Equal(t, "tap:3:9", TapKey(3, 9))
}
