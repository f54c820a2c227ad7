package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryLimiter keeps sliding windows in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
	log     *slog.Logger
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an in-memory limiter.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
		log:     log,
	}
}

// Check admits the request when fewer than rule.Limit requests were seen in
// the last rule.Window. Rejected attempts are not recorded.
func (m *MemoryLimiter) Check(_ context.Context, key string, rule Rule) (*Result, error) {
	now := m.now()
	if !rule.Enabled() {
		return allowAll(now, rule), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := keepRecent(m.windows[key], now.Add(-rule.Window))

	result := &Result{ResetAt: now.Add(rule.Window)}
	if len(seen) > 0 {
		result.ResetAt = seen[0].Add(rule.Window)
	}

	if len(seen) < rule.Limit {
		seen = append(seen, now)
		result.Allowed = true
	}
	result.Remaining = max(rule.Limit-len(seen), 0)

	m.windows[key] = seen
	return result, nil
}

// Sweep drops idle windows every interval until ctx ends.
func (m *MemoryLimiter) Sweep(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 || maxAge <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.cleanup(maxAge); removed > 0 {
				m.log.Debug("rate limit windows swept", slog.Int("removed", removed))
			}
		}
	}
}

func (m *MemoryLimiter) cleanup(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, seen := range m.windows {
		if len(seen) == 0 || seen[len(seen)-1].Before(cutoff) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

func keepRecent(reqs []time.Time, windowStart time.Time) []time.Time {
	first := 0
	for first < len(reqs) && !reqs[first].After(windowStart) {
		first++
	}

	switch {
	case first == 0:
		return reqs
	case first >= len(reqs):
		return reqs[:0]
	}

	n := copy(reqs, reqs[first:])
	return reqs[:n]
}
