package ratelimit

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_checks_total",
		Help: "Total number of rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	backendErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_backend_errors_total",
		Help: "Total number of primary backend failures that triggered the fallback.",
	})
)

// FallbackLimiter asks the primary backend and switches to a stricter
// secondary for the call when the primary fails.
type FallbackLimiter struct {
	primary   Limiter
	secondary Limiter
	log       *slog.Logger
}

var _ Limiter = (*FallbackLimiter)(nil)

// NewFallbackLimiter pairs a shared backend with a local one.
func NewFallbackLimiter(primary, secondary Limiter, log *slog.Logger) *FallbackLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &FallbackLimiter{primary: primary, secondary: secondary, log: log}
}

// Check implements Limiter. The secondary enforces half the limit because
// every replica counts on its own.
func (f *FallbackLimiter) Check(ctx context.Context, key string, rule Rule) (*Result, error) {
	result, err := f.primary.Check(ctx, key, rule)
	if err == nil {
		checksTotal.WithLabelValues("primary", resultLabel(result.Allowed)).Inc()
		return result, nil
	}

	backendErrorsTotal.Inc()
	f.log.Warn("primary rate limiter failed, using local fallback", slog.String("key", key), slog.Any("error", err))

	strict := rule
	strict.Limit = max(rule.Limit/2, 1)

	result, err = f.secondary.Check(ctx, key, strict)
	if err != nil {
		return nil, err
	}
	checksTotal.WithLabelValues("fallback", resultLabel(result.Allowed)).Inc()
	return result, nil
}

func resultLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "rejected"
}
