package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/botforge/botforge/internal/health"
)

var (
	// ErrShuttingDown is reported by both probes once shutdown has begun.
	ErrShuttingDown = errors.New("service is shutting down")
	// ErrNotReady is reported when a dependency check fails.
	ErrNotReady = errors.New("dependencies are not ready")
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) (health.Report, error)
}

// Probes answers liveness from process state and readiness from the
// dependency checks.
type Probes struct {
	checker  *health.Checker
	draining atomic.Bool
	log      *slog.Logger
}

var _ HealthChecker = (*Probes)(nil)

// NewProbes creates a new Probes instance.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// MarkShuttingDown makes both probes fail so load balancers stop routing.
func (p *Probes) MarkShuttingDown() {
	if !p.draining.Swap(true) {
		p.log.Info("probes switched to draining")
	}
}

func (p *Probes) Liveness(ctx context.Context) error {
	if p.draining.Load() {
		return ErrShuttingDown
	}
	return nil
}

func (p *Probes) Readiness(ctx context.Context) (health.Report, error) {
	if p.draining.Load() {
		return health.Report{Healthy: false, Components: map[string]string{}}, ErrShuttingDown
	}
	if p.checker == nil {
		return health.Report{Healthy: true, Components: map[string]string{}}, nil
	}

	report := p.checker.Check(ctx)
	if !report.Healthy {
		return report, ErrNotReady
	}
	return report, nil
}
