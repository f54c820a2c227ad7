package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Shutdown coordinates graceful shutdown hooks. Hooks registered in the same
// stage run in parallel; stages run in registration order so producers stop
// before the stores they write to are closed.
type Shutdown struct {
	mu     sync.Mutex
	stages [][]Hook
	log    *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds hooks as a new stage that runs after all earlier stages.
func (s *Shutdown) Register(hooks ...Hook) {
	stage := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h.Fn != nil {
			stage = append(stage, h)
		}
	}
	if len(stage) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stages = append(s.stages, stage)
}

// Execute runs every stage and returns the joined hook failures.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	stages := append([][]Hook(nil), s.stages...)
	s.mu.Unlock()

	start := time.Now()
	if s.log != nil {
		s.log.Info("shutdown sequence started", slog.Int("stage_count", len(stages)))
	}

	errs := make([]string, 0)
	for _, stage := range stages {
		errs = append(errs, s.runStage(ctx, stage)...)
	}

	if s.log != nil {
		s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (s *Shutdown) runStage(ctx context.Context, hooks []Hook) []string {
	var wg sync.WaitGroup
	var errMu sync.Mutex
	errs := make([]string, 0)

	for _, hook := range hooks {
		h := hook

		wg.Add(1)
		go func() {
			defer wg.Done()

			var (
				hookCtx context.Context
				cancel  context.CancelFunc
			)
			if h.Timeout > 0 {
				hookCtx, cancel = context.WithTimeout(ctx, h.Timeout)
			} else {
				hookCtx, cancel = context.WithCancel(ctx)
			}
			defer cancel()

			if s.log != nil {
				s.log.Info("running shutdown hook", slog.String("hook", h.Name))
			}

			if err := h.Fn(hookCtx); err != nil {
				if s.log != nil {
					s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
				}
				errMu.Lock()
				errs = append(errs, fmt.Sprintf("%s: %v", h.Name, err))
				errMu.Unlock()
				return
			}

			if s.log != nil {
				s.log.Info("shutdown hook completed", slog.String("hook", h.Name))
			}
		}()
	}

	wg.Wait()
	return errs
}
