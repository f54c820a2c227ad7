package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler  *asynq.Scheduler
	cleanupInterval time.Duration
	retention       time.Duration
	log             *slog.Logger
}

// NewScheduler creates a Scheduler that enqueues idempotency cleanup every
// cleanupInterval. Keys living longer than retention are removed.
func NewScheduler(redisOpt asynq.RedisConnOpt, cleanupInterval, retention time.Duration, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler:  asynq.NewScheduler(redisOpt, nil),
		cleanupInterval: cleanupInterval,
		retention:       retention,
		log:             log,
	}
}

func (s *scheduler) RegisterTasks() error {
	if s.cleanupInterval <= 0 {
		return nil
	}

	task, err := NewIdempotencyCleanupTask(s.retention)
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(fmt.Sprintf("@every %s", s.cleanupInterval), task); err != nil {
		return err
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered idempotency cleanup task",
			slog.Duration("interval", s.cleanupInterval))
	}

	return nil
}

func (s *scheduler) Run() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	go func() {
		if err := s.asynqScheduler.Run(); err != nil && s.log != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
