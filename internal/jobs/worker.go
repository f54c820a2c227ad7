package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"

	"github.com/botforge/botforge/pkg/metrics"
)

// Worker consumes analytics and maintenance tasks.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run() error
	Shutdown()
}

// WorkerOptions tunes a Worker. Zero values select the defaults.
type WorkerOptions struct {
	Queues          map[string]int
	Concurrency     int
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

const (
	defaultConcurrency     = 10
	defaultShutdownTimeout = 8 * time.Second
)

type worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	taskTypes []string
	log       *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker builds a Worker on an asynq server.
func NewWorker(redisOpt asynq.RedisConnOpt, opts WorkerOptions) Worker {
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	log := base.With(slog.String("component", "jobs_worker"))

	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if len(opts.Queues) == 0 {
		opts.Queues = DefaultQueues
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:          opts.Queues,
		Concurrency:     opts.Concurrency,
		RetryDelayFunc:  asynq.DefaultRetryDelayFunc,
		ShutdownTimeout: opts.ShutdownTimeout,
		ErrorHandler:    failureLogger(log),
		Logger:          newAsynqLogger(base),
	})

	mux := asynq.NewServeMux()
	mux.Use(observeTasks)

	return &worker{server: server, mux: mux, log: log}
}

// RegisterHandler routes taskType to handler. Call before Run.
func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
	w.taskTypes = append(w.taskTypes, taskType)
}

// Run starts processing in the background and returns once the server is up.
func (w *worker) Run() error {
	types := append([]string(nil), w.taskTypes...)
	sort.Strings(types)
	w.log.Info("starting jobs worker", slog.Any("task_types", types))

	return w.server.Start(w.mux)
}

// Shutdown waits for in-flight tasks up to the shutdown timeout.
func (w *worker) Shutdown() {
	w.log.Info("stopping jobs worker")
	w.server.Shutdown()
}

// observeTasks records the outcome and duration of every task.
func observeTasks(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		metrics.RecordJob(t.Type(), taskStatus(err), time.Since(start))
		return err
	})
}

func taskStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, asynq.SkipRetry):
		return "dropped"
	default:
		return "retry"
	}
}

// failureLogger logs failed tasks. The last attempt is logged as an error
// because the task is archived afterwards.
func failureLogger(log *slog.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		level := slog.LevelWarn
		if retried >= maxRetry || errors.Is(err, asynq.SkipRetry) {
			level = slog.LevelError
		}

		log.Log(ctx, level, "task failed",
			slog.String("task_type", t.Type()),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err),
		)
	})
}
