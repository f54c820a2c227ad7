package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/botforge/botforge/internal/ai"
	"github.com/botforge/botforge/internal/analytics"
	"github.com/botforge/botforge/internal/botcache"
	"github.com/botforge/botforge/internal/command"
	"github.com/botforge/botforge/internal/economy"
	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/internal/health"
	"github.com/botforge/botforge/internal/httpapi"
	"github.com/botforge/botforge/internal/i18n"
	"github.com/botforge/botforge/internal/idempotency"
	"github.com/botforge/botforge/internal/jobs"
	"github.com/botforge/botforge/internal/jobs/handlers"
	"github.com/botforge/botforge/internal/lifecycle"
	"github.com/botforge/botforge/internal/lock"
	"github.com/botforge/botforge/internal/ratelimit"
	"github.com/botforge/botforge/internal/registry"
	"github.com/botforge/botforge/internal/telegram"
	"github.com/botforge/botforge/internal/webhook"
	"github.com/botforge/botforge/pkg/config"
	"github.com/botforge/botforge/pkg/graceful"
	"github.com/botforge/botforge/pkg/logger"
	"github.com/botforge/botforge/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "botforge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	flushSentry, err := logger.InitSentry(cfg.Sentry, cfg.AppEnv)
	if err != nil {
		log.Warn("sentry disabled", slog.Any("error", err))
	}
	defer flushSentry()

	log.Info("starting botforge",
		slog.String("env", cfg.AppEnv),
		slog.Int("port", cfg.Server.Port),
		slog.String("storage", cfg.Storage.Driver),
		slog.Bool("redis", cfg.Redis.Enabled),
	)

	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)
	shutdown := lifecycle.NewShutdown(log)
	checker := health.NewChecker(log, 2*time.Second)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	checker.AddCheck("database", store)

	translations, err := i18n.Load("en")
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}

	var (
		rdb      *redis.MetricsClient
		locker   lock.Locker
		cache    *botcache.Cache
		deduper  webhook.Deduper
		queue    jobs.Manager
		worker   jobs.Worker
		sched    jobs.Scheduler
		asyncOpt asynq.RedisClientOpt
	)

	localLimiter := ratelimit.NewMemoryLimiter(log)
	var limiter ratelimit.Limiter = localLimiter
	go localLimiter.Sweep(ctx, cfg.RateLimit.SweepInterval, 10*cfg.RateLimit.Window)

	sink := analytics.NewStoreSink(store, log)
	var events economy.EventRecorder = sink

	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, cfg.Redis.Config)
		if err != nil {
			return err
		}
		rdb = redis.NewMetricsClient(client)
		checker.AddCheck("redis", health.NewRedisChecker(rdb))

		locker = lock.NewRedisLocker(rdb, log, lock.RedisOptions{})
		limiter = ratelimit.NewFallbackLimiter(ratelimit.NewRedisLimiter(rdb.Raw(), log), localLimiter, log)
		cache = botcache.NewCache(rdb, cfg.Cache.BotTTL)

		if cfg.Idempotency.Enabled {
			deduper = idempotency.NewManager(idempotency.NewRedisStore(rdb.Raw(), log), log)
		}

		asyncOpt = asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		worker = jobs.NewWorker(asyncOpt, jobs.WorkerOptions{
			Queues:          jobs.DefaultQueues,
			Concurrency:     cfg.Analytics.QueueConcurrency,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			Logger:          log,
		})
		worker.RegisterHandler(jobs.TaskTypeIdempotencyCleanup, handlers.NewIdempotencyCleanupHandler(rdb.Raw(), log))

		if cfg.Analytics.Mode == config.AnalyticsModeQueue {
			queue = jobs.NewManager(asyncOpt, log)
			events = analytics.NewQueueSink(queue, sink, log)
			worker.RegisterHandler(jobs.TaskTypeAnalyticsRecord, handlers.NewAnalyticsRecordHandler(store, log))
		}

		if cfg.Idempotency.Enabled {
			sched = jobs.NewScheduler(asyncOpt, cfg.Idempotency.CleanupInterval, cfg.Idempotency.TTL, log)
			if err := sched.RegisterTasks(); err != nil {
				return fmt.Errorf("register scheduled tasks: %w", err)
			}
		}
	} else if cfg.Analytics.Mode == config.AnalyticsModeQueue {
		log.Warn("analytics queue mode requires redis, recording synchronously")
	}

	defaults := economy.DefaultsFromConfig(cfg.Economy)
	engine := economy.NewEngine(store, economy.Options{
		Locker:   locker,
		Events:   events,
		Defaults: &defaults,
		Logger:   log,
	})

	reg := registry.NewService(store, cache, log)

	var responder command.AIResponder
	if cfg.AI.Enabled {
		responder = ai.NewResponder(cfg.AI, nil, log)
	}

	links := command.NewLinkBuilder(cfg.Server.PublicURL, cfg.MiniApp.PathSegment)
	resolver := command.NewResolver(links, responder, translations, log)

	dispatcher := webhook.NewDispatcher(reg, resolver, webhook.TelegramSenders(telegram.NewFactory(cfg.Telegram, log)), webhook.Options{
		Events:       events,
		Dedupe:       deduper,
		DedupeTTL:    cfg.Idempotency.TTL,
		ErrorHandler: errHandler,
		Logger:       log,
	})

	probes := lifecycle.NewProbes(checker, log)

	router := httpapi.NewRouter(httpapi.Deps{
		Webhook:        dispatcher,
		Bots:           reg,
		Economy:        engine,
		AI:             responder,
		Events:         events,
		Probes:         probes,
		Limiter:        limiter,
		TapRule:        ratelimit.RuleFromConfig(cfg.RateLimit),
		I18n:           translations,
		ErrorHandler:   errHandler,
		MiniApp:        cfg.MiniApp,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	server := graceful.NewServer(cfg.Server, httpapi.Handler(router), log)
	server.BeforeShutdown(probes.MarkShuttingDown)

	config.WatchConfig(v, func(next *config.Config) {
		logger.SetLevel(next.Logger.Level)
		log.Info("configuration reloaded", slog.String("log_level", next.Logger.Level))
	}, func(err error) {
		log.Warn("configuration reload rejected", slog.Any("error", err))
	})

	if worker != nil {
		if err := worker.Run(); err != nil {
			return fmt.Errorf("start jobs worker: %w", err)
		}
	}
	if sched != nil {
		sched.Run()
	}

	// Stage 1 stops background consumers, stage 2 closes the connections they used.
	shutdown.Register(
		lifecycle.Hook{Name: "jobs-worker", Fn: stopFunc(worker), Timeout: 10 * time.Second},
		lifecycle.Hook{Name: "jobs-scheduler", Fn: stopFunc(sched), Timeout: 5 * time.Second},
	)
	closers := []lifecycle.Hook{{Name: "storage", Fn: lifecycle.CloseHook(store.Close), Timeout: 5 * time.Second}}
	if queue != nil {
		closers = append(closers, lifecycle.Hook{Name: "jobs-client", Fn: lifecycle.CloseHook(queue.Close), Timeout: 5 * time.Second})
	}
	if rdb != nil {
		closers = append(closers, lifecycle.Hook{Name: "redis", Fn: lifecycle.CloseHook(rdb.Close), Timeout: 5 * time.Second})
	}
	shutdown.Register(closers...)

	serveErr := server.ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+10*time.Second)
	defer cancel()
	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("botforge stopped")
	return serveErr
}

// stopper is implemented by the asynq worker and scheduler wrappers.
type stopper interface {
	Shutdown()
}

func stopFunc(s stopper) func(context.Context) error {
	return func(context.Context) error {
		if s != nil {
			s.Shutdown()
		}
		return nil
	}
}
