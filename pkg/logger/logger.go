// Package logger builds the application's slog logger.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/botforge/botforge/pkg/config"
)

// level is shared by every handler New builds so it can be changed at runtime.
var level = new(slog.LevelVar)

// New builds the root logger: JSON or text output, optional rotated file,
// optional Sentry fan-out, with sensitive attributes masked.
func New(cfg config.Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit console writer.
func NewWithWriter(cfg config.Config, out io.Writer) *slog.Logger {
	level.Set(ParseLevel(cfg.Logger.Level))

	w := out
	if cfg.Logger.File.Enabled {
		w = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   cfg.Logger.File.Path,
			MaxSize:    cfg.Logger.File.MaxSizeMB,
			MaxBackups: cfg.Logger.File.MaxBackups,
			MaxAge:     cfg.Logger.File.MaxAgeDays,
			Compress:   cfg.Logger.File.Compress,
		})
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	if cfg.Sentry.Enabled {
		sentryHandler := slogsentry.Option{Level: slog.LevelError}.NewSentryHandler()
		handler = &fanoutHandler{handlers: []slog.Handler{handler, sentryHandler}}
	}

	log := slog.New(NewMaskingHandler(handler))
	if cfg.AppEnv != "" {
		log = log.With(slog.String("env", cfg.AppEnv))
	}

	return log
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the level of every logger built by New.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// Level returns the current shared level.
func Level() slog.Level {
	return level.Level()
}

// InitSentry configures the global Sentry client. The returned func flushes
// buffered events and is safe to call when Sentry is disabled.
func InitSentry(cfg config.SentryConfig, env string) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}

	environment := cfg.Environment
	if environment == "" {
		environment = env
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
	}); err != nil {
		return func() {}, fmt.Errorf("init sentry: %w", err)
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}

// fanoutHandler sends each record to every enabled handler.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, next := range h.handlers {
		if next.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, next := range h.handlers {
		if !next.Enabled(ctx, record.Level) {
			continue
		}
		if err := next.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, next := range h.handlers {
		out[i] = next.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: out}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, next := range h.handlers {
		out[i] = next.WithGroup(name)
	}
	return &fanoutHandler{handlers: out}
}
