package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/pkg/metrics"
)

// Chain wraps h so that the first middleware runs outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			h = middlewares[i](h)
		}
	}
	return h
}

// RecoveryMiddleware turns a panic into a reported error.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, u *Update) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in webhook handler",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					if errHandler != nil {
						errHandler.Handle(ctx, fmt.Errorf("panic recovered: %v", r))
					}
					err = nil
				}
			}()

			return next(ctx, u)
		}
	}
}

// LoggingMiddleware logs each handled update.
func LoggingMiddleware(log *slog.Logger) Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, u *Update) error {
			start := time.Now()
			err := next(ctx, u)

			log.Info("handled update",
				slog.Int64("bot_id", u.Config.Bot.ID),
				slog.Int64("user_id", u.UserID),
				slog.String("action", u.Action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)
			return err
		}
	}
}

// MetricsMiddleware reports handling duration by resolved action kind.
func MetricsMiddleware(next Handler) Handler {
	return func(ctx context.Context, u *Update) error {
		start := time.Now()
		err := next(ctx, u)

		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordCommand(u.Action, status, time.Since(start))

		return err
	}
}
