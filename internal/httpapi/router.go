// Package httpapi exposes the webhook and mini-app endpoints over gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/botforge/botforge/internal/command"
	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/economy"
	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/internal/i18n"
	"github.com/botforge/botforge/internal/lifecycle"
	"github.com/botforge/botforge/internal/ratelimit"
	"github.com/botforge/botforge/pkg/config"
	"github.com/botforge/botforge/pkg/logger"
)

// WebhookDispatcher handles a raw Telegram update for a bot.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, botID int64, body []byte) error
}

// BotSource loads bots.
type BotSource interface {
	GetBot(ctx context.Context, botID int64) (*domain.Bot, error)
}

// Economy is the mini-app game backend.
type Economy interface {
	Tap(ctx context.Context, botID, userID int64, now time.Time) (*economy.TapResult, error)
	GetProgress(ctx context.Context, botID, userID int64, now time.Time) (*domain.UserProgress, error)
	Purchase(ctx context.Context, botID, userID, itemID int64) (*economy.PurchaseResult, error)
	Settings(ctx context.Context, botID int64) (*domain.MiningSettings, error)
	ShopItems(ctx context.Context, botID int64) ([]domain.ShopItem, error)
}

// EventRecorder receives analytics events.
type EventRecorder interface {
	Record(ctx context.Context, event domain.AnalyticsEvent)
}

// Deps wires the router. AI, Events and Limiter may be nil.
type Deps struct {
	Webhook        WebhookDispatcher
	Bots           BotSource
	Economy        Economy
	AI             command.AIResponder
	Events         EventRecorder
	Probes         lifecycle.HealthChecker
	Limiter        ratelimit.Limiter
	TapRule        ratelimit.Rule
	I18n           *i18n.Manager
	ErrorHandler   *apperrors.Handler
	MiniApp        config.MiniAppConfig
	AllowedOrigins []string
	Logger         *slog.Logger
	Now            func() time.Time
}

type api struct {
	Deps
	log *slog.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	a := &api{Deps: deps, log: deps.Logger}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.ErrorHandler == nil {
		a.ErrorHandler = apperrors.NewHandler(a.log, false)
	}
	if a.Events == nil {
		a.Events = nopRecorder{}
	}

	r := gin.New()
	r.Use(a.recovery(), requestLogger(a.log), cors.New(corsConfig(deps.AllowedOrigins)))

	r.GET("/health", a.health)
	r.GET("/live", a.live)
	r.GET("/ready", a.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/webhook/:botId", a.webhook)

	mini := r.Group("/bot/:botId", a.botIDParam(), a.initData())
	{
		mini.POST("/tap", a.tap)
		mini.GET("/get-progress", a.getProgress)
		mini.POST("/purchase-item", a.purchaseItem)
		mini.GET("/miniapp-config", a.miniAppConfig)
	}

	r.POST("/api/ai-chat", a.aiChat)

	return r
}

// Handler wraps the router with correlation ids.
func Handler(engine *gin.Engine) http.Handler {
	return logger.Middleware(engine)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, initDataHeader, logger.CorrelationIDHeader)
	cfg.ExposeHeaders = []string{logger.CorrelationIDHeader}
	return cfg
}

func (a *api) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		a.log.Error("panic recovered in http handler",
			slog.Any("panic", recovered),
			slog.String("path", c.Request.URL.Path),
			slog.String("stack", string(debug.Stack())),
		)
		a.fail(c, apperrors.NewDatabaseError(nil))
	})
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("handled http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("correlation_id", logger.CorrelationIDFromContext(c.Request.Context())),
		)
	}
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, domain.AnalyticsEvent) {}
