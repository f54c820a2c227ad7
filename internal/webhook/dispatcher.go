// Package webhook turns inbound Telegram updates into replies.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/botforge/botforge/internal/command"
	"github.com/botforge/botforge/internal/domain"
	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/internal/idempotency"
	"github.com/botforge/botforge/pkg/metrics"
)

// ConfigSource loads a bot with its command table.
type ConfigSource interface {
	GetBotConfig(ctx context.Context, botID int64) (*domain.BotConfig, error)
}

// Resolver maps a message to an action.
type Resolver interface {
	Resolve(ctx context.Context, cfg *domain.BotConfig, req command.Request) command.Action
}

// EventRecorder receives analytics events.
type EventRecorder interface {
	Record(ctx context.Context, event domain.AnalyticsEvent)
}

// Deduper runs an operation at most once per key.
type Deduper interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn idempotency.Operation) (bool, error)
}

// Update is a parsed inbound message bound to its bot.
type Update struct {
	ID       int
	Config   *domain.BotConfig
	ChatID   int64
	UserID   int64
	Text     string
	Language string

	// Action is the resolved action kind, set by the handler.
	Action string
}

// Handler processes one update.
type Handler func(ctx context.Context, u *Update) error

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Options tunes a Dispatcher.
type Options struct {
	Events       EventRecorder
	Dedupe       Deduper
	DedupeTTL    time.Duration
	ErrorHandler *apperrors.Handler
	Logger       *slog.Logger
}

// Dispatcher validates the bot, records analytics, resolves and executes the
// reply for every inbound update.
type Dispatcher struct {
	configs   ConfigSource
	resolver  Resolver
	senders   SenderFactory
	events    EventRecorder
	dedupe    Deduper
	dedupeTTL time.Duration
	handler   Handler
	log       *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(configs ConfigSource, resolver Resolver, senders SenderFactory, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		configs:   configs,
		resolver:  resolver,
		senders:   senders,
		events:    opts.Events,
		dedupe:    opts.Dedupe,
		dedupeTTL: opts.DedupeTTL,
		log:       log,
	}
	if d.events == nil {
		d.events = nopRecorder{}
	}
	if d.dedupeTTL <= 0 {
		d.dedupeTTL = 24 * time.Hour
	}

	d.handler = Chain(d.handle,
		RecoveryMiddleware(log, opts.ErrorHandler),
		LoggingMiddleware(log),
		MetricsMiddleware,
	)

	return d
}

// Dispatch handles the raw update body for botID. Only an unknown bot or a
// failure to load it is returned; delivery problems are absorbed. When the
// dedupe store is unreachable the update is handled anyway.
func (d *Dispatcher) Dispatch(ctx context.Context, botID int64, body []byte) error {
	cfg, err := d.configs.GetBotConfig(ctx, botID)
	if err != nil {
		if errors.Is(err, apperrors.ErrBotNotFound) {
			metrics.RecordWebhookUpdate("bot_not_found")
		} else {
			metrics.RecordWebhookUpdate("error")
		}
		return err
	}

	upd, ok := d.parse(botID, body)
	if !ok {
		metrics.RecordWebhookUpdate("ignored")
		return nil
	}
	upd.Config = cfg

	if d.dedupe == nil || upd.ID == 0 {
		_ = d.handler(ctx, upd)
		metrics.RecordWebhookUpdate("ok")
		return nil
	}

	ran, err := d.dedupe.Once(ctx, idempotency.UpdateKey(botID, upd.ID), d.dedupeTTL, func(ctx context.Context) error {
		return d.handler(ctx, upd)
	})
	switch {
	case errors.Is(err, idempotency.ErrRequestInProgress), err == nil && !ran:
		d.log.Debug("duplicate update acknowledged", slog.Int64("bot_id", botID), slog.Int("update_id", upd.ID))
		metrics.RecordWebhookUpdate("duplicate")
	case err != nil && !ran:
		d.log.Warn("update dedupe unavailable, handling without it",
			slog.Int64("bot_id", botID), slog.Int("update_id", upd.ID), slog.Any("error", err))
		_ = d.handler(ctx, upd)
		metrics.RecordWebhookUpdate("ok")
	case err != nil:
		d.log.Warn("update handled but not recorded", slog.Int64("bot_id", botID), slog.Any("error", err))
		metrics.RecordWebhookUpdate("error")
	default:
		metrics.RecordWebhookUpdate("ok")
	}

	return nil
}

// parse extracts the message fields. Malformed bodies and updates without a
// message are ignored.
func (d *Dispatcher) parse(botID int64, body []byte) (*Update, bool) {
	var raw telebot.Update
	if err := json.Unmarshal(body, &raw); err != nil {
		d.log.Debug("malformed update ignored", slog.Int64("bot_id", botID), slog.Any("error", err))
		return nil, false
	}

	msg := raw.Message
	if msg == nil {
		return nil, false
	}

	upd := &Update{ID: raw.ID, Text: msg.Text}
	if msg.Chat != nil {
		upd.ChatID = msg.Chat.ID
	}
	if msg.Sender != nil {
		upd.UserID = msg.Sender.ID
		upd.Language = msg.Sender.LanguageCode
	}

	return upd, true
}

func (d *Dispatcher) handle(ctx context.Context, u *Update) error {
	botID := u.Config.Bot.ID

	d.events.Record(ctx, domain.AnalyticsEvent{
		BotID:  botID,
		UserID: u.UserID,
		Type:   domain.EventMessage,
		Data:   map[string]any{"text": u.Text},
	})

	if name, ok := command.Parse(u.Text); ok {
		d.events.Record(ctx, domain.AnalyticsEvent{
			BotID:  botID,
			UserID: u.UserID,
			Type:   domain.EventCommand,
			Data:   map[string]any{"command": name},
		})
	}

	action := d.resolver.Resolve(ctx, u.Config, command.Request{
		Text:         u.Text,
		UserID:       u.UserID,
		LanguageCode: u.Language,
	})
	u.Action = actionKind(action)

	if u.ChatID == 0 {
		return nil
	}

	return d.execute(ctx, u.Config.Bot, u.ChatID, action)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, domain.AnalyticsEvent) {}
