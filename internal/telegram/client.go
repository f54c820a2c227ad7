// Package telegram wraps the Bot API calls the runtime makes on behalf of
// registered bots.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/pkg/config"
	"github.com/botforge/botforge/pkg/metrics"
)

const (
	methodSendMessage = "sendMessage"
	methodSendPhoto   = "sendPhoto"
	methodSetWebhook  = "setWebhook"
)

// Client sends Bot API requests for one bot token. Calls are guarded by a
// circuit breaker so a revoked token or a Telegram outage fails fast.
type Client struct {
	bot     *telebot.Bot
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

// NewClient creates a client for token without contacting Telegram.
func NewClient(cfg config.TelegramConfig, token string, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	bot, err := telebot.NewBot(telebot.Settings{
		URL:     cfg.APIURL,
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
		OnError: func(err error, _ telebot.Context) {
			log.Error("telebot error", slog.Any("error", err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create telebot client: %w", err)
	}

	return &Client{
		bot:     bot,
		breaker: apperrors.NewCircuitBreaker(),
		log:     log,
	}, nil
}

// SendMessage sends text to chatID with an optional inline keyboard. Text is
// parsed as HTML so stored replies can carry <b> and <a> markup.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) error {
	opts := &telebot.SendOptions{ParseMode: telebot.ModeHTML}
	if markup != nil {
		opts.ReplyMarkup = markup
	}

	return c.call(ctx, methodSendMessage, func() error {
		_, err := c.bot.Send(&telebot.Chat{ID: chatID}, text, opts)
		return err
	})
}

// SendPhoto sends the photo at photoURL to chatID.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	photo := &telebot.Photo{File: telebot.FromURL(photoURL), Caption: caption}

	return c.call(ctx, methodSendPhoto, func() error {
		_, err := c.bot.Send(&telebot.Chat{ID: chatID}, photo)
		return err
	})
}

// SetWebhook points the bot's update delivery at url.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.call(ctx, methodSetWebhook, func() error {
		return c.bot.SetWebhook(&telebot.Webhook{Endpoint: &telebot.WebhookEndpoint{PublicURL: url}})
	})
}

// call runs fn through the breaker and maps failures to UpstreamDeliveryFailure.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		metrics.RecordDelivery(method, "canceled")
		return apperrors.NewUpstreamDeliveryError(method, err)
	}

	if err := c.breaker.Call(fn); err != nil {
		status := "error"
		if errors.Is(err, apperrors.ErrCircuitOpen) || errors.Is(err, apperrors.ErrHalfOpenTooManyRequests) {
			status = "circuit_open"
		}
		metrics.RecordDelivery(method, status)
		return apperrors.NewUpstreamDeliveryError(method, err)
	}

	metrics.RecordDelivery(method, "success")
	return nil
}

// Factory hands out one Client per bot token.
type Factory struct {
	cfg config.TelegramConfig
	log *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewFactory creates a Factory for the configured Bot API endpoint.
func NewFactory(cfg config.TelegramConfig, log *slog.Logger) *Factory {
	if log == nil {
		log = slog.Default()
	}

	return &Factory{cfg: cfg, log: log, clients: make(map[string]*Client)}
}

// ForBot returns the cached client for token, creating it on first use.
func (f *Factory) ForBot(token string) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[token]; ok {
		return client, nil
	}

	client, err := NewClient(f.cfg, token, f.log)
	if err != nil {
		return nil, err
	}

	f.clients[token] = client
	return client, nil
}
