package webhook

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/botforge/botforge/internal/command"
	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/telegram"
)

// Sender delivers replies through the Bot API.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
}

// SenderFactory returns the Sender for a bot token.
type SenderFactory func(token string) (Sender, error)

// TelegramSenders adapts a telegram.Factory.
func TelegramSenders(f *telegram.Factory) SenderFactory {
	return func(token string) (Sender, error) {
		client, err := f.ForBot(token)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// execute performs action. Failures are logged and swallowed.
func (d *Dispatcher) execute(ctx context.Context, bot domain.Bot, chatID int64, action command.Action) error {
	if _, ok := action.(command.NoReply); ok || action == nil {
		return nil
	}

	sender, err := d.senders(bot.Token)
	if err != nil {
		d.log.Warn("telegram client unavailable", slog.Int64("bot_id", bot.ID), slog.Any("error", err))
		return nil
	}

	switch a := action.(type) {
	case command.SendText:
		err = sender.SendMessage(ctx, chatID, a.Text, nil)
	case command.SendPhoto:
		err = sender.SendPhoto(ctx, chatID, a.URL, a.Caption)
	case command.SendWebAppButton:
		err = sender.SendMessage(ctx, chatID, a.Text, telegram.WebAppKeyboard(a.ButtonText, a.URL))
	case command.SendURLButton:
		err = sender.SendMessage(ctx, chatID, a.Text, telegram.URLKeyboard(a.ButtonText, a.URL))
	}

	if err != nil {
		d.log.Warn("reply delivery failed",
			slog.Int64("bot_id", bot.ID),
			slog.Int64("chat_id", chatID),
			slog.String("action", actionKind(action)),
			slog.Any("error", err),
		)
	}

	return nil
}

func actionKind(action command.Action) string {
	switch action.(type) {
	case command.SendText:
		return "text"
	case command.SendPhoto:
		return "photo"
	case command.SendWebAppButton:
		return "webapp_button"
	case command.SendURLButton:
		return "url_button"
	default:
		return "none"
	}
}
