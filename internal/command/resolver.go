package command

import (
	"context"
	"log/slog"

	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/i18n"
)

// AIResponder produces a free-form reply. ok is false when no reply could be
// produced; failures never surface as errors.
type AIResponder interface {
	Respond(ctx context.Context, text, apiKey string) (reply string, ok bool)
}

// Request is one incoming message as seen by the resolver.
type Request struct {
	Text         string
	UserID       int64
	LanguageCode string
}

// Resolver maps messages to actions using a bot's command table.
type Resolver struct {
	links LinkBuilder
	ai    AIResponder
	i18n  *i18n.Manager
	log   *slog.Logger
}

// NewResolver creates a Resolver. ai may be nil when no AI backend is configured.
func NewResolver(links LinkBuilder, ai AIResponder, translations *i18n.Manager, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}

	return &Resolver{links: links, ai: ai, i18n: translations, log: log}
}

// Resolve returns the action for req against cfg.
func (r *Resolver) Resolve(ctx context.Context, cfg *domain.BotConfig, req Request) Action {
	name, isCommand := Parse(req.Text)
	if !isCommand {
		if reply, ok := r.askAI(ctx, cfg, req.Text); ok {
			return SendText{Text: reply}
		}
		return NoReply{}
	}

	tr := r.i18n.Translator(req.LanguageCode)
	botID := cfg.Bot.ID

	switch name {
	case NameWebApp:
		return SendWebAppButton{
			Text:       tr.T("bot.webapp_prompt"),
			ButtonText: tr.T("bot.webapp_button"),
			URL:        r.links.WebAppURL(botID, req.UserID),
		}
	case NameStart:
		if cmd, ok := cfg.Lookup(NameStart); ok {
			return r.render(cmd, botID, req.UserID, true)
		}
	}

	if cmd, ok := cfg.Lookup(name); ok {
		return r.render(cmd, botID, req.UserID, false)
	}

	if reply, ok := r.askAI(ctx, cfg, req.Text); ok {
		return SendText{Text: reply}
	}

	return SendText{Text: tr.Tf("bot.unknown_command", map[string]string{"command": name})}
}

// render turns a stored command into an action. The start command always opens
// its link as a mini-app.
func (r *Resolver) render(cmd domain.Command, botID, userID int64, forceMiniApp bool) Action {
	switch cmd.ResponseType {
	case domain.ResponseText:
		return SendText{Text: cmd.ResponseContent}
	case domain.ResponsePhoto:
		return SendPhoto{URL: r.links.Expand(cmd.ResponseContent, botID)}
	case domain.ResponseURLButton:
		link := r.links.Expand(cmd.URLLink, botID)
		if forceMiniApp || r.links.IsMiniApp(link) {
			return SendWebAppButton{
				Text:       cmd.ResponseContent,
				ButtonText: cmd.ButtonText,
				URL:        r.links.MiniAppURL(link, userID),
			}
		}
		return SendURLButton{Text: cmd.ResponseContent, ButtonText: cmd.ButtonText, URL: link}
	default:
		r.log.Warn("command has unknown response type",
			slog.Int64("bot_id", botID),
			slog.String("command", cmd.Command),
			slog.String("response_type", string(cmd.ResponseType)),
		)
		return NoReply{}
	}
}

func (r *Resolver) askAI(ctx context.Context, cfg *domain.BotConfig, text string) (string, bool) {
	if r.ai == nil || !cfg.Bot.AIEnabled {
		return "", false
	}

	reply, ok := r.ai.Respond(ctx, text, cfg.Bot.GeminiAPIKey)
	if !ok || reply == "" {
		return "", false
	}
	return reply, true
}
