package command

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/i18n"
)

type mockAI struct {
	mock.Mock
}

func (m *mockAI) Respond(ctx context.Context, text, apiKey string) (string, bool) {
	args := m.Called(ctx, text, apiKey)
	return args.String(0), args.Bool(1)
}

const publicURL = "https://bots.example.com"

func newTestResolver(t *testing.T, ai AIResponder) *Resolver {
	t.Helper()

	translations, err := i18n.Load("en")
	require.NoError(t, err)

	return NewResolver(
		NewLinkBuilder(publicURL, DefaultPathSegment),
		ai,
		translations,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func botConfig(aiEnabled bool, commands ...domain.Command) *domain.BotConfig {
	return &domain.BotConfig{
		Bot:      domain.Bot{ID: 42, AIEnabled: aiEnabled, GeminiAPIKey: "key-42"},
		Commands: commands,
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		text   string
		name   string
		isCmds bool
	}{
		{text: "/start", name: "start", isCmds: true},
		{text: "/HeLp me please", name: "help", isCmds: true},
		{text: "/", isCmds: false},
		{text: "/   ", isCmds: false},
		{text: "hello /start", isCmds: false},
		{text: "", isCmds: false},
	}

	for _, tt := range tests {
		name, ok := Parse(tt.text)
		assert.Equal(t, tt.isCmds, ok, tt.text)
		assert.Equal(t, tt.name, name, tt.text)
	}
}

func TestResolver_Resolve(t *testing.T) {
	startButton := domain.Command{
		Command:         "start",
		ResponseType:    domain.ResponseURLButton,
		ResponseContent: "Welcome!",
		URLLink:         "/bot/BOT_ID/webapp",
		ButtonText:      "Play",
	}
	helpText := domain.Command{Command: "help", ResponseType: domain.ResponseText, ResponseContent: "Help text"}
	pic := domain.Command{Command: "pic", ResponseType: domain.ResponsePhoto, ResponseContent: "https://cdn.example.com/BOT_ID.png"}
	site := domain.Command{
		Command:         "site",
		ResponseType:    domain.ResponseURLButton,
		ResponseContent: "Visit us",
		URLLink:         "https://example.org/page",
		ButtonText:      "Open",
	}
	shop := domain.Command{
		Command:         "shop",
		ResponseType:    domain.ResponseURLButton,
		ResponseContent: "Shop",
		URLLink:         "/bot/BOT_ID/webapp?tab=shop",
		ButtonText:      "Buy",
	}

	tests := []struct {
		name string
		cfg  *domain.BotConfig
		text string
		want Action
	}{
		{
			name: "webapp is built in",
			cfg:  botConfig(false, helpText),
			text: "/webapp",
			want: SendWebAppButton{
				Text:       "🎮 Click the button below to open the mini-app:",
				ButtonText: "🎮 Open Mini-App",
				URL:        publicURL + "/bot/42/webapp?user_id=7",
			},
		},
		{
			name: "custom start url button",
			cfg:  botConfig(false, startButton),
			text: "/start",
			want: SendWebAppButton{
				Text:       "Welcome!",
				ButtonText: "Play",
				URL:        publicURL + "/bot/42/webapp?user_id=7",
			},
		},
		{
			name: "start without custom entry is unknown",
			cfg:  botConfig(false, helpText),
			text: "/start",
			want: SendText{Text: "Unknown command: /start"},
		},
		{
			name: "text command is case insensitive",
			cfg:  botConfig(false, helpText),
			text: "/HELP",
			want: SendText{Text: "Help text"},
		},
		{
			name: "photo substitutes bot id",
			cfg:  botConfig(false, pic),
			text: "/pic",
			want: SendPhoto{URL: "https://cdn.example.com/42.png"},
		},
		{
			name: "external url button",
			cfg:  botConfig(false, site),
			text: "/site",
			want: SendURLButton{Text: "Visit us", ButtonText: "Open", URL: "https://example.org/page"},
		},
		{
			name: "internal url button keeps query",
			cfg:  botConfig(false, shop),
			text: "/shop extra words",
			want: SendWebAppButton{
				Text:       "Shop",
				ButtonText: "Buy",
				URL:        publicURL + "/bot/42/webapp?tab=shop&user_id=7",
			},
		},
		{
			name: "unknown command with ai disabled",
			cfg:  botConfig(false, helpText),
			text: "/foo",
			want: SendText{Text: "Unknown command: /foo"},
		},
		{
			name: "free text with ai disabled is silent",
			cfg:  botConfig(false, helpText),
			text: "hello there",
			want: NoReply{},
		},
	}

	resolver := newTestResolver(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Resolve(context.Background(), tt.cfg, Request{Text: tt.text, UserID: 7})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestResolver_StartIsTerminalEvenWithAI(t *testing.T) {
	ai := &mockAI{}
	resolver := newTestResolver(t, ai)
	start := domain.Command{Command: "start", ResponseType: domain.ResponseText, ResponseContent: "Hi"}

	got := resolver.Resolve(context.Background(), botConfig(true, start), Request{Text: "/start", UserID: 7})

	assert.Equal(t, SendText{Text: "Hi"}, got)
	ai.AssertNotCalled(t, "Respond", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_UnknownCommandFallsBackToAI(t *testing.T) {
	ai := &mockAI{}
	ai.On("Respond", mock.Anything, "/foo bar", "key-42").Return("AI says hi", true).Once()
	resolver := newTestResolver(t, ai)

	got := resolver.Resolve(context.Background(), botConfig(true), Request{Text: "/foo bar", UserID: 7})

	assert.Equal(t, SendText{Text: "AI says hi"}, got)
	ai.AssertExpectations(t)
}

func TestResolver_AIWithoutReplyFallsBackToUnknown(t *testing.T) {
	ai := &mockAI{}
	ai.On("Respond", mock.Anything, "/foo", "key-42").Return("", false).Once()
	resolver := newTestResolver(t, ai)

	got := resolver.Resolve(context.Background(), botConfig(true), Request{Text: "/foo", UserID: 7})

	assert.Equal(t, SendText{Text: "Unknown command: /foo"}, got)
	ai.AssertExpectations(t)
}

func TestResolver_FreeTextUsesAI(t *testing.T) {
	ai := &mockAI{}
	ai.On("Respond", mock.Anything, "how are you", "key-42").Return("fine", true).Once()
	resolver := newTestResolver(t, ai)

	got := resolver.Resolve(context.Background(), botConfig(true), Request{Text: "how are you"})
	assert.Equal(t, SendText{Text: "fine"}, got)

	got = resolver.Resolve(context.Background(), botConfig(false), Request{Text: "how are you"})
	assert.Equal(t, NoReply{}, got)
	ai.AssertExpectations(t)
}

func TestResolver_LocalizesFixedTexts(t *testing.T) {
	resolver := newTestResolver(t, nil)

	got := resolver.Resolve(context.Background(), botConfig(false), Request{Text: "/foo", LanguageCode: "ru-RU"})

	reply, ok := got.(SendText)
	require.True(t, ok)
	assert.Contains(t, reply.Text, "/foo")
	assert.NotEqual(t, "Unknown command: /foo", reply.Text)
}

func TestLinkBuilder(t *testing.T) {
	b := NewLinkBuilder(publicURL+"/", "")

	assert.Equal(t, "/bot/42/webapp", b.Expand("/bot/BOT_ID/webapp", 42))
	assert.True(t, b.IsMiniApp("/bot/42/webapp"))
	assert.False(t, b.IsMiniApp("https://example.org"))
	assert.Equal(t, publicURL+"/bot/1/webapp?user_id=2", b.MiniAppURL("bot/1/webapp", 2))
	assert.Equal(t, "https://other.example.com/bot/1?user_id=2", b.MiniAppURL("https://other.example.com/bot/1", 2))
	assert.Equal(t, publicURL+"/webhook/42", b.WebhookURL(42))
}
