package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/botforge/botforge/internal/command"
	"github.com/botforge/botforge/internal/domain"
	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/internal/i18n"
	"github.com/botforge/botforge/internal/idempotency"
)

type stubConfigs map[int64]*domain.BotConfig

func (s stubConfigs) GetBotConfig(_ context.Context, botID int64) (*domain.BotConfig, error) {
	cfg, ok := s[botID]
	if !ok {
		return nil, apperrors.NewBotNotFoundError(botID)
	}
	return cfg, nil
}

type sent struct {
	chatID  int64
	text    string
	photo   string
	webApp  string
	linkURL string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := sent{chatID: chatID, text: text}
	if markup != nil && len(markup.InlineKeyboard) > 0 && len(markup.InlineKeyboard[0]) > 0 {
		btn := markup.InlineKeyboard[0][0]
		if btn.WebApp != nil {
			s.webApp = btn.WebApp.URL
		}
		s.linkURL = btn.URL
	}
	f.sent = append(f.sent, s)
	return f.err
}

func (f *fakeSender) SendPhoto(_ context.Context, chatID int64, photoURL, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, sent{chatID: chatID, photo: photoURL})
	return f.err
}

func (f *fakeSender) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []domain.AnalyticsEvent
}

func (r *recordedEvents) Record(_ context.Context, event domain.AnalyticsEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBot() *domain.BotConfig {
	return &domain.BotConfig{
		Bot: domain.Bot{ID: 42, Token: "42:token"},
		Commands: []domain.Command{
			{BotID: 42, Command: "help", ResponseType: domain.ResponseText, ResponseContent: "How can I help?"},
			{BotID: 42, Command: "pic", ResponseType: domain.ResponsePhoto, ResponseContent: "https://cdn.example.com/BOT_ID.png"},
			{BotID: 42, Command: "start", ResponseType: domain.ResponseURLButton, ResponseContent: "Welcome", URLLink: "/bot/BOT_ID/webapp", ButtonText: "Play"},
		},
	}
}

func setupDispatcher(t *testing.T, opts Options) (*Dispatcher, *fakeSender, *recordedEvents) {
	t.Helper()

	sender := &fakeSender{}
	events := &recordedEvents{}
	resolver := command.NewResolver(
		command.NewLinkBuilder("https://forge.example.com", command.DefaultPathSegment),
		nil,
		i18n.MustLoad("en"),
		discard(),
	)

	opts.Events = events
	opts.Logger = discard()
	d := NewDispatcher(
		stubConfigs{42: testBot()},
		resolver,
		func(string) (Sender, error) { return sender, nil },
		opts,
	)

	return d, sender, events
}

func update(id int, text string) []byte {
	return []byte(`{"update_id":` + strconv.Itoa(id) + `,"message":{"message_id":1,"date":0,"chat":{"id":1001,"type":"private"},"from":{"id":7,"is_bot":false,"first_name":"A","language_code":"en"},"text":"` + text + `"}}`)
}


func TestDispatcher_UnknownBot(t *testing.T) {
	d, sender, _ := setupDispatcher(t, Options{})

	err := d.Dispatch(context.Background(), 1, update(1, "/help"))
	assert.ErrorIs(t, err, apperrors.ErrBotNotFound)
	assert.Empty(t, sender.messages())
}

func TestDispatcher_Replies(t *testing.T) {
	tests := []struct {
		name string
		text string
		want sent
	}{
		{
			name: "text command",
			text: "/HELP",
			want: sent{chatID: 1001, text: "How can I help?"},
		},
		{
			name: "photo command",
			text: "/pic",
			want: sent{chatID: 1001, photo: "https://cdn.example.com/42.png"},
		},
		{
			name: "custom start",
			text: "/start",
			want: sent{chatID: 1001, text: "Welcome", webApp: "https://forge.example.com/bot/42/webapp?user_id=7"},
		},
		{
			name: "webapp",
			text: "/webapp",
			want: sent{chatID: 1001, text: "🎮 Click the button below to open the mini-app:", webApp: "https://forge.example.com/bot/42/webapp?user_id=7"},
		},
		{
			name: "unknown command",
			text: "/foo bar",
			want: sent{chatID: 1001, text: "Unknown command: /foo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sender, _ := setupDispatcher(t, Options{})

			require.NoError(t, d.Dispatch(context.Background(), 42, update(1, tt.text)))

			got := sender.messages()
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestDispatcher_FreeTextWithoutAIIsSilent(t *testing.T) {
	d, sender, events := setupDispatcher(t, Options{})

	require.NoError(t, d.Dispatch(context.Background(), 42, update(1, "hello there")))

	assert.Empty(t, sender.messages())
	require.Len(t, events.events, 1)
	assert.Equal(t, domain.EventMessage, events.events[0].Type)
	assert.Equal(t, "hello there", events.events[0].Data["text"])
}

func TestDispatcher_RecordsCommandEvent(t *testing.T) {
	d, _, events := setupDispatcher(t, Options{})

	require.NoError(t, d.Dispatch(context.Background(), 42, update(1, "/help")))

	require.Len(t, events.events, 2)
	assert.Equal(t, domain.EventMessage, events.events[0].Type)
	assert.Equal(t, domain.EventCommand, events.events[1].Type)
	assert.Equal(t, "help", events.events[1].Data["command"])
	assert.Equal(t, int64(7), events.events[1].UserID)
	assert.Equal(t, int64(42), events.events[1].BotID)
}

func TestDispatcher_DeliveryFailureIsAbsorbed(t *testing.T) {
	d, sender, _ := setupDispatcher(t, Options{})
	sender.err = apperrors.NewUpstreamDeliveryError("sendMessage", errors.New("timeout"))

	assert.NoError(t, d.Dispatch(context.Background(), 42, update(1, "/help")))
	assert.Len(t, sender.messages(), 1)
}

func TestDispatcher_MalformedPayloadIsNoop(t *testing.T) {
	d, sender, events := setupDispatcher(t, Options{})

	for _, body := range []string{"{", `{"update_id":5}`, `{"update_id":5,"callback_query":{"id":"1"}}`} {
		assert.NoError(t, d.Dispatch(context.Background(), 42, []byte(body)))
	}
	assert.Empty(t, sender.messages())
	assert.Empty(t, events.events)
}

func TestDispatcher_MissingTextIsEmpty(t *testing.T) {
	d, sender, events := setupDispatcher(t, Options{})
	body := []byte(`{"update_id":3,"message":{"message_id":1,"date":0,"chat":{"id":1001,"type":"private"},"from":{"id":7,"is_bot":false,"first_name":"A"}}}`)

	require.NoError(t, d.Dispatch(context.Background(), 42, body))
	assert.Empty(t, sender.messages())
	require.Len(t, events.events, 1)
	assert.Equal(t, "", events.events[0].Data["text"])
}

func TestDispatcher_RedeliveredUpdateIsAcknowledgedOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := idempotency.NewManager(idempotency.NewRedisStore(client, discard()), discard())
	d, sender, _ := setupDispatcher(t, Options{Dedupe: manager, DedupeTTL: time.Hour})

	require.NoError(t, d.Dispatch(context.Background(), 42, update(77, "/help")))
	require.NoError(t, d.Dispatch(context.Background(), 42, update(77, "/help")))
	require.NoError(t, d.Dispatch(context.Background(), 42, update(78, "/help")))

	assert.Len(t, sender.messages(), 2)
}

func TestDispatcher_DedupeOutageStillReplies(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	manager := idempotency.NewManager(idempotency.NewRedisStore(client, discard()), discard())
	d, sender, events := setupDispatcher(t, Options{Dedupe: manager, DedupeTTL: time.Hour})
	mr.Close()

	require.NoError(t, d.Dispatch(context.Background(), 42, update(90, "/help")))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "How can I help?", msgs[0].text)
	assert.NotEmpty(t, events.events)
	assert.Equal(t, domain.EventMessage, events.events[0].Type)
}

func TestDispatcher_RecoversFromPanics(t *testing.T) {
	d := NewDispatcher(
		stubConfigs{42: testBot()},
		panicResolver{},
		func(string) (Sender, error) { return &fakeSender{}, nil },
		Options{Logger: discard(), ErrorHandler: apperrors.NewHandler(discard(), false)},
	)

	assert.NotPanics(t, func() {
		assert.NoError(t, d.Dispatch(context.Background(), 42, update(1, "/help")))
	})
}

type panicResolver struct{}

func (panicResolver) Resolve(context.Context, *domain.BotConfig, command.Request) command.Action {
	panic("boom")
}
