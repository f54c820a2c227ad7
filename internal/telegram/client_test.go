package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/pkg/config"
)

const okMessage = `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`

type apiCall struct {
	Method string
	Params map[string]any
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
	fail  bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	params := map[string]any{}
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &params)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Params: params})
	fail := f.fail
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		return
	}

	if method == methodSetWebhook {
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		return
	}
	_, _ = w.Write([]byte(okMessage))
}

func (f *fakeAPI) last() apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func setupClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()

	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := NewClient(
		config.TelegramConfig{APIURL: srv.URL, Timeout: 5 * time.Second},
		"123:abc",
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	require.NoError(t, err)
	return client, api
}

func TestClient_SendMessageWithWebApp(t *testing.T) {
	client, api := setupClient(t)

	err := client.SendMessage(context.Background(), 99, "hello", WebAppKeyboard("Play", "https://bots.example.com/bot/1/webapp"))
	require.NoError(t, err)

	call := api.last()
	assert.Equal(t, methodSendMessage, call.Method)
	assert.Equal(t, "99", call.Params["chat_id"])
	assert.Equal(t, "hello", call.Params["text"])
	assert.Equal(t, "HTML", call.Params["parse_mode"])

	markup, ok := call.Params["reply_markup"].(string)
	require.True(t, ok)
	assert.Contains(t, markup, `"web_app":{"url":"https://bots.example.com/bot/1/webapp"}`)
}

func TestClient_SendPhotoAndWebhook(t *testing.T) {
	client, api := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.SendPhoto(ctx, 5, "https://cdn.example.com/p.png", "cap"))
	call := api.last()
	assert.Equal(t, methodSendPhoto, call.Method)
	assert.Equal(t, "https://cdn.example.com/p.png", call.Params["photo"])

	require.NoError(t, client.SetWebhook(ctx, "https://bots.example.com/webhook/1"))
	call = api.last()
	assert.Equal(t, methodSetWebhook, call.Method)
	assert.Equal(t, "https://bots.example.com/webhook/1", call.Params["url"])
}

func TestClient_FailureIsUpstreamDelivery(t *testing.T) {
	client, api := setupClient(t)
	api.fail = true

	err := client.SendMessage(context.Background(), 1, "x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamDelivery)
}

func TestClient_CanceledContextSkipsCall(t *testing.T) {
	client, api := setupClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.SendMessage(ctx, 1, "x", nil)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamDelivery)
	assert.Empty(t, api.calls)
}

func TestFactory_CachesPerToken(t *testing.T) {
	factory := NewFactory(config.TelegramConfig{APIURL: "https://api.telegram.org"}, nil)

	a, err := factory.ForBot("1:a")
	require.NoError(t, err)
	b, err := factory.ForBot("1:a")
	require.NoError(t, err)
	c, err := factory.ForBot("2:b")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestKeyboards(t *testing.T) {
	web := WebAppKeyboard("Open", "https://x/app")
	require.Len(t, web.InlineKeyboard, 1)
	require.NotNil(t, web.InlineKeyboard[0][0].WebApp)
	assert.Equal(t, "https://x/app", web.InlineKeyboard[0][0].WebApp.URL)
	assert.Empty(t, web.InlineKeyboard[0][0].URL)

	link := URLKeyboard("Site", "https://example.org")
	assert.Equal(t, "https://example.org", link.InlineKeyboard[0][0].URL)
	assert.Nil(t, link.InlineKeyboard[0][0].WebApp)

	multi := NewInlineKeyboard().
		AddRow(InlineButton{Text: "a", URL: "https://a"}, InlineButton{Text: "b", URL: "https://b"}).
		AddRow().
		AddRow(InlineButton{Text: "c", WebAppURL: "https://c"}).
		Build()
	assert.Len(t, multi.InlineKeyboard, 2)
	assert.Len(t, multi.InlineKeyboard[0], 2)
}
