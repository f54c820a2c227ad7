package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/botforge/internal/botcache"
	"github.com/botforge/botforge/internal/domain"
	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/internal/repository/sqlite"
	"github.com/botforge/botforge/pkg/redis"
)

const testWallet = "EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N"

func setupService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(sqlite.MemoryPath, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := botcache.NewCache(redis.NewMetricsClient(redis.Wrap(rdb)), time.Minute)

	return NewService(store, cache, log), mr
}

func createBot(t *testing.T, s *Service) *domain.Bot {
	t.Helper()

	bot := &domain.Bot{Name: " shop ", Token: "1:abc"}
	require.NoError(t, s.CreateBot(context.Background(), bot))
	assert.Equal(t, "shop", bot.Name)
	return bot
}

func TestService_GetBotConfigNotFound(t *testing.T) {
	s, _ := setupService(t)

	_, err := s.GetBotConfig(context.Background(), 404)
	assert.ErrorIs(t, err, apperrors.ErrBotNotFound)
}

func TestService_CommandsAreNormalizedAndUnique(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	bot := createBot(t, s)

	cmd := &domain.Command{BotID: bot.ID, Command: " /Help ", ResponseContent: "hi"}
	require.NoError(t, s.AddCommand(ctx, cmd))
	assert.Equal(t, "help", cmd.Command)
	assert.Equal(t, domain.ResponseText, cmd.ResponseType)

	err := s.AddCommand(ctx, &domain.Command{BotID: bot.ID, Command: "HELP", ResponseContent: "again"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	cfg, err := s.GetBotConfig(ctx, bot.ID)
	require.NoError(t, err)
	require.Len(t, cfg.Commands, 1)
	got, ok := cfg.Lookup("help")
	assert.True(t, ok)
	assert.Equal(t, "hi", got.ResponseContent)
}

func TestService_CommandValidation(t *testing.T) {
	s, _ := setupService(t)
	bot := createBot(t, s)

	tests := []struct {
		name string
		cmd  domain.Command
	}{
		{name: "empty name", cmd: domain.Command{Command: "/", ResponseContent: "x"}},
		{name: "empty response", cmd: domain.Command{Command: "a"}},
		{name: "unknown type", cmd: domain.Command{Command: "a", ResponseContent: "x", ResponseType: "video"}},
		{name: "button without link", cmd: domain.Command{Command: "a", ResponseContent: "x", ResponseType: domain.ResponseURLButton, ButtonText: "Go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd
			cmd.BotID = bot.ID
			assert.ErrorIs(t, s.AddCommand(context.Background(), &cmd), apperrors.ErrValidation)
		})
	}

	err := s.AddCommand(context.Background(), &domain.Command{BotID: 999, Command: "a", ResponseContent: "x"})
	assert.ErrorIs(t, err, apperrors.ErrBotNotFound)
}

func TestService_URLButtonExpandsBotID(t *testing.T) {
	s, _ := setupService(t)
	bot := createBot(t, s)

	cmd := &domain.Command{
		BotID:           bot.ID,
		Command:         "play",
		ResponseType:    domain.ResponseURLButton,
		ResponseContent: "Tap to play",
		URLLink:         "/bot/BOT_ID/webapp",
		ButtonText:      "Play",
	}
	require.NoError(t, s.AddCommand(context.Background(), cmd))
	assert.Equal(t, "/bot/1/webapp", cmd.URLLink)
}

func TestService_WritesInvalidateCache(t *testing.T) {
	s, mr := setupService(t)
	ctx := context.Background()
	bot := createBot(t, s)

	_, err := s.GetBotConfig(ctx, bot.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("bot:1:config"))

	enabled, err := s.ToggleAI(ctx, bot.ID)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.False(t, mr.Exists("bot:1:config"))

	cfg, err := s.GetBotConfig(ctx, bot.ID)
	require.NoError(t, err)
	assert.True(t, cfg.Bot.AIEnabled)

	require.NoError(t, s.AddCommand(ctx, &domain.Command{BotID: bot.ID, Command: "help", ResponseContent: "hi"}))
	cfg, err = s.GetBotConfig(ctx, bot.ID)
	require.NoError(t, err)
	assert.Len(t, cfg.Commands, 1)

	require.NoError(t, s.DeleteCommand(ctx, bot.ID, cfg.Commands[0].ID))
	cfg, err = s.GetBotConfig(ctx, bot.ID)
	require.NoError(t, err)
	assert.Empty(t, cfg.Commands)
}

func TestService_SaveMiningSettingsBounds(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	bot := createBot(t, s)

	valid := domain.DefaultMiningSettings(bot.ID)
	require.NoError(t, s.SaveMiningSettings(ctx, &valid))

	tests := []struct {
		name   string
		mutate func(*domain.MiningSettings)
	}{
		{name: "tap reward below one", mutate: func(m *domain.MiningSettings) { m.TapReward = 0 }},
		{name: "max energy below 100", mutate: func(m *domain.MiningSettings) { m.MaxEnergy = 99 }},
		{name: "negative initial balance", mutate: func(m *domain.MiningSettings) { m.InitialBalance = -1 }},
		{name: "negative recharge", mutate: func(m *domain.MiningSettings) { m.EnergyRechargeRate = -1 }},
		{name: "missing coin name", mutate: func(m *domain.MiningSettings) { m.CoinName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := domain.DefaultMiningSettings(bot.ID)
			tt.mutate(&settings)
			assert.ErrorIs(t, s.SaveMiningSettings(ctx, &settings), apperrors.ErrValidation)
		})
	}
}

func TestService_ShopItems(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	bot := createBot(t, s)

	item := &domain.ShopItem{BotID: bot.ID, Name: "Boost", Price: decimal.NewFromInt(50)}
	require.NoError(t, s.AddShopItem(ctx, item))
	assert.Equal(t, domain.CurrencyCoins, item.Currency)

	assert.ErrorIs(t, s.AddShopItem(ctx, &domain.ShopItem{BotID: bot.ID, Name: "x", Price: decimal.NewFromInt(-1)}), apperrors.ErrValidation)
	assert.ErrorIs(t, s.AddShopItem(ctx, &domain.ShopItem{BotID: bot.ID, Name: "x", Currency: "usd"}), apperrors.ErrValidation)

	require.NoError(t, s.DeactivateShopItem(ctx, bot.ID, item.ID))
	assert.ErrorIs(t, s.DeactivateShopItem(ctx, bot.ID, 999), apperrors.ErrItemNotFound)
}

func TestService_TONWallet(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	bot := createBot(t, s)

	assert.ErrorIs(t, s.SetTONWallet(ctx, bot.ID, "not-a-wallet"), apperrors.ErrValidation)
	require.NoError(t, s.SetTONWallet(ctx, bot.ID, testWallet))

	got, err := s.GetBot(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, testWallet, got.TONWallet)
}

func TestService_SetWebhookAndStats(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	bot := createBot(t, s)

	require.NoError(t, s.SetWebhook(ctx, bot.ID, "https://example.com/webhook/1"))
	got, err := s.GetBot(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/webhook/1", got.WebhookURL)

	require.NoError(t, s.store.RecordEvent(ctx, domain.AnalyticsEvent{BotID: bot.ID, UserID: 1, Type: domain.EventTap, CreatedAt: time.Now()}))
	stats, err := s.Stats(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[domain.EventTap])

	_, err = s.Stats(ctx, 999)
	assert.ErrorIs(t, err, apperrors.ErrBotNotFound)
}
