package postgres

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/repository"
)

// setupTestStore connects to the database named by BOTFORGE_TEST_POSTGRES_DSN.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("BOTFORGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BOTFORGE_TEST_POSTGRES_DSN is not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))

	store := New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, store.Migrate(ctx))
	return store
}

func createTestBot(t *testing.T, store *Store) *domain.Bot {
	t.Helper()

	bot := &domain.Bot{Name: "pg-test", Token: "123:abc"}
	require.NoError(t, store.CreateBot(context.Background(), bot))
	t.Cleanup(func() {
		_, _ = store.DB().Exec(`DELETE FROM bots WHERE id = $1`, bot.ID)
	})
	return bot
}

func TestStore_BotRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	bot := createTestBot(t, store)

	got, err := store.GetBot(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, "pg-test", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	got.AIEnabled = true
	require.NoError(t, store.UpdateBot(ctx, got))

	got, err = store.GetBot(ctx, bot.ID)
	require.NoError(t, err)
	assert.True(t, got.AIEnabled)

	_, err = store.GetBot(ctx, -1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_CommandsRejectDuplicates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	bot := createTestBot(t, store)

	cmd := &domain.Command{BotID: bot.ID, Command: "help", ResponseType: domain.ResponseText, ResponseContent: "hi"}
	require.NoError(t, store.CreateCommand(ctx, cmd))

	dup := &domain.Command{BotID: bot.ID, Command: "help", ResponseType: domain.ResponseText}
	assert.ErrorIs(t, store.CreateCommand(ctx, dup), repository.ErrDuplicate)

	require.NoError(t, store.DeleteCommand(ctx, bot.ID, cmd.ID))
	assert.ErrorIs(t, store.DeleteCommand(ctx, bot.ID, cmd.ID), repository.ErrNotFound)
}

func TestStore_ProgressUpsert(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	bot := createTestBot(t, store)

	_, err := store.GetProgress(ctx, bot.ID, 7)
	require.ErrorIs(t, err, repository.ErrNotFound)

	p := &domain.UserProgress{BotID: bot.ID, UserID: 7, Energy: 10, Level: 1}
	require.NoError(t, store.UpsertProgress(ctx, p))

	now := time.Now().UTC().Truncate(time.Second)
	p.Energy = 9
	p.CoinBalance = 1
	p.LastTapTime = &now
	require.NoError(t, store.UpsertProgress(ctx, p))

	got, err := store.GetProgress(ctx, bot.ID, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 9, got.Energy)
	assert.EqualValues(t, 1, got.CoinBalance)
	require.NotNil(t, got.LastTapTime)
	assert.True(t, now.Equal(*got.LastTapTime))
}

func TestStore_ShopAndAnalytics(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	bot := createTestBot(t, store)

	item := &domain.ShopItem{BotID: bot.ID, Name: "Boost", Price: decimal.RequireFromString("10.5"), Currency: domain.CurrencyCoins}
	require.NoError(t, store.CreateShopItem(ctx, item))

	got, err := store.GetActiveShopItem(ctx, bot.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("10.5")))
	assert.Nil(t, got.RewardAmount)

	require.NoError(t, store.DeactivateShopItem(ctx, bot.ID, item.ID))
	_, err = store.GetActiveShopItem(ctx, bot.ID, item.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, store.RecordEvent(ctx, domain.AnalyticsEvent{BotID: bot.ID, UserID: 7, Type: domain.EventTap}))
	require.NoError(t, store.RecordEvent(ctx, domain.AnalyticsEvent{BotID: bot.ID, Type: domain.EventMessage, Data: map[string]any{"text": "hi"}}))

	counts, err := store.CountEvents(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{domain.EventTap: 1, domain.EventMessage: 1}, counts)
}
