// Package economy implements the tap-to-earn state machine: energy
// regeneration, taps and coin-priced shop purchases per (bot, end-user).
package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/botforge/botforge/internal/domain"
	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/internal/lock"
	"github.com/botforge/botforge/internal/repository"
	"github.com/botforge/botforge/pkg/config"
	"github.com/botforge/botforge/pkg/metrics"
)

// Store is the persistence the engine needs.
type Store interface {
	repository.ProgressRepository
	repository.MiningSettingsRepository
	GetActiveShopItem(ctx context.Context, botID, itemID int64) (*domain.ShopItem, error)
	ListActiveShopItems(ctx context.Context, botID int64) ([]domain.ShopItem, error)
}

// EventRecorder receives analytics events. Implementations must not block
// the caller on persistence failures.
type EventRecorder interface {
	Record(ctx context.Context, event domain.AnalyticsEvent)
}

// Options tunes an Engine. Zero values select in-process defaults.
type Options struct {
	Locker   lock.Locker
	Events   EventRecorder
	Defaults *domain.MiningSettings
	Logger   *slog.Logger
}

// Engine owns every mutation of UserProgress.
type Engine struct {
	store    Store
	locker   lock.Locker
	events   EventRecorder
	defaults domain.MiningSettings
	log      *slog.Logger
}

// TapResult is the state returned after a successful tap.
type TapResult struct {
	CoinBalance int64
	Energy      int64
	TotalTaps   int64
}

// PurchaseResult is the state returned after a successful purchase.
type PurchaseResult struct {
	CoinBalance int64
	Item        domain.ShopItem
}

// NewEngine constructs an Engine over store.
func NewEngine(store Store, opts Options) *Engine {
	e := &Engine{
		store:    store,
		locker:   opts.Locker,
		events:   opts.Events,
		defaults: domain.DefaultMiningSettings(0),
		log:      opts.Logger,
	}
	if e.locker == nil {
		e.locker = lock.NewMemoryLocker()
	}
	if e.events == nil {
		e.events = nopRecorder{}
	}
	if opts.Defaults != nil {
		e.defaults = *opts.Defaults
	}
	if e.log == nil {
		e.log = slog.Default()
	}

	return e
}

// DefaultsFromConfig builds the lazily applied mining settings from configuration.
func DefaultsFromConfig(cfg config.EconomyConfig) domain.MiningSettings {
	ms := domain.DefaultMiningSettings(0)
	ms.CoinName = cfg.CoinName
	ms.CoinSymbol = cfg.CoinSymbol
	ms.InitialBalance = cfg.InitialBalance
	ms.TapReward = cfg.TapReward
	ms.MaxEnergy = cfg.MaxEnergy
	ms.EnergyRechargeRate = cfg.EnergyRechargeRate
	return ms
}

// ProgressKey is the lock key guarding one end-user's progress in one bot.
func ProgressKey(botID, userID int64) string {
	return fmt.Sprintf("progress:%d:%d", botID, userID)
}

// Tap consumes one energy and credits the bot's tap reward.
func (e *Engine) Tap(ctx context.Context, botID, userID int64, now time.Time) (*TapResult, error) {
	settings, err := e.store.GetMiningSettings(ctx, botID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordTap("not_configured")
			return nil, apperrors.NewNotConfiguredError()
		}
		metrics.RecordTap("error")
		return nil, apperrors.NewDatabaseError(err)
	}

	unlock, err := e.locker.Lock(ctx, ProgressKey(botID, userID))
	if err != nil {
		metrics.RecordTap("lock_error")
		return nil, apperrors.NewDatabaseError(fmt.Errorf("lock progress: %w", err))
	}
	defer unlock()

	progress, err := e.loadOrCreate(ctx, botID, userID, *settings)
	if err != nil {
		metrics.RecordTap("error")
		return nil, err
	}

	p := RegenerateEnergy(*progress, *settings, now)
	if p.Energy <= 0 {
		metrics.RecordTap("no_energy")
		return nil, apperrors.NewInsufficientEnergyError()
	}

	tappedAt := now
	p.Energy--
	p.CoinBalance += settings.TapReward
	p.TotalTaps++
	p.LastTapTime = &tappedAt

	if err := e.store.UpsertProgress(ctx, &p); err != nil {
		metrics.RecordTap("error")
		e.logError("tap.upsert", botID, userID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	e.events.Record(ctx, domain.AnalyticsEvent{BotID: botID, UserID: userID, Type: domain.EventTap, CreatedAt: now})
	metrics.RecordTap("success")

	return &TapResult{CoinBalance: p.CoinBalance, Energy: p.Energy, TotalTaps: p.TotalTaps}, nil
}

// GetProgress returns the end-user's progress with energy regenerated up to now.
// Regenerated energy is persisted. Bots without mining settings get a progress
// record seeded from the defaults and no regeneration.
func (e *Engine) GetProgress(ctx context.Context, botID, userID int64, now time.Time) (*domain.UserProgress, error) {
	settings, configured, err := e.settingsOrDefaults(ctx, botID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, ProgressKey(botID, userID))
	if err != nil {
		return nil, apperrors.NewDatabaseError(fmt.Errorf("lock progress: %w", err))
	}
	defer unlock()

	progress, err := e.loadOrCreate(ctx, botID, userID, settings)
	if err != nil {
		return nil, err
	}
	if !configured {
		return progress, nil
	}

	p := RegenerateEnergy(*progress, settings, now)
	if p.Energy == progress.Energy {
		return progress, nil
	}

	// Persisting regenerated energy restarts the recharge clock.
	refreshed := now
	p.LastTapTime = &refreshed
	if err := e.store.UpsertProgress(ctx, &p); err != nil {
		e.logError("get_progress.upsert", botID, userID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	return &p, nil
}

// GetOrCreateProgress fetches the progress record, creating it from the bot's
// settings on first access. It never mutates an existing record.
func (e *Engine) GetOrCreateProgress(ctx context.Context, botID, userID int64) (*domain.UserProgress, error) {
	settings, _, err := e.settingsOrDefaults(ctx, botID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, ProgressKey(botID, userID))
	if err != nil {
		return nil, apperrors.NewDatabaseError(fmt.Errorf("lock progress: %w", err))
	}
	defer unlock()

	return e.loadOrCreate(ctx, botID, userID, settings)
}

// Purchase settles a coin-priced shop item against the end-user's balance.
// The fractional part of the price is not charged.
func (e *Engine) Purchase(ctx context.Context, botID, userID, itemID int64) (*PurchaseResult, error) {
	item, err := e.store.GetActiveShopItem(ctx, botID, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordPurchase("item_not_found")
			return nil, apperrors.NewItemNotFoundError(itemID)
		}
		metrics.RecordPurchase("error")
		return nil, apperrors.NewDatabaseError(err)
	}

	if item.Currency != domain.CurrencyCoins {
		metrics.RecordPurchase("wrong_currency")
		return nil, apperrors.NewWrongCurrencyError(string(item.Currency))
	}

	settings, _, err := e.settingsOrDefaults(ctx, botID)
	if err != nil {
		metrics.RecordPurchase("error")
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, ProgressKey(botID, userID))
	if err != nil {
		metrics.RecordPurchase("lock_error")
		return nil, apperrors.NewDatabaseError(fmt.Errorf("lock progress: %w", err))
	}
	defer unlock()

	progress, err := e.loadOrCreate(ctx, botID, userID, settings)
	if err != nil {
		metrics.RecordPurchase("error")
		return nil, err
	}

	if item.Price.GreaterThan(decimal.NewFromInt(progress.CoinBalance)) {
		metrics.RecordPurchase("insufficient_balance")
		return nil, apperrors.NewInsufficientBalanceError()
	}

	p := *progress
	p.CoinBalance -= item.Price.IntPart()
	if err := e.store.UpsertProgress(ctx, &p); err != nil {
		metrics.RecordPurchase("error")
		e.logError("purchase.upsert", botID, userID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	e.events.Record(ctx, domain.AnalyticsEvent{
		BotID:  botID,
		UserID: userID,
		Type:   domain.EventShopPurchase,
		Data: map[string]any{
			"item_id": item.ID,
			"price":   item.Price.String(),
		},
		CreatedAt: time.Now().UTC(),
	})
	metrics.RecordPurchase("success")

	return &PurchaseResult{CoinBalance: p.CoinBalance, Item: *item}, nil
}

// Settings returns the bot's mining settings, saving the defaults when the bot
// has none yet.
func (e *Engine) Settings(ctx context.Context, botID int64) (*domain.MiningSettings, error) {
	settings, err := e.store.GetMiningSettings(ctx, botID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewDatabaseError(err)
	}

	defaults := e.defaults
	defaults.BotID = botID
	if err := e.store.SaveMiningSettings(ctx, &defaults); err != nil {
		e.logError("settings.create", botID, 0, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	e.log.Info("mining settings created with defaults", slog.Int64("bot_id", botID))
	return &defaults, nil
}

// ShopItems lists the bot's active shop items.
func (e *Engine) ShopItems(ctx context.Context, botID int64) ([]domain.ShopItem, error) {
	items, err := e.store.ListActiveShopItems(ctx, botID)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return items, nil
}

func (e *Engine) settingsOrDefaults(ctx context.Context, botID int64) (domain.MiningSettings, bool, error) {
	settings, err := e.store.GetMiningSettings(ctx, botID)
	if err == nil {
		return *settings, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.MiningSettings{}, false, apperrors.NewDatabaseError(err)
	}

	defaults := e.defaults
	defaults.BotID = botID
	return defaults, false, nil
}

// loadOrCreate must be called with the progress lock held.
func (e *Engine) loadOrCreate(ctx context.Context, botID, userID int64, settings domain.MiningSettings) (*domain.UserProgress, error) {
	progress, err := e.store.GetProgress(ctx, botID, userID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		e.logError("progress.get", botID, userID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	progress = &domain.UserProgress{
		BotID:       botID,
		UserID:      userID,
		CoinBalance: settings.InitialBalance,
		Energy:      settings.MaxEnergy,
		Level:       1,
	}
	if err := e.store.UpsertProgress(ctx, progress); err != nil {
		e.logError("progress.create", botID, userID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	e.log.Debug("progress created",
		slog.Int64("bot_id", botID),
		slog.Int64("user_id", userID),
		slog.Int64("coin_balance", progress.CoinBalance),
		slog.Int64("energy", progress.Energy),
	)
	return progress, nil
}

func (e *Engine) logError(operation string, botID, userID int64, err error) {
	e.log.Error("economy operation failed",
		slog.String("operation", operation),
		slog.Int64("bot_id", botID),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, domain.AnalyticsEvent) {}
