// Package repository defines the persistence contracts shared by the storage backends.
package repository

import (
	"context"
	"errors"

	"github.com/botforge/botforge/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("duplicate record")
)

// BotRepository persists bot registrations.
type BotRepository interface {
	CreateBot(ctx context.Context, bot *domain.Bot) error
	GetBot(ctx context.Context, id int64) (*domain.Bot, error)
	ListBots(ctx context.Context) ([]domain.Bot, error)
	UpdateBot(ctx context.Context, bot *domain.Bot) error
}

// CommandRepository persists command tables. ListCommands orders by command name.
type CommandRepository interface {
	ListCommands(ctx context.Context, botID int64) ([]domain.Command, error)
	CreateCommand(ctx context.Context, cmd *domain.Command) error
	UpdateCommand(ctx context.Context, cmd *domain.Command) error
	DeleteCommand(ctx context.Context, botID, commandID int64) error
}

// MiningSettingsRepository persists per-bot economy settings.
type MiningSettingsRepository interface {
	GetMiningSettings(ctx context.Context, botID int64) (*domain.MiningSettings, error)
	SaveMiningSettings(ctx context.Context, settings *domain.MiningSettings) error
}

// ShopRepository persists shop items. Items are deactivated, never removed.
type ShopRepository interface {
	ListActiveShopItems(ctx context.Context, botID int64) ([]domain.ShopItem, error)
	GetActiveShopItem(ctx context.Context, botID, itemID int64) (*domain.ShopItem, error)
	CreateShopItem(ctx context.Context, item *domain.ShopItem) error
	DeactivateShopItem(ctx context.Context, botID, itemID int64) error
}

// ProgressRepository persists end-user economy progress keyed by (bot, user).
type ProgressRepository interface {
	GetProgress(ctx context.Context, botID, userID int64) (*domain.UserProgress, error)
	UpsertProgress(ctx context.Context, progress *domain.UserProgress) error
}

// AnalyticsRepository persists usage events.
type AnalyticsRepository interface {
	RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error
	CountEvents(ctx context.Context, botID int64) (map[string]int64, error)
}

// Store is a complete storage backend.
type Store interface {
	BotRepository
	CommandRepository
	MiningSettingsRepository
	ShopRepository
	ProgressRepository
	AnalyticsRepository

	HealthCheck(ctx context.Context) error
	Close() error
}
