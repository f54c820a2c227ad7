// Package sqlite implements repository.Store on an embedded SQLite file via GORM.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/repository"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is the SQLite storage backend.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

var _ repository.Store = (*Store)(nil)

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&botModel{},
		&commandModel{},
		&miningSettingsModel{},
		&shopItemModel{},
		&progressModel{},
		&analyticsModel{},
	); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	log.Info("sqlite storage ready", slog.String("path", path))
	return &Store{db: db, log: log}, nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

func expectOneRow(tx *gorm.DB, what string) error {
	if tx.Error != nil {
		if isDuplicate(tx.Error) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("%s: %w", what, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateBot inserts bot and fills its id and creation time.
func (s *Store) CreateBot(ctx context.Context, bot *domain.Bot) error {
	m := botFromDomain(bot)
	m.ID = 0
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		s.log.Error("failed to create bot", slog.String("bot_name", bot.Name), slog.Any("error", err))
		return fmt.Errorf("insert bot: %w", err)
	}

	bot.ID = m.ID
	bot.CreatedAt = m.CreatedAt
	return nil
}

// GetBot retrieves a bot by id.
func (s *Store) GetBot(ctx context.Context, id int64) (*domain.Bot, error) {
	var m botModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFoundOr(err, "select bot")
	}

	bot := m.toDomain()
	return &bot, nil
}

// ListBots returns all bots ordered by id.
func (s *Store) ListBots(ctx context.Context) ([]domain.Bot, error) {
	var models []botModel
	if err := s.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("select bots: %w", err)
	}

	bots := make([]domain.Bot, 0, len(models))
	for _, m := range models {
		bots = append(bots, m.toDomain())
	}
	return bots, nil
}

// UpdateBot overwrites the mutable bot fields.
func (s *Store) UpdateBot(ctx context.Context, bot *domain.Bot) error {
	m := botFromDomain(bot)
	tx := s.db.WithContext(ctx).
		Model(&botModel{}).
		Where("id = ?", bot.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(&m)

	return expectOneRow(tx, "update bot")
}

// ListCommands returns the bot's commands ordered by name.
func (s *Store) ListCommands(ctx context.Context, botID int64) ([]domain.Command, error) {
	var models []commandModel
	if err := s.db.WithContext(ctx).Where("bot_id = ?", botID).Order("command, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("select commands: %w", err)
	}

	commands := make([]domain.Command, 0, len(models))
	for _, m := range models {
		commands = append(commands, m.toDomain())
	}
	return commands, nil
}

// CreateCommand inserts cmd and fills its id.
func (s *Store) CreateCommand(ctx context.Context, cmd *domain.Command) error {
	m := commandFromDomain(cmd)
	m.ID = 0

	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert command: %w", err)
	}

	cmd.ID = m.ID
	return nil
}

// UpdateCommand overwrites an existing command of the same bot.
func (s *Store) UpdateCommand(ctx context.Context, cmd *domain.Command) error {
	m := commandFromDomain(cmd)
	tx := s.db.WithContext(ctx).
		Model(&commandModel{}).
		Where("id = ? AND bot_id = ?", cmd.ID, cmd.BotID).
		Select("*").
		Omit("id", "bot_id").
		Updates(&m)

	return expectOneRow(tx, "update command")
}

// DeleteCommand removes a command of the bot.
func (s *Store) DeleteCommand(ctx context.Context, botID, commandID int64) error {
	tx := s.db.WithContext(ctx).Where("id = ? AND bot_id = ?", commandID, botID).Delete(&commandModel{})
	return expectOneRow(tx, "delete command")
}

// GetMiningSettings returns the bot's settings or repository.ErrNotFound.
func (s *Store) GetMiningSettings(ctx context.Context, botID int64) (*domain.MiningSettings, error) {
	var m miningSettingsModel
	if err := s.db.WithContext(ctx).Where("bot_id = ?", botID).First(&m).Error; err != nil {
		return nil, notFoundOr(err, "select mining settings")
	}

	ms := domain.MiningSettings(m)
	return &ms, nil
}

// SaveMiningSettings inserts or replaces the bot's settings.
func (s *Store) SaveMiningSettings(ctx context.Context, ms *domain.MiningSettings) error {
	m := miningSettingsModel(*ms)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "bot_id"}}, UpdateAll: true}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("upsert mining settings: %w", err)
	}
	return nil
}

// ListActiveShopItems returns the bot's active items ordered by id.
func (s *Store) ListActiveShopItems(ctx context.Context, botID int64) ([]domain.ShopItem, error) {
	var models []shopItemModel
	if err := s.db.WithContext(ctx).Where("bot_id = ? AND is_active", botID).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("select shop items: %w", err)
	}

	items := make([]domain.ShopItem, 0, len(models))
	for _, m := range models {
		items = append(items, m.toDomain())
	}
	return items, nil
}

// GetActiveShopItem returns an active item of the bot or repository.ErrNotFound.
func (s *Store) GetActiveShopItem(ctx context.Context, botID, itemID int64) (*domain.ShopItem, error) {
	var m shopItemModel
	if err := s.db.WithContext(ctx).Where("id = ? AND bot_id = ? AND is_active", itemID, botID).First(&m).Error; err != nil {
		return nil, notFoundOr(err, "select shop item")
	}

	item := m.toDomain()
	return &item, nil
}

// CreateShopItem inserts an active item and fills its id.
func (s *Store) CreateShopItem(ctx context.Context, item *domain.ShopItem) error {
	m := shopItemModel{
		BotID:           item.BotID,
		ItemName:        item.Name,
		ItemDescription: item.Description,
		Price:           item.Price,
		Currency:        string(item.Currency),
		RewardAmount:    item.RewardAmount,
		RewardType:      item.RewardType,
		IsActive:        true,
	}

	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("insert shop item: %w", err)
	}

	item.ID = m.ID
	item.Active = true
	return nil
}

// DeactivateShopItem soft-deletes an item.
func (s *Store) DeactivateShopItem(ctx context.Context, botID, itemID int64) error {
	tx := s.db.WithContext(ctx).
		Model(&shopItemModel{}).
		Where("id = ? AND bot_id = ?", itemID, botID).
		Update("is_active", false)

	return expectOneRow(tx, "deactivate shop item")
}

// GetProgress returns the end-user's progress or repository.ErrNotFound.
func (s *Store) GetProgress(ctx context.Context, botID, userID int64) (*domain.UserProgress, error) {
	var m progressModel
	if err := s.db.WithContext(ctx).Where("bot_id = ? AND telegram_user_id = ?", botID, userID).First(&m).Error; err != nil {
		return nil, notFoundOr(err, "select progress")
	}

	return &domain.UserProgress{
		BotID:       m.BotID,
		UserID:      m.TelegramUserID,
		CoinBalance: m.CoinBalance,
		Energy:      m.Energy,
		TotalTaps:   m.TotalTaps,
		Level:       m.Level,
		LastTapTime: m.LastTapTime,
	}, nil
}

// UpsertProgress inserts or overwrites the (bot, user) progress row.
func (s *Store) UpsertProgress(ctx context.Context, p *domain.UserProgress) error {
	m := progressModel{
		BotID:          p.BotID,
		TelegramUserID: p.UserID,
		CoinBalance:    p.CoinBalance,
		Energy:         p.Energy,
		TotalTaps:      p.TotalTaps,
		Level:          p.Level,
		LastTapTime:    p.LastTapTime,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bot_id"}, {Name: "telegram_user_id"}},
			UpdateAll: true,
		}).
		Create(&m).Error
	if err != nil {
		s.log.Error("failed to upsert progress", slog.Int64("bot_id", p.BotID), slog.Int64("user_id", p.UserID), slog.Any("error", err))
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// RecordEvent stores an analytics event with its data encoded as JSON text.
func (s *Store) RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	m := analyticsModel{
		BotID:     event.BotID,
		EventType: event.Type,
		CreatedAt: event.CreatedAt,
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if event.UserID != 0 {
		userID := event.UserID
		m.TelegramUserID = &userID
	}
	if len(event.Data) > 0 {
		encoded, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("encode analytics data: %w", err)
		}
		data := string(encoded)
		m.EventData = &data
	}

	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

// CountEvents returns event counts of the bot grouped by type.
func (s *Store) CountEvents(ctx context.Context, botID int64) (map[string]int64, error) {
	var rows []struct {
		EventType string
		Count     int64
	}

	err := s.db.WithContext(ctx).
		Model(&analyticsModel{}).
		Select("event_type, COUNT(*) AS count").
		Where("bot_id = ?", botID).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count analytics events: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.EventType] = r.Count
	}
	return counts, nil
}
