package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/repository"
)

// GetMiningSettings returns the bot's settings or repository.ErrNotFound.
func (s *Store) GetMiningSettings(ctx context.Context, botID int64) (*domain.MiningSettings, error) {
	const query = `
		SELECT bot_id, coin_name, coin_symbol, initial_balance, tap_reward, max_energy,
		       energy_recharge_rate, primary_color, secondary_color, text_color,
		       background_color, background_image_url
		FROM mining_settings
		WHERE bot_id = $1
	`

	var ms domain.MiningSettings
	if err := s.db.QueryRowContext(ctx, query, botID).Scan(
		&ms.BotID,
		&ms.CoinName,
		&ms.CoinSymbol,
		&ms.InitialBalance,
		&ms.TapReward,
		&ms.MaxEnergy,
		&ms.EnergyRechargeRate,
		&ms.PrimaryColor,
		&ms.SecondaryColor,
		&ms.TextColor,
		&ms.BackgroundColor,
		&ms.BackgroundImageURL,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		s.log.Error("failed to fetch mining settings", slog.Int64("bot_id", botID), slog.Any("error", err))
		return nil, fmt.Errorf("select mining settings: %w", err)
	}

	return &ms, nil
}

// SaveMiningSettings inserts or replaces the bot's settings.
func (s *Store) SaveMiningSettings(ctx context.Context, ms *domain.MiningSettings) error {
	const query = `
		INSERT INTO mining_settings (bot_id, coin_name, coin_symbol, initial_balance, tap_reward, max_energy,
		                             energy_recharge_rate, primary_color, secondary_color, text_color,
		                             background_color, background_image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (bot_id) DO UPDATE SET
			coin_name = EXCLUDED.coin_name,
			coin_symbol = EXCLUDED.coin_symbol,
			initial_balance = EXCLUDED.initial_balance,
			tap_reward = EXCLUDED.tap_reward,
			max_energy = EXCLUDED.max_energy,
			energy_recharge_rate = EXCLUDED.energy_recharge_rate,
			primary_color = EXCLUDED.primary_color,
			secondary_color = EXCLUDED.secondary_color,
			text_color = EXCLUDED.text_color,
			background_color = EXCLUDED.background_color,
			background_image_url = EXCLUDED.background_image_url
	`

	if _, err := s.db.ExecContext(
		ctx,
		query,
		ms.BotID,
		ms.CoinName,
		ms.CoinSymbol,
		ms.InitialBalance,
		ms.TapReward,
		ms.MaxEnergy,
		ms.EnergyRechargeRate,
		ms.PrimaryColor,
		ms.SecondaryColor,
		ms.TextColor,
		ms.BackgroundColor,
		ms.BackgroundImageURL,
	); err != nil {
		s.log.Error("failed to save mining settings", slog.Int64("bot_id", ms.BotID), slog.Any("error", err))
		return fmt.Errorf("upsert mining settings: %w", err)
	}

	return nil
}

const shopColumns = `id, bot_id, item_name, item_description, price, currency, reward_amount, reward_type, is_active`

func scanShopItem(row rowScanner) (*domain.ShopItem, error) {
	var item domain.ShopItem
	if err := row.Scan(
		&item.ID,
		&item.BotID,
		&item.Name,
		&item.Description,
		&item.Price,
		&item.Currency,
		&item.RewardAmount,
		&item.RewardType,
		&item.Active,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListActiveShopItems returns the bot's active items ordered by id.
func (s *Store) ListActiveShopItems(ctx context.Context, botID int64) ([]domain.ShopItem, error) {
	query := `SELECT ` + shopColumns + ` FROM shop_items WHERE bot_id = $1 AND is_active ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("select shop items: %w", err)
	}
	defer rows.Close()

	var items []domain.ShopItem
	for rows.Next() {
		item, err := scanShopItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop item: %w", err)
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

// GetActiveShopItem returns an active item of the bot or repository.ErrNotFound.
func (s *Store) GetActiveShopItem(ctx context.Context, botID, itemID int64) (*domain.ShopItem, error) {
	query := `SELECT ` + shopColumns + ` FROM shop_items WHERE id = $1 AND bot_id = $2 AND is_active`

	item, err := scanShopItem(s.db.QueryRowContext(ctx, query, itemID, botID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select shop item: %w", err)
	}

	return item, nil
}

// CreateShopItem inserts an active item and fills its id.
func (s *Store) CreateShopItem(ctx context.Context, item *domain.ShopItem) error {
	const query = `
		INSERT INTO shop_items (bot_id, item_name, item_description, price, currency, reward_amount, reward_type, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id
	`

	if err := s.db.QueryRowContext(
		ctx,
		query,
		item.BotID,
		item.Name,
		item.Description,
		item.Price,
		item.Currency,
		item.RewardAmount,
		item.RewardType,
	).Scan(&item.ID); err != nil {
		s.log.Error("failed to create shop item", slog.Int64("bot_id", item.BotID), slog.Any("error", err))
		return fmt.Errorf("insert shop item: %w", err)
	}

	item.Active = true
	return nil
}

// DeactivateShopItem soft-deletes an item.
func (s *Store) DeactivateShopItem(ctx context.Context, botID, itemID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE shop_items SET is_active = FALSE WHERE id = $1 AND bot_id = $2`, itemID, botID)
	if err != nil {
		return fmt.Errorf("deactivate shop item: %w", err)
	}

	return expectOneRow(res, "deactivate shop item")
}

// GetProgress returns the end-user's progress or repository.ErrNotFound.
func (s *Store) GetProgress(ctx context.Context, botID, userID int64) (*domain.UserProgress, error) {
	const query = `
		SELECT bot_id, telegram_user_id, coin_balance, energy, total_taps, level, last_tap_time
		FROM user_progress
		WHERE bot_id = $1 AND telegram_user_id = $2
	`

	var p domain.UserProgress
	if err := s.db.QueryRowContext(ctx, query, botID, userID).Scan(
		&p.BotID,
		&p.UserID,
		&p.CoinBalance,
		&p.Energy,
		&p.TotalTaps,
		&p.Level,
		&p.LastTapTime,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		s.log.Error("failed to fetch progress", slog.Int64("bot_id", botID), slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("select progress: %w", err)
	}

	return &p, nil
}

// UpsertProgress inserts or overwrites the (bot, user) progress row.
func (s *Store) UpsertProgress(ctx context.Context, p *domain.UserProgress) error {
	const query = `
		INSERT INTO user_progress (bot_id, telegram_user_id, coin_balance, energy, total_taps, level, last_tap_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (bot_id, telegram_user_id) DO UPDATE SET
			coin_balance = EXCLUDED.coin_balance,
			energy = EXCLUDED.energy,
			total_taps = EXCLUDED.total_taps,
			level = EXCLUDED.level,
			last_tap_time = EXCLUDED.last_tap_time
	`

	if _, err := s.db.ExecContext(
		ctx,
		query,
		p.BotID,
		p.UserID,
		p.CoinBalance,
		p.Energy,
		p.TotalTaps,
		p.Level,
		p.LastTapTime,
	); err != nil {
		s.log.Error("failed to upsert progress", slog.Int64("bot_id", p.BotID), slog.Int64("user_id", p.UserID), slog.Any("error", err))
		return fmt.Errorf("upsert progress: %w", err)
	}

	return nil
}
