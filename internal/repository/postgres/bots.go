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

const botColumns = `id, bot_name, bot_token, bot_username, description, webhook_url,
	ai_enabled, gemini_api_key, ton_wallet, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBot(row rowScanner) (*domain.Bot, error) {
	var bot domain.Bot
	if err := row.Scan(
		&bot.ID,
		&bot.Name,
		&bot.Token,
		&bot.Username,
		&bot.Description,
		&bot.WebhookURL,
		&bot.AIEnabled,
		&bot.GeminiAPIKey,
		&bot.TONWallet,
		&bot.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &bot, nil
}

// CreateBot inserts bot and fills its id and creation time.
func (s *Store) CreateBot(ctx context.Context, bot *domain.Bot) error {
	const query = `
		INSERT INTO bots (bot_name, bot_token, bot_username, description, webhook_url, ai_enabled, gemini_api_key, ton_wallet)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	if err := s.db.QueryRowContext(
		ctx,
		query,
		bot.Name,
		bot.Token,
		bot.Username,
		bot.Description,
		bot.WebhookURL,
		bot.AIEnabled,
		bot.GeminiAPIKey,
		bot.TONWallet,
	).Scan(&bot.ID, &bot.CreatedAt); err != nil {
		s.log.Error("failed to create bot", slog.String("bot_name", bot.Name), slog.Any("error", err))
		return fmt.Errorf("insert bot: %w", err)
	}

	return nil
}

// GetBot retrieves a bot by id.
func (s *Store) GetBot(ctx context.Context, id int64) (*domain.Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE id = $1`

	bot, err := scanBot(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		s.log.Error("failed to fetch bot", slog.Int64("bot_id", id), slog.Any("error", err))
		return nil, fmt.Errorf("select bot: %w", err)
	}

	return bot, nil
}

// ListBots returns all bots ordered by id.
func (s *Store) ListBots(ctx context.Context) ([]domain.Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select bots: %w", err)
	}
	defer rows.Close()

	var bots []domain.Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bot: %w", err)
		}
		bots = append(bots, *bot)
	}

	return bots, rows.Err()
}

// UpdateBot overwrites the mutable bot fields.
func (s *Store) UpdateBot(ctx context.Context, bot *domain.Bot) error {
	const query = `
		UPDATE bots
		SET bot_name = $2, bot_token = $3, bot_username = $4, description = $5,
		    webhook_url = $6, ai_enabled = $7, gemini_api_key = $8, ton_wallet = $9
		WHERE id = $1
	`

	res, err := s.db.ExecContext(
		ctx,
		query,
		bot.ID,
		bot.Name,
		bot.Token,
		bot.Username,
		bot.Description,
		bot.WebhookURL,
		bot.AIEnabled,
		bot.GeminiAPIKey,
		bot.TONWallet,
	)
	if err != nil {
		s.log.Error("failed to update bot", slog.Int64("bot_id", bot.ID), slog.Any("error", err))
		return fmt.Errorf("update bot: %w", err)
	}

	return expectOneRow(res, "update bot")
}
