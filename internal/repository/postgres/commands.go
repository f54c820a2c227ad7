package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/repository"
)

// ListCommands returns the bot's commands ordered by name.
func (s *Store) ListCommands(ctx context.Context, botID int64) ([]domain.Command, error) {
	const query = `
		SELECT id, bot_id, command, response_type, response_content, url_link, button_text
		FROM commands
		WHERE bot_id = $1
		ORDER BY command, id
	`

	rows, err := s.db.QueryContext(ctx, query, botID)
	if err != nil {
		s.log.Error("failed to list commands", slog.Int64("bot_id", botID), slog.Any("error", err))
		return nil, fmt.Errorf("select commands: %w", err)
	}
	defer rows.Close()

	var commands []domain.Command
	for rows.Next() {
		var cmd domain.Command
		if err := rows.Scan(
			&cmd.ID,
			&cmd.BotID,
			&cmd.Command,
			&cmd.ResponseType,
			&cmd.ResponseContent,
			&cmd.URLLink,
			&cmd.ButtonText,
		); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		commands = append(commands, cmd)
	}

	return commands, rows.Err()
}

// CreateCommand inserts cmd and fills its id.
func (s *Store) CreateCommand(ctx context.Context, cmd *domain.Command) error {
	const query = `
		INSERT INTO commands (bot_id, command, response_type, response_content, url_link, button_text)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if err := s.db.QueryRowContext(
		ctx,
		query,
		cmd.BotID,
		cmd.Command,
		cmd.ResponseType,
		cmd.ResponseContent,
		cmd.URLLink,
		cmd.ButtonText,
	).Scan(&cmd.ID); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		s.log.Error("failed to create command", slog.Int64("bot_id", cmd.BotID), slog.Any("error", err))
		return fmt.Errorf("insert command: %w", err)
	}

	return nil
}

// UpdateCommand overwrites an existing command of the same bot.
func (s *Store) UpdateCommand(ctx context.Context, cmd *domain.Command) error {
	const query = `
		UPDATE commands
		SET command = $3, response_type = $4, response_content = $5, url_link = $6, button_text = $7
		WHERE id = $1 AND bot_id = $2
	`

	res, err := s.db.ExecContext(
		ctx,
		query,
		cmd.ID,
		cmd.BotID,
		cmd.Command,
		cmd.ResponseType,
		cmd.ResponseContent,
		cmd.URLLink,
		cmd.ButtonText,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("update command: %w", err)
	}

	return expectOneRow(res, "update command")
}

// DeleteCommand removes a command of the bot.
func (s *Store) DeleteCommand(ctx context.Context, botID, commandID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE id = $1 AND bot_id = $2`, commandID, botID)
	if err != nil {
		return fmt.Errorf("delete command: %w", err)
	}

	return expectOneRow(res, "delete command")
}
