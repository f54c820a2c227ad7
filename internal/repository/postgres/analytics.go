package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/botforge/botforge/internal/domain"
)

// RecordEvent stores an analytics event with its data as JSONB.
func (s *Store) RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	const query = `
		INSERT INTO analytics (bot_id, telegram_user_id, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	var data sql.NullString
	if len(event.Data) > 0 {
		encoded, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("encode analytics data: %w", err)
		}
		data = sql.NullString{String: string(encoded), Valid: true}
	}

	userID := sql.NullInt64{Int64: event.UserID, Valid: event.UserID != 0}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := s.db.ExecContext(ctx, query, event.BotID, userID, event.Type, data, createdAt); err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}

	return nil
}

// CountEvents returns event counts of the bot grouped by type.
func (s *Store) CountEvents(ctx context.Context, botID int64) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_type, COUNT(*) FROM analytics WHERE bot_id = $1 GROUP BY event_type`, botID)
	if err != nil {
		return nil, fmt.Errorf("count analytics events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			eventType string
			count     int64
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scan analytics count: %w", err)
		}
		counts[eventType] = count
	}

	return counts, rows.Err()
}
