package storage

import (
	"context"
	"database/sql"
	"errors"
)

// IncrementWarning bumps the warning counter for (chat, user) and returns the
// new count. The upsert-increment runs as one statement so concurrent warnings
// for the same user cannot lose updates.
func (s *Store) IncrementWarning(ctx context.Context, chatID, userID int64) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO warnings (chat_id, user_id, warns) VALUES (?, ?, 1)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET warns = warns + 1
		RETURNING warns
	`, chatID, userID)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) WarningCount(ctx context.Context, chatID, userID int64) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT warns FROM warnings WHERE chat_id = ? AND user_id = ?`, chatID, userID)

	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}
