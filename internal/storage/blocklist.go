package storage

import (
	"context"
	"strings"
)

func (s *Store) AddBlacklistWord(ctx context.Context, chatID int64, word string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO blacklist (chat_id, word) VALUES (?, ?)`, chatID, strings.ToLower(word))
	return err
}

func (s *Store) RemoveBlacklistWord(ctx context.Context, chatID int64, word string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE chat_id = ? AND word = ?`, chatID, strings.ToLower(word))
	return err
}

func (s *Store) ListBlacklistWords(ctx context.Context, chatID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word FROM blacklist WHERE chat_id = ? ORDER BY word`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return nil, err
		}
		words = append(words, word)
	}
	return words, rows.Err()
}
