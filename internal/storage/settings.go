package storage

import (
	"context"
	"database/sql"
	"errors"
)

// Persisted setting keys. Values are free-form text; the boolean keys hold the
// literal strings "on" / "off" for compatibility with existing databases.
const (
	KeyRules     = "rules"
	KeyAntilink  = "antilink"
	KeyWelcome   = "welcome"
	KeyWelcomeOn = "welcome_on"
)

// ChatSettings is the typed view over the per-chat key/value rows.
type ChatSettings struct {
	ChatID         int64
	Rules          string
	Antilink       bool
	Welcome        string
	WelcomeEnabled bool
}

func (s *Store) SetSetting(ctx context.Context, chatID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (chat_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(chat_id, key) DO UPDATE SET value = excluded.value
	`, chatID, key, value)
	return err
}

func (s *Store) GetSetting(ctx context.Context, chatID int64, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE chat_id = ? AND key = ?`, chatID, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) GetChatSettings(ctx context.Context, chatID int64) (ChatSettings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE chat_id = ?`, chatID)
	if err != nil {
		return ChatSettings{}, err
	}
	defer rows.Close()

	settings := ChatSettings{ChatID: chatID}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return ChatSettings{}, err
		}
		switch key {
		case KeyRules:
			settings.Rules = value
		case KeyAntilink:
			settings.Antilink = value == "on"
		case KeyWelcome:
			settings.Welcome = value
		case KeyWelcomeOn:
			settings.WelcomeEnabled = value == "on"
		}
	}
	return settings, rows.Err()
}
