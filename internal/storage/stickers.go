package storage

import (
	"context"
	"database/sql"
	"errors"
)

// Sticker bans are global: banning a sticker bans it in every chat the bot
// moderates.

func (s *Store) BanSticker(ctx context.Context, uniqueID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO banned_stickers (sticker_unique_id) VALUES (?)`, uniqueID)
	return err
}

func (s *Store) UnbanSticker(ctx context.Context, uniqueID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM banned_stickers WHERE sticker_unique_id = ?`, uniqueID)
	return err
}

func (s *Store) IsStickerBanned(ctx context.Context, uniqueID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM banned_stickers WHERE sticker_unique_id = ?`, uniqueID)

	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListBannedStickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sticker_unique_id FROM banned_stickers ORDER BY sticker_unique_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
