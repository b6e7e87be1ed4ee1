package storage

import (
	"context"
	"time"
)

type Member struct {
	UserID int64
	Name   string
}

// TouchMember records that a user was seen in a chat. The display name is
// overwritten on every touch and the row moves to the front of Recent.
func (s *Store) TouchMember(ctx context.Context, chatID, userID int64, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (chat_id, user_id, name, touched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			name = excluded.name,
			touched_at = excluded.touched_at
	`, chatID, userID, name, time.Now().UnixNano())
	return err
}

func (s *Store) RecentMembers(ctx context.Context, chatID int64, limit int) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, name FROM members
		WHERE chat_id = ?
		ORDER BY touched_at DESC
		LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var member Member
		if err := rows.Scan(&member.UserID, &member.Name); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}
