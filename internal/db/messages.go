package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
)

// Messages are written under four access paths: by-room, by-user, by-id
// and a global-recent partition the repair job scans. All four tables
// carry the full row keyed by the same message id.
func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) error {
	const cols = `(id, room_id, user_id, content, edited, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)
	 ON CONFLICT (id) DO UPDATE SET
	   content = EXCLUDED.content,
	   edited = EXCLUDED.edited,
	   updated_at = EXCLUDED.updated_at`

	for _, table := range []string{"messages_by_id", "messages_by_room", "messages_by_user", "messages_recent"} {
		if _, err := s.q.Exec(ctx, `INSERT INTO `+table+` `+cols,
			msg.ID, msg.RoomID, msg.UserID, msg.Content, msg.Edited, msg.CreatedAt, msg.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetMessageByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := s.q.QueryRow(ctx,
		`SELECT id, room_id, user_id, content, edited, created_at, updated_at
		 FROM messages_by_id WHERE id = $1`,
		messageID,
	).Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Content, &msg.Edited, &msg.CreatedAt, &msg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Store) GetRecentByRoom(ctx context.Context, roomID uuid.UUID, limit int, before *time.Time) ([]models.Message, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if before != nil {
		rows, err = s.q.Query(ctx,
			`SELECT id, room_id, user_id, content, edited, created_at, updated_at
			 FROM messages_by_room WHERE room_id = $1 AND created_at < $2
			 ORDER BY created_at DESC LIMIT $3`,
			roomID, *before, limit,
		)
	} else {
		rows, err = s.q.Query(ctx,
			`SELECT id, room_id, user_id, content, edited, created_at, updated_at
			 FROM messages_by_room WHERE room_id = $1
			 ORDER BY created_at DESC LIMIT $2`,
			roomID, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *Store) GetRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, room_id, user_id, content, edited, created_at, updated_at
		 FROM messages_by_user WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetRecentGlobal walks the global-recent partition oldest-first from
// since, using a (created_at, id) keyset so pages stay stable while new
// messages keep arriving.
func (s *Store) GetRecentGlobal(ctx context.Context, since time.Time, limit int, after *store.MessageCursor) ([]models.Message, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if after != nil {
		rows, err = s.q.Query(ctx,
			`SELECT id, room_id, user_id, content, edited, created_at, updated_at
			 FROM messages_recent
			 WHERE (created_at, id) > ($1, $2)
			 ORDER BY created_at ASC, id ASC LIMIT $3`,
			after.CreatedAt, after.ID, limit,
		)
	} else {
		rows, err = s.q.Query(ctx,
			`SELECT id, room_id, user_id, content, edited, created_at, updated_at
			 FROM messages_recent
			 WHERE created_at >= $1
			 ORDER BY created_at ASC, id ASC LIMIT $2`,
			since, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *Store) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	for _, table := range []string{"messages_by_id", "messages_by_room", "messages_by_user", "messages_recent"} {
		if _, err := s.q.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, messageID); err != nil {
			return err
		}
	}
	return nil
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Content, &msg.Edited, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
