package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
)

// Room membership queries
func (s *Store) SaveMembership(ctx context.Context, m *models.RoomMembership) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO room_memberships (room_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (room_id, user_id) DO NOTHING`,
		m.RoomID, m.UserID, m.Role, m.JoinedAt,
	)
	return err
}

func (s *Store) MembershipExists(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM room_memberships WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID,
	).Scan(&exists)
	return exists, err
}

func (s *Store) DeleteMembership(ctx context.Context, roomID, userID uuid.UUID) error {
	_, err := s.q.Exec(ctx,
		`DELETE FROM room_memberships WHERE room_id = $1 AND user_id = $2`,
		roomID, userID,
	)
	return err
}

func (s *Store) ListRoomUsers(ctx context.Context, roomID uuid.UUID) ([]models.User, error) {
	rows, err := s.q.Query(ctx,
		`SELECT u.id, u.username, u.password_hash, u.last_active_at, u.last_login_at, u.created_at, u.updated_at
		 FROM users u
		 INNER JOIN room_memberships rm ON u.id = rm.user_id
		 WHERE rm.room_id = $1
		 ORDER BY rm.joined_at ASC`,
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.LastActiveAt, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	rows, err := s.q.Query(ctx,
		`SELECT r.id, r.name, r.description, r.is_public, r.created_by, r.participants_count, r.created_at, r.updated_at
		 FROM rooms r
		 INNER JOIN room_memberships rm ON r.id = rm.room_id
		 WHERE rm.user_id = $1
		 ORDER BY r.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRooms(rows)
}
