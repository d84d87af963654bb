package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/roomchat/roomchat-backend/internal/models"
)

// Room queries
func (s *Store) SaveRoom(ctx context.Context, room *models.Room) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO rooms (id, name, description, is_public, created_by, participants_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   description = EXCLUDED.description,
		   is_public = EXCLUDED.is_public,
		   updated_at = EXCLUDED.updated_at`,
		room.ID, room.Name, room.Description, room.IsPublic, room.CreatedBy, room.ParticipantsCount, room.CreatedAt, room.UpdatedAt,
	)
	return err
}

func (s *Store) GetRoomByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := s.q.QueryRow(ctx,
		`SELECT id, name, description, is_public, created_by, participants_count, created_at, updated_at
		 FROM rooms WHERE id = $1`,
		roomID,
	).Scan(&room.ID, &room.Name, &room.Description, &room.IsPublic, &room.CreatedBy, &room.ParticipantsCount, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Store) RoomExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM rooms WHERE name = $1)`,
		name,
	).Scan(&exists)
	return exists, err
}

func (s *Store) ListTopRooms(ctx context.Context, limit int, onlyPublic bool) ([]models.Room, error) {
	query := `SELECT id, name, description, is_public, created_by, participants_count, created_at, updated_at
	          FROM rooms`
	if onlyPublic {
		query += ` WHERE is_public = true`
	}
	query += ` ORDER BY participants_count DESC, created_at DESC LIMIT $1`

	rows, err := s.q.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRooms(rows)
}

func (s *Store) SearchRooms(ctx context.Context, query string, limit int) ([]models.Room, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, name, description, is_public, created_by, participants_count, created_at, updated_at
		 FROM rooms WHERE name ILIKE $1 || '%'
		 ORDER BY participants_count DESC LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRooms(rows)
}

func (s *Store) IncrementParticipants(ctx context.Context, roomID uuid.UUID) error {
	_, err := s.q.Exec(ctx,
		`UPDATE rooms SET participants_count = participants_count + 1, updated_at = NOW() WHERE id = $1`,
		roomID,
	)
	return err
}

func (s *Store) DecrementParticipants(ctx context.Context, roomID uuid.UUID) error {
	// Floor at zero.
	_, err := s.q.Exec(ctx,
		`UPDATE rooms SET participants_count = GREATEST(participants_count - 1, 0), updated_at = NOW() WHERE id = $1`,
		roomID,
	)
	return err
}

func (s *Store) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	_, err := s.q.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	return err
}

func scanRooms(rows pgx.Rows) ([]models.Room, error) {
	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.IsPublic, &room.CreatedBy, &room.ParticipantsCount, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
