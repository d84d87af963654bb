package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/roomchat/roomchat-backend/internal/models"
)

// Join request queries
func (s *Store) SaveJoinRequest(ctx context.Context, req *models.JoinRequest) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO join_requests (id, room_id, user_id, status, handled_by, message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   handled_by = EXCLUDED.handled_by,
		   updated_at = EXCLUDED.updated_at`,
		req.ID, req.RoomID, req.UserID, req.Status, req.HandledBy, req.Message, req.CreatedAt, req.UpdatedAt,
	)
	return err
}

func (s *Store) GetJoinRequestByID(ctx context.Context, requestID uuid.UUID) (*models.JoinRequest, error) {
	var req models.JoinRequest
	err := s.q.QueryRow(ctx,
		`SELECT id, room_id, user_id, status, handled_by, message, created_at, updated_at
		 FROM join_requests WHERE id = $1`,
		requestID,
	).Scan(&req.ID, &req.RoomID, &req.UserID, &req.Status, &req.HandledBy, &req.Message, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Store) PendingJoinRequestExists(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM join_requests WHERE room_id = $1 AND user_id = $2 AND status = $3)`,
		roomID, userID, models.JoinRequestPending,
	).Scan(&exists)
	return exists, err
}

func (s *Store) ListJoinRequestsByRoom(ctx context.Context, roomID uuid.UUID, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, room_id, user_id, status, handled_by, message, created_at, updated_at
		 FROM join_requests WHERE room_id = $1 AND status = $2
		 ORDER BY created_at ASC`,
		roomID, status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJoinRequests(rows)
}

func (s *Store) ListJoinRequestsByUser(ctx context.Context, userID uuid.UUID, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, room_id, user_id, status, handled_by, message, created_at, updated_at
		 FROM join_requests WHERE user_id = $1 AND status = $2
		 ORDER BY created_at ASC`,
		userID, status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJoinRequests(rows)
}

func scanJoinRequests(rows pgx.Rows) ([]models.JoinRequest, error) {
	var reqs []models.JoinRequest
	for rows.Next() {
		var req models.JoinRequest
		if err := rows.Scan(&req.ID, &req.RoomID, &req.UserID, &req.Status, &req.HandledBy, &req.Message, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
