package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/roomchat/roomchat-backend/internal/models"
)

// Notification queries
func (s *Store) SaveNotification(ctx context.Context, n *models.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}
	// Replace by id: re-delivery of the same outbox entry is idempotent.
	_, err = s.q.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, payload, read, source_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   payload = EXCLUDED.payload,
		   read = EXCLUDED.read,
		   updated_at = EXCLUDED.updated_at`,
		n.ID, n.UserID, n.Type, payload, n.Read, n.SourceID, n.CreatedAt, n.UpdatedAt,
	)
	return err
}

func (s *Store) GetNotificationByID(ctx context.Context, notificationID uuid.UUID) (*models.Notification, error) {
	var (
		n       models.Notification
		payload []byte
	)
	err := s.q.QueryRow(ctx,
		`SELECT id, user_id, type, payload, read, source_id, created_at, updated_at
		 FROM notifications WHERE id = $1`,
		notificationID,
	).Scan(&n.ID, &n.UserID, &n.Type, &payload, &n.Read, &n.SourceID, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &n.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification payload: %w", err)
	}
	return &n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `SELECT id, user_id, type, payload, read, source_id, created_at, updated_at
	          FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read = false`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := s.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var (
			n       models.Notification
			payload []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &payload, &n.Read, &n.SourceID, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification payload: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, notificationID uuid.UUID) error {
	_, err := s.q.Exec(ctx,
		`UPDATE notifications SET read = true, updated_at = NOW() WHERE id = $1`,
		notificationID,
	)
	return err
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.q.Exec(ctx,
		`UPDATE notifications SET read = true, updated_at = NOW() WHERE user_id = $1 AND read = false`,
		userID,
	)
	return err
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false`,
		userID,
	).Scan(&count)
	return count, err
}

func (s *Store) DeleteNotification(ctx context.Context, notificationID uuid.UUID) error {
	_, err := s.q.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, notificationID)
	return err
}

func (s *Store) DeleteNotificationsByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.q.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	return err
}
