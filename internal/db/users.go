package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/roomchat/roomchat-backend/internal/models"
)

// User queries
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, last_active_at, last_login_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   last_active_at = EXCLUDED.last_active_at,
		   last_login_at = EXCLUDED.last_login_at,
		   updated_at = EXCLUDED.updated_at`,
		user.ID, user.Username, user.PasswordHash, user.LastActiveAt, user.LastLoginAt, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

func (s *Store) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.q.QueryRow(ctx,
		`SELECT id, username, password_hash, last_active_at, last_login_at, created_at, updated_at
		 FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.LastActiveAt, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.q.QueryRow(ctx,
		`SELECT id, username, password_hash, last_active_at, last_login_at, created_at, updated_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.LastActiveAt, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, userIDs []uuid.UUID) ([]models.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.Query(ctx,
		`SELECT id, username, password_hash, last_active_at, last_login_at, created_at, updated_at
		 FROM users WHERE id = ANY($1)`,
		userIDs,
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

func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	return exists, err
}

func (s *Store) UpdateLastActive(ctx context.Context, userID uuid.UUID) error {
	_, err := s.q.Exec(ctx,
		`UPDATE users SET last_active_at = NOW(), updated_at = NOW() WHERE id = $1`,
		userID,
	)
	return err
}

func (s *Store) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return err
}
