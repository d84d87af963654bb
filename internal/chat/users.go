package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

const maxUsernameLength = 32

// UserService handles registration, login/logout, session resolution and
// account deletion.
type UserService struct {
	store      store.Store
	sessions   store.UserSessionStore
	wsSessions store.WSSessionStore
	hasher     store.PasswordHasher
	logger     *utils.Logger
}

func NewUserService(st store.Store, sessions store.UserSessionStore, wsSessions store.WSSessionStore, hasher store.PasswordHasher, logger *utils.Logger) *UserService {
	return &UserService{
		store:      st,
		sessions:   sessions,
		wsSessions: wsSessions,
		hasher:     hasher,
		logger:     logger,
	}
}

func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || len(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username must be 1-%d characters", ErrValidation, maxUsernameLength)
	}

	exists, err := s.store.UserExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventUserRegistered, &user.ID, nil,
			map[string]string{"username": user.Username},
			fmt.Sprintf("user_register:%s", user.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.logger.Info(ctx, "user registered: %s", user.Username)
	return user, nil
}

// Login verifies credentials, stamps last_login/last_active and creates
// a KV session whose id doubles as the cookie value.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, *models.UserSession, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !s.hasher.Verify(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	session := &models.UserSession{
		ID:          uuid.New(),
		UserID:      user.ID,
		ConnectedAt: now,
	}
	user.LastLoginAt = &now
	user.LastActiveAt = &now
	user.UpdatedAt = now

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventUserLoggedIn, &user.ID, nil, nil,
			fmt.Sprintf("user_login:%s:%d", user.ID, session.ConnectedAt.UnixNano()))
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record login: %w", err)
	}

	// KV does not join the transaction; a failed session save just means
	// the user logs in again.
	if err := s.sessions.SaveUserSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info(ctx, "user logged in: %s", user.Username)
	return user, session, nil
}

func (s *UserService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.GetUserSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.UpdateLastActive(ctx, session.UserID); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventUserLoggedOut, &session.UserID, nil, nil,
			fmt.Sprintf("user_logout:%s:%s", session.UserID, session.ID))
	})
	if err != nil {
		return fmt.Errorf("failed to record logout: %w", err)
	}

	if err := s.sessions.DeleteUserSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.wsSessions.DeleteWSSessionsByUser(ctx, session.UserID); err != nil {
		s.logger.Error(ctx, "failed to delete ws sessions on logout: %v", err)
	}
	return nil
}

// DeleteUser removes the account and cascades notifications, KV
// sessions and open WebSocket sessions.
func (s *UserService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.DeleteNotificationsByUser(ctx, userID); err != nil {
			return err
		}
		if err := tx.DeleteUser(ctx, userID); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventUserDeleted, &userID, nil,
			map[string]string{"username": user.Username},
			fmt.Sprintf("user_deleted:%s", userID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := s.sessions.DeleteUserSessionsByUser(ctx, userID); err != nil {
		s.logger.Error(ctx, "failed to delete sessions for deleted user: %v", err)
	}
	if err := s.wsSessions.DeleteWSSessionsByUser(ctx, userID); err != nil {
		s.logger.Error(ctx, "failed to delete ws sessions for deleted user: %v", err)
	}
	return nil
}

// ResolveSession loads the session behind a cookie value. The KV read
// itself slides the TTL when the session is close to expiry.
func (s *UserService) ResolveSession(ctx context.Context, sessionID uuid.UUID) (*models.User, *models.UserSession, error) {
	session, err := s.sessions.GetUserSession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	return user, session, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
