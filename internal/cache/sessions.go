package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/roomchat/roomchat-backend/internal/models"
)

func userSessionKey(sessionID uuid.UUID) string { return fmt.Sprintf("session:%s", sessionID) }
func userSessionIndexKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_sessions:%s", userID)
}

// UserSessions stores cookie-bound sessions with a sliding TTL: reads
// that land inside the refresh threshold push the expiry back out to the
// full window, so active users stay logged in.
type UserSessions struct {
	cache            *Cache
	ttl              time.Duration
	slidingThreshold time.Duration
}

func NewUserSessions(cache *Cache, ttl, slidingThreshold time.Duration) *UserSessions {
	return &UserSessions{cache: cache, ttl: ttl, slidingThreshold: slidingThreshold}
}

func (s *UserSessions) SaveUserSession(ctx context.Context, session *models.UserSession) error {
	ctx, done := s.cache.instrument(ctx, "save_user_session", attribute.String("session.id", session.ID.String()))
	var err error
	defer func() { done(err) }()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal user session: %w", err)
	}

	pipe := s.cache.client.TxPipeline()
	pipe.Set(ctx, userSessionKey(session.ID), data, s.ttl)
	pipe.SAdd(ctx, userSessionIndexKey(session.UserID), session.ID.String())
	pipe.Expire(ctx, userSessionIndexKey(session.UserID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *UserSessions) GetUserSession(ctx context.Context, sessionID uuid.UUID) (*models.UserSession, error) {
	ctx, done := s.cache.instrument(ctx, "get_user_session", attribute.String("session.id", sessionID.String()))
	var err error
	defer func() { done(err) }()

	key := userSessionKey(sessionID)
	data, err := s.cache.client.Get(ctx, key).Result()
	if err == redis.Nil {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user session: %w", err)
	}

	var session models.UserSession
	if err = json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user session: %w", err)
	}

	// Sliding expiry: refresh only when the remaining TTL has dropped
	// below the threshold, so hot sessions don't hammer EXPIRE.
	remaining, ttlErr := s.cache.client.TTL(ctx, key).Result()
	if ttlErr == nil && remaining >= 0 && remaining < s.slidingThreshold {
		pipe := s.cache.client.TxPipeline()
		pipe.Expire(ctx, key, s.ttl)
		pipe.Expire(ctx, userSessionIndexKey(session.UserID), s.ttl)
		_, _ = pipe.Exec(ctx)
	}
	return &session, nil
}

func (s *UserSessions) DeleteUserSession(ctx context.Context, sessionID uuid.UUID) error {
	ctx, done := s.cache.instrument(ctx, "delete_user_session", attribute.String("session.id", sessionID.String()))
	var err error
	defer func() { done(err) }()

	data, err := s.cache.client.Get(ctx, userSessionKey(sessionID)).Result()
	if err == redis.Nil {
		err = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user session: %w", err)
	}

	var session models.UserSession
	if err = json.Unmarshal([]byte(data), &session); err != nil {
		return fmt.Errorf("failed to unmarshal user session: %w", err)
	}

	pipe := s.cache.client.TxPipeline()
	pipe.Del(ctx, userSessionKey(sessionID))
	pipe.SRem(ctx, userSessionIndexKey(session.UserID), sessionID.String())
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteUserSessionsByUser revokes every live session of the user. Used
// on account deletion.
func (s *UserSessions) DeleteUserSessionsByUser(ctx context.Context, userID uuid.UUID) error {
	ctx, done := s.cache.instrument(ctx, "delete_user_sessions_by_user", attribute.String("user.id", userID.String()))
	var err error
	defer func() { done(err) }()

	ids, err := s.cache.client.SMembers(ctx, userSessionIndexKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	pipe := s.cache.client.TxPipeline()
	for _, id := range ids {
		sessionID, parseErr := uuid.Parse(id)
		if parseErr != nil {
			continue
		}
		pipe.Del(ctx, userSessionKey(sessionID))
	}
	pipe.Del(ctx, userSessionIndexKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
