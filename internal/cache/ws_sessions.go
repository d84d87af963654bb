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

func wsSessionKey(sessionID uuid.UUID) string { return fmt.Sprintf("ws_session:%s", sessionID) }
func wsSessionIndexKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_ws_sessions:%s", userID)
}

// WSSessions stores live WebSocket session records. Heartbeats refresh
// the TTL, so a crashed node's sessions age out on their own.
type WSSessions struct {
	cache *Cache
	ttl   time.Duration
}

func NewWSSessions(cache *Cache, ttl time.Duration) *WSSessions {
	return &WSSessions{cache: cache, ttl: ttl}
}

func (s *WSSessions) SaveWSSession(ctx context.Context, session *models.WSSession) error {
	ctx, done := s.cache.instrument(ctx, "save_ws_session", attribute.String("ws_session.id", session.ID.String()))
	var err error
	defer func() { done(err) }()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal ws session: %w", err)
	}

	pipe := s.cache.client.TxPipeline()
	pipe.Set(ctx, wsSessionKey(session.ID), data, s.ttl)
	pipe.SAdd(ctx, wsSessionIndexKey(session.UserID), session.ID.String())
	pipe.Expire(ctx, wsSessionIndexKey(session.UserID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *WSSessions) GetWSSession(ctx context.Context, sessionID uuid.UUID) (*models.WSSession, error) {
	ctx, done := s.cache.instrument(ctx, "get_ws_session", attribute.String("ws_session.id", sessionID.String()))
	var err error
	defer func() { done(err) }()

	data, err := s.cache.client.Get(ctx, wsSessionKey(sessionID)).Result()
	if err == redis.Nil {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ws session: %w", err)
	}

	var session models.WSSession
	if err = json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ws session: %w", err)
	}
	return &session, nil
}

func (s *WSSessions) ListWSSessionsByUser(ctx context.Context, userID uuid.UUID) ([]models.WSSession, error) {
	ctx, done := s.cache.instrument(ctx, "list_ws_sessions_by_user", attribute.String("user.id", userID.String()))
	var err error
	defer func() { done(err) }()

	ids, err := s.cache.client.SMembers(ctx, wsSessionIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ws sessions: %w", err)
	}

	var sessions []models.WSSession
	for _, id := range ids {
		sessionID, parseErr := uuid.Parse(id)
		if parseErr != nil {
			continue
		}
		data, getErr := s.cache.client.Get(ctx, wsSessionKey(sessionID)).Result()
		if getErr == redis.Nil {
			// Expired session still in the index; drop the stale member.
			s.cache.client.SRem(ctx, wsSessionIndexKey(userID), id)
			continue
		}
		if getErr != nil {
			err = getErr
			return nil, fmt.Errorf("failed to get ws session: %w", getErr)
		}
		var session models.WSSession
		if err = json.Unmarshal([]byte(data), &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ws session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// UpdateWSSessionPing stamps last_ping_at and pushes the TTL back out to
// the full window.
func (s *WSSessions) UpdateWSSessionPing(ctx context.Context, sessionID uuid.UUID) error {
	ctx, done := s.cache.instrument(ctx, "update_ws_session_ping", attribute.String("ws_session.id", sessionID.String()))
	var err error
	defer func() { done(err) }()

	session, err := s.GetWSSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	session.LastPingAt = time.Now().UTC()
	return s.SaveWSSession(ctx, session)
}

func (s *WSSessions) DeleteWSSession(ctx context.Context, sessionID uuid.UUID) error {
	ctx, done := s.cache.instrument(ctx, "delete_ws_session", attribute.String("ws_session.id", sessionID.String()))
	var err error
	defer func() { done(err) }()

	session, err := s.GetWSSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	pipe := s.cache.client.TxPipeline()
	pipe.Del(ctx, wsSessionKey(sessionID))
	pipe.SRem(ctx, wsSessionIndexKey(session.UserID), sessionID.String())
	_, err = pipe.Exec(ctx)
	return err
}

func (s *WSSessions) DeleteWSSessionsByUser(ctx context.Context, userID uuid.UUID) error {
	ctx, done := s.cache.instrument(ctx, "delete_ws_sessions_by_user", attribute.String("user.id", userID.String()))
	var err error
	defer func() { done(err) }()

	ids, err := s.cache.client.SMembers(ctx, wsSessionIndexKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list ws sessions: %w", err)
	}

	pipe := s.cache.client.TxPipeline()
	for _, id := range ids {
		sessionID, parseErr := uuid.Parse(id)
		if parseErr != nil {
			continue
		}
		pipe.Del(ctx, wsSessionKey(sessionID))
	}
	pipe.Del(ctx, wsSessionIndexKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
