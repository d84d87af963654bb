package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
)

// UserSessionStore keeps cookie-bound user sessions in KV with TTL.
type UserSessionStore interface {
	SaveUserSession(ctx context.Context, session *models.UserSession) error
	// GetUserSession refreshes the TTL to the full window when the
	// remaining TTL has dropped below the sliding threshold.
	GetUserSession(ctx context.Context, sessionID uuid.UUID) (*models.UserSession, error)
	DeleteUserSession(ctx context.Context, sessionID uuid.UUID) error
	DeleteUserSessionsByUser(ctx context.Context, userID uuid.UUID) error
}

// WSSessionStore keeps WebSocket sessions in KV with TTL.
type WSSessionStore interface {
	SaveWSSession(ctx context.Context, session *models.WSSession) error
	GetWSSession(ctx context.Context, sessionID uuid.UUID) (*models.WSSession, error)
	ListWSSessionsByUser(ctx context.Context, userID uuid.UUID) ([]models.WSSession, error)
	UpdateWSSessionPing(ctx context.Context, sessionID uuid.UUID) error
	DeleteWSSession(ctx context.Context, sessionID uuid.UUID) error
	DeleteWSSessionsByUser(ctx context.Context, userID uuid.UUID) error
}

// PresenceStore maintains the room/user presence set indices.
type PresenceStore interface {
	AddPresence(ctx context.Context, roomID, userID uuid.UUID) error
	RemovePresence(ctx context.Context, roomID, userID uuid.UUID) error
	ListRoomUserIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
	ListUserRoomIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	// IsUserOnline reports whether the user's room set is non-empty.
	IsUserOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Subscription is an open pub/sub consumer handle. Messages() yields raw
// payloads; Close unsubscribes and releases the connection.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Bus is the pub/sub fan-out contract. Delivery to live subscribers is
// best-effort; durable effects go through the outbox.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
	BroadcastToRoom(ctx context.Context, roomID uuid.UUID, eventType models.BroadcastEventType, payload models.EventPayload) error
	SendToUser(ctx context.Context, userID uuid.UUID, eventType models.BroadcastEventType, payload models.EventPayload) error
}

// Locker hands out non-blocking distributed locks with a TTL lease.
type Locker interface {
	// TryLock returns an unlock func when the lock was acquired, or
	// ok=false when another holder owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) bool
}
