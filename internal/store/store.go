// Package store defines the narrow capability interfaces the services are
// written against. The Postgres implementation lives in internal/db, the
// Redis-backed KV implementations in internal/cache.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
)

// UserStore persists users.
type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, userIDs []uuid.UUID) ([]models.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
	UpdateLastActive(ctx context.Context, userID uuid.UUID) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// RoomStore persists rooms.
type RoomStore interface {
	SaveRoom(ctx context.Context, room *models.Room) error
	GetRoomByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error)
	RoomExists(ctx context.Context, name string) (bool, error)
	ListTopRooms(ctx context.Context, limit int, onlyPublic bool) ([]models.Room, error)
	SearchRooms(ctx context.Context, query string, limit int) ([]models.Room, error)
	IncrementParticipants(ctx context.Context, roomID uuid.UUID) error
	// DecrementParticipants never drives the count below zero.
	DecrementParticipants(ctx context.Context, roomID uuid.UUID) error
	DeleteRoom(ctx context.Context, roomID uuid.UUID) error
}

// MembershipStore persists room memberships.
type MembershipStore interface {
	SaveMembership(ctx context.Context, m *models.RoomMembership) error
	MembershipExists(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	DeleteMembership(ctx context.Context, roomID, userID uuid.UUID) error
	ListRoomUsers(ctx context.Context, roomID uuid.UUID) ([]models.User, error)
	ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error)
}

// JoinRequestStore persists private-room join requests.
type JoinRequestStore interface {
	SaveJoinRequest(ctx context.Context, req *models.JoinRequest) error
	GetJoinRequestByID(ctx context.Context, requestID uuid.UUID) (*models.JoinRequest, error)
	// PendingJoinRequestExists reports whether a non-terminal request exists
	// for the (room, user) pair.
	PendingJoinRequestExists(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	ListJoinRequestsByRoom(ctx context.Context, roomID uuid.UUID, status models.JoinRequestStatus) ([]models.JoinRequest, error)
	ListJoinRequestsByUser(ctx context.Context, userID uuid.UUID, status models.JoinRequestStatus) ([]models.JoinRequest, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	// SaveNotification replaces by id, so re-delivery of the same outbox
	// entry is idempotent.
	SaveNotification(ctx context.Context, n *models.Notification) error
	GetNotificationByID(ctx context.Context, notificationID uuid.UUID) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error
	CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteNotification(ctx context.Context, notificationID uuid.UUID) error
	DeleteNotificationsByUser(ctx context.Context, userID uuid.UUID) error
}

// MessageStore persists messages under all four access paths.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error)
	// GetRecentByRoom returns most-recent-first, optionally older than before.
	GetRecentByRoom(ctx context.Context, roomID uuid.UUID, limit int, before *time.Time) ([]models.Message, error)
	GetRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Message, error)
	// GetRecentGlobal paginates the global-recent partition with a stable
	// (created_at, id) keyset cursor going older. Used by the repair job.
	GetRecentGlobal(ctx context.Context, since time.Time, limit int, after *MessageCursor) ([]models.Message, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
}

// MessageCursor is a keyset cursor over the global-recent partition.
type MessageCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// OutboxStore persists outbox entries. Insertion is keyed by DedupKey.
type OutboxStore interface {
	// SaveOutbox inserts the entry unless one with the same dedup key
	// already exists; re-issuing a logical event is a no-op.
	SaveOutbox(ctx context.Context, outbox *models.Outbox) error
	// ListPending returns up to limit PENDING entries in created_at ASC
	// order, including IN_PROGRESS entries whose lease expired.
	ListPending(ctx context.Context, limit int) ([]models.Outbox, error)
	// MarkInProgress CAS-transitions PENDING -> IN_PROGRESS and stamps the
	// lease. It reports whether the transition won.
	MarkInProgress(ctx context.Context, outboxID uuid.UUID, until time.Time) (bool, error)
	MarkSent(ctx context.Context, outboxID uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, lastError string) error
	// Requeue moves the entry back to PENDING with retries incremented.
	Requeue(ctx context.Context, outboxID uuid.UUID, lastError string) error
	ExistsByDedupKeys(ctx context.Context, dedupKeys []string) (map[string]bool, error)
}

// AnalyticsSink appends events to the analytics store.
type AnalyticsSink interface {
	AppendEvent(ctx context.Context, event *models.AnalyticsEvent) error
}

// AnalyticsQueries are the read-only aggregations over the analytics store.
type AnalyticsQueries interface {
	RoomStats(ctx context.Context, roomID uuid.UUID) (*models.RoomStats, error)
	UserActivity(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error)
	TopActiveRooms(ctx context.Context, limit int) ([]models.RoomStats, error)
	MessagesPerMinute(ctx context.Context, roomID uuid.UUID, sinceMinutes int) (int64, error)
}

// Tx bundles every store that participates in a single transaction. The
// handle returned by Runner.Run commits all writes atomically; the same
// bundle obtained outside Run executes in autocommit mode.
type Tx interface {
	UserStore
	RoomStore
	MembershipStore
	JoinRequestStore
	NotificationStore
	MessageStore
	OutboxStore
	AnalyticsSink
	AnalyticsQueries
}

// Runner executes fn under a transactional store handle. On a nil return
// the transaction commits; on error it rolls back and the error is
// returned unchanged.
type Runner interface {
	Run(ctx context.Context, fn func(tx Tx) error) error
}

// Store is the full relational-store surface the services depend on.
type Store interface {
	Tx
	Runner
}
