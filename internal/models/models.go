package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomRole is a participant's role inside a room.
type RoomRole string

const (
	RoleOwner  RoomRole = "OWNER"
	RoleMember RoomRole = "MEMBER"
)

// JoinRequestStatus tracks the lifecycle of a private-room join request.
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "PENDING"
	JoinRequestAccepted JoinRequestStatus = "ACCEPTED"
	JoinRequestRejected JoinRequestStatus = "REJECTED"
)

// NotificationType classifies a notification delivered to a user.
type NotificationType string

const (
	NotificationMessageSent         NotificationType = "MESSAGE_SENT"
	NotificationMention             NotificationType = "MENTION"
	NotificationJoinRequestCreated  NotificationType = "JOIN_REQUEST_CREATED"
	NotificationJoinRequestAccepted NotificationType = "JOIN_REQUEST_ACCEPTED"
	NotificationJoinRequestRejected NotificationType = "JOIN_REQUEST_REJECTED"
	NotificationSystem              NotificationType = "SYSTEM"
)

// AnalyticsEventType covers the user/room/message/notification lifecycle.
type AnalyticsEventType string

const (
	EventUserRegistered       AnalyticsEventType = "USER_REGISTERED"
	EventUserLoggedIn         AnalyticsEventType = "USER_LOGGED_IN"
	EventUserLoggedOut        AnalyticsEventType = "USER_LOGGED_OUT"
	EventUserDeleted          AnalyticsEventType = "USER_DELETED"
	EventUserConnected        AnalyticsEventType = "USER_CONNECTED"
	EventUserDisconnected     AnalyticsEventType = "USER_DISCONNECTED"
	EventUserForcedDisconnect AnalyticsEventType = "USER_FORCED_DISCONNECT"
	EventUserJoinedRoom       AnalyticsEventType = "USER_JOINED_ROOM"
	EventUserLeftRoom         AnalyticsEventType = "USER_LEFT_ROOM"
	EventRoomCreated          AnalyticsEventType = "ROOM_CREATED"
	EventRoomUpdated          AnalyticsEventType = "ROOM_UPDATED"
	EventRoomDeleted          AnalyticsEventType = "ROOM_DELETED"
	EventMessageSent          AnalyticsEventType = "MESSAGE_SENT"
	EventMessageEdited        AnalyticsEventType = "MESSAGE_EDITED"
	EventMessageDeleted       AnalyticsEventType = "MESSAGE_DELETED"
	EventJoinRequestCreated   AnalyticsEventType = "JOIN_REQUEST_CREATED"
	EventJoinRequestAccepted  AnalyticsEventType = "JOIN_REQUEST_ACCEPTED"
	EventJoinRequestRejected  AnalyticsEventType = "JOIN_REQUEST_REJECTED"
	EventNotificationRead     AnalyticsEventType = "NOTIFICATION_READ"
	EventNotificationsAllRead AnalyticsEventType = "NOTIFICATIONS_ALL_READ"
)

// OutboxType selects which side of the worker handles an outbox entry.
type OutboxType string

const (
	OutboxNotification OutboxType = "NOTIFICATION"
	OutboxAnalytics    OutboxType = "ANALYTICS"
)

// OutboxStatus is the lifecycle of an outbox entry.
// PENDING -> IN_PROGRESS -> SENT | FAILED, or back to PENDING on a
// retryable failure with retries incremented.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxInProgress OutboxStatus = "IN_PROGRESS"
	OutboxSent       OutboxStatus = "SENT"
	OutboxFailed     OutboxStatus = "FAILED"
)

// BroadcastEventType names the live events fanned out over pub/sub.
type BroadcastEventType string

const (
	BroadcastMessageCreated  BroadcastEventType = "MESSAGE_CREATED"
	BroadcastMessageEdited   BroadcastEventType = "MESSAGE_EDITED"
	BroadcastMessageDeleted  BroadcastEventType = "MESSAGE_DELETED"
	BroadcastRoomUserOnline  BroadcastEventType = "ROOM_USER_ONLINE"
	BroadcastRoomUserOffline BroadcastEventType = "ROOM_USER_OFFLINE"
	BroadcastUserTyping      BroadcastEventType = "USER_TYPING"
	BroadcastNotification    BroadcastEventType = "NOTIFICATION"
)

// User represents a registered user.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // Don't expose password hash
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Room represents a chat room.
type Room struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	IsPublic          bool      `json:"is_public"`
	CreatedBy         uuid.UUID `json:"created_by"`
	ParticipantsCount int       `json:"participants_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RoomMembership links a user to a room. The (room_id, user_id) pair is
// the primary key; exactly one OWNER per room.
type RoomMembership struct {
	RoomID   uuid.UUID `json:"room_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     RoomRole  `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// JoinRequest is a request to join a private room. At most one
// non-terminal request per (room, user).
type JoinRequest struct {
	ID        uuid.UUID         `json:"id"`
	RoomID    uuid.UUID         `json:"room_id"`
	UserID    uuid.UUID         `json:"user_id"`
	Status    JoinRequestStatus `json:"status"`
	HandledBy *uuid.UUID        `json:"handled_by,omitempty"`
	Message   string            `json:"message,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Message is a chat message. It is stored under four access paths
// (by-room, by-user, by-id, global-recent) keyed by the same id.
type Message struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification is a durable per-user notification, materialized by the
// outbox worker and mutated by mark-read operations.
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Type      NotificationType  `json:"type"`
	Payload   map[string]string `json:"payload"`
	Read      bool              `json:"read"`
	SourceID  *uuid.UUID        `json:"source_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Outbox is a durable side-effect record co-written with the domain
// mutation. DedupKey is globally unique; insertion is insert-if-absent,
// so re-issuing the same logical event is a no-op.
type Outbox struct {
	ID              uuid.UUID      `json:"id"`
	Type            OutboxType     `json:"type"`
	Status          OutboxStatus   `json:"status"`
	Payload         map[string]any `json:"payload"`
	DedupKey        string         `json:"dedup_key"`
	Retries         int            `json:"retries"`
	MaxRetries      int            `json:"max_retries"`
	SentAt          *time.Time     `json:"sent_at,omitempty"`
	InProgressUntil *time.Time     `json:"in_progress_until,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// AnalyticsEvent is one append-only row in the analytics store.
type AnalyticsEvent struct {
	ID        uuid.UUID          `json:"id"`
	EventType AnalyticsEventType `json:"event_type"`
	UserID    *uuid.UUID         `json:"user_id,omitempty"`
	RoomID    *uuid.UUID         `json:"room_id,omitempty"`
	Payload   map[string]string  `json:"payload,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// UserSession is a cookie-bound session stored in KV with sliding TTL.
// The id doubles as the opaque cookie value.
type UserSession struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
}

// WSSession binds one open WebSocket to a (user, room, cookie-session).
type WSSession struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	RoomID        uuid.UUID `json:"room_id"`
	UserSessionID uuid.UUID `json:"user_session_id"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastPingAt    time.Time `json:"last_ping_at"`
	IPAddress     string    `json:"ip_address"`
}

// EventPayload is the wire payload carried inside a broadcast envelope.
type EventPayload struct {
	UserID    uuid.UUID      `json:"user_id,omitempty"`
	Username  string         `json:"username,omitempty"`
	Content   string         `json:"content,omitempty"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// BroadcastEnvelope is the JSON object published on pub/sub channels and
// forwarded verbatim to WebSocket clients.
type BroadcastEnvelope struct {
	EventType BroadcastEventType `json:"event_type"`
	Payload   EventPayload       `json:"payload"`
}

// RoomStats is an analytics read model for one room.
type RoomStats struct {
	RoomID        uuid.UUID `json:"room_id"`
	TotalMessages int64     `json:"total_messages"`
	UsersAmount   int64     `json:"users_amount"`
	LastUpdated   time.Time `json:"last_updated"`
}

// UserActivity is an analytics read model for one user.
type UserActivity struct {
	Messages    int64 `json:"messages"`
	RoomsJoined int64 `json:"rooms_joined"`
}
