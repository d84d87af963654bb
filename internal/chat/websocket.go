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

// ChannelNamer builds the pub/sub channel names a connection subscribes
// to. Implemented by the cache package.
type ChannelNamer interface {
	RoomChannel(roomID uuid.UUID) string
	UserChannel(userID uuid.UUID) string
	UserNotificationsChannel(userID uuid.UUID) string
}

// WebSocketService manages WS sessions, presence sets and the live
// presence/typing broadcasts.
type WebSocketService struct {
	store      store.Store
	wsSessions store.WSSessionStore
	presence   store.PresenceStore
	bus        store.Bus
	channels   ChannelNamer
	logger     *utils.Logger
}

func NewWebSocketService(st store.Store, wsSessions store.WSSessionStore, presence store.PresenceStore, bus store.Bus, channels ChannelNamer, logger *utils.Logger) *WebSocketService {
	return &WebSocketService{
		store:      st,
		wsSessions: wsSessions,
		presence:   presence,
		bus:        bus,
		channels:   channels,
		logger:     logger,
	}
}

// ConnectToRoom registers the session, adds presence and returns the
// channel list the connection loop must subscribe to.
func (s *WebSocketService) ConnectToRoom(ctx context.Context, session *models.WSSession) ([]string, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		return writeAnalyticsOutbox(ctx, tx, models.EventUserConnected, &session.UserID, &session.RoomID, nil,
			fmt.Sprintf("user_connected:%s", session.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record connect: %w", err)
	}

	if err := s.wsSessions.SaveWSSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save ws session: %w", err)
	}
	if err := s.presence.AddPresence(ctx, session.RoomID, session.UserID); err != nil {
		return nil, fmt.Errorf("failed to add presence: %w", err)
	}

	roomIDs, err := s.presence.ListUserRoomIDs(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence rooms: %w", err)
	}
	channels := []string{
		s.channels.UserChannel(session.UserID),
		s.channels.UserNotificationsChannel(session.UserID),
	}
	for _, roomID := range roomIDs {
		channels = append(channels, s.channels.RoomChannel(roomID))
	}

	s.broadcastPresence(ctx, session.RoomID, models.BroadcastRoomUserOnline, user)
	return channels, nil
}

// DisconnectFromRoom tears down the session. Presence is removed only
// when no other WS session keeps the (user, room) pair alive.
func (s *WebSocketService) DisconnectFromRoom(ctx context.Context, sessionID, actor uuid.UUID) error {
	session, err := s.wsSessions.GetWSSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load ws session: %w", err)
	}
	if session == nil {
		return ErrWSSessionNotFound
	}
	if session.UserID != actor {
		return ErrWSSessionPermission
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		return writeAnalyticsOutbox(ctx, tx, models.EventUserDisconnected, &session.UserID, &session.RoomID, nil,
			fmt.Sprintf("user_disconnected:%s", session.ID))
	})
	if err != nil {
		return fmt.Errorf("failed to record disconnect: %w", err)
	}

	if err := s.wsSessions.DeleteWSSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete ws session: %w", err)
	}
	if err := s.dropPresenceIfLast(ctx, session.UserID, session.RoomID); err != nil {
		return err
	}
	return nil
}

// UpdatePing stamps the heartbeat and refreshes the user's last_active.
func (s *WebSocketService) UpdatePing(ctx context.Context, sessionID, actor uuid.UUID) error {
	session, err := s.wsSessions.GetWSSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load ws session: %w", err)
	}
	if session == nil {
		return ErrWSSessionNotFound
	}
	if session.UserID != actor {
		return ErrWSSessionPermission
	}

	if err := s.wsSessions.UpdateWSSessionPing(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to update ping: %w", err)
	}
	if err := s.store.UpdateLastActive(ctx, session.UserID); err != nil {
		s.logger.Error(ctx, "failed to refresh last_active: %v", err)
	}
	return nil
}

// TypingIndicator broadcasts USER_TYPING. The claimed username must
// match the user's record.
func (s *WebSocketService) TypingIndicator(ctx context.Context, roomID, userID uuid.UUID, username string, isTyping bool) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.Username != username {
		return ErrWSSessionPermission
	}

	payload := models.EventPayload{
		UserID:    userID,
		Username:  username,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   map[string]any{"is_typing": isTyping},
	}
	if err := s.bus.BroadcastToRoom(ctx, roomID, models.BroadcastUserTyping, payload); err != nil {
		return fmt.Errorf("failed to broadcast typing: %w", err)
	}
	return nil
}

// ActiveUsersInRoom returns the room's presence set as users. Members
// only.
func (s *WebSocketService) ActiveUsersInRoom(ctx context.Context, roomID, by uuid.UUID) ([]models.User, error) {
	member, err := s.store.MembershipExists(ctx, roomID, by)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return nil, ErrRoomPermission
	}

	userIDs, err := s.presence.ListRoomUserIDs(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}
	users, err := s.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve users: %w", err)
	}
	return users, nil
}

// DisconnectUserFromRoom force-closes every WS session the target holds
// in the room. Owner-only.
func (s *WebSocketService) DisconnectUserFromRoom(ctx context.Context, targetUser, roomID, by uuid.UUID) error {
	room, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to load room: %w", err)
	}
	if room == nil {
		return ErrRoomNotFound
	}
	if room.CreatedBy != by {
		return ErrRoomPermission
	}

	sessions, err := s.wsSessions.ListWSSessionsByUser(ctx, targetUser)
	if err != nil {
		return fmt.Errorf("failed to list ws sessions: %w", err)
	}
	for _, session := range sessions {
		if session.RoomID != roomID {
			continue
		}
		if err := s.wsSessions.DeleteWSSession(ctx, session.ID); err != nil {
			s.logger.Error(ctx, "failed to delete forced ws session: %v", err)
		}
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		return writeAnalyticsOutbox(ctx, tx, models.EventUserForcedDisconnect, &targetUser, &roomID, nil,
			fmt.Sprintf("user_forced_disconnect:%s:%s", targetUser, roomID))
	})
	if err != nil {
		return fmt.Errorf("failed to record forced disconnect: %w", err)
	}

	if err := s.presence.RemovePresence(ctx, roomID, targetUser); err != nil {
		s.logger.Error(ctx, "failed to remove presence on forced disconnect: %v", err)
	}
	if user, loadErr := s.store.GetUserByID(ctx, targetUser); loadErr == nil && user != nil {
		s.broadcastPresence(ctx, roomID, models.BroadcastRoomUserOffline, user)
	}
	return nil
}

// IsUserOnline reports presence in at least one room.
func (s *WebSocketService) IsUserOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.presence.IsUserOnline(ctx, userID)
}

func (s *WebSocketService) dropPresenceIfLast(ctx context.Context, userID, roomID uuid.UUID) error {
	sessions, err := s.wsSessions.ListWSSessionsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list ws sessions: %w", err)
	}
	for _, other := range sessions {
		if other.RoomID == roomID {
			return nil
		}
	}

	if err := s.presence.RemovePresence(ctx, roomID, userID); err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	if user, loadErr := s.store.GetUserByID(ctx, userID); loadErr == nil && user != nil {
		s.broadcastPresence(ctx, roomID, models.BroadcastRoomUserOffline, user)
	}
	return nil
}

func (s *WebSocketService) broadcastPresence(ctx context.Context, roomID uuid.UUID, eventType models.BroadcastEventType, user *models.User) {
	payload := models.EventPayload{
		UserID:    user.ID,
		Username:  user.Username,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.bus.BroadcastToRoom(ctx, roomID, eventType, payload); err != nil {
		s.logger.Error(ctx, "failed to broadcast %s: %v", eventType, err)
	}
}
