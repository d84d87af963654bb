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

const (
	minRecentLimit = 1
	maxRecentLimit = 200
)

// MessageView is a message joined with its author's username for the
// read path.
type MessageView struct {
	models.Message
	Username string `json:"username"`
}

// MessageService handles send/edit/delete with membership and authorship
// checks, plus the recent-messages read path.
type MessageService struct {
	store  store.Store
	bus    store.Bus
	logger *utils.Logger
}

func NewMessageService(st store.Store, bus store.Bus, logger *utils.Logger) *MessageService {
	return &MessageService{store: st, bus: bus, logger: logger}
}

func (s *MessageService) Send(ctx context.Context, roomID, userID uuid.UUID, content string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: empty message", ErrValidation)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if err := s.requireMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &models.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.SaveMessage(ctx, msg); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventMessageSent, &userID, &roomID,
			map[string]string{"message": msg.Content},
			fmt.Sprintf("message_sent:%s", msg.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	s.broadcast(ctx, roomID, models.BroadcastMessageCreated, user, msg)
	return msg, nil
}

func (s *MessageService) Edit(ctx context.Context, messageID, userID uuid.UUID, newContent string) (*models.Message, error) {
	if newContent == "" {
		return nil, fmt.Errorf("%w: empty message", ErrValidation)
	}
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.UserID != userID {
		return nil, ErrMessagePermission
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	msg.Content = newContent
	msg.Edited = true
	msg.UpdatedAt = time.Now().UTC()

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.SaveMessage(ctx, msg); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventMessageEdited, &userID, &msg.RoomID,
			map[string]string{"message": msg.Content},
			fmt.Sprintf("message_edited:%s", msg.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}

	s.broadcast(ctx, msg.RoomID, models.BroadcastMessageEdited, user, msg)
	return msg, nil
}

func (s *MessageService) Delete(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.UserID != userID {
		return ErrMessagePermission
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.DeleteMessage(ctx, messageID); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventMessageDeleted, &userID, &msg.RoomID,
			map[string]string{"message": msg.Content},
			fmt.Sprintf("message_deleted:%s", msg.ID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	if user != nil {
		s.broadcast(ctx, msg.RoomID, models.BroadcastMessageDeleted, user, msg)
	}
	return nil
}

// GetRecent returns the newest page of a room's messages. limit is
// clamped to [1, 200]; before pages older. Usernames are resolved with
// one batch lookup over the distinct author ids.
func (s *MessageService) GetRecent(ctx context.Context, roomID, userID uuid.UUID, limit int, before *time.Time) ([]MessageView, error) {
	if err := s.requireMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if limit < minRecentLimit {
		limit = minRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	messages, err := s.store.GetRecentByRoom(ctx, roomID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return s.withUsernames(ctx, messages)
}

// GetRecentByUser returns the caller's own newest messages across rooms.
func (s *MessageService) GetRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]MessageView, error) {
	if limit < minRecentLimit {
		limit = minRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	messages, err := s.store.GetRecentByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return s.withUsernames(ctx, messages)
}

func (s *MessageService) withUsernames(ctx context.Context, messages []models.Message) ([]MessageView, error) {
	seen := make(map[uuid.UUID]struct{}, len(messages))
	var ids []uuid.UUID
	for _, msg := range messages {
		if _, ok := seen[msg.UserID]; !ok {
			seen[msg.UserID] = struct{}{}
			ids = append(ids, msg.UserID)
		}
	}

	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve usernames: %w", err)
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, MessageView{Message: msg, Username: names[msg.UserID]})
	}
	return views, nil
}

// broadcast is best-effort: a lost live event is acceptable, the outbox
// carries the durable record.
func (s *MessageService) broadcast(ctx context.Context, roomID uuid.UUID, eventType models.BroadcastEventType, user *models.User, msg *models.Message) {
	payload := models.EventPayload{
		UserID:    user.ID,
		Username:  user.Username,
		Content:   msg.Content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   map[string]any{"message_id": msg.ID.String()},
	}
	if err := s.bus.BroadcastToRoom(ctx, roomID, eventType, payload); err != nil {
		s.logger.Error(ctx, "failed to broadcast %s: %v", eventType, err)
	}
}

func (s *MessageService) requireMembership(ctx context.Context, roomID, userID uuid.UUID) error {
	member, err := s.store.MembershipExists(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return ErrMessagePermission
	}
	return nil
}
