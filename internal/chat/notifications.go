package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

const defaultNotificationLimit = 50

// NotificationService handles the read side of notifications plus the
// mark-read transitions.
type NotificationService struct {
	store  store.Store
	logger *utils.Logger
}

func NewNotificationService(st store.Store, logger *utils.Logger) *NotificationService {
	return &NotificationService{store: st, logger: logger}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit < 1 || limit > 200 {
		limit = defaultNotificationLimit
	}
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead is idempotent: marking an already-read notification succeeds.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	n, err := s.get(ctx, notificationID, userID)
	if err != nil {
		return err
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.MarkNotificationRead(ctx, n.ID); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventNotificationRead, &userID, nil, nil,
			fmt.Sprintf("notif_read:%s", n.ID))
	})
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	err := s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.MarkAllNotificationsRead(ctx, userID); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventNotificationsAllRead, &userID, nil, nil,
			fmt.Sprintf("notif_all_read:%s", userID))
	})
	if err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.CountUnreadNotifications(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, notificationID, userID uuid.UUID) error {
	n, err := s.get(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteNotification(ctx, n.ID); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (s *NotificationService) get(ctx context.Context, notificationID, userID uuid.UUID) (*models.Notification, error) {
	n, err := s.store.GetNotificationByID(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}
	if n == nil {
		return nil, ErrNotificationNotFound
	}
	if n.UserID != userID {
		return nil, ErrNotificationPermission
	}
	return n, nil
}
