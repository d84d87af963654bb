package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
)

const defaultMaxRetries = 5

// writeAnalyticsOutbox enqueues a PENDING ANALYTICS entry on the given
// store handle. The event id is generated here and travels inside the
// payload, so a retried dispatch appends the same row id.
func writeAnalyticsOutbox(ctx context.Context, tx store.OutboxStore, eventType models.AnalyticsEventType, userID, roomID *uuid.UUID, payload map[string]string, dedupKey string) error {
	body := map[string]any{
		"id":         uuid.NewString(),
		"event_type": string(eventType),
	}
	if userID != nil {
		body["user_id"] = userID.String()
	}
	if roomID != nil {
		body["room_id"] = roomID.String()
	}
	if payload != nil {
		body["payload"] = payload
	}
	return tx.SaveOutbox(ctx, &models.Outbox{
		ID:         uuid.New(),
		Type:       models.OutboxAnalytics,
		Status:     models.OutboxPending,
		Payload:    body,
		DedupKey:   dedupKey,
		MaxRetries: defaultMaxRetries,
		CreatedAt:  time.Now().UTC(),
	})
}

// writeNotificationOutbox enqueues a PENDING NOTIFICATION entry. The
// worker materializes the Notification from this payload; the embedded
// id makes re-delivery replace rather than duplicate.
func writeNotificationOutbox(ctx context.Context, tx store.OutboxStore, notifType models.NotificationType, userID uuid.UUID, payload map[string]string, sourceID *uuid.UUID, dedupKey string) error {
	body := map[string]any{
		"id":      uuid.NewString(),
		"user_id": userID.String(),
		"type":    string(notifType),
		"read":    false,
	}
	if sourceID != nil {
		body["source_id"] = sourceID.String()
	}
	if payload != nil {
		body["payload"] = payload
	}
	return tx.SaveOutbox(ctx, &models.Outbox{
		ID:         uuid.New(),
		Type:       models.OutboxNotification,
		Status:     models.OutboxPending,
		Payload:    body,
		DedupKey:   dedupKey,
		MaxRetries: defaultMaxRetries,
		CreatedAt:  time.Now().UTC(),
	})
}
