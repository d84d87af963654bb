package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/storetest"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

func testLogger() *utils.Logger {
	return utils.NewLogger("error")
}

func pendingNotification(userID uuid.UUID, dedupKey string) *models.Outbox {
	return &models.Outbox{
		ID:     uuid.New(),
		Type:   models.OutboxNotification,
		Status: models.OutboxPending,
		Payload: map[string]any{
			"id":      uuid.NewString(),
			"user_id": userID.String(),
			"type":    string(models.NotificationSystem),
			"read":    false,
			"payload": map[string]any{"room_name": "general"},
		},
		DedupKey:   dedupKey,
		MaxRetries: 5,
		CreatedAt:  time.Now().UTC(),
	}
}

func pendingAnalytics(userID, roomID uuid.UUID, dedupKey string) *models.Outbox {
	return &models.Outbox{
		ID:     uuid.New(),
		Type:   models.OutboxAnalytics,
		Status: models.OutboxPending,
		Payload: map[string]any{
			"id":         uuid.NewString(),
			"event_type": string(models.EventMessageSent),
			"user_id":    userID.String(),
			"room_id":    roomID.String(),
			"payload":    map[string]any{"message": "hello"},
		},
		DedupKey:   dedupKey,
		MaxRetries: 5,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestWorkerDispatchesNotification(t *testing.T) {
	st := storetest.NewFake()
	bus := storetest.NewFakeBus()
	worker := NewWorker(st, bus, storetest.NewFakeLocker(), testLogger(), WorkerConfig{})
	ctx := context.Background()

	userID := uuid.New()
	entry := pendingNotification(userID, "notif_test:1")
	require.NoError(t, st.SaveOutbox(ctx, entry))

	require.NoError(t, worker.Run(ctx))

	// The notification was materialized with the id embedded in the payload.
	notifID := uuid.MustParse(entry.Payload["id"].(string))
	notification, err := st.GetNotificationByID(ctx, notifID)
	require.NoError(t, err)
	require.NotNil(t, notification)
	assert.Equal(t, userID, notification.UserID)
	assert.Equal(t, models.NotificationSystem, notification.Type)
	assert.Equal(t, "general", notification.Payload["room_name"])

	// Pushed live to the user channel.
	require.Len(t, bus.Sends, 1)
	assert.Equal(t, userID, bus.Sends[0].UserID)
	assert.Equal(t, models.BroadcastNotification, bus.Sends[0].EventType)

	sent := st.OutboxByDedupKey("notif_test:1")
	require.NotNil(t, sent)
	assert.Equal(t, models.OutboxSent, sent.Status)
	assert.NotNil(t, sent.SentAt)
}

func TestWorkerDispatchesAnalytics(t *testing.T) {
	st := storetest.NewFake()
	worker := NewWorker(st, storetest.NewFakeBus(), storetest.NewFakeLocker(), testLogger(), WorkerConfig{})
	ctx := context.Background()

	userID, roomID := uuid.New(), uuid.New()
	entry := pendingAnalytics(userID, roomID, "message_sent:test")
	require.NoError(t, st.SaveOutbox(ctx, entry))

	require.NoError(t, worker.Run(ctx))

	require.Len(t, st.Events, 1)
	event := st.Events[0]
	assert.Equal(t, models.EventMessageSent, event.EventType)
	require.NotNil(t, event.UserID)
	assert.Equal(t, userID, *event.UserID)
	require.NotNil(t, event.RoomID)
	assert.Equal(t, roomID, *event.RoomID)
	assert.Equal(t, "hello", event.Payload["message"])

	sent := st.OutboxByDedupKey("message_sent:test")
	assert.Equal(t, models.OutboxSent, sent.Status)
}

func TestWorkerRedeliveryIsIdempotent(t *testing.T) {
	st := storetest.NewFake()
	worker := NewWorker(st, storetest.NewFakeBus(), storetest.NewFakeLocker(), testLogger(), WorkerConfig{})
	ctx := context.Background()

	entry := pendingAnalytics(uuid.New(), uuid.New(), "message_sent:redeliver")
	require.NoError(t, st.SaveOutbox(ctx, entry))
	require.NoError(t, worker.Run(ctx))
	require.Len(t, st.Events, 1)

	// Force the same entry back to PENDING, as a crashed worker would
	// leave it after appending but before marking sent.
	require.NoError(t, st.Requeue(ctx, entry.ID, "simulated crash"))
	require.NoError(t, worker.Run(ctx))

	// The event id travels in the payload, so the append was a no-op.
	assert.Len(t, st.Events, 1)
}

func TestWorkerRequeuesOnTransientFailure(t *testing.T) {
	st := storetest.NewFake()
	st.SaveNotificationErr = errors.New("db down")
	worker := NewWorker(st, storetest.NewFakeBus(), storetest.NewFakeLocker(), testLogger(), WorkerConfig{})
	ctx := context.Background()

	entry := pendingNotification(uuid.New(), "notif_test:retry")
	require.NoError(t, st.SaveOutbox(ctx, entry))

	require.NoError(t, worker.Run(ctx))

	got := st.OutboxByDedupKey("notif_test:retry")
	require.NotNil(t, got)
	assert.Equal(t, models.OutboxPending, got.Status)
	assert.Equal(t, 1, got.Retries)
	assert.Equal(t, "failed to persist notification: db down", got.LastError)

	// Recovery: the next cycle succeeds.
	st.SaveNotificationErr = nil
	require.NoError(t, worker.Run(ctx))
	got = st.OutboxByDedupKey("notif_test:retry")
	assert.Equal(t, models.OutboxSent, got.Status)
}

func TestWorkerMarksFailedAfterMaxRetries(t *testing.T) {
	st := storetest.NewFake()
	st.SaveNotificationErr = errors.New("db down")
	worker := NewWorker(st, storetest.NewFakeBus(), storetest.NewFakeLocker(), testLogger(), WorkerConfig{})
	ctx := context.Background()

	entry := pendingNotification(uuid.New(), "notif_test:doomed")
	entry.MaxRetries = 2
	require.NoError(t, st.SaveOutbox(ctx, entry))

	// First cycle requeues (retries 0 -> 1), second exhausts the budget.
	require.NoError(t, worker.Run(ctx))
	got := st.OutboxByDedupKey("notif_test:doomed")
	require.Equal(t, models.OutboxPending, got.Status)

	require.NoError(t, worker.Run(ctx))
	got = st.OutboxByDedupKey("notif_test:doomed")
	assert.Equal(t, models.OutboxFailed, got.Status)
	assert.NotEmpty(t, got.LastError)

	// FAILED entries are never picked up again.
	require.NoError(t, worker.Run(ctx))
	got = st.OutboxByDedupKey("notif_test:doomed")
	assert.Equal(t, models.OutboxFailed, got.Status)
}

func TestWorkerSkipsWhenLockHeld(t *testing.T) {
	st := storetest.NewFake()
	locker := storetest.NewFakeLocker()
	locker.Held[workerLockKey] = true
	worker := NewWorker(st, storetest.NewFakeBus(), locker, testLogger(), WorkerConfig{})
	ctx := context.Background()

	entry := pendingAnalytics(uuid.New(), uuid.New(), "message_sent:locked")
	require.NoError(t, st.SaveOutbox(ctx, entry))

	require.NoError(t, worker.Run(ctx))

	got := st.OutboxByDedupKey("message_sent:locked")
	assert.Equal(t, models.OutboxPending, got.Status)
	assert.Empty(t, st.Events)
}

func TestWorkerReclaimsExpiredLease(t *testing.T) {
	st := storetest.NewFake()
	worker := NewWorker(st, storetest.NewFakeBus(), storetest.NewFakeLocker(), testLogger(), WorkerConfig{})
	ctx := context.Background()

	entry := pendingAnalytics(uuid.New(), uuid.New(), "message_sent:stuck")
	require.NoError(t, st.SaveOutbox(ctx, entry))

	// Simulate a worker that claimed the entry and died: IN_PROGRESS with
	// an expired lease.
	stale := time.Now().UTC().Add(-time.Minute)
	won, err := st.MarkInProgress(ctx, entry.ID, stale)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, worker.Run(ctx))

	got := st.OutboxByDedupKey("message_sent:stuck")
	assert.Equal(t, models.OutboxSent, got.Status)
}

func TestWorkerLeavesLiveLeaseAlone(t *testing.T) {
	st := storetest.NewFake()
	worker := NewWorker(st, storetest.NewFakeBus(), storetest.NewFakeLocker(), testLogger(), WorkerConfig{})
	ctx := context.Background()

	entry := pendingAnalytics(uuid.New(), uuid.New(), "message_sent:claimed")
	require.NoError(t, st.SaveOutbox(ctx, entry))

	won, err := st.MarkInProgress(ctx, entry.ID, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, worker.Run(ctx))

	got := st.OutboxByDedupKey("message_sent:claimed")
	assert.Equal(t, models.OutboxInProgress, got.Status)
	assert.Empty(t, st.Events)
}
