package outbox

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/storetest"
)

func recentMessage(createdAt time.Time) *models.Message {
	return &models.Message{
		ID:        uuid.New(),
		RoomID:    uuid.New(),
		UserID:    uuid.New(),
		Content:   "hello",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestRepairReinsertsMissingEntries(t *testing.T) {
	st := storetest.NewFake()
	repair := NewRepairJob(st, storetest.NewFakeLocker(), testLogger(), RepairConfig{Window: 3 * time.Minute})
	ctx := context.Background()

	msg := recentMessage(time.Now().UTC().Add(-time.Minute))
	require.NoError(t, st.SaveMessage(ctx, msg))

	require.NoError(t, repair.Run(ctx))

	// One entry per lifecycle prefix.
	for _, prefix := range []string{"message_sent", "message_deleted", "message_edited"} {
		entry := st.OutboxByDedupKey(fmt.Sprintf("%s:%s", prefix, msg.ID))
		require.NotNil(t, entry, "missing repaired entry for %s", prefix)
		assert.Equal(t, models.OutboxAnalytics, entry.Type)
		assert.Equal(t, models.OutboxPending, entry.Status)
		assert.Equal(t, msg.UserID.String(), entry.Payload["user_id"])
		assert.Equal(t, msg.RoomID.String(), entry.Payload["room_id"])
	}
}

func TestRepairSkipsExistingEntries(t *testing.T) {
	st := storetest.NewFake()
	repair := NewRepairJob(st, storetest.NewFakeLocker(), testLogger(), RepairConfig{Window: 3 * time.Minute})
	ctx := context.Background()

	msg := recentMessage(time.Now().UTC().Add(-time.Minute))
	require.NoError(t, st.SaveMessage(ctx, msg))

	// The send path already wrote its entry and it was drained.
	original := &models.Outbox{
		ID:         uuid.New(),
		Type:       models.OutboxAnalytics,
		Status:     models.OutboxSent,
		Payload:    map[string]any{"id": uuid.NewString(), "event_type": string(models.EventMessageSent)},
		DedupKey:   fmt.Sprintf("message_sent:%s", msg.ID),
		MaxRetries: 5,
		CreatedAt:  msg.CreatedAt,
	}
	require.NoError(t, st.SaveOutbox(ctx, original))

	require.NoError(t, repair.Run(ctx))

	// The existing entry is untouched, only the missing prefixes were added.
	got := st.OutboxByDedupKey(original.DedupKey)
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, models.OutboxSent, got.Status)
	assert.NotNil(t, st.OutboxByDedupKey(fmt.Sprintf("message_deleted:%s", msg.ID)))
	assert.NotNil(t, st.OutboxByDedupKey(fmt.Sprintf("message_edited:%s", msg.ID)))
	assert.Len(t, st.Outbox, 3)
}

func TestRepairIsIdempotent(t *testing.T) {
	st := storetest.NewFake()
	repair := NewRepairJob(st, storetest.NewFakeLocker(), testLogger(), RepairConfig{Window: 3 * time.Minute})
	ctx := context.Background()

	require.NoError(t, st.SaveMessage(ctx, recentMessage(time.Now().UTC().Add(-time.Minute))))

	require.NoError(t, repair.Run(ctx))
	require.Len(t, st.Outbox, 3)

	require.NoError(t, repair.Run(ctx))
	assert.Len(t, st.Outbox, 3)
}

func TestRepairIgnoresMessagesOutsideWindow(t *testing.T) {
	st := storetest.NewFake()
	repair := NewRepairJob(st, storetest.NewFakeLocker(), testLogger(), RepairConfig{Window: 3 * time.Minute})
	ctx := context.Background()

	require.NoError(t, st.SaveMessage(ctx, recentMessage(time.Now().UTC().Add(-time.Hour))))

	require.NoError(t, repair.Run(ctx))
	assert.Empty(t, st.Outbox)
}

func TestRepairPaginatesWithCursor(t *testing.T) {
	st := storetest.NewFake()
	repair := NewRepairJob(st, storetest.NewFakeLocker(), testLogger(), RepairConfig{
		Window:     3 * time.Minute,
		BatchSize:  2,
		BatchDelay: time.Millisecond,
	})
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		require.NoError(t, st.SaveMessage(ctx, recentMessage(base.Add(time.Duration(i)*time.Second))))
	}

	require.NoError(t, repair.Run(ctx))

	// 5 messages, 3 prefixes each.
	assert.Len(t, st.Outbox, 15)
}

func TestRepairSkipsWhenLockHeld(t *testing.T) {
	st := storetest.NewFake()
	locker := storetest.NewFakeLocker()
	locker.Held[repairLockKey] = true
	repair := NewRepairJob(st, locker, testLogger(), RepairConfig{Window: 3 * time.Minute})
	ctx := context.Background()

	require.NoError(t, st.SaveMessage(ctx, recentMessage(time.Now().UTC().Add(-time.Minute))))

	require.NoError(t, repair.Run(ctx))
	assert.Empty(t, st.Outbox)
}

func TestRepairedEntryIsDrainable(t *testing.T) {
	st := storetest.NewFake()
	repair := NewRepairJob(st, storetest.NewFakeLocker(), testLogger(), RepairConfig{Window: 3 * time.Minute})
	worker := NewWorker(st, storetest.NewFakeBus(), storetest.NewFakeLocker(), testLogger(), WorkerConfig{})
	ctx := context.Background()

	msg := recentMessage(time.Now().UTC().Add(-time.Minute))
	require.NoError(t, st.SaveMessage(ctx, msg))

	require.NoError(t, repair.Run(ctx))
	require.NoError(t, worker.Run(ctx))

	// Every repaired entry was dispatched into the analytics stream.
	assert.Len(t, st.Events, 3)
	entry := st.OutboxByDedupKey(fmt.Sprintf("message_sent:%s", msg.ID))
	assert.Equal(t, models.OutboxSent, entry.Status)
}
