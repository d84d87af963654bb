package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/storetest"
)

func appendEvent(t *testing.T, st *storetest.Fake, eventType models.AnalyticsEventType, userID, roomID uuid.UUID, at time.Time) {
	t.Helper()
	require.NoError(t, st.AppendEvent(context.Background(), &models.AnalyticsEvent{
		ID:        uuid.New(),
		EventType: eventType,
		UserID:    &userID,
		RoomID:    &roomID,
		CreatedAt: at,
	}))
}

func TestRoomStatsAndUserActivity(t *testing.T) {
	st := storetest.NewFake()
	svc := NewAnalyticsService(st)
	ctx := context.Background()

	roomID := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	now := time.Now().UTC()

	appendEvent(t, st, models.EventUserJoinedRoom, alice, roomID, now.Add(-2*time.Minute))
	appendEvent(t, st, models.EventUserJoinedRoom, bob, roomID, now.Add(-2*time.Minute))
	appendEvent(t, st, models.EventMessageSent, alice, roomID, now.Add(-time.Minute))
	appendEvent(t, st, models.EventMessageSent, alice, roomID, now)
	appendEvent(t, st, models.EventMessageSent, bob, uuid.New(), now)

	stats, err := svc.RoomStats(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalMessages)
	assert.Equal(t, int64(2), stats.UsersAmount)

	activity, err := svc.UserActivity(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), activity.Messages)
	assert.Equal(t, int64(1), activity.RoomsJoined)
}

func TestTopActiveRoomsOrdersByVolume(t *testing.T) {
	st := storetest.NewFake()
	svc := NewAnalyticsService(st)
	ctx := context.Background()

	quiet, busy := uuid.New(), uuid.New()
	now := time.Now().UTC()
	appendEvent(t, st, models.EventMessageSent, uuid.New(), quiet, now)
	for i := 0; i < 3; i++ {
		appendEvent(t, st, models.EventMessageSent, uuid.New(), busy, now)
	}

	rooms, err := svc.TopActiveRooms(ctx, 50)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, busy, rooms[0].RoomID)
	assert.Equal(t, int64(3), rooms[0].TotalMessages)

	// Out-of-range limits fall back to the default of 10.
	rooms, err = svc.TopActiveRooms(ctx, -1)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

func TestMessagesPerMinute(t *testing.T) {
	st := storetest.NewFake()
	svc := NewAnalyticsService(st)
	ctx := context.Background()

	roomID := uuid.New()
	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		appendEvent(t, st, models.EventMessageSent, uuid.New(), roomID, now.Add(-time.Duration(i)*time.Second))
	}
	// Old traffic outside any reasonable window.
	appendEvent(t, st, models.EventMessageSent, uuid.New(), roomID, now.Add(-2*time.Hour))

	rate, err := svc.MessagesPerMinute(ctx, roomID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rate)

	// An out-of-range window falls back to 5 minutes.
	rate, err = svc.MessagesPerMinute(ctx, roomID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rate)
}
