package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceMirroredSets(t *testing.T) {
	c, _ := newTestCache(t)
	presence := NewPresence(c)
	ctx := context.Background()

	roomID, userID := uuid.New(), uuid.New()
	require.NoError(t, presence.AddPresence(ctx, roomID, userID))

	users, err := presence.ListRoomUserIDs(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{userID}, users)

	rooms, err := presence.ListUserRoomIDs(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{roomID}, rooms)
}

func TestPresenceAddIsIdempotent(t *testing.T) {
	c, _ := newTestCache(t)
	presence := NewPresence(c)
	ctx := context.Background()

	roomID, userID := uuid.New(), uuid.New()
	require.NoError(t, presence.AddPresence(ctx, roomID, userID))
	require.NoError(t, presence.AddPresence(ctx, roomID, userID))

	users, err := presence.ListRoomUserIDs(ctx, roomID)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRemovePresenceClearsBothSides(t *testing.T) {
	c, _ := newTestCache(t)
	presence := NewPresence(c)
	ctx := context.Background()

	roomID, userID := uuid.New(), uuid.New()
	require.NoError(t, presence.AddPresence(ctx, roomID, userID))
	require.NoError(t, presence.RemovePresence(ctx, roomID, userID))

	users, err := presence.ListRoomUserIDs(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, users)

	rooms, err := presence.ListUserRoomIDs(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestIsUserOnline(t *testing.T) {
	c, _ := newTestCache(t)
	presence := NewPresence(c)
	ctx := context.Background()

	userID := uuid.New()
	firstRoom, secondRoom := uuid.New(), uuid.New()

	online, err := presence.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, presence.AddPresence(ctx, firstRoom, userID))
	require.NoError(t, presence.AddPresence(ctx, secondRoom, userID))

	online, err = presence.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.True(t, online)

	// Still online while one room remains.
	require.NoError(t, presence.RemovePresence(ctx, firstRoom, userID))
	online, err = presence.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, presence.RemovePresence(ctx, secondRoom, userID))
	online, err = presence.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.False(t, online)
}
