package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomchat/roomchat-backend/internal/models"
)

func newWSSession(userID uuid.UUID) *models.WSSession {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.WSSession{
		ID:            uuid.New(),
		UserID:        userID,
		RoomID:        uuid.New(),
		UserSessionID: uuid.New(),
		ConnectedAt:   now,
		LastPingAt:    now,
		IPAddress:     "127.0.0.1",
	}
}

func TestWSSessionRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	sessions := NewWSSessions(c, time.Hour)
	ctx := context.Background()

	session := newWSSession(uuid.New())
	require.NoError(t, sessions.SaveWSSession(ctx, session))

	got, err := sessions.GetWSSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.RoomID, got.RoomID)
	assert.Equal(t, session.IPAddress, got.IPAddress)
}

func TestListWSSessionsByUserDropsStaleIndexMembers(t *testing.T) {
	c, mr := newTestCache(t)
	sessions := NewWSSessions(c, time.Hour)
	ctx := context.Background()

	userID := uuid.New()
	live := newWSSession(userID)
	stale := newWSSession(userID)
	require.NoError(t, sessions.SaveWSSession(ctx, live))
	require.NoError(t, sessions.SaveWSSession(ctx, stale))

	// Expire one session record while its id lingers in the index set.
	mr.Del(wsSessionKey(stale.ID))

	got, err := sessions.ListWSSessionsByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, live.ID, got[0].ID)

	// The stale member was cleaned out of the index.
	members, err := c.Client().SMembers(ctx, wsSessionIndexKey(userID)).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{live.ID.String()}, members)
}

func TestUpdateWSSessionPingRefreshesTTL(t *testing.T) {
	c, mr := newTestCache(t)
	sessions := NewWSSessions(c, time.Hour)
	ctx := context.Background()

	session := newWSSession(uuid.New())
	require.NoError(t, sessions.SaveWSSession(ctx, session))

	mr.FastForward(30 * time.Minute)
	require.NoError(t, sessions.UpdateWSSessionPing(ctx, session.ID))

	assert.Equal(t, time.Hour, mr.TTL(wsSessionKey(session.ID)))

	got, err := sessions.GetWSSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.LastPingAt.After(session.LastPingAt))
}

func TestUpdateWSSessionPingMissingIsNoop(t *testing.T) {
	c, _ := newTestCache(t)
	sessions := NewWSSessions(c, time.Hour)

	require.NoError(t, sessions.UpdateWSSessionPing(context.Background(), uuid.New()))
}

func TestDeleteWSSessionsByUser(t *testing.T) {
	c, _ := newTestCache(t)
	sessions := NewWSSessions(c, time.Hour)
	ctx := context.Background()

	userID := uuid.New()
	first := newWSSession(userID)
	second := newWSSession(userID)
	require.NoError(t, sessions.SaveWSSession(ctx, first))
	require.NoError(t, sessions.SaveWSSession(ctx, second))

	require.NoError(t, sessions.DeleteWSSessionsByUser(ctx, userID))

	got, err := sessions.ListWSSessionsByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
