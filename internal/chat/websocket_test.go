package chat

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

type testNamer struct{}

func (testNamer) RoomChannel(roomID uuid.UUID) string { return "room:" + roomID.String() }
func (testNamer) UserChannel(userID uuid.UUID) string { return "user:" + userID.String() }
func (testNamer) UserNotificationsChannel(userID uuid.UUID) string {
	return "notif:" + userID.String()
}

type wsFixture struct {
	store      *storetest.Fake
	wsSessions *storetest.FakeWSSessions
	presence   *storetest.FakePresence
	bus        *storetest.FakeBus
	svc        *WebSocketService
}

func newWSFixture() *wsFixture {
	f := &wsFixture{
		store:      storetest.NewFake(),
		wsSessions: storetest.NewFakeWSSessions(),
		presence:   storetest.NewFakePresence(),
		bus:        storetest.NewFakeBus(),
	}
	f.svc = NewWebSocketService(f.store, f.wsSessions, f.presence, f.bus, testNamer{}, testLogger())
	return f
}

func (f *wsFixture) addUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.New(), Username: username, CreatedAt: time.Now().UTC()}
	require.NoError(t, f.store.SaveUser(context.Background(), user))
	return user
}

func (f *wsFixture) session(user *models.User, roomID uuid.UUID) *models.WSSession {
	now := time.Now().UTC()
	return &models.WSSession{
		ID:            uuid.New(),
		UserID:        user.ID,
		RoomID:        roomID,
		UserSessionID: uuid.New(),
		ConnectedAt:   now,
		LastPingAt:    now,
	}
}

func TestConnectToRoom(t *testing.T) {
	f := newWSFixture()
	ctx := context.Background()
	user := f.addUser(t, "alice")
	roomID := uuid.New()
	session := f.session(user, roomID)

	channels, err := f.svc.ConnectToRoom(ctx, session)
	require.NoError(t, err)
	assert.Contains(t, channels, "user:"+user.ID.String())
	assert.Contains(t, channels, "notif:"+user.ID.String())
	assert.Contains(t, channels, "room:"+roomID.String())

	online, err := f.presence.IsUserOnline(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, online)

	entry := f.store.OutboxByDedupKey(fmt.Sprintf("user_connected:%s", session.ID))
	require.NotNil(t, entry)

	broadcast := f.bus.LastBroadcast()
	require.NotNil(t, broadcast)
	assert.Equal(t, models.BroadcastRoomUserOnline, broadcast.EventType)
}

func TestConnectToRoomUnknownUser(t *testing.T) {
	f := newWSFixture()
	session := f.session(&models.User{ID: uuid.New()}, uuid.New())

	_, err := f.svc.ConnectToRoom(context.Background(), session)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConnectSubscribesToAllPresentRooms(t *testing.T) {
	f := newWSFixture()
	ctx := context.Background()
	user := f.addUser(t, "alice")
	firstRoom, secondRoom := uuid.New(), uuid.New()

	_, err := f.svc.ConnectToRoom(ctx, f.session(user, firstRoom))
	require.NoError(t, err)

	channels, err := f.svc.ConnectToRoom(ctx, f.session(user, secondRoom))
	require.NoError(t, err)
	assert.Contains(t, channels, "room:"+firstRoom.String())
	assert.Contains(t, channels, "room:"+secondRoom.String())
}

func TestDisconnectFromRoom(t *testing.T) {
	f := newWSFixture()
	ctx := context.Background()
	user := f.addUser(t, "alice")
	roomID := uuid.New()
	session := f.session(user, roomID)

	_, err := f.svc.ConnectToRoom(ctx, session)
	require.NoError(t, err)

	require.NoError(t, f.svc.DisconnectFromRoom(ctx, session.ID, user.ID))

	online, err := f.presence.IsUserOnline(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, online)

	entry := f.store.OutboxByDedupKey(fmt.Sprintf("user_disconnected:%s", session.ID))
	require.NotNil(t, entry)

	broadcast := f.bus.LastBroadcast()
	require.NotNil(t, broadcast)
	assert.Equal(t, models.BroadcastRoomUserOffline, broadcast.EventType)

	// A second disconnect finds nothing.
	assert.ErrorIs(t, f.svc.DisconnectFromRoom(ctx, session.ID, user.ID), ErrWSSessionNotFound)
}

func TestDisconnectKeepsPresenceWhileOtherSessionsRemain(t *testing.T) {
	f := newWSFixture()
	ctx := context.Background()
	user := f.addUser(t, "alice")
	roomID := uuid.New()

	first := f.session(user, roomID)
	second := f.session(user, roomID)
	_, err := f.svc.ConnectToRoom(ctx, first)
	require.NoError(t, err)
	_, err = f.svc.ConnectToRoom(ctx, second)
	require.NoError(t, err)

	// Closing one of two sessions must not drop presence.
	require.NoError(t, f.svc.DisconnectFromRoom(ctx, first.ID, user.ID))
	online, err := f.presence.IsUserOnline(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, f.svc.DisconnectFromRoom(ctx, second.ID, user.ID))
	online, err = f.presence.IsUserOnline(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestDisconnectActorMismatch(t *testing.T) {
	f := newWSFixture()
	ctx := context.Background()
	user := f.addUser(t, "alice")
	session := f.session(user, uuid.New())

	_, err := f.svc.ConnectToRoom(ctx, session)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DisconnectFromRoom(ctx, session.ID, uuid.New()), ErrWSSessionPermission)
}

func TestUpdatePing(t *testing.T) {
	f := newWSFixture()
	ctx := context.Background()
	user := f.addUser(t, "alice")
	session := f.session(user, uuid.New())

	_, err := f.svc.ConnectToRoom(ctx, session)
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdatePing(ctx, session.ID, user.ID))
	assert.ErrorIs(t, f.svc.UpdatePing(ctx, uuid.New(), user.ID), ErrWSSessionNotFound)
	assert.ErrorIs(t, f.svc.UpdatePing(ctx, session.ID, uuid.New()), ErrWSSessionPermission)
}

func TestTypingIndicator(t *testing.T) {
	f := newWSFixture()
	ctx := context.Background()
	user := f.addUser(t, "alice")
	roomID := uuid.New()

	require.NoError(t, f.svc.TypingIndicator(ctx, roomID, user.ID, "alice", true))

	broadcast := f.bus.LastBroadcast()
	require.NotNil(t, broadcast)
	assert.Equal(t, models.BroadcastUserTyping, broadcast.EventType)
	assert.Equal(t, true, broadcast.Payload.Payload["is_typing"])

	// A claimed username that does not match the record is rejected.
	err := f.svc.TypingIndicator(ctx, roomID, user.ID, "mallory", true)
	assert.ErrorIs(t, err, ErrWSSessionPermission)
}

func TestActiveUsersInRoomMembersOnly(t *testing.T) {
	f := newWSFixture()
	ctx := context.Background()
	user := f.addUser(t, "alice")
	roomID := uuid.New()

	require.NoError(t, f.store.SaveMembership(ctx, &models.RoomMembership{
		RoomID: roomID, UserID: user.ID, Role: models.RoleOwner, JoinedAt: time.Now().UTC(),
	}))
	_, err := f.svc.ConnectToRoom(ctx, f.session(user, roomID))
	require.NoError(t, err)

	users, err := f.svc.ActiveUsersInRoom(ctx, roomID, user.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	_, err = f.svc.ActiveUsersInRoom(ctx, roomID, uuid.New())
	assert.ErrorIs(t, err, ErrRoomPermission)
}

func TestDisconnectUserFromRoomOwnerOnly(t *testing.T) {
	f := newWSFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")
	target := f.addUser(t, "bob")

	room := &models.Room{ID: uuid.New(), Name: "general", CreatedBy: owner.ID, IsPublic: true}
	require.NoError(t, f.store.SaveRoom(ctx, room))

	session := f.session(target, room.ID)
	_, err := f.svc.ConnectToRoom(ctx, session)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DisconnectUserFromRoom(ctx, target.ID, room.ID, target.ID), ErrRoomPermission)

	require.NoError(t, f.svc.DisconnectUserFromRoom(ctx, target.ID, room.ID, owner.ID))

	loaded, err := f.wsSessions.GetWSSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	online, err := f.svc.IsUserOnline(ctx, target.ID)
	require.NoError(t, err)
	assert.False(t, online)

	entry := f.store.OutboxByDedupKey(fmt.Sprintf("user_forced_disconnect:%s:%s", target.ID, room.ID))
	require.NotNil(t, entry)
}
