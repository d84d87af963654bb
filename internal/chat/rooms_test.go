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

type roomFixture struct {
	store *storetest.Fake
	svc   *RoomService
}

func newRoomFixture() *roomFixture {
	f := &roomFixture{store: storetest.NewFake()}
	f.svc = NewRoomService(f.store, testLogger())
	return f
}

func (f *roomFixture) addUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.New(), Username: username, CreatedAt: time.Now().UTC()}
	require.NoError(t, f.store.SaveUser(context.Background(), user))
	return user
}

func TestCreateRoom(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")

	room, err := f.svc.Create(ctx, "general", "the general room", true, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, room.ParticipantsCount)

	member, err := f.store.MembershipExists(ctx, room.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, member)

	entry := f.store.OutboxByDedupKey(fmt.Sprintf("room_created:%s", room.ID))
	require.NotNil(t, entry)
	assert.Equal(t, string(models.EventRoomCreated), entry.Payload["event_type"])
}

func TestCreateRoomDuplicateName(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")

	_, err := f.svc.Create(ctx, "general", "", true, owner.ID)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, "general", "", false, owner.ID)
	assert.ErrorIs(t, err, ErrRoomAlreadyExists)
}

func TestCreateRoomValidation(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")

	_, err := f.svc.Create(ctx, "", "", true, owner.ID)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Create(ctx, "general", "", true, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateRoom(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")
	stranger := f.addUser(t, "bob")

	room, err := f.svc.Create(ctx, "general", "old", true, owner.ID)
	require.NoError(t, err)

	newDesc := "new description"
	updated, err := f.svc.Update(ctx, room.ID, RoomUpdate{Description: &newDesc}, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "new description", updated.Description)

	// No-op updates are rejected.
	_, err = f.svc.Update(ctx, room.ID, RoomUpdate{Description: &newDesc}, owner.ID)
	assert.ErrorIs(t, err, ErrNoChangesDetected)

	// Only the owner may update.
	private := false
	_, err = f.svc.Update(ctx, room.ID, RoomUpdate{IsPublic: &private}, stranger.ID)
	assert.ErrorIs(t, err, ErrRoomPermission)
}

func TestDeleteRoomOwnerOnly(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")
	stranger := f.addUser(t, "bob")

	room, err := f.svc.Create(ctx, "general", "", true, owner.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, room.ID, stranger.ID), ErrRoomPermission)
	require.NoError(t, f.svc.Delete(ctx, room.ID, owner.ID))

	_, err = f.svc.Get(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	entry := f.store.OutboxByDedupKey(fmt.Sprintf("room_deleted:%s", room.ID))
	require.NotNil(t, entry)
}

func TestJoinPublicRoom(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")
	joiner := f.addUser(t, "bob")

	room, err := f.svc.Create(ctx, "general", "", true, owner.ID)
	require.NoError(t, err)

	request, err := f.svc.RequestJoin(ctx, room.ID, joiner.ID, "")
	require.NoError(t, err)
	assert.Nil(t, request)

	member, err := f.store.MembershipExists(ctx, room.ID, joiner.ID)
	require.NoError(t, err)
	assert.True(t, member)

	loaded, err := f.svc.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.ParticipantsCount)

	// Joining again does not move the count.
	_, err = f.svc.RequestJoin(ctx, room.ID, joiner.ID, "")
	require.NoError(t, err)
	loaded, err = f.svc.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.ParticipantsCount)
}

func TestJoinPrivateRoomCreatesRequest(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")
	joiner := f.addUser(t, "bob")

	room, err := f.svc.Create(ctx, "secret", "", false, owner.ID)
	require.NoError(t, err)

	request, err := f.svc.RequestJoin(ctx, room.ID, joiner.ID, "let me in")
	require.NoError(t, err)
	require.NotNil(t, request)
	assert.Equal(t, models.JoinRequestPending, request.Status)

	// Not a member yet.
	member, err := f.store.MembershipExists(ctx, room.ID, joiner.ID)
	require.NoError(t, err)
	assert.False(t, member)

	// Owner gets a durable notification, analytics records the request.
	notif := f.store.OutboxByDedupKey(fmt.Sprintf("notif_joinreq:%s:%s", room.ID, joiner.ID))
	require.NotNil(t, notif)
	assert.Equal(t, models.OutboxNotification, notif.Type)
	assert.Equal(t, owner.ID.String(), notif.Payload["user_id"])

	analytics := f.store.OutboxByDedupKey(fmt.Sprintf("joinreq_created:%s:%s", room.ID, joiner.ID))
	require.NotNil(t, analytics)

	// A second request while one is pending is rejected.
	_, err = f.svc.RequestJoin(ctx, room.ID, joiner.ID, "again")
	assert.ErrorIs(t, err, ErrJoinRequestAlreadyExists)
}

func TestHandleJoinRequestAccept(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")
	joiner := f.addUser(t, "bob")

	room, err := f.svc.Create(ctx, "secret", "", false, owner.ID)
	require.NoError(t, err)
	request, err := f.svc.RequestJoin(ctx, room.ID, joiner.ID, "")
	require.NoError(t, err)

	handled, err := f.svc.HandleJoinRequest(ctx, request.ID, true, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestAccepted, handled.Status)
	require.NotNil(t, handled.HandledBy)
	assert.Equal(t, owner.ID, *handled.HandledBy)

	member, err := f.store.MembershipExists(ctx, room.ID, joiner.ID)
	require.NoError(t, err)
	assert.True(t, member)

	notif := f.store.OutboxByDedupKey(fmt.Sprintf("joinreq_handled:%s", request.ID))
	require.NotNil(t, notif)
	assert.Equal(t, joiner.ID.String(), notif.Payload["user_id"])

	// A handled request cannot be handled again.
	_, err = f.svc.HandleJoinRequest(ctx, request.ID, false, owner.ID)
	assert.ErrorIs(t, err, ErrJoinRequestNotFound)
}

func TestHandleJoinRequestReject(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")
	joiner := f.addUser(t, "bob")

	room, err := f.svc.Create(ctx, "secret", "", false, owner.ID)
	require.NoError(t, err)
	request, err := f.svc.RequestJoin(ctx, room.ID, joiner.ID, "")
	require.NoError(t, err)

	handled, err := f.svc.HandleJoinRequest(ctx, request.ID, false, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestRejected, handled.Status)

	member, err := f.store.MembershipExists(ctx, room.ID, joiner.ID)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestHandleJoinRequestOwnerOnly(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")
	joiner := f.addUser(t, "bob")

	room, err := f.svc.Create(ctx, "secret", "", false, owner.ID)
	require.NoError(t, err)
	request, err := f.svc.RequestJoin(ctx, room.ID, joiner.ID, "")
	require.NoError(t, err)

	_, err = f.svc.HandleJoinRequest(ctx, request.ID, true, joiner.ID)
	assert.ErrorIs(t, err, ErrRoomPermission)
}

func TestRemoveParticipant(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")
	member := f.addUser(t, "bob")
	stranger := f.addUser(t, "carol")

	room, err := f.svc.Create(ctx, "general", "", true, owner.ID)
	require.NoError(t, err)
	_, err = f.svc.RequestJoin(ctx, room.ID, member.ID, "")
	require.NoError(t, err)

	// A stranger cannot kick a member.
	err = f.svc.RemoveParticipant(ctx, room.ID, member.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrRoomPermission)

	// Self-leave works and decrements the count.
	require.NoError(t, f.svc.RemoveParticipant(ctx, room.ID, member.ID, member.ID))
	loaded, err := f.svc.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.ParticipantsCount)

	entry := f.store.OutboxByDedupKey(fmt.Sprintf("user_left:%s:%s", room.ID, member.ID))
	require.NotNil(t, entry)
}

func TestCreatorLeavingDeletesRoom(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")

	room, err := f.svc.Create(ctx, "general", "", true, owner.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveParticipant(ctx, room.ID, owner.ID, owner.ID))
	_, err = f.svc.Get(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestListJoinRequestsByRoomOwnerOnly(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice")
	joiner := f.addUser(t, "bob")

	room, err := f.svc.Create(ctx, "secret", "", false, owner.ID)
	require.NoError(t, err)
	_, err = f.svc.RequestJoin(ctx, room.ID, joiner.ID, "")
	require.NoError(t, err)

	requests, err := f.svc.ListJoinRequestsByRoom(ctx, room.ID, owner.ID)
	require.NoError(t, err)
	assert.Len(t, requests, 1)

	_, err = f.svc.ListJoinRequestsByRoom(ctx, room.ID, joiner.ID)
	assert.ErrorIs(t, err, ErrRoomPermission)
}
