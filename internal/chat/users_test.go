package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomchat/roomchat-backend/internal/auth"
	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/storetest"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

func testLogger() *utils.Logger {
	return utils.NewLogger("error")
}

type userFixture struct {
	store      *storetest.Fake
	sessions   *storetest.FakeUserSessions
	wsSessions *storetest.FakeWSSessions
	svc        *UserService
}

func newUserFixture() *userFixture {
	f := &userFixture{
		store:      storetest.NewFake(),
		sessions:   storetest.NewFakeUserSessions(),
		wsSessions: storetest.NewFakeWSSessions(),
	}
	f.svc = NewUserService(f.store, f.sessions, f.wsSessions, auth.NewHasher(), testLogger())
	return f
}

func TestRegister(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "password123", user.PasswordHash)

	entry := f.store.OutboxByDedupKey(fmt.Sprintf("user_register:%s", user.ID))
	require.NotNil(t, entry)
	assert.Equal(t, models.OutboxAnalytics, entry.Type)
	assert.Equal(t, models.OutboxPending, entry.Status)
	assert.Equal(t, string(models.EventUserRegistered), entry.Payload["event_type"])
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "alice", "other password")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestRegisterValidatesUsername(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "", "password123")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Register(ctx, "this-username-is-way-too-long-to-be-valid", "password123")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoginAndLogout(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)

	user, session, err := f.svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	require.NotNil(t, session)
	assert.Equal(t, user.ID, session.UserID)
	assert.NotNil(t, user.LastLoginAt)

	stored, err := f.sessions.GetUserSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	entry := f.store.OutboxByDedupKey(fmt.Sprintf("user_login:%s:%d", user.ID, session.ConnectedAt.UnixNano()))
	require.NotNil(t, entry)

	require.NoError(t, f.svc.Logout(ctx, session.ID))
	stored, err = f.sessions.GetUserSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	entry = f.store.OutboxByDedupKey(fmt.Sprintf("user_logout:%s:%s", user.ID, session.ID))
	require.NotNil(t, entry)
}

func TestLoginWrongCredentials(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)

	_, _, err = f.svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.svc.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutUnknownSession(t *testing.T) {
	f := newUserFixture()
	err := f.svc.Logout(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResolveSession(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	_, session, err := f.svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	user, resolved, err := f.svc.ResolveSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, session.ID, resolved.ID)

	_, _, err = f.svc.ResolveSession(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteUserCascades(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	_, session, err := f.svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	notification := &models.Notification{ID: uuid.New(), UserID: user.ID, Type: models.NotificationSystem}
	require.NoError(t, f.store.SaveNotification(ctx, notification))

	require.NoError(t, f.svc.DeleteUser(ctx, user.ID))

	loaded, err := f.store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	n, err := f.store.GetNotificationByID(ctx, notification.ID)
	require.NoError(t, err)
	assert.Nil(t, n)

	stored, err := f.sessions.GetUserSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	entry := f.store.OutboxByDedupKey(fmt.Sprintf("user_deleted:%s", user.ID))
	require.NotNil(t, entry)
}

func TestDeleteUserMissing(t *testing.T) {
	f := newUserFixture()
	err := f.svc.DeleteUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
