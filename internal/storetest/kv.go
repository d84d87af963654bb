package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
)

// FakeUserSessions is an in-memory store.UserSessionStore without TTL.
type FakeUserSessions struct {
	mu       sync.Mutex
	Sessions map[uuid.UUID]*models.UserSession
}

func NewFakeUserSessions() *FakeUserSessions {
	return &FakeUserSessions{Sessions: make(map[uuid.UUID]*models.UserSession)}
}

var _ store.UserSessionStore = (*FakeUserSessions)(nil)

func (f *FakeUserSessions) SaveUserSession(_ context.Context, session *models.UserSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *session
	f.Sessions[session.ID] = &cp
	return nil
}

func (f *FakeUserSessions) GetUserSession(_ context.Context, sessionID uuid.UUID) (*models.UserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.Sessions[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

func (f *FakeUserSessions) DeleteUserSession(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Sessions, sessionID)
	return nil
}

func (f *FakeUserSessions) DeleteUserSessionsByUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, session := range f.Sessions {
		if session.UserID == userID {
			delete(f.Sessions, id)
		}
	}
	return nil
}

// FakeWSSessions is an in-memory store.WSSessionStore without TTL.
type FakeWSSessions struct {
	mu       sync.Mutex
	Sessions map[uuid.UUID]*models.WSSession
}

func NewFakeWSSessions() *FakeWSSessions {
	return &FakeWSSessions{Sessions: make(map[uuid.UUID]*models.WSSession)}
}

var _ store.WSSessionStore = (*FakeWSSessions)(nil)

func (f *FakeWSSessions) SaveWSSession(_ context.Context, session *models.WSSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *session
	f.Sessions[session.ID] = &cp
	return nil
}

func (f *FakeWSSessions) GetWSSession(_ context.Context, sessionID uuid.UUID) (*models.WSSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.Sessions[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

func (f *FakeWSSessions) ListWSSessionsByUser(_ context.Context, userID uuid.UUID) ([]models.WSSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WSSession
	for _, session := range f.Sessions {
		if session.UserID == userID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (f *FakeWSSessions) UpdateWSSessionPing(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.Sessions[sessionID]; ok {
		session.LastPingAt = time.Now().UTC()
	}
	return nil
}

func (f *FakeWSSessions) DeleteWSSession(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Sessions, sessionID)
	return nil
}

func (f *FakeWSSessions) DeleteWSSessionsByUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, session := range f.Sessions {
		if session.UserID == userID {
			delete(f.Sessions, id)
		}
	}
	return nil
}

// FakePresence is an in-memory store.PresenceStore.
type FakePresence struct {
	mu        sync.Mutex
	RoomUsers map[uuid.UUID]map[uuid.UUID]struct{}
	UserRooms map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewFakePresence() *FakePresence {
	return &FakePresence{
		RoomUsers: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		UserRooms: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

var _ store.PresenceStore = (*FakePresence)(nil)

func (f *FakePresence) AddPresence(_ context.Context, roomID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RoomUsers[roomID] == nil {
		f.RoomUsers[roomID] = make(map[uuid.UUID]struct{})
	}
	if f.UserRooms[userID] == nil {
		f.UserRooms[userID] = make(map[uuid.UUID]struct{})
	}
	f.RoomUsers[roomID][userID] = struct{}{}
	f.UserRooms[userID][roomID] = struct{}{}
	return nil
}

func (f *FakePresence) RemovePresence(_ context.Context, roomID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.RoomUsers[roomID], userID)
	delete(f.UserRooms[userID], roomID)
	return nil
}

func (f *FakePresence) ListRoomUserIDs(_ context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for id := range f.RoomUsers[roomID] {
		out = append(out, id)
	}
	return out, nil
}

func (f *FakePresence) ListUserRoomIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for id := range f.UserRooms[userID] {
		out = append(out, id)
	}
	return out, nil
}

func (f *FakePresence) IsUserOnline(_ context.Context, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.UserRooms[userID]) > 0, nil
}

// BroadcastRecord captures one fan-out call on FakeBus.
type BroadcastRecord struct {
	Channel   string
	RoomID    uuid.UUID
	UserID    uuid.UUID
	EventType models.BroadcastEventType
	Payload   models.EventPayload
}

// FakeBus records fan-out calls instead of publishing.
type FakeBus struct {
	mu         sync.Mutex
	Broadcasts []BroadcastRecord
	Sends      []BroadcastRecord
	SendErr    error
}

func NewFakeBus() *FakeBus {
	return &FakeBus{}
}

var _ store.Bus = (*FakeBus)(nil)

func (f *FakeBus) Publish(_ context.Context, channel string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Broadcasts = append(f.Broadcasts, BroadcastRecord{Channel: channel})
	return nil
}

func (f *FakeBus) Subscribe(_ context.Context, _ ...string) (store.Subscription, error) {
	return &fakeSubscription{out: make(chan []byte)}, nil
}

func (f *FakeBus) BroadcastToRoom(_ context.Context, roomID uuid.UUID, eventType models.BroadcastEventType, payload models.EventPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Broadcasts = append(f.Broadcasts, BroadcastRecord{RoomID: roomID, EventType: eventType, Payload: payload})
	return nil
}

func (f *FakeBus) SendToUser(_ context.Context, userID uuid.UUID, eventType models.BroadcastEventType, payload models.EventPayload) error {
	if f.SendErr != nil {
		return f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sends = append(f.Sends, BroadcastRecord{UserID: userID, EventType: eventType, Payload: payload})
	return nil
}

// LastBroadcast returns the most recent broadcast, or nil.
func (f *FakeBus) LastBroadcast() *BroadcastRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Broadcasts) == 0 {
		return nil
	}
	rec := f.Broadcasts[len(f.Broadcasts)-1]
	return &rec
}

type fakeSubscription struct {
	out  chan []byte
	once sync.Once
}

func (s *fakeSubscription) Messages() <-chan []byte { return s.out }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.out) })
	return nil
}

// FakeLocker is an in-memory store.Locker. Held simulates contention.
type FakeLocker struct {
	mu   sync.Mutex
	Held map[string]bool
}

func NewFakeLocker() *FakeLocker {
	return &FakeLocker{Held: make(map[string]bool)}
}

var _ store.Locker = (*FakeLocker)(nil)

func (f *FakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Held[key] {
		return nil, false, nil
	}
	f.Held[key] = true
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.Held, key)
		return nil
	}, true, nil
}
