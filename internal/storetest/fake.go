// Package storetest provides in-memory implementations of the store
// interfaces for service and worker tests.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
)

// Fake is an in-memory store.Store. Run executes the callback against
// the same state without transactional isolation, which is enough for
// single-goroutine service tests.
type Fake struct {
	mu sync.Mutex

	Users         map[uuid.UUID]*models.User
	Rooms         map[uuid.UUID]*models.Room
	Memberships   map[string]*models.RoomMembership
	JoinRequests  map[uuid.UUID]*models.JoinRequest
	Notifications map[uuid.UUID]*models.Notification
	Messages      map[uuid.UUID]*models.Message
	Outbox        map[uuid.UUID]*models.Outbox
	Events        []models.AnalyticsEvent

	// Error injection points.
	SaveNotificationErr error
	AppendEventErr      error
}

func NewFake() *Fake {
	return &Fake{
		Users:         make(map[uuid.UUID]*models.User),
		Rooms:         make(map[uuid.UUID]*models.Room),
		Memberships:   make(map[string]*models.RoomMembership),
		JoinRequests:  make(map[uuid.UUID]*models.JoinRequest),
		Notifications: make(map[uuid.UUID]*models.Notification),
		Messages:      make(map[uuid.UUID]*models.Message),
		Outbox:        make(map[uuid.UUID]*models.Outbox),
	}
}

var _ store.Store = (*Fake)(nil)

func membershipKey(roomID, userID uuid.UUID) string {
	return roomID.String() + "|" + userID.String()
}

// Run executes fn directly against the fake. There is no rollback; a
// test that needs rollback semantics should not use Fake.
func (f *Fake) Run(_ context.Context, fn func(tx store.Tx) error) error {
	return fn(f)
}

// OutboxByDedupKey returns the entry with the given dedup key, or nil.
func (f *Fake) OutboxByDedupKey(dedupKey string) *models.Outbox {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.Outbox {
		if entry.DedupKey == dedupKey {
			return entry
		}
	}
	return nil
}

// --- UserStore ---

func (f *Fake) SaveUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.Users[user.ID] = &cp
	return nil
}

func (f *Fake) GetUserByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.Users[userID]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (f *Fake) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.Users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *Fake) GetUsersByIDs(_ context.Context, userIDs []uuid.UUID) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, id := range userIDs {
		if user, ok := f.Users[id]; ok {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (f *Fake) UserExists(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.Users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) UpdateLastActive(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.Users[userID]; ok {
		now := time.Now().UTC()
		user.LastActiveAt = &now
		user.UpdatedAt = now
	}
	return nil
}

func (f *Fake) DeleteUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Users, userID)
	return nil
}

// --- RoomStore ---

func (f *Fake) SaveRoom(_ context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *room
	if existing, ok := f.Rooms[room.ID]; ok {
		cp.ParticipantsCount = existing.ParticipantsCount
	}
	f.Rooms[room.ID] = &cp
	return nil
}

func (f *Fake) GetRoomByID(_ context.Context, roomID uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.Rooms[roomID]
	if !ok {
		return nil, nil
	}
	cp := *room
	return &cp, nil
}

func (f *Fake) RoomExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, room := range f.Rooms {
		if room.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) ListTopRooms(_ context.Context, limit int, onlyPublic bool) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Room
	for _, room := range f.Rooms {
		if onlyPublic && !room.IsPublic {
			continue
		}
		out = append(out, *room)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ParticipantsCount > out[j].ParticipantsCount
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) SearchRooms(_ context.Context, query string, limit int) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Room
	for _, room := range f.Rooms {
		if strings.HasPrefix(strings.ToLower(room.Name), strings.ToLower(query)) {
			out = append(out, *room)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) IncrementParticipants(_ context.Context, roomID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.Rooms[roomID]; ok {
		room.ParticipantsCount++
	}
	return nil
}

func (f *Fake) DecrementParticipants(_ context.Context, roomID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.Rooms[roomID]; ok && room.ParticipantsCount > 0 {
		room.ParticipantsCount--
	}
	return nil
}

func (f *Fake) DeleteRoom(_ context.Context, roomID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Rooms, roomID)
	for key := range f.Memberships {
		if strings.HasPrefix(key, roomID.String()+"|") {
			delete(f.Memberships, key)
		}
	}
	return nil
}

// --- MembershipStore ---

func (f *Fake) SaveMembership(_ context.Context, m *models.RoomMembership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.Memberships[membershipKey(m.RoomID, m.UserID)] = &cp
	return nil
}

func (f *Fake) MembershipExists(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Memberships[membershipKey(roomID, userID)]
	return ok, nil
}

func (f *Fake) DeleteMembership(_ context.Context, roomID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Memberships, membershipKey(roomID, userID))
	return nil
}

func (f *Fake) ListRoomUsers(_ context.Context, roomID uuid.UUID) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, m := range f.Memberships {
		if m.RoomID != roomID {
			continue
		}
		if user, ok := f.Users[m.UserID]; ok {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (f *Fake) ListUserRooms(_ context.Context, userID uuid.UUID) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Room
	for _, m := range f.Memberships {
		if m.UserID != userID {
			continue
		}
		if room, ok := f.Rooms[m.RoomID]; ok {
			out = append(out, *room)
		}
	}
	return out, nil
}

// --- JoinRequestStore ---

func (f *Fake) SaveJoinRequest(_ context.Context, req *models.JoinRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	f.JoinRequests[req.ID] = &cp
	return nil
}

func (f *Fake) GetJoinRequestByID(_ context.Context, requestID uuid.UUID) (*models.JoinRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.JoinRequests[requestID]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (f *Fake) PendingJoinRequestExists(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.JoinRequests {
		if req.RoomID == roomID && req.UserID == userID && req.Status == models.JoinRequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) ListJoinRequestsByRoom(_ context.Context, roomID uuid.UUID, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.JoinRequest
	for _, req := range f.JoinRequests {
		if req.RoomID == roomID && req.Status == status {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *Fake) ListJoinRequestsByUser(_ context.Context, userID uuid.UUID, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.JoinRequest
	for _, req := range f.JoinRequests {
		if req.UserID == userID && req.Status == status {
			out = append(out, *req)
		}
	}
	return out, nil
}

// --- NotificationStore ---

func (f *Fake) SaveNotification(_ context.Context, n *models.Notification) error {
	if f.SaveNotificationErr != nil {
		return f.SaveNotificationErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *n
	f.Notifications[n.ID] = &cp
	return nil
}

func (f *Fake) GetNotificationByID(_ context.Context, notificationID uuid.UUID) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.Notifications[notificationID]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (f *Fake) ListNotifications(_ context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.Notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) MarkNotificationRead(_ context.Context, notificationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.Notifications[notificationID]; ok {
		n.Read = true
	}
	return nil
}

func (f *Fake) MarkAllNotificationsRead(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.Notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (f *Fake) CountUnreadNotifications(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.Notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (f *Fake) DeleteNotification(_ context.Context, notificationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Notifications, notificationID)
	return nil
}

func (f *Fake) DeleteNotificationsByUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, n := range f.Notifications {
		if n.UserID == userID {
			delete(f.Notifications, id)
		}
	}
	return nil
}

// --- MessageStore ---

func (f *Fake) SaveMessage(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *msg
	f.Messages[msg.ID] = &cp
	return nil
}

func (f *Fake) GetMessageByID(_ context.Context, messageID uuid.UUID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.Messages[messageID]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (f *Fake) GetRecentByRoom(_ context.Context, roomID uuid.UUID, limit int, before *time.Time) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, msg := range f.Messages {
		if msg.RoomID != roomID {
			continue
		}
		if before != nil && !msg.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) GetRecentByUser(_ context.Context, userID uuid.UUID, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, msg := range f.Messages {
		if msg.UserID == userID {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) GetRecentGlobal(_ context.Context, since time.Time, limit int, after *store.MessageCursor) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, msg := range f.Messages {
		if msg.CreatedAt.Before(since) {
			continue
		}
		if after != nil {
			if msg.CreatedAt.Before(after.CreatedAt) {
				continue
			}
			if msg.CreatedAt.Equal(after.CreatedAt) && msg.ID.String() <= after.ID.String() {
				continue
			}
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) DeleteMessage(_ context.Context, messageID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Messages, messageID)
	return nil
}

// --- OutboxStore ---

func (f *Fake) SaveOutbox(_ context.Context, outbox *models.Outbox) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.Outbox {
		if entry.DedupKey == outbox.DedupKey {
			return nil
		}
	}
	cp := *outbox
	f.Outbox[outbox.ID] = &cp
	return nil
}

func (f *Fake) ListPending(_ context.Context, limit int) ([]models.Outbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var out []models.Outbox
	for _, entry := range f.Outbox {
		switch entry.Status {
		case models.OutboxPending:
			out = append(out, *entry)
		case models.OutboxInProgress:
			if entry.InProgressUntil != nil && entry.InProgressUntil.Before(now) {
				out = append(out, *entry)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) MarkInProgress(_ context.Context, outboxID uuid.UUID, until time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.Outbox[outboxID]
	if !ok {
		return false, nil
	}
	now := time.Now().UTC()
	claimable := entry.Status == models.OutboxPending ||
		(entry.Status == models.OutboxInProgress && entry.InProgressUntil != nil && entry.InProgressUntil.Before(now))
	if !claimable {
		return false, nil
	}
	entry.Status = models.OutboxInProgress
	entry.InProgressUntil = &until
	return true, nil
}

func (f *Fake) MarkSent(_ context.Context, outboxID uuid.UUID, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.Outbox[outboxID]; ok {
		entry.Status = models.OutboxSent
		entry.SentAt = &sentAt
		entry.InProgressUntil = nil
	}
	return nil
}

func (f *Fake) MarkFailed(_ context.Context, outboxID uuid.UUID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.Outbox[outboxID]; ok {
		entry.Status = models.OutboxFailed
		entry.LastError = lastError
		entry.InProgressUntil = nil
	}
	return nil
}

func (f *Fake) Requeue(_ context.Context, outboxID uuid.UUID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.Outbox[outboxID]; ok {
		entry.Status = models.OutboxPending
		entry.Retries++
		entry.LastError = lastError
		entry.InProgressUntil = nil
	}
	return nil
}

func (f *Fake) ExistsByDedupKeys(_ context.Context, dedupKeys []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(dedupKeys))
	for _, key := range dedupKeys {
		out[key] = false
	}
	for _, entry := range f.Outbox {
		if _, ok := out[entry.DedupKey]; ok {
			out[entry.DedupKey] = true
		}
	}
	return out, nil
}

// --- AnalyticsSink / AnalyticsQueries ---

func (f *Fake) AppendEvent(_ context.Context, event *models.AnalyticsEvent) error {
	if f.AppendEventErr != nil {
		return f.AppendEventErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.Events {
		if existing.ID == event.ID {
			return nil
		}
	}
	f.Events = append(f.Events, *event)
	return nil
}

func (f *Fake) RoomStats(_ context.Context, roomID uuid.UUID) (*models.RoomStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.RoomStats{RoomID: roomID}
	joined := make(map[uuid.UUID]struct{})
	for _, e := range f.Events {
		if e.RoomID == nil || *e.RoomID != roomID {
			continue
		}
		switch e.EventType {
		case models.EventMessageSent:
			stats.TotalMessages++
		case models.EventUserJoinedRoom:
			if e.UserID != nil {
				joined[*e.UserID] = struct{}{}
			}
		}
		if e.CreatedAt.After(stats.LastUpdated) {
			stats.LastUpdated = e.CreatedAt
		}
	}
	stats.UsersAmount = int64(len(joined))
	return stats, nil
}

func (f *Fake) UserActivity(_ context.Context, userID uuid.UUID) (*models.UserActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	activity := &models.UserActivity{}
	for _, e := range f.Events {
		if e.UserID == nil || *e.UserID != userID {
			continue
		}
		switch e.EventType {
		case models.EventMessageSent:
			activity.Messages++
		case models.EventUserJoinedRoom:
			activity.RoomsJoined++
		}
	}
	return activity, nil
}

func (f *Fake) TopActiveRooms(_ context.Context, limit int) ([]models.RoomStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byRoom := make(map[uuid.UUID]*models.RoomStats)
	for _, e := range f.Events {
		if e.RoomID == nil || e.EventType != models.EventMessageSent {
			continue
		}
		stats, ok := byRoom[*e.RoomID]
		if !ok {
			stats = &models.RoomStats{RoomID: *e.RoomID}
			byRoom[*e.RoomID] = stats
		}
		stats.TotalMessages++
	}
	var out []models.RoomStats
	for _, stats := range byRoom {
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalMessages > out[j].TotalMessages })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) MessagesPerMinute(_ context.Context, roomID uuid.UUID, sinceMinutes int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	since := time.Now().UTC().Add(-time.Duration(sinceMinutes) * time.Minute)
	var count int64
	for _, e := range f.Events {
		if e.RoomID != nil && *e.RoomID == roomID && e.EventType == models.EventMessageSent && e.CreatedAt.After(since) {
			count++
		}
	}
	return count / int64(sinceMinutes), nil
}
