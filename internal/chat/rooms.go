package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

const maxRoomNameLength = 32

// RoomService handles room CRUD, public joins, the private-room
// join-request lifecycle and participant management.
type RoomService struct {
	store  store.Store
	logger *utils.Logger
}

func NewRoomService(st store.Store, logger *utils.Logger) *RoomService {
	return &RoomService{store: st, logger: logger}
}

// RoomUpdate carries the mutable room fields. Nil means "leave as is".
type RoomUpdate struct {
	Description *string
	IsPublic    *bool
}

func (s *RoomService) Create(ctx context.Context, name, description string, isPublic bool, createdBy uuid.UUID) (*models.Room, error) {
	if name == "" || len(name) > maxRoomNameLength {
		return nil, fmt.Errorf("%w: room name must be 1-%d characters", ErrValidation, maxRoomNameLength)
	}

	author, err := s.store.GetUserByID(ctx, createdBy)
	if err != nil {
		return nil, fmt.Errorf("failed to load author: %w", err)
	}
	if author == nil {
		return nil, ErrUserNotFound
	}

	taken, err := s.store.RoomExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check room name: %w", err)
	}
	if taken {
		return nil, ErrRoomAlreadyExists
	}

	now := time.Now().UTC()
	room := &models.Room{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		IsPublic:    isPublic,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.SaveRoom(ctx, room); err != nil {
			return err
		}
		if err := s.addParticipant(ctx, tx, room.ID, createdBy, models.RoleOwner); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventRoomCreated, &createdBy, &room.ID,
			map[string]string{"name": room.Name},
			fmt.Sprintf("room_created:%s", room.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	room.ParticipantsCount = 1

	s.logger.Info(ctx, "room created: %s", room.Name)
	return room, nil
}

// Update changes description and/or visibility. Only the owner may
// update, and at least one field must actually differ.
func (s *RoomService) Update(ctx context.Context, roomID uuid.UUID, update RoomUpdate, by uuid.UUID) (*models.Room, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatedBy != by {
		return nil, ErrRoomPermission
	}

	changed := false
	if update.Description != nil && *update.Description != room.Description {
		room.Description = *update.Description
		changed = true
	}
	if update.IsPublic != nil && *update.IsPublic != room.IsPublic {
		room.IsPublic = *update.IsPublic
		changed = true
	}
	if !changed {
		return nil, ErrNoChangesDetected
	}
	room.UpdatedAt = time.Now().UTC()

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.SaveRoom(ctx, room); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventRoomUpdated, &by, &room.ID, nil,
			fmt.Sprintf("room_update:%s:%d", room.ID, room.UpdatedAt.UnixNano()))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}
	return room, nil
}

// Delete removes the room. Owner-only.
func (s *RoomService) Delete(ctx context.Context, roomID, by uuid.UUID) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != by {
		return ErrRoomPermission
	}
	return s.deleteRoom(ctx, room, by)
}

func (s *RoomService) deleteRoom(ctx context.Context, room *models.Room, by uuid.UUID) error {
	err := s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.DeleteRoom(ctx, room.ID); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventRoomDeleted, &by, &room.ID,
			map[string]string{"name": room.Name},
			fmt.Sprintf("room_deleted:%s", room.ID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	s.logger.Info(ctx, "room deleted: %s", room.Name)
	return nil
}

func (s *RoomService) Get(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RequestJoin joins a public room directly, or files a PENDING join
// request on a private one and notifies the owner.
func (s *RoomService) RequestJoin(ctx context.Context, roomID, userID uuid.UUID, message string) (*models.JoinRequest, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if room.IsPublic {
		err = s.store.Run(ctx, func(tx store.Tx) error {
			if err := s.addParticipant(ctx, tx, room.ID, userID, models.RoleMember); err != nil {
				return err
			}
			return writeAnalyticsOutbox(ctx, tx, models.EventUserJoinedRoom, &userID, &room.ID, nil,
				fmt.Sprintf("user_join:%s:%s", room.ID, userID))
		})
		if err != nil {
			return nil, fmt.Errorf("failed to join room: %w", err)
		}
		return nil, nil
	}

	pending, err := s.store.PendingJoinRequestExists(ctx, room.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check join request: %w", err)
	}
	if pending {
		return nil, ErrJoinRequestAlreadyExists
	}

	now := time.Now().UTC()
	request := &models.JoinRequest{
		ID:        uuid.New(),
		RoomID:    room.ID,
		UserID:    userID,
		Status:    models.JoinRequestPending,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.SaveJoinRequest(ctx, request); err != nil {
			return err
		}
		if err := writeNotificationOutbox(ctx, tx, models.NotificationJoinRequestCreated, room.CreatedBy,
			map[string]string{
				"room_id":   room.ID.String(),
				"room_name": room.Name,
				"username":  user.Username,
				"message":   message,
			},
			&request.ID,
			fmt.Sprintf("notif_joinreq:%s:%s", room.ID, userID),
		); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventJoinRequestCreated, &userID, &room.ID, nil,
			fmt.Sprintf("joinreq_created:%s:%s", room.ID, userID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create join request: %w", err)
	}
	return request, nil
}

// HandleJoinRequest accepts or rejects a PENDING request. Only the room
// owner may handle it; accept adds the requester as MEMBER.
func (s *RoomService) HandleJoinRequest(ctx context.Context, requestID uuid.UUID, accept bool, by uuid.UUID) (*models.JoinRequest, error) {
	request, err := s.store.GetJoinRequestByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load join request: %w", err)
	}
	if request == nil || request.Status != models.JoinRequestPending {
		return nil, ErrJoinRequestNotFound
	}

	room, err := s.Get(ctx, request.RoomID)
	if err != nil {
		return nil, err
	}
	if room.CreatedBy != by {
		return nil, ErrRoomPermission
	}

	status := models.JoinRequestRejected
	notifType := models.NotificationJoinRequestRejected
	eventType := models.EventJoinRequestRejected
	if accept {
		status = models.JoinRequestAccepted
		notifType = models.NotificationJoinRequestAccepted
		eventType = models.EventJoinRequestAccepted
	}
	request.Status = status
	request.HandledBy = &by
	request.UpdatedAt = time.Now().UTC()

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if accept {
			if err := s.addParticipant(ctx, tx, room.ID, request.UserID, models.RoleMember); err != nil {
				return err
			}
		}
		if err := tx.SaveJoinRequest(ctx, request); err != nil {
			return err
		}
		if err := writeNotificationOutbox(ctx, tx, notifType, request.UserID,
			map[string]string{
				"room_id":   room.ID.String(),
				"room_name": room.Name,
				"status":    string(status),
			},
			&request.ID,
			fmt.Sprintf("joinreq_handled:%s", request.ID),
		); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, eventType, &request.UserID, &room.ID, nil,
			fmt.Sprintf("analytics_joinreq:%s", request.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to handle join request: %w", err)
	}
	return request, nil
}

// RemoveParticipant removes a user from a room. A member may remove
// themself (leave); the owner may remove anyone. Removing the creator
// deletes the room.
func (s *RoomService) RemoveParticipant(ctx context.Context, roomID, userID, by uuid.UUID) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if by != userID && by != room.CreatedBy {
		return ErrRoomPermission
	}

	if userID == room.CreatedBy {
		return s.deleteRoom(ctx, room, by)
	}

	member, err := s.store.MembershipExists(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return ErrUserNotFound
	}

	err = s.store.Run(ctx, func(tx store.Tx) error {
		if err := tx.DeleteMembership(ctx, roomID, userID); err != nil {
			return err
		}
		if err := tx.DecrementParticipants(ctx, roomID); err != nil {
			return err
		}
		return writeAnalyticsOutbox(ctx, tx, models.EventUserLeftRoom, &userID, &roomID, nil,
			fmt.Sprintf("user_left:%s:%s", roomID, userID))
	})
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

// addParticipant is idempotent: an existing member is left untouched and
// the count does not move.
func (s *RoomService) addParticipant(ctx context.Context, tx store.Tx, roomID, userID uuid.UUID, role models.RoomRole) error {
	exists, err := tx.MembershipExists(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := tx.SaveMembership(ctx, &models.RoomMembership{
		RoomID:   roomID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	return tx.IncrementParticipants(ctx, roomID)
}

func (s *RoomService) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	return s.store.ListUserRooms(ctx, userID)
}

// ListRoomUsers requires the caller to be a member.
func (s *RoomService) ListRoomUsers(ctx context.Context, roomID, by uuid.UUID) ([]models.User, error) {
	if err := s.requireMembership(ctx, roomID, by); err != nil {
		return nil, err
	}
	return s.store.ListRoomUsers(ctx, roomID)
}

func (s *RoomService) ListTopRooms(ctx context.Context, limit int, onlyPublic bool) ([]models.Room, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.store.ListTopRooms(ctx, limit, onlyPublic)
}

func (s *RoomService) Search(ctx context.Context, query string, limit int) ([]models.Room, error) {
	if query == "" {
		return nil, nil
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.store.SearchRooms(ctx, query, limit)
}

// ListJoinRequestsByRoom returns the room's PENDING requests. Owner-only.
func (s *RoomService) ListJoinRequestsByRoom(ctx context.Context, roomID, by uuid.UUID) ([]models.JoinRequest, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatedBy != by {
		return nil, ErrRoomPermission
	}
	return s.store.ListJoinRequestsByRoom(ctx, roomID, models.JoinRequestPending)
}

func (s *RoomService) ListJoinRequestsByUser(ctx context.Context, userID uuid.UUID) ([]models.JoinRequest, error) {
	return s.store.ListJoinRequestsByUser(ctx, userID, models.JoinRequestPending)
}

func (s *RoomService) requireMembership(ctx context.Context, roomID, userID uuid.UUID) error {
	member, err := s.store.MembershipExists(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return ErrRoomPermission
	}
	return nil
}
