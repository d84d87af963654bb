package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

func roomPresenceKey(roomID uuid.UUID) string { return fmt.Sprintf("ws:room:%s:users", roomID) }
func userPresenceKey(userID uuid.UUID) string { return fmt.Sprintf("ws:user:%s:rooms", userID) }

// Presence maintains two mirrored set indices: the users present in a
// room and the rooms a user is present in. Both sides are always written
// together.
type Presence struct {
	cache *Cache
}

func NewPresence(cache *Cache) *Presence {
	return &Presence{cache: cache}
}

func (p *Presence) AddPresence(ctx context.Context, roomID, userID uuid.UUID) error {
	ctx, done := p.cache.instrument(ctx, "add_presence",
		attribute.String("room.id", roomID.String()), attribute.String("user.id", userID.String()))
	pipe := p.cache.client.TxPipeline()
	pipe.SAdd(ctx, roomPresenceKey(roomID), userID.String())
	pipe.SAdd(ctx, userPresenceKey(userID), roomID.String())
	_, err := pipe.Exec(ctx)
	done(err)
	return err
}

func (p *Presence) RemovePresence(ctx context.Context, roomID, userID uuid.UUID) error {
	ctx, done := p.cache.instrument(ctx, "remove_presence",
		attribute.String("room.id", roomID.String()), attribute.String("user.id", userID.String()))
	pipe := p.cache.client.TxPipeline()
	pipe.SRem(ctx, roomPresenceKey(roomID), userID.String())
	pipe.SRem(ctx, userPresenceKey(userID), roomID.String())
	_, err := pipe.Exec(ctx)
	done(err)
	return err
}

func (p *Presence) ListRoomUserIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	ctx, done := p.cache.instrument(ctx, "list_room_user_ids", attribute.String("room.id", roomID.String()))
	members, err := p.cache.client.SMembers(ctx, roomPresenceKey(roomID)).Result()
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to list room users: %w", err)
	}
	return parseUUIDs(members), nil
}

func (p *Presence) ListUserRoomIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ctx, done := p.cache.instrument(ctx, "list_user_room_ids", attribute.String("user.id", userID.String()))
	members, err := p.cache.client.SMembers(ctx, userPresenceKey(userID)).Result()
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to list user rooms: %w", err)
	}
	return parseUUIDs(members), nil
}

// IsUserOnline reports whether the user is present in at least one room.
func (p *Presence) IsUserOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	ctx, done := p.cache.instrument(ctx, "is_user_online", attribute.String("user.id", userID.String()))
	count, err := p.cache.client.SCard(ctx, userPresenceKey(userID)).Result()
	done(err)
	if err != nil {
		return false, fmt.Errorf("failed to check user presence: %w", err)
	}
	return count > 0, nil
}

func parseUUIDs(members []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
