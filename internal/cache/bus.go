package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
)

// Channel names. WebSocket loops subscribe to the room channel plus the
// per-user channels; services publish envelopes on them.
func RoomChannel(roomID uuid.UUID) string { return fmt.Sprintf("ws:room:%s", roomID) }
func UserChannel(userID uuid.UUID) string { return fmt.Sprintf("ws:user:%s", userID) }
func UserNotificationsChannel(userID uuid.UUID) string {
	return fmt.Sprintf("ws:user:%s:notifications", userID)
}

// Bus is the Redis pub/sub fan-out. Delivery is best-effort: an envelope
// published with no live subscriber is dropped, durability comes from
// the outbox.
type Bus struct {
	cache *Cache
}

func NewBus(cache *Cache) *Bus {
	return &Bus{cache: cache}
}

func (b *Bus) RoomChannel(roomID uuid.UUID) string { return RoomChannel(roomID) }
func (b *Bus) UserChannel(userID uuid.UUID) string { return UserChannel(userID) }
func (b *Bus) UserNotificationsChannel(userID uuid.UUID) string {
	return UserNotificationsChannel(userID)
}

func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	ctx, done := b.cache.instrument(ctx, "publish", attribute.String("redis.channel", channel))
	err := b.cache.client.Publish(ctx, channel, payload).Err()
	done(err)
	return err
}

func (b *Bus) Subscribe(ctx context.Context, channels ...string) (store.Subscription, error) {
	ctx, done := b.cache.instrument(ctx, "subscribe", attribute.StringSlice("redis.channels", channels))
	pubsub := b.cache.client.Subscribe(ctx, channels...)
	// Force the SUBSCRIBE round-trip so a dead broker fails here, not on
	// the first receive.
	_, err := pubsub.Receive(ctx)
	done(err)
	if err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return newSubscription(pubsub), nil
}

func (b *Bus) BroadcastToRoom(ctx context.Context, roomID uuid.UUID, eventType models.BroadcastEventType, payload models.EventPayload) error {
	return b.publishEnvelope(ctx, RoomChannel(roomID), eventType, payload)
}

func (b *Bus) SendToUser(ctx context.Context, userID uuid.UUID, eventType models.BroadcastEventType, payload models.EventPayload) error {
	return b.publishEnvelope(ctx, UserNotificationsChannel(userID), eventType, payload)
}

func (b *Bus) publishEnvelope(ctx context.Context, channel string, eventType models.BroadcastEventType, payload models.EventPayload) error {
	data, err := json.Marshal(models.BroadcastEnvelope{EventType: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast envelope: %w", err)
	}
	return b.Publish(ctx, channel, data)
}

// subscription adapts redis.PubSub to store.Subscription, forwarding raw
// payloads until closed.
type subscription struct {
	pubsub *redis.PubSub
	out    chan []byte
	stop   chan struct{}
}

func newSubscription(pubsub *redis.PubSub) *subscription {
	s := &subscription{
		pubsub: pubsub,
		out:    make(chan []byte, 64),
		stop:   make(chan struct{}),
	}
	go s.forward()
	return s
}

func (s *subscription) forward() {
	defer close(s.out)
	ch := s.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(msg.Payload):
			case <-s.stop:
				return
			}
		case <-s.stop:
			return
		}
	}
}

func (s *subscription) Messages() <-chan []byte {
	return s.out
}

func (s *subscription) Close() error {
	select {
	case <-s.stop:
		return nil
	default:
		close(s.stop)
	}
	return s.pubsub.Close()
}
