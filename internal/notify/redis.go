package notify

import (
	"context"
	"encoding/json"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus carries change events over Redis pub/sub so every instance
// sees writes made by any other instance.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger}
}

func (b *RedisBus) PublishRoomChange(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	// A room change is visible to both participants.
	if err := b.client.Publish(ctx, roomChannel(models.RoleUser, ev.UserID), payload).Err(); err != nil {
		return err
	}
	return b.client.Publish(ctx, roomChannel(models.RoleProvider, ev.ProviderID), payload).Err()
}

func (b *RedisBus) PublishMessageChange(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, messageChannel(ev.RoomID), payload).Err()
}

func (b *RedisBus) SubscribeRooms(ctx context.Context, viewerID int64, role models.Role, fn func(Event)) (Subscription, error) {
	return b.subscribe(ctx, fn, roomChannel(role, viewerID))
}

func (b *RedisBus) SubscribeMessages(ctx context.Context, roomIDs []int64, fn func(Event)) (Subscription, error) {
	if len(roomIDs) == 0 {
		return noopSubscription{}, nil
	}

	channels := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		channels = append(channels, messageChannel(id))
	}
	return b.subscribe(ctx, fn, channels...)
}

func (b *RedisBus) subscribe(ctx context.Context, fn func(Event), channels ...string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channels...)

	// Wait for the subscription confirmation so setup failures surface
	// to the caller instead of a silent dead stream.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	go func() {
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("notify: dropping malformed event",
					zap.String("channel", msg.Channel),
					zap.Error(err),
				)
				continue
			}
			fn(ev)
		}
	}()

	return &redisSubscription{ps: ps}, nil
}

type redisSubscription struct {
	ps *redis.PubSub
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}
