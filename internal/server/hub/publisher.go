package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ChangeChannel is the Redis channel carrying record change notifications.
const ChangeChannel = "records:changed"

// Change describes a record mutation worth fanning out. The hub re-queries
// the feed on receipt, so the notification only needs enough to pick the
// affected subscribers.
type Change struct {
	ChurchID   string `json:"church_id"`
	Visibility string `json:"visibility"`
}

// Publisher hands a change notification to the hub, across processes when
// backed by Redis.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Subscriber opens a subscription on a notification channel. *redis.Client
// satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisPublisher publishes change notifications on the shared channel.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, change Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := p.client.Publish(ctx, ChangeChannel, data).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}
