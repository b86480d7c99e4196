package redis

import (
	"context"
	"fmt"

	"support-chat/internal/events"

	"github.com/redis/go-redis/v9"
)

// Publisher sends encoded envelopes over redis pub/sub so every API instance
// can deliver them to its own websocket clients.
type Publisher struct {
	client *redis.Client
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}
