package redis

import (
	"context"
	"errors"

	"support-chat/internal/events"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client *redis.Client
}

var _ events.Subscriber = (*Subscriber)(nil)

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe pattern-subscribes to channels and calls handler for every
// message until ctx is cancelled or the connection fails.
func (s *Subscriber) Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, patterns...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
