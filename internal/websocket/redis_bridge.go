package websocket

import (
	"context"
	"time"

	"support-chat/internal/events"

	"go.uber.org/zap"
)

// RedisBridge feeds messages published by any instance into the local hub.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
	logger     *Logger
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub, log *Logger) *RedisBridge {
	if log == nil {
		log = NewLogger(nil)
	}
	return &RedisBridge{subscriber: subscriber, hub: hub, logger: log}
}

// Run subscribes to every chat channel and resubscribes after failures until
// ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := b.subscriber.Subscribe(ctx, []string{events.ChannelPattern}, b.hub.Dispatch)
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("bridge_subscribe", nil, err, zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
