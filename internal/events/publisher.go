package events

import (
	"context"
	"errors"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, channel string, payload []byte) error

func (f PublisherFunc) Publish(ctx context.Context, channel string, payload []byte) error {
	return f(ctx, channel, payload)
}

// MultiPublisher publishes to every target and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, channel, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
