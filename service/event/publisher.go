package event

import (
	"context"
	"sync/atomic"

	"github.com/viant/tapedeck/internal/clock"
	"github.com/viant/tapedeck/service/messaging"
)

// Publisher publishes typed events. Events are only queued while a listener
// consumes them so that publishing never stalls on a queue nobody drains.
type Publisher[T any] struct {
	queue     messaging.Queue[Event[T]]
	listening atomic.Bool
	any       *Publisher[any]
}

// NewPublisher creates a publisher over queue
func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{
		queue: queue,
	}
}

// Publish publishes event to the typed and the catch-all listeners
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = clock.Now()
	if p.any != nil && p.any.listening.Load() {
		if err := p.any.queue.Publish(ctx, &Event[any]{
			ID:        event.ID,
			Context:   event.Context,
			CreatedAt: event.CreatedAt,
			Metadata:  event.Metadata,
			Data:      event.Data,
		}); err != nil {
			return err
		}
	}
	if !p.listening.Load() {
		return nil
	}
	return p.queue.Publish(ctx, event)
}

// Consume returns the next event
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
