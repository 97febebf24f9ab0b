package event

import (
	"context"
	"errors"
	"log/slog"
)

// Listener dispatches consumed events to a handler on its own goroutine
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *slog.Logger
}

// NewListener creates a listener
func NewListener[T any](publisher *Publisher[T], handler func(*Event[T]), logger *slog.Logger) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Stop stops the listener and waits for the dispatch goroutine to return
func (l *Listener[T]) Stop() {
	l.publisher.listening.Store(false)
	l.cancel()
	<-l.done
}

// Start starts dispatching
func (l *Listener[T]) Start() {
	l.publisher.listening.Store(true)
	go func() {
		defer close(l.done)
		for {
			event, err := l.publisher.Consume(l.ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				l.logger.Warn("failed to consume event", "error", err)
				return
			}
			if event != nil {
				l.handler(event)
			}
		}
	}()
}
