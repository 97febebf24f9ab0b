package session

import (
	"log/slog"
	"time"

	model "github.com/viant/tapedeck/model/session"
)

// DefaultDrainTimeout bounds the end-of-stream wait of Stop
const DefaultDrainTimeout = 30 * time.Second

// TransitionListener is invoked synchronously on every state change, it must return quickly
type TransitionListener func(transition *model.Transition)

// Option configures a session
type Option func(s *Session)

// WithDrainTimeout sets how long Stop waits for the encode pipeline to drain
func WithDrainTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		if timeout > 0 {
			s.drainTimeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTransitionListeners attaches listeners notified on every state change
func WithTransitionListeners(listeners ...TransitionListener) Option {
	return func(s *Session) {
		s.listeners = append(s.listeners, listeners...)
	}
}
