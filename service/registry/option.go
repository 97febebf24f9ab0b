package registry

import (
	"context"
	"log/slog"
	"time"

	model "github.com/viant/tapedeck/model/session"
	"github.com/viant/tapedeck/runtime/session"
	"github.com/viant/tapedeck/service/event"
	"github.com/viant/tapedeck/service/messaging"
	"github.com/viant/tapedeck/service/messaging/memory"
)

// Config represents registry configuration
type Config struct {
	// DrainTimeout bounds the end-of-stream wait of every stop
	DrainTimeout time.Duration `json:"drainTimeout" yaml:"drainTimeout"`

	// Mailbox configures the request queue
	Mailbox memory.Config `json:"mailbox" yaml:"mailbox"`
}

// DefaultConfig returns the default registry configuration
func DefaultConfig() Config {
	return Config{
		DrainTimeout: session.DefaultDrainTimeout,
		Mailbox:      memory.DefaultConfig(),
	}
}

// StopHook is notified, outside the control loop, after a session was stopped
type StopHook func(ctx context.Context, cfg *model.Config, err error)

// Option configures the registry
type Option func(*Service)

// WithConfig sets the configuration
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMailbox sets the request queue
func WithMailbox(queue messaging.Queue[Request]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithEvents publishes session transitions to events
func WithEvents(events *event.Service) Option {
	return func(s *Service) {
		s.events = events
	}
}

// WithStopHooks registers hooks run after every stop
func WithStopHooks(hooks ...StopHook) Option {
	return func(s *Service) {
		s.stopHooks = append(s.stopHooks, hooks...)
	}
}

// WithSessionOptions sets options applied to every started session
func WithSessionOptions(options ...session.Option) Option {
	return func(s *Service) {
		s.sessionOptions = append(s.sessionOptions, options...)
	}
}
