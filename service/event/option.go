package event

import (
	"log/slog"

	"github.com/viant/tapedeck/service/messaging/memory"
)

type Option func(s *Service)

// WithNewMemoryQueueConfig sets the queue configuration used per event type
func WithNewMemoryQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.newQueueConfig = newConfig
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
