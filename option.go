package tapedeck

import (
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/tapedeck/runtime/session"
	"github.com/viant/tapedeck/service/event"
	"github.com/viant/tapedeck/service/launcher"
)

// Option configures the recorder service
type Option func(s *Service)

// WithLauncher replaces the process launcher, mostly useful in tests
func WithLauncher(launcher session.Launcher) Option {
	return func(s *Service) {
		s.launcher = launcher
	}
}

// WithLogger sets the logger shared by every service
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFs sets the file system used for the encode dir and recording checks
func WithFs(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithSecretResolver sets the stream key resolver of network sinks
func WithSecretResolver(resolver launcher.SecretResolver) Option {
	return func(s *Service) {
		s.secrets = resolver
	}
}

// WithEventService sets the event service
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.events = service
	}
}
