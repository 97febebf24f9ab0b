package recording

import (
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/tapedeck/service/event"
)

// Option configures the recording verifier
type Option func(*Service)

// WithFs sets the file system recordings are read from
func WithFs(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithProbe enables container probing with the ffprobe executable
func WithProbe(ffprobe string) Option {
	return func(s *Service) {
		s.ffprobe = ffprobe
	}
}

// WithEvents publishes verification reports
func WithEvents(events *event.Service) Option {
	return func(s *Service) {
		s.publisher = event.PublisherOf[Report](events)
	}
}
