package launcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/scy/cred/secret"
)

// SecretResolver resolves the stream key appended to a network encode target
type SecretResolver interface {
	StreamKey(ctx context.Context, resource string) (string, error)
}

// scyResolver reads stream keys from scy secret resources
type scyResolver struct {
	secrets *secret.Service
}

// StreamKey returns the password stored under resource
func (r *scyResolver) StreamKey(ctx context.Context, resource string) (string, error) {
	generic, err := r.secrets.GetCredentials(ctx, resource)
	if err != nil {
		return "", fmt.Errorf("failed to resolve stream key %v: %w", resource, err)
	}
	return generic.Password, nil
}

// NewSecretResolver returns a scy backed SecretResolver
func NewSecretResolver() SecretResolver {
	return &scyResolver{secrets: secret.New()}
}

// Service launches the external resources a recording session is built from
type Service struct {
	config  Config
	logger  *slog.Logger
	fs      afs.Service
	secrets SecretResolver
}

// Config returns the launcher configuration
func (s *Service) Config() Config {
	return s.config
}

func (s *Service) resourceLogger(id uint32, resource string) *slog.Logger {
	return s.logger.With("session_id", id, "resource", resource)
}

// New creates a launcher service
func New(options ...Option) *Service {
	ret := &Service{config: DefaultConfig()}
	for _, opt := range options {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	if ret.secrets == nil {
		ret.secrets = NewSecretResolver()
	}
	defaults := DefaultConfig()
	if ret.config.StartTimeout <= 0 {
		ret.config.StartTimeout = defaults.StartTimeout
	}
	if ret.config.NavigationTimeout <= 0 {
		ret.config.NavigationTimeout = defaults.NavigationTimeout
	}
	if ret.config.StopGracePeriod <= 0 {
		ret.config.StopGracePeriod = defaults.StopGracePeriod
	}
	if ret.config.X11SocketDir == "" {
		ret.config.X11SocketDir = defaults.X11SocketDir
	}
	if ret.config.Framerate <= 0 {
		ret.config.Framerate = defaults.Framerate
	}
	if ret.config.AudioBitrate <= 0 {
		ret.config.AudioBitrate = defaults.AudioBitrate
	}
	ret.config.Binaries = ret.config.Binaries.withDefaults()
	return ret
}

func (b Binaries) withDefaults() Binaries {
	defaults := DefaultBinaries()
	if b.DBusDaemon == "" {
		b.DBusDaemon = defaults.DBusDaemon
	}
	if b.Xvfb == "" {
		b.Xvfb = defaults.Xvfb
	}
	if b.PulseAudio == "" {
		b.PulseAudio = defaults.PulseAudio
	}
	if b.GstLaunch == "" {
		b.GstLaunch = defaults.GstLaunch
	}
	return b
}
