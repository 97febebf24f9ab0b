package launcher

import (
	"log/slog"
	"time"

	"github.com/viant/afs"
)

// Binaries lists the executables launched per session
type Binaries struct {
	DBusDaemon string `json:"dbusDaemon,omitempty" yaml:"dbusDaemon,omitempty"`
	Xvfb       string `json:"xvfb,omitempty" yaml:"xvfb,omitempty"`
	PulseAudio string `json:"pulseaudio,omitempty" yaml:"pulseaudio,omitempty"`
	GstLaunch  string `json:"gstLaunch,omitempty" yaml:"gstLaunch,omitempty"`
	// Chrome is optional, the browser is looked up on PATH when empty
	Chrome string `json:"chrome,omitempty" yaml:"chrome,omitempty"`
}

// Config represents launcher configuration
type Config struct {
	Binaries Binaries `json:"binaries" yaml:"binaries"`

	// StartTimeout bounds how long a process may take to become ready
	StartTimeout time.Duration `json:"startTimeout" yaml:"startTimeout"`

	// NavigationTimeout bounds the initial page load
	NavigationTimeout time.Duration `json:"navigationTimeout" yaml:"navigationTimeout"`

	// StopGracePeriod is the time between SIGTERM and SIGKILL
	StopGracePeriod time.Duration `json:"stopGracePeriod" yaml:"stopGracePeriod"`

	// X11SocketDir is where the display server creates its socket
	X11SocketDir string `json:"x11SocketDir" yaml:"x11SocketDir"`

	Framerate int `json:"framerate" yaml:"framerate"`

	AudioBitrate int `json:"audioBitrate" yaml:"audioBitrate"`
}

// DefaultBinaries returns executables resolved from PATH
func DefaultBinaries() Binaries {
	return Binaries{
		DBusDaemon: "dbus-daemon",
		Xvfb:       "Xvfb",
		PulseAudio: "pulseaudio",
		GstLaunch:  "gst-launch-1.0",
	}
}

// DefaultConfig returns the default launcher configuration
func DefaultConfig() Config {
	return Config{
		Binaries:          DefaultBinaries(),
		StartTimeout:      10 * time.Second,
		NavigationTimeout: 60 * time.Second,
		StopGracePeriod:   5 * time.Second,
		X11SocketDir:      "/tmp/.X11-unix",
		Framerate:         60,
		AudioBitrate:      128000,
	}
}

// Option configures the launcher service
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

// WithFs sets the file system used for readiness checks
func WithFs(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithSecretResolver sets the resolver used for network target stream keys
func WithSecretResolver(resolver SecretResolver) Option {
	return func(s *Service) {
		s.secrets = resolver
	}
}
