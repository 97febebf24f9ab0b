package tapedeck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/tapedeck/internal/expand"
	"github.com/viant/tapedeck/internal/logging"
	model "github.com/viant/tapedeck/model/session"
	"github.com/viant/tapedeck/runtime/session"
	"github.com/viant/tapedeck/service/launcher"
	"github.com/viant/tapedeck/service/messaging/memory"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the recorder configuration.
// Zero values inherit the defaults of DefaultConfig when loaded with LoadConfig.
type Config struct {
	// EncodeDir is where file sinks are written, created on Start
	EncodeDir string            `json:"encodeDir" yaml:"encodeDir"`
	Server    ServerConfig      `json:"server" yaml:"server"`
	Session   SessionConfig     `json:"session" yaml:"session"`
	Binaries  launcher.Binaries `json:"binaries" yaml:"binaries"`
	Mailbox   memory.Config     `json:"mailbox" yaml:"mailbox"`
	Tracing   TracingConfig     `json:"tracing" yaml:"tracing"`
	Logging   logging.Config    `json:"logging" yaml:"logging"`
	// Preflight checks required executables before accepting requests
	Preflight bool         `json:"preflight" yaml:"preflight"`
	Verify    VerifyConfig `json:"verify" yaml:"verify"`
}

// ServerConfig represents the HTTP control surface settings
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// SessionConfig holds per session defaults and timeouts
type SessionConfig struct {
	FrameSize         model.FrameSize `json:"frameSize" yaml:"frameSize"`
	Preview           bool            `json:"preview" yaml:"preview"`
	DrainTimeout      time.Duration   `json:"drainTimeout" yaml:"drainTimeout"`
	StartTimeout      time.Duration   `json:"startTimeout" yaml:"startTimeout"`
	NavigationTimeout time.Duration   `json:"navigationTimeout" yaml:"navigationTimeout"`
	StopGracePeriod   time.Duration   `json:"stopGracePeriod" yaml:"stopGracePeriod"`
	Framerate         int             `json:"framerate" yaml:"framerate"`
	AudioBitrate      int             `json:"audioBitrate" yaml:"audioBitrate"`
	X11SocketDir      string          `json:"x11SocketDir" yaml:"x11SocketDir"`
}

// TracingConfig enables the stdout span exporter
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	OutputFile  string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// VerifyConfig controls recording verification after a stop
type VerifyConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// FFProbe is the ffprobe executable, probing is skipped when empty
	FFProbe string `json:"ffprobe,omitempty" yaml:"ffprobe,omitempty"`
}

// DefaultConfig returns a Config populated with the defaults every service
// falls back to.
func DefaultConfig() *Config {
	launcherConfig := launcher.DefaultConfig()
	return &Config{
		EncodeDir: "/tmp/tapedeck",
		Server:    ServerConfig{Addr: ":8080"},
		Session: SessionConfig{
			FrameSize:         model.FrameSize{Width: 1920, Height: 1080},
			DrainTimeout:      session.DefaultDrainTimeout,
			StartTimeout:      launcherConfig.StartTimeout,
			NavigationTimeout: launcherConfig.NavigationTimeout,
			StopGracePeriod:   launcherConfig.StopGracePeriod,
			Framerate:         launcherConfig.Framerate,
			AudioBitrate:      launcherConfig.AudioBitrate,
			X11SocketDir:      launcherConfig.X11SocketDir,
		},
		Binaries: launcher.DefaultBinaries(),
		Mailbox:  memory.DefaultConfig(),
		Tracing:  TracingConfig{ServiceName: "tapedeck"},
		Logging:  logging.DefaultConfig(),
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.EncodeDir == "" {
		errs = append(errs, fmt.Errorf("encodeDir was empty"))
	}
	if c.Session.FrameSize.Width == 0 || c.Session.FrameSize.Height == 0 {
		errs = append(errs, fmt.Errorf("session.frameSize must be > 0, was %v", c.Session.FrameSize))
	}
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"session.drainTimeout", c.Session.DrainTimeout},
		{"session.startTimeout", c.Session.StartTimeout},
		{"session.navigationTimeout", c.Session.NavigationTimeout},
		{"session.stopGracePeriod", c.Session.StopGracePeriod},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%v must be >= 0, was %v", d.name, d.value))
		}
	}
	if c.Mailbox.QueueBuffer < 0 {
		errs = append(errs, fmt.Errorf("mailbox.queueBuffer must be >= 0"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); c.Logging.Level != "" && err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LauncherConfig maps the session section onto the launcher configuration
func (c *Config) LauncherConfig() launcher.Config {
	return launcher.Config{
		Binaries:          c.Binaries,
		StartTimeout:      c.Session.StartTimeout,
		NavigationTimeout: c.Session.NavigationTimeout,
		StopGracePeriod:   c.Session.StopGracePeriod,
		X11SocketDir:      c.Session.X11SocketDir,
		Framerate:         c.Session.Framerate,
		AudioBitrate:      c.Session.AudioBitrate,
	}
}

// LoadConfig reads a YAML config from any afs URL. ${env.KEY} references are
// expanded before decoding; absent keys keep their defaults.
func LoadConfig(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	ret := DefaultConfig()
	text := expand.Env(string(data))
	if strings.TrimSpace(text) == "" {
		return ret, nil
	}
	if err = yaml.Unmarshal([]byte(text), ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}
