package tapedeck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	model "github.com/viant/tapedeck/model/session"
	"github.com/viant/tapedeck/runtime/session"
	"github.com/viant/tapedeck/service/api"
	"github.com/viant/tapedeck/service/event"
	"github.com/viant/tapedeck/service/launcher"
	"github.com/viant/tapedeck/service/preflight"
	"github.com/viant/tapedeck/service/recording"
	"github.com/viant/tapedeck/service/registry"
	"github.com/viant/tapedeck/tracing"
)

// Version is reported on spans
const Version = "0.1.0"

// chromeCandidates are looked up when no browser executable was configured
var chromeCandidates = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

// Service represents the recorder: a session registry plus its control surface
type Service struct {
	config   *Config
	logger   *slog.Logger
	fs       afs.Service
	launcher session.Launcher
	secrets  launcher.SecretResolver
	events   *event.Service
	registry *registry.Service
	verifier *recording.Service
	hub      *api.Hub
	server   *http.Server
	started  bool
}

// New creates a recorder service from config
func New(config *Config, options ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Service{config: config}
	for _, opt := range options {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.events == nil {
		s.events = event.New(event.WithLogger(s.logger))
	}
	if s.launcher == nil {
		launcherOptions := []launcher.Option{
			launcher.WithConfig(config.LauncherConfig()),
			launcher.WithLogger(s.logger),
			launcher.WithFs(s.fs),
		}
		if s.secrets != nil {
			launcherOptions = append(launcherOptions, launcher.WithSecretResolver(s.secrets))
		}
		s.launcher = launcher.New(launcherOptions...)
	}
	registryOptions := []registry.Option{
		registry.WithConfig(registry.Config{DrainTimeout: config.Session.DrainTimeout, Mailbox: config.Mailbox}),
		registry.WithLogger(s.logger),
		registry.WithEvents(s.events),
	}
	if config.Verify.Enabled {
		s.verifier = recording.New(
			recording.WithFs(s.fs),
			recording.WithLogger(s.logger),
			recording.WithProbe(config.Verify.FFProbe),
			recording.WithEvents(s.events),
		)
		registryOptions = append(registryOptions, registry.WithStopHooks(s.verifier.OnStopped))
	}
	var err error
	if s.registry, err = registry.New(s.launcher, registryOptions...); err != nil {
		return nil, err
	}
	s.hub = api.NewHub(s.logger)
	s.events.SetListener(s.hub.Publish)
	return s, nil
}

// Config returns the service configuration
func (s *Service) Config() *Config {
	return s.config
}

// Registry returns the session registry
func (s *Service) Registry() *registry.Service {
	return s.registry
}

// Start verifies the environment and runs the registry control loop until
// Shutdown or ctx is done
func (s *Service) Start(ctx context.Context) error {
	if s.config.Tracing.Enabled {
		cfg := tracing.Config{ServiceName: s.config.Tracing.ServiceName, ServiceVersion: Version, OutputFile: s.config.Tracing.OutputFile}
		if err := tracing.Init(cfg); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	if s.config.Preflight {
		results, err := preflight.New(s.requiredBinaries(), s.logger).Check(ctx)
		for _, result := range results {
			s.logger.Debug("preflight", "binary", result.Name, "path", result.Path, "found", result.Found)
		}
		if err != nil {
			return err
		}
	}
	if err := s.ensureEncodeDir(ctx); err != nil {
		return err
	}
	s.registry.Start(ctx)
	s.started = true
	return nil
}

func (s *Service) requiredBinaries() []*preflight.Binary {
	binaries := s.config.Binaries
	chrome := chromeCandidates
	if binaries.Chrome != "" {
		chrome = []string{binaries.Chrome}
	}
	ret := []*preflight.Binary{
		{Name: "dbus-daemon", Candidates: []string{binaries.DBusDaemon}},
		{Name: "Xvfb", Candidates: []string{binaries.Xvfb}},
		{Name: "pulseaudio", Candidates: []string{binaries.PulseAudio}},
		{Name: "gst-launch", Candidates: []string{binaries.GstLaunch}},
		{Name: "chrome", Candidates: chrome},
	}
	if s.config.Verify.Enabled && s.config.Verify.FFProbe != "" {
		ret = append(ret, &preflight.Binary{Name: "ffprobe", Candidates: []string{s.config.Verify.FFProbe}})
	}
	return ret
}

func (s *Service) ensureEncodeDir(ctx context.Context) error {
	exists, err := s.fs.Exists(ctx, s.config.EncodeDir)
	if err != nil {
		return fmt.Errorf("failed to check encode dir %v: %w", s.config.EncodeDir, err)
	}
	if exists {
		return nil
	}
	if err = s.fs.Create(ctx, s.config.EncodeDir, file.DefaultDirOsMode, true); err != nil {
		return fmt.Errorf("failed to create encode dir %v: %w", s.config.EncodeDir, err)
	}
	return nil
}

// SessionConfig builds a file sink session config for url using the configured defaults
func (s *Service) SessionConfig(id uint32, url string) *model.Config {
	return &model.Config{
		ID:             id,
		FrameSize:      s.config.Session.FrameSize,
		TargetURL:      url,
		PreviewEnabled: s.config.Session.Preview,
		Sink:           model.Sink{FilePath: model.RecordingPath(s.config.EncodeDir, id)},
	}
}

// Record starts recording url into the encode dir as session id
func (s *Service) Record(ctx context.Context, id uint32, url string) error {
	return s.Spawn(ctx, s.SessionConfig(id, url))
}

// Spawn starts a session
func (s *Service) Spawn(ctx context.Context, cfg *model.Config) error {
	return s.registry.Spawn(ctx, cfg)
}

// Stop finalizes and releases session id
func (s *Service) Stop(ctx context.Context, id uint32) error {
	return s.registry.Stop(ctx, id)
}

// Navigate loads url in the browser of session id
func (s *Service) Navigate(ctx context.Context, id uint32, url string) error {
	return s.registry.Navigate(ctx, id, url)
}

// List returns every live session
func (s *Service) List(ctx context.Context) ([]*model.Info, error) {
	return s.registry.List(ctx)
}

// Handler returns the HTTP control surface
func (s *Service) Handler() http.Handler {
	defaults := api.Defaults{
		FrameSize: s.config.Session.FrameSize,
		EncodeDir: s.config.EncodeDir,
		Preview:   s.config.Session.Preview,
	}
	return api.NewRouter(s.registry, defaults, s.hub, s.logger)
}

// Serve runs the HTTP control surface on the configured address until ctx is done
func (s *Service) Serve(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control surface listening", "addr", s.config.Server.Addr)
		errCh <- s.server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// Shutdown stops every live session and releases the event fan-out. It is
// not safe for concurrent use with Start.
func (s *Service) Shutdown(ctx context.Context) error {
	var err error
	if s.started {
		err = s.registry.Shutdown(ctx)
	}
	s.hub.Close()
	s.events.Close()
	if s.config.Tracing.Enabled {
		err = errors.Join(err, tracing.Shutdown(ctx))
	}
	return err
}
