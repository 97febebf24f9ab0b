package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/viant/tapedeck/internal/clock"
	"github.com/viant/tapedeck/model/resource"
	model "github.com/viant/tapedeck/model/session"
	"github.com/viant/tapedeck/tracing"
)

// Session is one isolated recording: a private bus, display, audio server,
// browser and the pipelines capturing them. It owns every handle exclusively.
type Session struct {
	config       *model.Config
	logger       *slog.Logger
	drainTimeout time.Duration
	listeners    []TransitionListener

	bus      resource.Process
	display  resource.Process
	audio    resource.Process
	browser  resource.Browser
	preview  resource.Pipeline
	encode   resource.Pipeline
	ended    <-chan struct{}
	released bool

	mu        sync.Mutex
	state     model.State
	startedAt time.Time
}

func newSession(cfg *model.Config, options ...Option) *Session {
	ret := &Session{
		config:       cfg,
		logger:       slog.Default(),
		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range options {
		opt(ret)
	}
	ret.logger = ret.logger.With("session_id", cfg.ID)
	return ret
}

// Start launches every session resource in dependency order. On failure the
// resources started so far are released and the launch error is returned.
func Start(ctx context.Context, cfg *model.Config, launcher Launcher, options ...Option) (ret *Session, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	s := newSession(cfg, options...)
	ctx, span := tracing.StartSessionSpan(ctx, "session.start", cfg.ID)
	defer func() { span.End(err) }()

	s.setState(model.StateStarting, nil)
	if err = s.launch(ctx, launcher); err != nil {
		s.logger.ErrorContext(ctx, "session start failed", "error", err)
		if releaseErr := s.release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.logger.Warn("session unwind incomplete", "error", releaseErr)
		}
		s.setState(model.StateFailed, err)
		return nil, err
	}
	s.mu.Lock()
	s.startedAt = clock.Now()
	s.mu.Unlock()
	s.setState(model.StateRunning, nil)
	runtime.SetFinalizer(s, (*Session).finalize)
	s.logger.InfoContext(ctx, "session started", "display", cfg.Display(), "audio", cfg.AudioServer(), "url", cfg.TargetURL)
	return s, nil
}

// launch runs bus, display, audio, browser, preview and encode strictly in order.
// A panicking launcher is reported as a launch error so that the resources
// started before it are still unwound.
func (s *Session) launch(ctx context.Context, launcher Launcher) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: launcher panicked: %v", model.ErrLaunch, r)
		}
	}()
	cfg := s.config
	var busAddress string
	if s.bus, busAddress, err = launcher.LaunchBus(ctx, cfg); err != nil {
		return err
	}
	if s.display, err = launcher.LaunchDisplay(ctx, cfg, busAddress); err != nil {
		return err
	}
	if s.audio, err = launcher.LaunchAudio(ctx, cfg, busAddress); err != nil {
		return err
	}
	if s.browser, err = launcher.LaunchBrowser(ctx, cfg, busAddress); err != nil {
		return err
	}
	if cfg.PreviewEnabled {
		if s.preview, err = launcher.LaunchPreview(ctx, cfg); err != nil {
			return err
		}
	}
	if s.encode, err = launcher.LaunchEncode(ctx, cfg); err != nil {
		return err
	}
	s.ended = s.encode.Ended()
	return nil
}

// ID returns the session id
func (s *Session) ID() uint32 {
	return s.config.ID
}

// Config returns the creation parameters
func (s *Session) Config() *model.Config {
	return s.config
}

// State returns the current lifecycle state
func (s *Session) State() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Navigate loads url in the session browser
func (s *Session) Navigate(ctx context.Context, url string) (err error) {
	ctx, span := tracing.StartSessionSpan(ctx, "session.navigate", s.config.ID)
	span.SetAttribute(tracing.AttrURL, url)
	defer func() { span.End(err) }()
	s.mu.Lock()
	state := s.state
	browser := s.browser
	s.mu.Unlock()
	if state != model.StateRunning || browser == nil {
		return fmt.Errorf("session %d is %v: %w", s.config.ID, state, model.ErrAlreadyStopped)
	}
	if err = browser.Navigate(url); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "session navigated", "url", url)
	return nil
}

// Info returns a snapshot of the session
func (s *Session) Info() *model.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.config
	ret := &model.Info{
		ID:          cfg.ID,
		State:       s.state,
		Display:     cfg.Display(),
		AudioServer: cfg.AudioServer(),
		TargetURL:   cfg.TargetURL,
		Sink:        cfg.Sink,
		Preview:     cfg.PreviewEnabled,
		StartedAt:   s.startedAt,
		Pids:        map[string]int{},
	}
	if s.state.IsTerminal() {
		return ret
	}
	for name, handle := range map[string]interface{}{
		"bus": s.bus, "display": s.display, "audio": s.audio,
		"browser": s.browser, "preview": s.preview, "encode": s.encode,
	} {
		if withPid, ok := handle.(interface{ Pid() int }); ok && withPid.Pid() > 0 {
			ret.Pids[name] = withPid.Pid()
		}
	}
	return ret
}

func (s *Session) setState(state model.State, err error) {
	s.mu.Lock()
	transition := s.transition(state, err)
	s.mu.Unlock()
	s.notify(transition)
}

// transition changes the state, the caller holds s.mu
func (s *Session) transition(state model.State, err error) *model.Transition {
	ret := &model.Transition{ID: s.config.ID, From: s.state, To: state}
	s.state = state
	if err != nil {
		ret.Error = err.Error()
	}
	return ret
}

// notify runs the listeners, never under s.mu
func (s *Session) notify(transition *model.Transition) {
	s.logger.Debug("session transition", "from", transition.From, "to", transition.To)
	for _, listener := range s.listeners {
		listener(transition)
	}
}
