package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/viant/tapedeck/model/resource"
	"github.com/viant/tapedeck/model/session"
)

const (
	previewResource = "preview"
	encodeResource  = "encode"
)

// Pipeline is a media pipeline run by gst-launch
type Pipeline struct {
	name     string
	process  *Process
	listener *busListener
	exited   chan struct{}
}

var _ resource.Pipeline = (*Pipeline)(nil)

// LaunchPreview starts a local playback pipeline of the session display and audio
func (s *Service) LaunchPreview(ctx context.Context, cfg *session.Config) (resource.Pipeline, error) {
	return s.launchPipeline(ctx, cfg, previewResource, []string{s.previewDescription(cfg)})
}

// LaunchEncode starts the pipeline recording the session into its sinks.
// End-of-stream on interrupt is enabled so SendEOS finalizes the container.
func (s *Service) LaunchEncode(ctx context.Context, cfg *session.Config) (resource.Pipeline, error) {
	target, err := s.networkTarget(ctx, cfg)
	if err != nil {
		return nil, session.NewLaunchError(encodeResource, err)
	}
	if cfg.Sink.FilePath != "" {
		if err = s.ensureParent(ctx, cfg.Sink.FilePath); err != nil {
			return nil, session.NewLaunchError(encodeResource, err)
		}
	}
	return s.launchPipeline(ctx, cfg, encodeResource, []string{"-e", s.encodeDescription(cfg, target)})
}

func (s *Service) launchPipeline(ctx context.Context, cfg *session.Config, name string, args []string) (resource.Pipeline, error) {
	logger := s.resourceLogger(cfg.ID, name)
	proc := newProcess(name, s.config.Binaries.GstLaunch, args, nil, s.config.StopGracePeriod, logger)
	reader, err := proc.pipeOutput()
	if err != nil {
		return nil, session.NewLaunchError(name, err)
	}
	if err = proc.start(); err != nil {
		_ = reader.Close()
		return nil, session.NewLaunchError(name, err)
	}
	ret := newPipeline(name, proc, logger)
	go ret.listener.listen(reader)
	if err = ret.waitPlaying(ctx, s.config.StartTimeout); err != nil {
		_ = ret.SetNull()
		return nil, session.NewLaunchError(name, err)
	}
	logger.Debug("pipeline playing", "pid", proc.Pid())
	return ret, nil
}

func newPipeline(name string, proc *Process, logger *slog.Logger) *Pipeline {
	ret := &Pipeline{
		name:     name,
		process:  proc,
		listener: newBusListener(logger),
		exited:   make(chan struct{}),
	}
	go func() {
		<-proc.Exited()
		<-ret.listener.done
		close(ret.exited)
	}()
	return ret
}

func (p *Pipeline) waitPlaying(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.listener.playing:
		return nil
	case <-p.exited:
		if msg := p.listener.lastError(); msg != "" {
			return errors.New(msg)
		}
		return p.process.earlyExitError()
	case <-timer.C:
		return fmt.Errorf("%v not playing after %v", p.name, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name returns the resource name
func (p *Pipeline) Name() string {
	return p.name
}

// Pid returns the gst-launch process id
func (p *Pipeline) Pid() int {
	return p.process.Pid()
}

// SendEOS interrupts gst-launch, which forwards end-of-stream through the pipeline
func (p *Pipeline) SendEOS() error {
	return p.process.Signal(syscall.SIGINT)
}

// Ended is closed once the pipeline reported end-of-stream
func (p *Pipeline) Ended() <-chan struct{} {
	return p.listener.ended
}

// Exited is closed once gst-launch exited and its output was consumed
func (p *Pipeline) Exited() <-chan struct{} {
	return p.exited
}

// SetNull stops the pipeline; gst-launch moves it to NULL on the way out
func (p *Pipeline) SetNull() error {
	if err := p.process.Terminate(); err != nil {
		return err
	}
	<-p.exited
	return p.process.exitError()
}

// Running reports whether the pipeline process is alive
func (p *Pipeline) Running() bool {
	return p.process.Running()
}
