package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/viant/tapedeck/model/resource"
	model "github.com/viant/tapedeck/model/session"
	"github.com/viant/tapedeck/tracing"
)

// shutdown steps, in execution order
const (
	stepSendEOS      = "send_eos"
	stepDrain        = "drain"
	stepPreviewNull  = "preview_set_null"
	stepEncodeNull   = "encode_set_null"
	stepCloseBrowser = "close_browser"
	stepStopDisplay  = "stop_display"
	stepStopAudio    = "stop_audio"
	stepStopBus      = "stop_bus"
)

// Stop finalizes the recording and releases every resource. All steps are
// attempted; the returned *model.ShutdownError names the first failing one.
// A second call returns model.ErrAlreadyStopped without side effects.
// Cancelling ctx does not shorten the end-of-stream wait, only the drain
// timeout bounds it.
func (s *Session) Stop(ctx context.Context) (err error) {
	if !s.beginStop() {
		return fmt.Errorf("session %d: %w", s.config.ID, model.ErrAlreadyStopped)
	}
	runtime.SetFinalizer(s, nil)
	ctx, span := tracing.StartSessionSpan(ctx, "session.stop", s.config.ID)
	defer func() { span.End(err) }()

	started := time.Now()
	err = s.release(context.WithoutCancel(ctx))
	s.setState(model.StateStopped, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "session stopped with errors", "error", err, "elapsed", time.Since(started))
		return err
	}
	s.logger.InfoContext(ctx, "session stopped", "elapsed", time.Since(started))
	return nil
}

// Close releases the session if Stop was never called, errors are only logged.
// It is safe to call at any time and more than once.
func (s *Session) Close() {
	if !s.beginStop() {
		return
	}
	runtime.SetFinalizer(s, nil)
	err := s.release(context.Background())
	s.setState(model.StateStopped, err)
	if err != nil {
		s.logger.Warn("session closed with errors", "error", err)
	}
}

// finalize must not block the finalizer goroutine for the drain timeout
func (s *Session) finalize() {
	s.logger.Warn("session was not stopped before being discarded")
	go s.Close()
}

// beginStop moves a running session to stopping; only one caller ever wins
func (s *Session) beginStop() bool {
	s.mu.Lock()
	if s.state != model.StateRunning {
		s.mu.Unlock()
		return false
	}
	transition := s.transition(model.StateStopping, nil)
	s.mu.Unlock()
	s.notify(transition)
	return true
}

// release runs the shutdown sequence over whatever handles are set; it
// serves both Stop and the unwind of a failed start
func (s *Session) release(ctx context.Context) error {
	s.mu.Lock()
	released := s.released
	s.released = true
	s.mu.Unlock()
	if released {
		return nil
	}
	shutdownErr := &model.ShutdownError{ID: s.config.ID}
	step := func(name string, err error) {
		tracing.RecordStep(ctx, name, err)
		shutdownErr.Append(name, err)
	}
	if s.encode != nil {
		step(stepSendEOS, s.encode.SendEOS())
		step(stepDrain, s.drain(ctx))
	}
	if s.preview != nil {
		step(stepPreviewNull, s.preview.SetNull())
	}
	if s.encode != nil {
		step(stepEncodeNull, s.encode.SetNull())
	}
	if s.browser != nil {
		step(stepCloseBrowser, s.browser.Close())
		s.mu.Lock()
		s.browser = nil
		s.mu.Unlock()
	}
	step(stepStopDisplay, terminate(s.display))
	step(stepStopAudio, terminate(s.audio))
	step(stepStopBus, terminate(s.bus))
	return shutdownErr.ErrOrNil()
}

// drain waits for the end-of-stream signal, bounded by the drain timeout
func (s *Session) drain(ctx context.Context) error {
	timer := time.NewTimer(s.drainTimeout)
	defer timer.Stop()
	select {
	case <-s.ended:
		s.logger.DebugContext(ctx, "encode pipeline drained")
		return nil
	case <-s.encode.Exited():
		select {
		case <-s.ended:
			return nil
		default:
		}
		return fmt.Errorf("%w: encode pipeline exited before end of stream", model.ErrDrainTimeout)
	case <-timer.C:
		return fmt.Errorf("%w after %v", model.ErrDrainTimeout, s.drainTimeout)
	}
}

func terminate(proc resource.Process) error {
	if proc == nil {
		return nil
	}
	return errors.Join(proc.Terminate(), proc.Wait())
}
