package session

import (
	"errors"
	"fmt"
)

// Session lifecycle errors. Callers detect conditions with errors.Is instead
// of matching on the description.
var (
	// ErrInvalidConfig is returned when a config fails validation
	ErrInvalidConfig = errors.New("invalid session config")

	// ErrLaunch is returned when a resource failed to start
	ErrLaunch = errors.New("launch failure")

	// ErrNavigation is returned when the browser failed to load the target url
	ErrNavigation = errors.New("navigation failure")

	// ErrNotFound is returned when no live session exists for an id
	ErrNotFound = errors.New("no session for id")

	// ErrConflict is returned when a session with the same id is already running
	ErrConflict = errors.New("session already running")

	// ErrShutdown is returned when one or more teardown steps failed
	ErrShutdown = errors.New("shutdown partial failure")

	// ErrDrainTimeout is recorded when the encode pipeline did not signal end-of-stream in time
	ErrDrainTimeout = errors.New("pipeline did not drain")

	// ErrAlreadyStopped is returned by Stop after the first call
	ErrAlreadyStopped = errors.New("session already stopping or stopped")

	// ErrRegistryClosed is returned when a request is submitted after shutdown
	ErrRegistryClosed = errors.New("registry closed")
)

// LaunchError describes the resource that failed during the start sequence
type LaunchError struct {
	Resource string
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Resource, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Is reports ErrLaunch unless the cause is already classified (e.g. ErrNavigation)
func (e *LaunchError) Is(target error) bool {
	if target != ErrLaunch {
		return false
	}
	return !errors.Is(e.Err, ErrNavigation)
}

// NewLaunchError wraps err with the resource name
func NewLaunchError(resource string, err error) error {
	if err == nil {
		return nil
	}
	return &LaunchError{Resource: resource, Err: err}
}

// StepError is a single failed teardown step
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ShutdownError aggregates teardown failures; Error describes the first one.
type ShutdownError struct {
	ID    uint32
	Steps []*StepError
}

func (e *ShutdownError) Error() string {
	if len(e.Steps) == 0 {
		return fmt.Sprintf("session %d: %v", e.ID, ErrShutdown)
	}
	first := e.Steps[0]
	if len(e.Steps) == 1 {
		return fmt.Sprintf("session %d: %v at %v", e.ID, ErrShutdown, first)
	}
	return fmt.Sprintf("session %d: %v at %v (and %d more)", e.ID, ErrShutdown, first, len(e.Steps)-1)
}

// Unwrap exposes every step error to errors.Is/As
func (e *ShutdownError) Unwrap() []error {
	ret := make([]error, 0, len(e.Steps)+1)
	ret = append(ret, ErrShutdown)
	for _, step := range e.Steps {
		ret = append(ret, step)
	}
	return ret
}

// First returns the first failing step or nil
func (e *ShutdownError) First() *StepError {
	if len(e.Steps) == 0 {
		return nil
	}
	return e.Steps[0]
}

// Append records a step failure, nil errors are ignored
func (e *ShutdownError) Append(step string, err error) {
	if err == nil {
		return
	}
	e.Steps = append(e.Steps, &StepError{Step: step, Err: err})
}

// ErrOrNil returns nil when no step failed
func (e *ShutdownError) ErrOrNil() error {
	if e == nil || len(e.Steps) == 0 {
		return nil
	}
	return e
}
