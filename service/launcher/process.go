package launcher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/viant/tapedeck/model/resource"
)

// Process is a started external OS process
type Process struct {
	name     string
	cmd      *exec.Cmd
	grace    time.Duration
	logger   *slog.Logger
	exited   chan struct{}
	waitErr  error
	signaled atomic.Bool
	stdout   *os.File
	mu       sync.Mutex
}

var _ resource.Process = (*Process)(nil)

// newProcess prepares (but does not start) binary with args and env applied on top of the host environment
func newProcess(name, binary string, args []string, env Env, grace time.Duration, logger *slog.Logger) *Process {
	cmd := exec.Command(binary, args...)
	cmd.Env = env.hostEnviron()
	cmd.Stderr = &logWriter{logger: logger, resource: name}
	cmd.SysProcAttr = sysProcAttr()
	// orphaned children must not keep Wait blocked on stderr
	cmd.WaitDelay = grace
	return &Process{
		name:   name,
		cmd:    cmd,
		grace:  grace,
		logger: logger,
		exited: make(chan struct{}),
	}
}

// pipeStdout redirects the process standard output to the returned reader.
// A plain os.Pipe is used so that reading never races with Wait and the
// reader sees EOF only after the process exited.
func (p *Process) pipeStdout() (io.ReadCloser, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	p.cmd.Stdout = w
	p.stdout = w
	return r, nil
}

// pipeOutput is pipeStdout with standard error interleaved into the same reader
func (p *Process) pipeOutput() (io.ReadCloser, error) {
	r, err := p.pipeStdout()
	if err != nil {
		return nil, err
	}
	p.cmd.Stderr = p.stdout
	return r, nil
}

func (p *Process) start() error {
	if err := p.cmd.Start(); err != nil {
		if p.stdout != nil {
			_ = p.stdout.Close()
		}
		return fmt.Errorf("failed to start %v: %w", p.cmd.Path, err)
	}
	if p.stdout != nil {
		// the child holds its own copy
		_ = p.stdout.Close()
	}
	p.logger.Debug("process started", "resource", p.name, "pid", p.Pid(), "args", p.cmd.Args)
	go p.wait()
	return nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()
	close(p.exited)
	p.logger.Debug("process exited", "resource", p.name, "pid", p.Pid(), "error", err)
}

// Name returns the resource name
func (p *Process) Name() string {
	return p.name
}

// Pid returns the OS process id
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Exited is closed once the process exited
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

func (p *Process) hasExited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// Signal delivers sig; an exit caused by it is not reported as an error by Wait
func (p *Process) Signal(sig os.Signal) error {
	if p.hasExited() {
		return nil
	}
	p.signaled.Store(true)
	if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to signal %v: %w", p.name, err)
	}
	return nil
}

// Terminate sends SIGTERM and escalates to SIGKILL after the grace period
func (p *Process) Terminate() error {
	if p.hasExited() {
		return nil
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		return err
	}
	select {
	case <-p.exited:
		return nil
	case <-time.After(p.grace):
	}
	p.logger.Warn("process ignored SIGTERM, killing", "resource", p.name, "pid", p.Pid(), "grace", p.grace)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill %v: %w", p.name, err)
	}
	return nil
}

// Wait blocks until the process exited. Exits caused by Signal or Terminate are not errors.
func (p *Process) Wait() error {
	<-p.exited
	return p.exitError()
}

func (p *Process) exitError() error {
	p.mu.Lock()
	err := p.waitErr
	p.mu.Unlock()
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && p.signaled.Load() {
		return nil
	}
	return fmt.Errorf("%v exited: %w", p.name, err)
}

// Running reports whether the OS still sees the process alive
func (p *Process) Running() bool {
	if p.cmd.Process == nil || p.hasExited() {
		return false
	}
	proc, err := process.NewProcess(int32(p.Pid()))
	if err != nil {
		return false
	}
	running, err := proc.IsRunning()
	return err == nil && running
}

// earlyExitError describes a process that exited before it became ready
func (p *Process) earlyExitError() error {
	if err := p.exitError(); err != nil {
		return err
	}
	return fmt.Errorf("%v exited before it became ready", p.name)
}

// logWriter forwards process stderr to the logger
type logWriter struct {
	logger   *slog.Logger
	resource string
}

func (w *logWriter) Write(data []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.logger.Debug(string(line), "resource", w.resource, "stream", "stderr")
	}
	return len(data), nil
}
