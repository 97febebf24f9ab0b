package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/tapedeck/model/resource"
	"github.com/viant/tapedeck/model/session"
)

// Resource names used in journal entries and FailOn
const (
	NameBus     = "bus"
	NameDisplay = "display"
	NameAudio   = "audio"
	NameBrowser = "browser"
	NamePreview = "preview"
	NameEncode  = "encode"
)

// Launcher is an in-memory launcher. Every launched handle is kept per session
// id so tests can inspect or sabotage it.
type Launcher struct {
	Journal *Journal
	// FailOn makes the named resource fail to launch
	FailOn string
	// StuckEncode makes encode pipelines ignore SendEOS
	StuckEncode bool
	// Delay is slept before every launch
	Delay time.Duration
	// Configure is invoked with each launched handle before it is returned
	Configure func(id uint32, name string, handle interface{})

	mu      sync.Mutex
	handles map[uint32]map[string]interface{}
	nextPid int
}

// NewLauncher creates a launcher
func NewLauncher() *Launcher {
	return &Launcher{Journal: &Journal{}, handles: map[uint32]map[string]interface{}{}, nextPid: 1000}
}

// Handle returns the named handle launched for id
func (l *Launcher) Handle(id uint32, name string) interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[id][name]
}

func (l *Launcher) launch(ctx context.Context, cfg *session.Config, name string, create func(pid int) interface{}) (interface{}, error) {
	l.Journal.Record("launch " + name)
	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, session.NewLaunchError(name, ctx.Err())
		}
	}
	if l.FailOn == name {
		return nil, session.NewLaunchError(name, fmt.Errorf("%v refused to start", name))
	}
	l.mu.Lock()
	l.nextPid++
	handle := create(l.nextPid)
	if l.handles[cfg.ID] == nil {
		l.handles[cfg.ID] = map[string]interface{}{}
	}
	l.handles[cfg.ID][name] = handle
	l.mu.Unlock()
	if l.Configure != nil {
		l.Configure(cfg.ID, name, handle)
	}
	return handle, nil
}

func (l *Launcher) launchProcess(ctx context.Context, cfg *session.Config, name string) (resource.Process, error) {
	handle, err := l.launch(ctx, cfg, name, func(pid int) interface{} { return newProcess(name, pid, l.Journal) })
	if err != nil {
		return nil, err
	}
	return handle.(*Process), nil
}

func (l *Launcher) launchPipeline(ctx context.Context, cfg *session.Config, name string, stuck bool) (resource.Pipeline, error) {
	handle, err := l.launch(ctx, cfg, name, func(pid int) interface{} {
		ret := newPipeline(name, pid, l.Journal)
		ret.Stuck = stuck
		return ret
	})
	if err != nil {
		return nil, err
	}
	return handle.(*Pipeline), nil
}

func (l *Launcher) LaunchBus(ctx context.Context, cfg *session.Config) (resource.Process, string, error) {
	proc, err := l.launchProcess(ctx, cfg, NameBus)
	if err != nil {
		return nil, "", err
	}
	return proc, fmt.Sprintf("unix:path=/tmp/fake-bus-%d", cfg.ID), nil
}

func (l *Launcher) LaunchDisplay(ctx context.Context, cfg *session.Config, busAddress string) (resource.Process, error) {
	return l.launchProcess(ctx, cfg, NameDisplay)
}

func (l *Launcher) LaunchAudio(ctx context.Context, cfg *session.Config, busAddress string) (resource.Process, error) {
	return l.launchProcess(ctx, cfg, NameAudio)
}

func (l *Launcher) LaunchBrowser(ctx context.Context, cfg *session.Config, busAddress string) (resource.Browser, error) {
	handle, err := l.launch(ctx, cfg, NameBrowser, func(pid int) interface{} { return &Browser{journal: l.Journal, pid: pid} })
	if err != nil {
		return nil, err
	}
	return handle.(*Browser), nil
}

func (l *Launcher) LaunchPreview(ctx context.Context, cfg *session.Config) (resource.Pipeline, error) {
	return l.launchPipeline(ctx, cfg, NamePreview, false)
}

func (l *Launcher) LaunchEncode(ctx context.Context, cfg *session.Config) (resource.Pipeline, error) {
	return l.launchPipeline(ctx, cfg, NameEncode, l.StuckEncode)
}
