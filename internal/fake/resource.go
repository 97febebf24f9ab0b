package fake

import (
	"sync"

	"github.com/viant/tapedeck/model/resource"
)

// Process is an in-memory resource.Process
type Process struct {
	name         string
	pid          int
	journal      *Journal
	TerminateErr error
	WaitErr      error
	exited       chan struct{}
	once         sync.Once
}

var _ resource.Process = (*Process)(nil)

func newProcess(name string, pid int, journal *Journal) *Process {
	return &Process{name: name, pid: pid, journal: journal, exited: make(chan struct{})}
}

func (p *Process) Name() string { return p.name }

func (p *Process) Pid() int { return p.pid }

func (p *Process) Terminate() error {
	p.journal.Record("terminate " + p.name)
	p.once.Do(func() { close(p.exited) })
	return p.TerminateErr
}

func (p *Process) Wait() error {
	p.journal.Record("wait " + p.name)
	return p.WaitErr
}

func (p *Process) Exited() <-chan struct{} { return p.exited }

func (p *Process) Running() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Browser is an in-memory resource.Browser
type Browser struct {
	journal  *Journal
	pid      int
	CloseErr error
	mu       sync.Mutex
	urls     []string
	closed   bool
}

var _ resource.Browser = (*Browser)(nil)

func (b *Browser) Pid() int { return b.pid }

func (b *Browser) Navigate(url string) error {
	b.journal.Record("navigate " + url)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.urls = append(b.urls, url)
	return nil
}

// URLs returns every navigated url
func (b *Browser) URLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.urls...)
}

func (b *Browser) Close() error {
	b.journal.Record("close browser")
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return b.CloseErr
}

func (b *Browser) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// Pipeline is an in-memory resource.Pipeline. Unless Stuck is set, SendEOS
// closes Ended as the encode bus listener would.
type Pipeline struct {
	name       string
	pid        int
	journal    *Journal
	Stuck      bool
	SetNullErr error
	ended      chan struct{}
	exited     chan struct{}
	endOnce    sync.Once
	exitOnce   sync.Once
}

var _ resource.Pipeline = (*Pipeline)(nil)

func newPipeline(name string, pid int, journal *Journal) *Pipeline {
	return &Pipeline{name: name, pid: pid, journal: journal, ended: make(chan struct{}), exited: make(chan struct{})}
}

func (p *Pipeline) Name() string { return p.name }

func (p *Pipeline) Pid() int { return p.pid }

func (p *Pipeline) SendEOS() error {
	p.journal.Record("eos " + p.name)
	if !p.Stuck {
		go p.endOnce.Do(func() { close(p.ended) })
	}
	return nil
}

func (p *Pipeline) Ended() <-chan struct{} { return p.ended }

func (p *Pipeline) Exited() <-chan struct{} { return p.exited }

func (p *Pipeline) SetNull() error {
	p.journal.Record("null " + p.name)
	p.exitOnce.Do(func() { close(p.exited) })
	return p.SetNullErr
}

func (p *Pipeline) Running() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}
