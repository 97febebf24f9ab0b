package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	model "github.com/viant/tapedeck/model/session"
	"github.com/viant/tapedeck/runtime/session"
	"github.com/viant/tapedeck/service/event"
	"github.com/viant/tapedeck/service/messaging"
	"github.com/viant/tapedeck/service/messaging/memory"
	"github.com/viant/tapedeck/tracing"
	"golang.org/x/sync/errgroup"
)

// Service owns every live session. All mutations go through a single control
// loop consuming the mailbox, so the session map needs no lock.
type Service struct {
	config         Config
	launcher       session.Launcher
	queue          messaging.Queue[Request]
	events         *event.Service
	publisher      *event.Publisher[model.Transition]
	logger         *slog.Logger
	stopHooks      []StopHook
	sessionOptions []session.Option

	sessions  map[uint32]*session.Session
	startOnce sync.Once
	done      chan struct{}
	hooks     sync.WaitGroup
}

// New creates a registry service over launcher
func New(launcher session.Launcher, options ...Option) (*Service, error) {
	if launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	s := &Service{
		config:   DefaultConfig(),
		launcher: launcher,
		sessions: make(map[uint32]*session.Session),
		done:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.queue == nil {
		s.queue = memory.NewQueue[Request](s.config.Mailbox)
	}
	if s.events != nil {
		s.publisher = event.PublisherOf[model.Transition](s.events)
	}
	return s, nil
}

// Start runs the control loop until Shutdown or ctx is done
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

// Done is closed once the control loop exited
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Spawn starts a session for cfg. A live session with the same id is left
// untouched and model.ErrConflict is returned.
func (s *Service) Spawn(ctx context.Context, cfg *model.Config) (err error) {
	var id uint32
	if cfg != nil {
		id = cfg.ID
	}
	ctx, span := tracing.StartSessionSpan(ctx, "registry.spawn", id)
	defer func() { span.End(err) }()
	if err = cfg.Validate(); err != nil {
		recordSpawn(err)
		return err
	}
	req := newRequest(ctx, KindSpawn)
	req.Config = cfg
	_, err = s.call(ctx, req)
	return err
}

// Stop stops and removes the session id, model.ErrNotFound when absent
func (s *Service) Stop(ctx context.Context, id uint32) (err error) {
	ctx, span := tracing.StartSessionSpan(ctx, "registry.stop", id)
	defer func() { span.End(err) }()
	req := newRequest(ctx, KindStop)
	req.ID = id
	_, err = s.call(ctx, req)
	return err
}

// Navigate loads url in the browser of session id
func (s *Service) Navigate(ctx context.Context, id uint32, url string) error {
	req := newRequest(ctx, KindNavigate)
	req.ID = id
	req.URL = url
	_, err := s.call(ctx, req)
	return err
}

// List returns snapshots of every live session ordered by id
func (s *Service) List(ctx context.Context) ([]*model.Info, error) {
	reply, err := s.call(ctx, newRequest(ctx, KindList))
	if err != nil {
		return nil, err
	}
	return reply.Sessions, nil
}

// Shutdown stops every live session and terminates the control loop
func (s *Service) Shutdown(ctx context.Context) error {
	_, err := s.call(ctx, newRequest(ctx, KindShutdown))
	if errors.Is(err, model.ErrRegistryClosed) {
		return nil
	}
	s.hooks.Wait()
	return err
}

func (s *Service) call(ctx context.Context, req *Request) (*Reply, error) {
	if err := s.queue.Publish(ctx, req); err != nil {
		if errors.Is(err, messaging.ErrClosed) {
			return nil, model.ErrRegistryClosed
		}
		return nil, err
	}
	select {
	case reply := <-req.Reply:
		return reply, reply.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		select {
		case reply := <-req.Reply:
			return reply, reply.Err
		default:
			return nil, model.ErrRegistryClosed
		}
	}
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	for {
		msg, err := s.queue.Consume(ctx)
		if err != nil {
			if errors.Is(err, messaging.ErrClosed) {
				return
			}
			if ctx.Err() != nil {
				s.logger.Warn("registry context done, stopping sessions", "error", ctx.Err())
				if err = s.shutdown(context.WithoutCancel(ctx)); err != nil {
					s.logger.Error("registry shutdown incomplete", "error", err)
				}
				s.close()
				return
			}
			continue
		}
		req := msg.T()
		reply := s.handle(req)
		if reply.panicked {
			_ = msg.Nack(reply.Err)
		} else {
			_ = msg.Ack()
		}
		req.Reply <- reply
		if req.Kind == KindShutdown {
			s.close()
			return
		}
	}
}

// close rejects whatever is still queued
func (s *Service) close() {
	_ = s.queue.Close()
	for {
		msg, err := s.queue.Consume(context.Background())
		if err != nil {
			return
		}
		_ = msg.Nack(model.ErrRegistryClosed)
		msg.T().Reply <- &Reply{Err: model.ErrRegistryClosed}
	}
}

// handle processes a single request; a panic is converted into the reply error
func (s *Service) handle(req *Request) (reply *Reply) {
	ctx := req.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "registry request panicked", "kind", req.Kind, "panic", r, "stack", string(debug.Stack()))
			reply = &Reply{Err: fmt.Errorf("%v request panicked: %v", req.Kind, r), panicked: true}
		}
	}()
	if err := ctx.Err(); err != nil && req.Kind != KindShutdown {
		return &Reply{Err: err}
	}
	switch req.Kind {
	case KindSpawn:
		return &Reply{Err: s.spawn(ctx, req.Config)}
	case KindStop:
		return &Reply{Err: s.stop(ctx, req.ID)}
	case KindNavigate:
		return &Reply{Err: s.navigate(ctx, req.ID, req.URL)}
	case KindList:
		return &Reply{Sessions: s.list()}
	case KindShutdown:
		return &Reply{Err: s.shutdown(context.WithoutCancel(ctx))}
	}
	return &Reply{Err: fmt.Errorf("unsupported request kind: %v", req.Kind)}
}

func (s *Service) spawn(ctx context.Context, cfg *model.Config) error {
	if _, ok := s.sessions[cfg.ID]; ok {
		err := fmt.Errorf("session %d: %w", cfg.ID, model.ErrConflict)
		recordSpawn(err)
		return err
	}
	sess, err := session.Start(ctx, cfg, s.launcher, s.optionsFor()...)
	recordSpawn(err)
	if err != nil {
		return err
	}
	s.sessions[cfg.ID] = sess
	return nil
}

func (s *Service) stop(ctx context.Context, id uint32) error {
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %d: %w", id, model.ErrNotFound)
	}
	delete(s.sessions, id)
	// the caller going away must not cut the end-of-stream wait short
	err := sess.Stop(context.WithoutCancel(ctx))
	recordStop(err)
	s.notifyStopped(ctx, sess.Config(), err)
	return err
}

func (s *Service) navigate(ctx context.Context, id uint32, url string) error {
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %d: %w", id, model.ErrNotFound)
	}
	return sess.Navigate(ctx, url)
}

func (s *Service) list() []*model.Info {
	ret := make([]*model.Info, 0, len(s.sessions))
	for _, sess := range s.sessions {
		ret = append(ret, sess.Info())
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret
}

// shutdown stops every live session concurrently, they share no resources
func (s *Service) shutdown(ctx context.Context) error {
	if len(s.sessions) == 0 {
		return nil
	}
	s.logger.Info("stopping all sessions", "count", len(s.sessions))
	var mu sync.Mutex
	var errs []error
	group, groupCtx := errgroup.WithContext(context.WithoutCancel(ctx))
	for id, sess := range s.sessions {
		sess := sess
		delete(s.sessions, id)
		group.Go(func() error {
			err := sess.Stop(groupCtx)
			recordStop(err)
			s.notifyStopped(groupCtx, sess.Config(), err)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}

func (s *Service) notifyStopped(ctx context.Context, cfg *model.Config, err error) {
	for _, hook := range s.stopHooks {
		s.hooks.Add(1)
		go func(hook StopHook) {
			defer s.hooks.Done()
			hook(context.WithoutCancel(ctx), cfg, err)
		}(hook)
	}
}

func (s *Service) optionsFor() []session.Option {
	ret := []session.Option{
		session.WithLogger(s.logger),
		session.WithDrainTimeout(s.config.DrainTimeout),
	}
	if s.publisher != nil {
		ret = append(ret, session.WithTransitionListeners(s.publishTransition))
	}
	return append(ret, s.sessionOptions...)
}

func (s *Service) publishTransition(transition *model.Transition) {
	evt := event.NewEvent(&event.Context{
		SessionID: transition.ID,
		EventType: event.TypeTransition,
		Operation: string(transition.To),
	}, *transition)
	if err := s.publisher.Publish(context.Background(), evt); err != nil {
		s.logger.Warn("failed to publish transition", "session_id", transition.ID, "error", err)
	}
}
