package registry

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/registry/wire"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

type eventType int

const (
	eventOpen eventType = iota
	eventFrame
	eventClose
)

// event is delivered by the connection reader to the dispatcher.
type event struct {
	Type    eventType
	Session *session
	Message any
	Err     error
}

// registry owns the session table and the file index. Both are touched by the dispatcher only,
// so no locking is needed.
type registry struct {
	config   ServerConfig
	sessions map[sessionID]*session
	index    *fileIndex
}

func newRegistry(config ServerConfig) *registry {
	return &registry{
		config:   config,
		sessions: map[sessionID]*session{},
		index:    newFileIndex(),
	}
}

func (r *registry) run(ctx context.Context, events <-chan event) error {
	defer r.closeAll()

	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case ev := <-events:
			r.dispatch(ctx, ev)
		}
	}
}

func (r *registry) dispatch(ctx context.Context, ev event) {
	s := ev.Session

	if ev.Type == eventOpen {
		r.sessions[s.id] = s
		s.log(ctx).Info("Peer connected")
		return
	}

	// Session might have been closed already while its reader was still running.
	if _, exists := r.sessions[s.id]; !exists {
		return
	}

	switch ev.Type {
	case eventFrame:
		if err := r.handle(ctx, s, ev.Message); err != nil {
			r.disconnect(ctx, s, err)
		}
	case eventClose:
		r.disconnect(ctx, s, ev.Err)
	}
}

// disconnect is the only exit path of a session.
func (r *registry) disconnect(ctx context.Context, s *session, err error) {
	log := s.log(ctx)
	if errors.Is(err, io.EOF) {
		log.Info("Peer disconnected")
	} else {
		log.Warn("Session closed", zap.Error(err))
	}

	r.index.removeAll(s.id)
	delete(r.sessions, s.id)
	_ = s.conn.Close()
}

func (r *registry) closeAll() {
	for id, s := range r.sessions {
		r.index.removeAll(id)
		delete(r.sessions, id)
		_ = s.conn.Close()
	}
}

// RunServer runs registry.
func RunServer(ctx context.Context, ls net.Listener, config ServerConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	reg := newRegistry(config)
	events := make(chan event)

	logger.Get(ctx).Info("Registry started", zap.Stringer("address", ls.Addr()))

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("dispatcher", parallel.Fail, func(ctx context.Context) error {
			return reg.run(ctx, events)
		})
		spawn("closer", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			_ = ls.Close()
			return errors.WithStack(ctx.Err())
		})
		spawn("listener", parallel.Fail, func(ctx context.Context) error {
			var lastID sessionID
			var delay time.Duration
			for {
				conn, err := ls.Accept()
				if err != nil {
					switch {
					case ctx.Err() != nil:
						return errors.WithStack(ctx.Err())
					case errors.Is(err, net.ErrClosed):
						return errors.WithStack(err)
					}

					delay = nextAcceptDelay(delay)
					logger.Get(ctx).Warn("Accept failed", zap.Error(err), zap.Duration("retryIn", delay))
					select {
					case <-ctx.Done():
						return errors.WithStack(ctx.Err())
					case <-time.After(delay):
					}
					continue
				}
				delay = 0

				lastID++
				s := newSession(lastID, conn)
				spawn(fmt.Sprintf("session-%d", s.id), parallel.Continue, func(ctx context.Context) error {
					return runSessionReader(ctx, s, events)
				})
			}
		})

		return nil
	})
}

// nextAcceptDelay returns the pause before the next Accept after a failed one.
func nextAcceptDelay(delay time.Duration) time.Duration {
	if delay == 0 {
		return minAcceptDelay
	}
	return min(2*delay, maxAcceptDelay)
}

// runSessionReader turns bytes received from the peer into events for the dispatcher.
// One frame is forwarded at a time, so frames of a session are applied in order.
func runSessionReader(ctx context.Context, s *session, events chan<- event) error {
	defer s.conn.Close()

	if !sendEvent(ctx, events, event{Type: eventOpen, Session: s}) {
		return errors.WithStack(ctx.Err())
	}

	r := wire.NewReader(s.conn)
	for {
		msg, err := r.ReadFrame()
		if err != nil {
			sendEvent(ctx, events, event{Type: eventClose, Session: s, Err: err})
			return nil
		}

		if !sendEvent(ctx, events, event{Type: eventFrame, Session: s, Message: msg}) {
			return errors.WithStack(ctx.Err())
		}
	}
}

func sendEvent(ctx context.Context, events chan<- event, ev event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- ev:
		return true
	}
}
