// Package socket maintains the panel's single realtime connection: a
// websocket that reconnects on its own, delivers named server events to
// registered handlers in arrival order, and reports its lifecycle through
// the same handler table.
package socket

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/metrics"
)

// State is the connection state.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
	// StateFailed is entered when reconnect attempts are exhausted.
	StateFailed State = "failed"
	StateClosed State = "closed"
)

// Handler receives the raw data of one event.
type Handler func(data json.RawMessage)

// Socket is one realtime connection. Handlers run on the read goroutine, one
// at a time, in the order events arrive.
type Socket struct {
	url  string
	opts Options
	log  *logrus.Logger
	id   string

	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}

	connMu sync.Mutex
	conn   *websocket.Conn

	state       atomic.Value
	lastEventID atomic.Uint64
	reconnect   chan struct{}
}

// New creates an idle Socket for url. Call Open to start connecting.
func New(url string, opts Options) *Socket {
	opts.defaults()

	s := &Socket{
		url:       url,
		opts:      opts,
		log:       opts.Logger,
		id:        uuid.NewString(),
		handlers:  make(map[string][]Handler),
		reconnect: make(chan struct{}, 1),
	}
	s.state.Store(StateIdle)

	return s
}

// ID returns the client id sent on the handshake.
func (s *Socket) ID() string { return s.id }

// State returns the current connection state.
func (s *Socket) State() State {
	st, _ := s.state.Load().(State)
	return st
}

func (s *Socket) setState(st State) {
	s.state.Store(st)
}

// LastEventID returns the highest event id received so far.
func (s *Socket) LastEventID() uint64 {
	return s.lastEventID.Load()
}

// On registers a handler for an event or lifecycle signal. Every handler
// registered for a name fires, in registration order.
func (s *Socket) On(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.handlers[event] = append(s.handlers[event], h)
}

// Dispatch delivers data to the handlers registered for event. It is a
// no-op once the socket is closed.
func (s *Socket) Dispatch(event string, data json.RawMessage) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	hs := slices.Clone(s.handlers[event])
	s.mu.RUnlock()

	for _, h := range hs {
		s.invoke(event, h, data)
	}
}

// invoke runs one handler; a panicking handler is logged and skipped so the
// rest of the handler table keeps working.
func (s *Socket) invoke(event string, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerErrorsTotal.WithLabelValues(event).Inc()
			s.log.WithFields(logrus.Fields{
				"event": event,
				"panic": r,
			}).Error("event handler panicked")
		}
	}()

	h(data)
}

// emit dispatches a lifecycle signal.
func (s *Socket) emit(signal string, payload any) {
	metrics.SocketLifecycleTotal.WithLabelValues(signal).Inc()

	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			s.log.WithError(err).WithField("signal", signal).Error("failed to marshal lifecycle payload")
			return
		}
		data = b
	}

	s.Dispatch(signal, data)
}

// Open starts the connection loop. Calling it again, or after Close, does
// nothing.
func (s *Socket) Open(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.done != nil {
		s.mu.Unlock()
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(loopCtx, done)
}

// Reconnect asks the loop to connect again now. It is required after a
// server-initiated disconnect, which is never retried automatically, and
// also cuts short a pending backoff delay.
func (s *Socket) Reconnect() {
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

// Close stops the loop, closes the connection and drops every handler.
// After Close no handler fires, even for frames already read.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.handlers = nil
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	s.setState(StateClosed)

	var err error
	if conn := s.currentConn(); conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(closeTimeout):
			s.log.Warn("socket loop did not stop within close timeout")
		}
	}

	metrics.SocketConnected.Set(0)

	return err
}

func (s *Socket) currentConn() *websocket.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	return s.conn
}

func (s *Socket) setConn(c *websocket.Conn) {
	s.connMu.Lock()
	s.conn = c
	s.connMu.Unlock()
}

func (s *Socket) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.closed
}
