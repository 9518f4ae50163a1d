package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	retry "github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/events"
	"github.com/gamecafe/panelsync/internal/metrics"
)

// run connects, reads until the connection drops, and reconnects until ctx
// is cancelled or attempts run out.
func (s *Socket) run(ctx context.Context, done chan struct{}) { //nolint:gocognit,cyclop // one loop owns the whole lifecycle.
	defer close(done)

	backoff := s.newBackoff()
	attempt := 0
	everConnected := false

	for {
		if ctx.Err() != nil {
			return
		}

		if attempt > 0 {
			s.setState(StateReconnecting)
			s.emit(events.ReconnectAttempt, AttemptInfo{Attempt: attempt})
		} else {
			s.setState(StateConnecting)
		}

		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			s.log.WithError(err).WithField("attempt", attempt).Warn("socket connect failed")
			s.emit(events.ConnectError, ErrorInfo{Error: err.Error()})
			if attempt > 0 {
				s.emit(events.ReconnectError, ErrorInfo{Error: err.Error()})
			}

			delay, stop := backoff.Next()
			if stop {
				s.log.WithField("attempts", attempt).Error("socket reconnect attempts exhausted")
				s.setState(StateFailed)
				s.emit(events.ReconnectFailed, AttemptInfo{Attempt: attempt})

				return
			}

			attempt++
			if !s.wait(ctx, delay) {
				return
			}

			continue
		}

		s.setConn(conn)
		s.setState(StateConnected)
		metrics.SocketConnected.Set(1)
		s.log.WithFields(logrus.Fields{"url": s.url, "client_id": s.id}).Info("socket connected")

		s.emit(events.Connect, nil)
		if everConnected {
			s.emit(events.Reconnect, AttemptInfo{Attempt: attempt})
		}
		everConnected = true
		attempt = 0
		backoff = s.newBackoff()
		s.drainReconnect()

		s.subscribe(ctx, conn)
		reason := s.readLoop(ctx, conn)

		s.setConn(nil)
		conn.CloseNow() //nolint:errcheck // best-effort close on teardown
		metrics.SocketConnected.Set(0)

		// A Reconnect requested while connected has nothing left to do and
		// must not cut the next backoff short.
		s.drainReconnect()

		if ctx.Err() != nil || s.isClosed() {
			return
		}

		s.setState(StateDisconnected)
		s.log.WithField("reason", reason).Warn("socket disconnected")
		s.emit(events.Disconnect, DisconnectInfo{Reason: reason})
		attempt = 1

		// A server that closes the connection on purpose is not retried
		// automatically; an explicit Reconnect resumes it.
		if reason == ReasonServerDisconnect || s.opts.DisableReconnection {
			if !s.waitExplicit(ctx) {
				return
			}

			continue
		}

		delay, _ := backoff.Next()
		if !s.wait(ctx, delay) {
			return
		}
	}
}

func (s *Socket) newBackoff() retry.Backoff {
	b := retry.NewExponential(s.opts.DelayMin)
	b = retry.WithCappedDuration(s.opts.DelayMax, b)
	b = retry.WithJitterPercent(s.opts.JitterPercent, b)

	if s.opts.MaxAttempts > 0 {
		b = retry.WithMaxRetries(uint64(s.opts.MaxAttempts), b)
	}

	return b
}

// wait sleeps for d unless ctx ends or a Reconnect cuts it short.
func (s *Socket) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-s.reconnect:
		return true
	case <-t.C:
		return true
	}
}

func (s *Socket) drainReconnect() {
	select {
	case <-s.reconnect:
	default:
	}
}

func (s *Socket) waitExplicit(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.reconnect:
		return true
	}
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := Endpoint(s.url, s.opts.Path)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.DialTimeout)
	defer cancel()

	header := s.opts.Header.Clone()
	if header == nil {
		header = make(map[string][]string)
	}
	header.Set(ClientIDHeader, s.id)

	conn, _, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{
		HTTPClient: s.opts.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial socket: %w", err)
	}

	conn.SetReadLimit(s.opts.ReadLimit)

	return conn, nil
}

// subscribe requests replay of events after the last one seen.
func (s *Socket) subscribe(ctx context.Context, conn *websocket.Conn) {
	msg, err := json.Marshal(SubscribeMsg{Type: frameSubscribe, LastEventID: s.lastEventID.Load()})
	if err != nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, msg); err != nil {
		s.log.WithError(err).Debug("subscribe write failed")
	}
}

// readLoop reads frames until the connection ends and returns the reason.
func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) string {
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pingTimedOut, shutdown atomic.Bool
	go s.keepalive(pingCtx, conn, &pingTimedOut)

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ReasonClientDisconnect
			case pingTimedOut.Load():
				return ReasonPingTimeout
			case shutdown.Load(), websocket.CloseStatus(err) != -1:
				return ReasonServerDisconnect
			case errors.Is(err, context.Canceled):
				return ReasonClientDisconnect
			default:
				s.log.WithError(err).Debug("socket read failed")
				return ReasonTransportClose
			}
		}

		if s.handleFrame(msg) {
			shutdown.Store(true)
		}
	}
}

// handleFrame decodes one frame and dispatches it. It reports whether the
// server announced a shutdown.
func (s *Socket) handleFrame(msg []byte) bool {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		s.log.WithError(err).Debug("dropping undecodable frame")
		return false
	}

	switch env.Type {
	case "":
		return false
	case frameShutdown:
		s.log.Info("server announced shutdown")
		return true
	}

	if env.ID > s.lastEventID.Load() {
		s.lastEventID.Store(env.ID)
	}

	data := env.Data
	if len(data) == 0 {
		data = msg
	}

	metrics.EventsTotal.WithLabelValues(env.Type).Inc()
	s.Dispatch(env.Type, data)

	return false
}

// keepalive pings the server and drops the connection after consecutive
// missed pongs.
func (s *Socket) keepalive(ctx context.Context, conn *websocket.Conn, timedOut *atomic.Bool) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	var missed int32

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pingCtx)
			cancel()

			if err == nil {
				missed = 0
				continue
			}
			if ctx.Err() != nil {
				return
			}

			missed++
			if missed >= maxMissedPongs {
				s.log.Debug("closing socket: 2 consecutive missed pongs")
				timedOut.Store(true)
				conn.CloseNow() //nolint:errcheck // read loop reports the drop

				return
			}
		}
	}
}
