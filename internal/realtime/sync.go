// Package realtime keeps the query cache in step with events pushed over the
// panel socket. Sync is the single setup call: it owns the connection, wires
// every handler and reconciles the cache after reconnects.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/alert"
	"github.com/gamecafe/panelsync/internal/events"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/session"
	"github.com/gamecafe/panelsync/internal/socket"
)

// ErrNoDialer is returned by Start when no connection source is configured.
var ErrNoDialer = errors.New("realtime: no socket configured")

// Conn is the connection Sync drives. *socket.Socket implements it.
type Conn interface {
	On(event string, h socket.Handler)
	Open(ctx context.Context)
	Reconnect()
	State() socket.State
	Close() error
}

// Alerter plays notification sounds for the lifetime of one connection.
type Alerter interface {
	Play(sound string) error
	Close() error
}

// Sync installs the realtime handlers on one connection.
type Sync struct {
	cache  *querycache.Cache
	mirror *session.Mirror
	log    *logrus.Logger
	cfg    config

	mu          sync.Mutex
	conn        Conn
	alerts      Alerter
	cancel      context.CancelFunc
	unsubscribe func()
}

// New creates a Sync. Nothing connects until Start.
func New(cache *querycache.Cache, mirror *session.Mirror, log *logrus.Logger, opts ...Option) *Sync {
	cfg := defaultConfig(log)
	for _, o := range opts {
		o(&cfg)
	}

	return &Sync{
		cache:  cache,
		mirror: mirror,
		log:    log,
		cfg:    cfg,
	}
}

// Start connects and registers every handler. While a connection is held,
// further calls do nothing.
func (s *Sync) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	if s.cfg.dial == nil {
		return ErrNoDialer
	}

	conn := s.cfg.dial()
	alerts := s.cfg.newAlerter()

	r := newRefresher(s.cache, s.mirror, s.log, s.cfg)
	rctx, cancel := context.WithCancel(ctx)
	go r.Run(rctx)

	h := &handlers{
		cache:      s.cache,
		mirror:     s.mirror,
		log:        s.log,
		alerts:     alerts,
		conn:       conn,
		reconciler: newReconciler(s.cache, s.mirror, s.log, s.cfg),
		refresher:  r,
	}
	h.register(conn)

	s.conn = conn
	s.alerts = alerts
	s.cancel = cancel
	if s.cfg.warmup {
		s.unsubscribe = s.mirror.OnChange(r.sessionChanged)
		request(r.warm)
	}
	conn.Open(ctx)

	s.log.Info("realtime sync started")

	return nil
}

// Stop closes the connection and drops every handler. It is safe to call
// more than once; only the first call after a Start does anything.
func (s *Sync) Stop() error {
	s.mu.Lock()
	conn, alerts := s.conn, s.alerts
	cancel, unsubscribe := s.cancel, s.unsubscribe
	s.conn, s.alerts, s.cancel, s.unsubscribe = nil, nil, nil, nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	if unsubscribe != nil {
		unsubscribe()
	}
	cancel()

	err := conn.Close()
	if alerts != nil {
		if aerr := alerts.Close(); aerr != nil && err == nil {
			err = aerr
		}
	}

	s.log.Info("realtime sync stopped")

	return err
}

// State reports the connection state; a Sync without a connection is idle.
func (s *Sync) State() socket.State {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return socket.StateIdle
	}

	return conn.State()
}

// Reconnect asks the held connection to reconnect now.
func (s *Sync) Reconnect() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Reconnect()
	}
}

// handlers is the handler set bound to one connection.
type handlers struct {
	cache      *querycache.Cache
	mirror     *session.Mirror
	log        *logrus.Logger
	alerts     Alerter
	conn       Conn
	reconciler *Reconciler
	refresher  *refresher
}

func (h *handlers) register(conn Conn) {
	for _, name := range events.Names() {
		prefixes, _ := events.Prefixes(name)
		conn.On(name, h.invalidateRegistry(name, prefixes))
	}

	// The registry handlers above drop cached views; these reload the
	// mirror's copy, which no cache entry backs.
	if h.refresher.src != nil {
		conn.On(events.KitchenChanged, h.reload(h.refresher.kitchens))
		conn.On(events.CategoryChanged, h.reload(h.refresher.categories))
		conn.On(events.UserChanged, h.reload(h.refresher.user))
	}

	conn.On(events.OrderCreated, h.orderCreated)
	conn.On(events.OrderUpdated, h.orderUpdated)
	conn.On(events.OrderDeleted, h.orderDeleted)
	conn.On(events.CollectionChanged, h.collectionChanged)
	conn.On(events.NotificationChanged, h.notificationChanged)
	conn.On(events.SingleTableChanged, h.singleTableChanged)
	conn.On(events.TableCreated, h.tableCreated)
	conn.On(events.TableDeleted, h.tableDeleted)
	conn.On(events.TableClosed, h.tableClosed)
	conn.On(events.GameplayCreated, h.gameplay(events.GameplayCreated, spliceCreated))
	conn.On(events.GameplayUpdated, h.gameplay(events.GameplayUpdated, spliceUpdated))
	conn.On(events.GameplayDeleted, h.gameplay(events.GameplayDeleted, spliceDeleted))
	conn.On(events.CreateMultipleOrder, h.createMultipleOrder)
	conn.On(events.Reset, h.reset)

	conn.On(events.Connect, h.connected)
	conn.On(events.Disconnect, h.disconnected)
	conn.On(events.Reconnect, h.reconnected)
	conn.On(events.ReconnectAttempt, h.reconnectAttempt)
	conn.On(events.ReconnectError, h.transportError(events.ReconnectError))
	conn.On(events.ConnectError, h.transportError(events.ConnectError))
	conn.On(events.ReconnectFailed, h.reconnectFailed)
}

func (h *handlers) reload(ch chan struct{}) socket.Handler {
	return func(json.RawMessage) { request(ch) }
}

func (h *handlers) connected(json.RawMessage) {
	h.log.Info("realtime connected")
}

func (h *handlers) disconnected(data json.RawMessage) {
	var info socket.DisconnectInfo
	if len(data) > 0 {
		if err := json.Unmarshal(data, &info); err != nil {
			h.log.WithError(err).Debug("undecodable disconnect payload")
		}
	}

	h.log.WithField("reason", info.Reason).Warn("realtime disconnected")
	h.reconciler.Disconnected()

	if info.Reason == socket.ReasonServerDisconnect {
		h.conn.Reconnect()
	}
}

func (h *handlers) reconnected(data json.RawMessage) {
	var info socket.AttemptInfo
	if len(data) > 0 {
		json.Unmarshal(data, &info) //nolint:errcheck // attempt count is informational
	}

	h.log.WithField("attempt", info.Attempt).Info("realtime reconnected")
	h.reconciler.Reconnected()
}

func (h *handlers) reconnectAttempt(data json.RawMessage) {
	var info socket.AttemptInfo
	if len(data) > 0 {
		json.Unmarshal(data, &info) //nolint:errcheck // attempt count is informational
	}

	h.log.WithField("attempt", info.Attempt).Debug("realtime reconnect attempt")
}

func (h *handlers) transportError(signal string) socket.Handler {
	return func(data json.RawMessage) {
		var info socket.ErrorInfo
		if len(data) > 0 {
			json.Unmarshal(data, &info) //nolint:errcheck // error text is informational
		}

		h.log.WithFields(logrus.Fields{"signal": signal, "error": info.Error}).Warn("realtime transport error")
	}
}

func (h *handlers) reconnectFailed(json.RawMessage) {
	h.log.Error("realtime reconnect attempts exhausted; cache will go stale")
}

// play plays a sound, logging instead of failing.
func (h *handlers) play(sound string) {
	if h.alerts == nil {
		return
	}

	if err := h.alerts.Play(sound); err != nil {
		h.log.WithError(err).WithField("sound", sound).Debug("alert not played")
	}
}

// defaultAlerter is a locked player that only logs.
func defaultAlerter(log *logrus.Logger) func() Alerter {
	return func() Alerter { return alert.NewPlayer(nil, log) }
}
