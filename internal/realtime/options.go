package realtime

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/session"
	"github.com/gamecafe/panelsync/internal/socket"
)

// DefaultReconnectThreshold is the outage length above which a reconnect
// invalidates the whole cache instead of the critical keys.
const DefaultReconnectThreshold = 30 * time.Second

// CriticalKeys returns the keys refreshed after a short outage.
type CriticalKeys func(s session.Snapshot) []querycache.Key

// DefaultCriticalKeys covers the highest-traffic views for the current
// location and date.
func DefaultCriticalKeys(s session.Snapshot) []querycache.Key {
	return []querycache.Key{
		querycache.NewKey(model.PathOrdersToday, s.Date),
		querycache.NewKey(model.PathTables, s.LocationID, s.Date),
		querycache.NewKey(model.PathCollectionsToday, s.Date),
		querycache.NewKey(model.PathNotificationsNew),
		querycache.NewKey(model.PathNotificationsAll),
		querycache.NewKey(model.PathStockQuery, s.LocationID),
	}
}

// SessionSource loads the session's reference data from the panel API.
// *client.Client implements it.
type SessionSource interface {
	Me(ctx context.Context) (model.Doc, error)
	Kitchens(ctx context.Context) ([]model.Doc, error)
	Categories(ctx context.Context) ([]model.Doc, error)
}

type config struct {
	dial       func() Conn
	newAlerter func() Alerter
	threshold  time.Duration
	critical   CriticalKeys
	now        func() time.Time
	source     SessionSource
	warmup     bool
}

func defaultConfig(log *logrus.Logger) config {
	return config{
		newAlerter: defaultAlerter(log),
		threshold:  DefaultReconnectThreshold,
		critical:   DefaultCriticalKeys,
		now:        time.Now,
		warmup:     true,
	}
}

// Option configures a Sync or a Reconciler.
type Option func(*config)

// WithSocket connects to url with a socket.Socket.
func WithSocket(url string, opts socket.Options) Option {
	return func(c *config) {
		c.dial = func() Conn { return socket.New(url, opts) }
	}
}

// WithDialer supplies the connection used by Start.
func WithDialer(dial func() Conn) Option {
	return func(c *config) { c.dial = dial }
}

// WithAlerter supplies the alert player created on every Start.
func WithAlerter(fn func() Alerter) Option {
	return func(c *config) { c.newAlerter = fn }
}

// WithReconnectThreshold sets the outage length that triggers a full
// invalidation.
func WithReconnectThreshold(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.threshold = d
		}
	}
}

// WithCriticalKeys replaces the keys refreshed after a short outage.
func WithCriticalKeys(fn CriticalKeys) Option {
	return func(c *config) {
		if fn != nil {
			c.critical = fn
		}
	}
}

// WithClock overrides the time source used to measure outages.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithSessionSource reloads the mirror's kitchens, categories and user from
// src whenever the server reports that one of them changed.
func WithSessionSource(src SessionSource) Option {
	return func(c *config) { c.source = src }
}

// WithWarmup controls whether Start loads the critical keys, and loads them
// again whenever the session location or date changes. It is on by default.
func WithWarmup(enabled bool) Option {
	return func(c *config) { c.warmup = enabled }
}
