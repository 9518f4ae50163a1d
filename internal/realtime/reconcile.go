package realtime

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/metrics"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/session"
)

// Reconciler repairs the cache after a reconnect. A short outage refreshes
// the critical keys only; a long one invalidates everything.
type Reconciler struct {
	cache  *querycache.Cache
	mirror *session.Mirror
	log    *logrus.Logger

	threshold time.Duration
	critical  CriticalKeys
	now       func() time.Time

	mu             sync.Mutex
	disconnectedAt time.Time
}

// NewReconciler creates a Reconciler. Only the threshold, critical-key and
// clock options apply.
func NewReconciler(cache *querycache.Cache, mirror *session.Mirror, log *logrus.Logger, opts ...Option) *Reconciler {
	cfg := defaultConfig(log)
	for _, o := range opts {
		o(&cfg)
	}

	return newReconciler(cache, mirror, log, cfg)
}

func newReconciler(cache *querycache.Cache, mirror *session.Mirror, log *logrus.Logger, cfg config) *Reconciler {
	return &Reconciler{
		cache:     cache,
		mirror:    mirror,
		log:       log,
		threshold: cfg.threshold,
		critical:  cfg.critical,
		now:       cfg.now,
	}
}

// Disconnected records the start of an outage.
func (r *Reconciler) Disconnected() {
	r.mu.Lock()
	r.disconnectedAt = r.now()
	r.mu.Unlock()
}

// Reconnected ends the outage and invalidates accordingly. It reports
// whether the whole cache was invalidated.
func (r *Reconciler) Reconnected() bool {
	r.mu.Lock()
	since := r.disconnectedAt
	r.disconnectedAt = time.Time{}
	r.mu.Unlock()

	var outage time.Duration
	if !since.IsZero() {
		outage = r.now().Sub(since)
	}

	if outage > r.threshold {
		n := r.cache.InvalidateAll()
		metrics.InvalidationsTotal.WithLabelValues("reconnect_full").Add(float64(n))
		r.log.WithFields(logrus.Fields{"outage": outage, "entries": n}).Info("long outage, invalidated all queries")

		return true
	}

	keys := r.critical(r.mirror.Load())

	n := 0
	r.cache.Batch(func(tx *querycache.Tx) {
		for _, k := range keys {
			if tx.InvalidateKey(k) {
				n++
			}
		}
	})

	metrics.InvalidationsTotal.WithLabelValues("reconnect_critical").Add(float64(n))
	r.log.WithFields(logrus.Fields{"outage": outage, "entries": n}).Info("short outage, invalidated critical queries")

	return false
}
