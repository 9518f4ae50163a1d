package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/session"
)

const (
	refreshTimeout = 15 * time.Second
	warmParallel   = 4
)

// refresher keeps what handlers depend on loaded: the critical keys in the
// cache and the reference data in the mirror. A single goroutine serves
// every request; a request made while a load runs queues one more load.
type refresher struct {
	cache  *querycache.Cache
	mirror *session.Mirror
	src    SessionSource
	keys   CriticalKeys
	log    *logrus.Logger

	warm       chan struct{}
	kitchens   chan struct{}
	categories chan struct{}
	user       chan struct{}
}

func newRefresher(cache *querycache.Cache, mirror *session.Mirror, log *logrus.Logger, cfg config) *refresher {
	return &refresher{
		cache:      cache,
		mirror:     mirror,
		src:        cfg.source,
		keys:       cfg.critical,
		log:        log,
		warm:       make(chan struct{}, 1),
		kitchens:   make(chan struct{}, 1),
		categories: make(chan struct{}, 1),
		user:       make(chan struct{}, 1),
	}
}

func request(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// sessionChanged requests a warmup when the location or date moves, since
// the critical keys are scoped by both.
func (r *refresher) sessionChanged(prev, next session.Snapshot) {
	if prev.LocationID != next.LocationID || prev.Date != next.Date {
		request(r.warm)
	}
}

// Run serves requests until ctx is cancelled.
func (r *refresher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.warm:
			r.warmup(ctx)
		case <-r.kitchens:
			r.load(ctx, "kitchens", r.loadKitchens)
		case <-r.categories:
			r.load(ctx, "categories", r.loadCategories)
		case <-r.user:
			r.load(ctx, "user", r.loadUser)
		}
	}
}

// warmup fetches every critical key for the current session. Keys already
// fresh are served from the cache without a request.
func (r *refresher) warmup(ctx context.Context) {
	keys := r.keys(r.mirror.Load())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmParallel)

	for _, key := range keys {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, refreshTimeout)
			defer cancel()

			if _, err := r.cache.Fetch(fetchCtx, key); err != nil && !errors.Is(err, querycache.ErrNoFetcher) {
				r.log.WithError(err).WithField("key", key.String()).Warn("warmup fetch failed")
			}

			return nil
		})
	}

	g.Wait() //nolint:errcheck // failures are logged per key
	r.log.WithField("keys", len(keys)).Debug("critical keys warmed")
}

func (r *refresher) load(ctx context.Context, what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		r.log.WithError(err).WithField("data", what).Warn("session reload failed, keeping previous value")
		return
	}

	r.log.WithField("data", what).Debug("session reloaded")
}

func (r *refresher) loadKitchens(ctx context.Context) error {
	docs, err := r.src.Kitchens(ctx)
	if err != nil {
		return err
	}

	r.mirror.SetKitchens(session.KitchensFromDocs(docs))

	return nil
}

func (r *refresher) loadCategories(ctx context.Context) error {
	docs, err := r.src.Categories(ctx)
	if err != nil {
		return err
	}

	r.mirror.SetCategories(session.CategoriesFromDocs(docs))

	return nil
}

func (r *refresher) loadUser(ctx context.Context) error {
	me, err := r.src.Me(ctx)
	if err != nil {
		return err
	}

	r.mirror.SetUser(session.UserFromDoc(me))

	return nil
}
