// Package querycache implements the client-side query cache: query results
// addressed by composite keys, patched in place by realtime handlers and
// refetched in the background when invalidated.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/gamecafe/panelsync/internal/metrics"
)

const (
	defaultMaxEntries = 512
	defaultQueueSize  = 256
)

// ErrNoFetcher is returned by Fetch when the cache has no Fetcher.
var ErrNoFetcher = errors.New("querycache: no fetcher configured")

// Fetcher loads the current server value for a key.
type Fetcher interface {
	Fetch(ctx context.Context, key Key) (any, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, key Key) (any, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, key Key) (any, error) {
	return f(ctx, key)
}

// Entry is a point-in-time copy of one cached result.
type Entry struct {
	Key       Key       `json:"key"`
	Data      any       `json:"data,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Stale     bool      `json:"stale"`
}

type entry struct {
	key       Key
	data      any
	updatedAt time.Time
	stale     bool
	// gen counts invalidations; a refetch only lands if no newer
	// invalidation happened while it was in flight.
	gen uint64
}

// Cache is safe for concurrent use. Every read-then-write of a handler runs
// inside one Batch so no other mutation interleaves with it.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *entry]
	fetcher Fetcher
	queue   chan Key
	group   singleflight.Group
	log     *logrus.Logger
	now     func() time.Time

	maxEntries int
	queueSize  int

	observer func(Change)
	// evicted collects keys dropped by the LRU while mu is held.
	evicted []Key
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetcher sets the Fetcher used for Fetch and background refetches.
func WithFetcher(f Fetcher) Option {
	return func(c *Cache) { c.fetcher = f }
}

// WithMaxEntries bounds the number of cached results; the least recently
// used entry is evicted first.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// WithQueueSize sets the refetch queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Cache) { c.queueSize = n }
}

// WithObserver registers fn to receive every entry change. Changes are
// delivered in commit order, after the cache lock is released; fn must not
// block.
func WithObserver(fn func(Change)) Option {
	return func(c *Cache) { c.observer = fn }
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty Cache.
func New(log *logrus.Logger, opts ...Option) (*Cache, error) {
	c := &Cache{
		log:        log,
		now:        time.Now,
		maxEntries: defaultMaxEntries,
		queueSize:  defaultQueueSize,
	}
	for _, o := range opts {
		o(c)
	}

	entries, err := lru.NewWithEvict(c.maxEntries, func(_ string, e *entry) {
		c.evicted = append(c.evicted, e.key)
	})
	if err != nil {
		return nil, fmt.Errorf("create entry store: %w", err)
	}
	c.entries = entries
	c.queue = make(chan Key, c.queueSize)

	return c, nil
}

// Get returns the cached data for key, stale or not.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key.String())
	if !ok {
		return nil, false
	}

	return e.data, true
}

// Lookup returns a copy of the entry for key.
func (c *Cache) Lookup(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key.String())
	if !ok {
		return Entry{}, false
	}

	return e.snapshot(), true
}

// Set replaces the cached data for key.
func (c *Cache) Set(key Key, data any) {
	c.Batch(func(tx *Tx) { tx.Set(key, data) })
}

// Invalidate marks every entry whose key starts with prefix as stale and
// schedules a refetch for each. It returns the number of entries affected.
func (c *Cache) Invalidate(prefix Key) int {
	var n int
	c.Batch(func(tx *Tx) { n = tx.Invalidate(prefix) })

	return n
}

// InvalidateAll marks every entry stale.
func (c *Cache) InvalidateAll() int {
	var n int
	c.Batch(func(tx *Tx) { n = tx.InvalidateAll() })

	return n
}

// Remove drops the entry for key.
func (c *Cache) Remove(key Key) {
	c.Batch(func(tx *Tx) { tx.Remove(key) })
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Len()
}

// Entries returns a copy of every entry, ordered by key.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	out := make([]Entry, 0, c.entries.Len())
	for _, k := range c.entries.Keys() {
		if e, ok := c.entries.Peek(k); ok {
			out = append(out, e.snapshot())
		}
	}
	c.mu.Unlock()

	slices.SortFunc(out, func(a, b Entry) int {
		return slices.Compare(a.Key, b.Key)
	})

	return out
}

// Batch runs fn with exclusive access to the cache. Refetches scheduled by
// invalidations inside fn are enqueued after the lock is released.
func (c *Cache) Batch(fn func(tx *Tx)) {
	tx := &Tx{c: c}

	n := c.apply(tx, fn)
	metrics.CacheEntries.Set(float64(n))

	if c.observer != nil {
		for _, ch := range tx.changes {
			c.observer(ch)
		}
	}

	for _, k := range tx.refetch {
		c.enqueue(k)
	}
}

// apply runs fn under the lock. A panic in fn unwinds through the deferred
// unlock, so the cache stays usable for whoever recovers it.
func (c *Cache) apply(tx *Tx, fn func(tx *Tx)) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(tx)
	for _, k := range c.evicted {
		tx.changed(ChangeRemoved, k)
	}
	c.evicted = c.evicted[:0]

	return c.entries.Len()
}

func (c *Cache) enqueue(key Key) {
	if c.fetcher == nil {
		return
	}

	select {
	case c.queue <- key:
	default:
		c.log.WithField("key", key.String()).Warn("refetch queue full, entry stays stale")
	}
}

func (e *entry) snapshot() Entry {
	return Entry{
		Key:       slices.Clone(e.key),
		Data:      e.data,
		UpdatedAt: e.updatedAt,
		Stale:     e.stale,
	}
}
