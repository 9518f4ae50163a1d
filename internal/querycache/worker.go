package querycache

import (
	"context"
	"fmt"
	"time"

	"github.com/gamecafe/panelsync/internal/metrics"
)

const refetchTimeout = 15 * time.Second

// Run processes scheduled refetches until the context is cancelled.
func (c *Cache) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-c.queue:
			c.refresh(ctx, key)
		}
	}
}

// Fetch returns the cached value for key when it is fresh, otherwise loads it
// through the Fetcher and stores the result. Concurrent calls for the same
// key share one request.
func (c *Cache) Fetch(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	e, ok := c.entries.Get(key.String())
	if ok && !e.stale {
		data := e.data
		c.mu.Unlock()

		return data, nil
	}
	var gen uint64
	if ok {
		gen = e.gen
	}
	c.mu.Unlock()

	return c.load(ctx, key, gen, !ok)
}

// refresh reloads a stale entry. Entries evicted or already refreshed in the
// meantime are skipped.
func (c *Cache) refresh(ctx context.Context, key Key) {
	c.mu.Lock()
	e, ok := c.entries.Peek(key.String())
	if !ok || !e.stale {
		c.mu.Unlock()
		return
	}
	gen := e.gen
	c.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, refetchTimeout)
	defer cancel()

	if _, err := c.load(fetchCtx, key, gen, false); err != nil {
		c.log.WithError(err).WithField("key", key.String()).Warn("refetch failed")
	}
}

func (c *Cache) load(ctx context.Context, key Key, gen uint64, create bool) (any, error) {
	if c.fetcher == nil {
		return nil, ErrNoFetcher
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		start := time.Now()
		data, err := c.fetcher.Fetch(ctx, key)
		metrics.RefetchDuration.Observe(time.Since(start).Seconds())

		return data, err
	})
	if err != nil {
		metrics.RefetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", key.String(), err)
	}

	if c.store(key, v, gen, create) {
		metrics.RefetchTotal.WithLabelValues("ok").Inc()
	} else {
		metrics.RefetchTotal.WithLabelValues("discarded").Inc()
	}

	return v, nil
}

// store writes a fetched value unless the entry was invalidated again after
// the fetch started. It reports whether the value landed.
func (c *Cache) store(key Key, data any, gen uint64, create bool) bool {
	landed := false

	c.Batch(func(tx *Tx) {
		e, ok := c.entries.Get(key.String())
		switch {
		case !ok && create:
			tx.Set(key, data)
			landed = true
		case ok && e.gen == gen:
			e.data = data
			e.stale = false
			e.updatedAt = c.now()
			tx.changed(ChangeUpdated, key)
			landed = true
		}
	})

	return landed
}
