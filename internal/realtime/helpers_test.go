package realtime_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/realtime"
	"github.com/gamecafe/panelsync/internal/session"
	"github.com/gamecafe/panelsync/internal/socket"
)

const testDate = "2024-01-01"

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// retainedConn is a real socket whose Open never dials, so tests can push
// events through its handler table with Dispatch.
type retainedConn struct {
	*socket.Socket

	mu         sync.Mutex
	opened     int
	reconnects int
}

func (c *retainedConn) Open(context.Context) {
	c.mu.Lock()
	c.opened++
	c.mu.Unlock()
}

func (c *retainedConn) Reconnect() {
	c.mu.Lock()
	c.reconnects++
	c.mu.Unlock()
}

func (c *retainedConn) Reconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reconnects
}

type fakeAlerter struct {
	mu     sync.Mutex
	played []string
	closed bool
}

func (a *fakeAlerter) Play(sound string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.played = append(a.played, sound)

	return nil
}

func (a *fakeAlerter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true

	return nil
}

func (a *fakeAlerter) Played() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.played...)
}

type harness struct {
	cache  *querycache.Cache
	mirror *session.Mirror
	sync   *realtime.Sync
	conn   *retainedConn
	alerts *fakeAlerter
	dials  int
}

func testSnapshot() session.Snapshot {
	return session.Snapshot{
		User:       session.User{ID: "u1", Name: "Ada", Role: "waiter"},
		LocationID: "1",
		Date:       testDate,
		Kitchens: []session.Kitchen{
			{ID: "3", Name: "bar", SoundRoles: []model.ID{"waiter"}},
			{ID: "4", Name: "kitchen", SoundRoles: []model.ID{"waiter"}},
			{ID: "8", Name: "grill", SoundRoles: []model.ID{"waiter"}, SelectedUsers: []model.ID{"u9"}},
			{ID: "9", Name: "pastry", SoundRoles: []model.ID{"manager"}},
		},
		Categories: []session.Category{
			{ID: "6", Name: "drinks"},
			{ID: "7", Name: "water", IsAutoServed: true},
		},
	}
}

// newHarness starts a Sync on a retained socket.
func newHarness(t *testing.T, opts ...realtime.Option) *harness {
	t.Helper()

	return newHarnessWithCache(t, nil, opts...)
}

// newHarnessWithCache is newHarness with cache options, such as a fetcher.
func newHarnessWithCache(t *testing.T, cacheOpts []querycache.Option, opts ...realtime.Option) *harness {
	t.Helper()

	log := testLogger()
	cache, err := querycache.New(log, cacheOpts...)
	if err != nil {
		t.Fatalf("querycache.New: %v", err)
	}

	h := &harness{
		cache:  cache,
		mirror: session.NewMirror(testSnapshot()),
		alerts: &fakeAlerter{},
	}

	dial := func() realtime.Conn {
		h.dials++
		h.conn = &retainedConn{Socket: socket.New("http://127.0.0.1:1", socket.Options{Logger: log})}

		return h.conn
	}

	opts = append([]realtime.Option{
		realtime.WithDialer(dial),
		realtime.WithAlerter(func() realtime.Alerter { return h.alerts }),
	}, opts...)

	h.sync = realtime.New(cache, h.mirror, log, opts...)
	if err := h.sync.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { h.sync.Stop() }) //nolint:errcheck

	return h
}

// emit pushes an event through the socket's handler table.
func (h *harness) emit(t *testing.T, event string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}

	h.conn.Dispatch(event, data)
}

func (h *harness) docs(t *testing.T, key querycache.Key) []model.Doc {
	t.Helper()

	v, ok := h.cache.Get(key)
	if !ok {
		t.Fatalf("no cache entry for %s", key)
	}

	docs, ok := model.Docs(v)
	if !ok {
		t.Fatalf("cache entry %s is %T, not a list", key, v)
	}

	return docs
}

func (h *harness) stale(t *testing.T, key querycache.Key) bool {
	t.Helper()

	e, ok := h.cache.Lookup(key)
	if !ok {
		t.Fatalf("no cache entry for %s", key)
	}

	return e.Stale
}

func tablesKey() querycache.Key {
	return querycache.NewKey(model.PathTables, 1, testDate)
}

func ordersKey() querycache.Key {
	return querycache.NewKey(model.PathOrdersToday, testDate)
}

// tablesFetcher serves a fixed tables list and counts calls.
type tablesFetcher struct {
	mu    sync.Mutex
	calls int
	list  []model.Doc
}

func (f *tablesFetcher) Fetch(context.Context, querycache.Key) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	return f.list, nil
}

func (f *tablesFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}
