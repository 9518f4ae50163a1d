package realtime_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gamecafe/panelsync/internal/events"
	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/realtime"
	"github.com/gamecafe/panelsync/internal/session"
)

const refreshWait = 2 * time.Second

// eventually polls cond until it holds or the wait runs out.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(refreshWait)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", what)
}

type fakeSource struct {
	mu         sync.Mutex
	me         model.Doc
	kitchens   []model.Doc
	categories []model.Doc
	err        error
}

func (f *fakeSource) Me(context.Context) (model.Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.me, f.err
}

func (f *fakeSource) Kitchens(context.Context) ([]model.Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.kitchens, f.err
}

func (f *fakeSource) Categories(context.Context) ([]model.Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.categories, f.err
}

func TestReferenceEvents_ReloadMirror(t *testing.T) {
	src := &fakeSource{
		me:         model.Doc{"_id": "u1", "name": "Ada Lovelace", "role": "manager"},
		kitchens:   []model.Doc{{"_id": "3", "name": "bar"}, {"_id": "5", "name": "terrace"}},
		categories: []model.Doc{{"_id": "6", "name": "drinks", "isAutoServed": true}},
	}

	tests := []struct {
		event string
		check func(s session.Snapshot) bool
	}{
		{events.KitchenChanged, func(s session.Snapshot) bool {
			return len(s.Kitchens) == 2 && s.Kitchens[1].ID == "5"
		}},
		{events.CategoryChanged, func(s session.Snapshot) bool {
			return len(s.Categories) == 1 && s.Categories[0].IsAutoServed
		}},
		{events.UserChanged, func(s session.Snapshot) bool {
			return s.User.Name == "Ada Lovelace" && s.User.Role == "manager"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			h := newHarness(t, realtime.WithSessionSource(src), realtime.WithWarmup(false))

			if tt.check(h.mirror.Load()) {
				t.Fatal("mirror already matches before the event")
			}

			h.emit(t, tt.event, map[string]any{})

			eventually(t, "mirror reload", func() bool { return tt.check(h.mirror.Load()) })
		})
	}
}

func TestReferenceEvents_StillInvalidateCache(t *testing.T) {
	h := newHarness(t, realtime.WithSessionSource(&fakeSource{}), realtime.WithWarmup(false))
	key := querycache.NewKey(model.PathKitchens)
	h.cache.Set(key, []model.Doc{{"_id": 3}})

	h.emit(t, events.KitchenChanged, map[string]any{})

	if !h.stale(t, key) {
		t.Error("kitchen list not invalidated")
	}
}

func TestReferenceEvents_FailedReloadKeepsMirror(t *testing.T) {
	src := &fakeSource{err: errors.New("upstream down")}
	h := newHarness(t, realtime.WithSessionSource(src), realtime.WithWarmup(false))
	before := h.mirror.Load()

	h.emit(t, events.KitchenChanged, map[string]any{})
	time.Sleep(50 * time.Millisecond)

	if got := h.mirror.Load(); len(got.Kitchens) != len(before.Kitchens) {
		t.Errorf("kitchens changed after a failed reload: %+v", got.Kitchens)
	}
}

// keyFetcher records every key it is asked for.
type keyFetcher struct {
	mu   sync.Mutex
	keys []string
}

func (f *keyFetcher) Fetch(_ context.Context, key querycache.Key) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key.String())

	return []model.Doc{}, nil
}

func (f *keyFetcher) has(key querycache.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Contains(f.keys, key.String())
}

func TestWarmup_LoadsCriticalKeysOnStart(t *testing.T) {
	f := &keyFetcher{}
	h := newHarnessWithCache(t, []querycache.Option{querycache.WithFetcher(f)})

	for _, key := range realtime.DefaultCriticalKeys(h.mirror.Load()) {
		eventually(t, "warmup of "+key.String(), func() bool {
			e, ok := h.cache.Lookup(key)
			return ok && !e.Stale
		})
	}
}

func TestWarmup_RunsAgainWhenDateChanges(t *testing.T) {
	f := &keyFetcher{}
	h := newHarnessWithCache(t, []querycache.Option{querycache.WithFetcher(f)})

	first := realtime.DefaultCriticalKeys(h.mirror.Load())[0]
	eventually(t, "initial warmup", func() bool { return f.has(first) })

	h.mirror.SetDate("2024-01-02")
	next := querycache.NewKey(model.PathOrdersToday, "2024-01-02")

	eventually(t, "warmup for the new date", func() bool { return f.has(next) })
}

func TestWarmup_Disabled(t *testing.T) {
	f := &keyFetcher{}
	h := newHarnessWithCache(t, []querycache.Option{querycache.WithFetcher(f)}, realtime.WithWarmup(false))

	h.mirror.SetDate("2024-01-02")
	time.Sleep(50 * time.Millisecond)

	if h.cache.Len() != 0 {
		t.Errorf("expected no warmed entries, got %d", h.cache.Len())
	}
}
