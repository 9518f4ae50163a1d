package realtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gamecafe/panelsync/internal/events"
	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/realtime"
	"github.com/gamecafe/panelsync/internal/session"
	"github.com/gamecafe/panelsync/internal/socket"
)

func TestSync_StartIsIdempotent(t *testing.T) {
	h := newHarness(t)

	if err := h.sync.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if h.dials != 1 {
		t.Errorf("expected one connection, got %d", h.dials)
	}
	if h.conn.opened != 1 {
		t.Errorf("expected one Open, got %d", h.conn.opened)
	}
}

func TestSync_StopSilencesRetainedConnection(t *testing.T) {
	h := newHarness(t)
	h.cache.Set(tablesKey(), []model.Doc{{"_id": 4}})
	retained := h.conn

	if err := h.sync.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	h.emit(t, events.TableCreated, map[string]any{"table": map[string]any{"_id": 5}})
	h.emit(t, "tableChanged", map[string]any{})
	h.emit(t, events.Reset, map[string]any{})

	if retained != h.conn {
		t.Fatal("Stop must not dial")
	}
	if got := h.docs(t, tablesKey()); len(got) != 1 {
		t.Errorf("handler fired after Stop: %v", got)
	}
	if h.stale(t, tablesKey()) {
		t.Error("registry handler fired after Stop")
	}
	if !h.alerts.closed {
		t.Error("alert player not closed")
	}
	if h.sync.State() != socket.StateIdle {
		t.Errorf("expected idle after Stop, got %s", h.sync.State())
	}
	if err := h.sync.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestSync_RestartAfterStopDialsAgain(t *testing.T) {
	h := newHarness(t)
	first := h.conn

	if err := h.sync.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := h.sync.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if h.dials != 2 || h.conn == first {
		t.Errorf("expected a fresh connection, dials = %d", h.dials)
	}
}

func TestSync_StartWithoutSocket(t *testing.T) {
	cache, err := querycache.New(testLogger())
	if err != nil {
		t.Fatal(err)
	}

	s := realtime.New(cache, session.NewMirror(session.Snapshot{}), testLogger())
	if err := s.Start(context.Background()); !errors.Is(err, realtime.ErrNoDialer) {
		t.Errorf("expected ErrNoDialer, got %v", err)
	}
}

func TestSync_RegistryEventsInvalidatePrefixes(t *testing.T) {
	for _, name := range events.Names() {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			prefixes, _ := events.Prefixes(name)

			var keys []querycache.Key
			for _, p := range prefixes {
				k := append(append(querycache.Key{}, p...), "1", testDate)
				h.cache.Set(k, []model.Doc{})
				keys = append(keys, k)
			}
			unrelated := querycache.NewKey("/unrelated")
			h.cache.Set(unrelated, []model.Doc{})

			h.emit(t, name, map[string]any{})

			for _, k := range keys {
				if !h.stale(t, k) {
					t.Errorf("%s did not invalidate %s", name, k)
				}
			}
			if h.stale(t, unrelated) {
				t.Errorf("%s invalidated an unrelated key", name)
			}
		})
	}
}

func TestSync_ServerDisconnectTriggersReconnect(t *testing.T) {
	h := newHarness(t)

	h.emit(t, events.Disconnect, socket.DisconnectInfo{Reason: socket.ReasonTransportClose})
	if n := h.conn.Reconnects(); n != 0 {
		t.Errorf("transport drops are retried by the socket, got %d explicit reconnects", n)
	}

	h.emit(t, events.Disconnect, socket.DisconnectInfo{Reason: socket.ReasonServerDisconnect})
	if n := h.conn.Reconnects(); n != 1 {
		t.Errorf("expected one explicit reconnect, got %d", n)
	}
}

func TestSync_ReconnectRunsReconciler(t *testing.T) {
	h := newHarness(t)
	critical := ordersKey()
	other := querycache.NewKey(model.PathCategories)
	h.cache.Set(critical, []model.Doc{})
	h.cache.Set(other, []model.Doc{})

	h.emit(t, events.Disconnect, socket.DisconnectInfo{Reason: socket.ReasonTransportClose})
	h.emit(t, events.Reconnect, socket.AttemptInfo{Attempt: 1})

	if !h.stale(t, critical) {
		t.Error("critical key not refreshed after a short outage")
	}
	if h.stale(t, other) {
		t.Error("non-critical key refreshed after a short outage")
	}
}
