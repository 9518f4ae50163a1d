package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/metrics"
	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/session"
	"github.com/gamecafe/panelsync/internal/socket"
)

// decode unmarshals an event payload. A failure is logged and counted and the
// event is dropped.
func (h *handlers) decode(event string, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	if err := json.Unmarshal(data, v); err != nil {
		metrics.HandlerErrorsTotal.WithLabelValues(event).Inc()
		h.log.WithError(fmt.Errorf("decode %s payload: %w", event, err)).Warn("dropping event")

		return false
	}

	return true
}

func (h *handlers) invalidateRegistry(event string, prefixes []querycache.Key) socket.Handler {
	return func(json.RawMessage) {
		n := 0
		h.cache.Batch(func(tx *querycache.Tx) {
			for _, p := range prefixes {
				n += tx.Invalidate(p)
			}
		})

		metrics.InvalidationsTotal.WithLabelValues("registry").Add(float64(n))
		h.log.WithFields(logrus.Fields{"event": event, "entries": n}).Debug("registry invalidation")
	}
}

// reset means the server could not replay what was missed.
func (h *handlers) reset(data json.RawMessage) {
	var msg socket.ResetMsg
	h.decode("reset", data, &msg)

	n := h.cache.InvalidateAll()
	metrics.InvalidationsTotal.WithLabelValues("reset").Add(float64(n))
	h.log.WithField("reason", msg.Reason).Warn("replay window lost, invalidated all queries")
}

// invalidate marks key stale inside tx and counts it.
func invalidate(tx *querycache.Tx, event string, key querycache.Key) {
	n := tx.Invalidate(key)
	metrics.InvalidationsTotal.WithLabelValues(event).Add(float64(n))
}

func patched(event string) {
	metrics.PatchesTotal.WithLabelValues(event).Inc()
}

// cachedDocs reads a cached list. A missing entry or a non-list value both
// report false.
func cachedDocs(tx *querycache.Tx, key querycache.Key) ([]model.Doc, bool) {
	v, ok := tx.Get(key)
	if !ok {
		return nil, false
	}

	return model.Docs(v)
}

func ordersTodayKey(s session.Snapshot) querycache.Key {
	return querycache.NewKey(model.PathOrdersToday, s.Date)
}

func tableOrdersKey(table model.ID) querycache.Key {
	return querycache.NewKey(model.PathTableOrders, table)
}

// tablesKey locates the tables list a pushed table belongs to, defaulting to
// the session's location and date for fields the table does not carry.
func tablesKey(s session.Snapshot, table model.Doc) querycache.Key {
	loc := s.LocationID
	if id, ok := table.Ref(model.FieldLocation); ok {
		loc = id
	}

	date := s.Date
	if d := table.String(model.FieldDate); d != "" {
		date = d
	}

	return querycache.NewKey(model.PathTables, loc, date)
}

// locationOf returns the document's location, falling back to the session's.
func locationOf(s session.Snapshot, d model.Doc) model.ID {
	if id, ok := d.Ref(model.FieldLocation); ok {
		return id
	}

	return s.LocationID
}

// resolveTable replaces a bare table id on doc with the cached table row for
// the doc's location and the session date. Docs without a table, or with an
// already populated one, resolve unchanged. It reports false when the row
// cannot be found.
func resolveTable(tx *querycache.Tx, s session.Snapshot, doc model.Doc) (model.Doc, bool) {
	raw, present := doc[model.FieldTable]
	if !present || raw == nil {
		return doc, true
	}

	if _, populated := doc.Object(model.FieldTable); populated {
		return doc, true
	}

	id, ok := model.IDOf(raw)
	if !ok {
		return doc, true
	}

	tables, ok := cachedDocs(tx, querycache.NewKey(model.PathTables, locationOf(s, doc), s.Date))
	if !ok {
		return nil, false
	}

	row, ok := model.Find(tables, id)
	if !ok {
		return nil, false
	}

	return doc.With(model.FieldTable, row), true
}

// selfOriginated reports whether ref names the session user.
func selfOriginated(s session.Snapshot, ref any) bool {
	id, ok := model.IDOf(ref)
	return ok && s.User.ID != "" && id == s.User.ID
}
