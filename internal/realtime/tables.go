package realtime

import (
	"encoding/json"
	"slices"

	"github.com/gamecafe/panelsync/internal/events"
	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/session"
	"github.com/gamecafe/panelsync/internal/socket"
)

type tablePayload struct {
	Table model.Doc `json:"table"`
}

type gameplayPayload struct {
	Gameplay model.Doc `json:"gameplay"`
	Table    any       `json:"table"`
	User     any       `json:"user"`
}

type notificationPayload struct {
	Notification model.Doc `json:"notification"`
}

// patchTables runs fn against the tables list the pushed table belongs to.
// fn returns the new list, or false to leave the cache untouched. With
// seedMissing, an absent list is stored as a stale single-row entry instead
// of calling fn.
func (h *handlers) patchTables(event string, data json.RawMessage, seedMissing bool, fn func(list []model.Doc, present bool, table model.Doc) ([]model.Doc, bool)) {
	var p tablePayload
	if !h.decode(event, data, &p) || p.Table == nil {
		return
	}

	if _, ok := p.Table.ID(); !ok {
		return
	}

	key := tablesKey(h.mirror.Load(), p.Table)

	h.cache.Batch(func(tx *querycache.Tx) {
		list, present := cachedDocs(tx, key)
		if !present && seedMissing {
			tx.Seed(key, []model.Doc{p.Table})
			patched(event)

			return
		}

		if next, ok := fn(list, present, p.Table); ok {
			tx.Set(key, next)
			patched(event)
		}
	})
}

// singleTableChanged seeds a missing list with the one row it knows about.
// The seeded entry is stale so the full list is fetched on the next read.
func (h *handlers) singleTableChanged(data json.RawMessage) {
	h.patchTables(events.SingleTableChanged, data, true, func(list []model.Doc, _ bool, table model.Doc) ([]model.Doc, bool) {
		if next, ok := model.MergeByID(list, table); ok {
			return next, true
		}

		return model.Append(list, table), true
	})
}

func (h *handlers) tableCreated(data json.RawMessage) {
	h.patchTables(events.TableCreated, data, false, func(list []model.Doc, present bool, table model.Doc) ([]model.Doc, bool) {
		if !present {
			return nil, false
		}

		return model.AppendIfAbsent(list, table)
	})
}

func (h *handlers) tableDeleted(data json.RawMessage) {
	h.patchTables(events.TableDeleted, data, false, func(list []model.Doc, present bool, table model.Doc) ([]model.Doc, bool) {
		if !present {
			return nil, false
		}

		id, _ := table.ID()

		return model.Remove(list, id)
	})
}

// tableClosed copies only the finish time onto the cached row.
func (h *handlers) tableClosed(data json.RawMessage) {
	h.patchTables(events.TableClosed, data, false, func(list []model.Doc, present bool, table model.Doc) ([]model.Doc, bool) {
		finish, ok := table[model.FieldFinishHour]
		if !present || !ok {
			return nil, false
		}

		id, _ := table.ID()
		row, ok := model.Find(list, id)
		if !ok {
			return nil, false
		}

		return model.Replace(list, row.With(model.FieldFinishHour, finish))
	})
}

// splice applies one gameplay change to a table's gameplays.
type splice func(gameplays []model.Doc, gameplay model.Doc) ([]model.Doc, bool)

func spliceCreated(gameplays []model.Doc, gameplay model.Doc) ([]model.Doc, bool) {
	return model.AppendIfAbsent(gameplays, gameplay)
}

func spliceUpdated(gameplays []model.Doc, gameplay model.Doc) ([]model.Doc, bool) {
	return model.Replace(gameplays, gameplay)
}

func spliceDeleted(gameplays []model.Doc, gameplay model.Doc) ([]model.Doc, bool) {
	id, ok := gameplay.ID()
	if !ok {
		return gameplays, false
	}

	return model.Remove(gameplays, id)
}

// gameplay returns the handler for one gameplay event. Changes made by the
// session user are already applied locally and are skipped.
func (h *handlers) gameplay(event string, apply splice) socket.Handler {
	return func(data json.RawMessage) {
		var p gameplayPayload
		if !h.decode(event, data, &p) || p.Gameplay == nil {
			return
		}

		snap := h.mirror.Load()
		if selfOriginated(snap, p.User) {
			return
		}

		tableID, ok := model.IDOf(p.Table)
		if !ok {
			return
		}

		key := querycache.NewKey(model.PathTables, snap.LocationID, snap.Date)
		if doc, isDoc := p.Table.(map[string]any); isDoc {
			key = tablesKey(snap, doc)
		}

		h.cache.Batch(func(tx *querycache.Tx) {
			list, ok := cachedDocs(tx, key)
			if !ok {
				return
			}

			row, ok := model.Find(list, tableID)
			if !ok {
				invalidate(tx, event, key)
				return
			}

			gameplays, changed := apply(row.NestedDocs(model.FieldGameplays), p.Gameplay)
			if !changed {
				return
			}

			if next, ok := model.Replace(list, row.With(model.FieldGameplays, gameplays)); ok {
				tx.Set(key, next)
				patched(event)
			}
		})
	}
}

// notificationChanged refreshes the notification queries when the session
// user is a recipient that has not seen the notification yet.
func (h *handlers) notificationChanged(data json.RawMessage) {
	var p notificationPayload
	if !h.decode(events.NotificationChanged, data, &p) || p.Notification == nil {
		return
	}

	if !notifies(h.mirror.Load(), p.Notification) {
		return
	}

	h.cache.Batch(func(tx *querycache.Tx) {
		invalidate(tx, events.NotificationChanged, querycache.NewKey(model.PathNotificationsNew))
		invalidate(tx, events.NotificationChanged, querycache.NewKey(model.PathNotificationsAll))
	})
}

func notifies(s session.Snapshot, n model.Doc) bool {
	if s.User.ID == "" {
		return false
	}

	if slices.Contains(model.IDs(n[model.FieldSelectedUsers]), s.User.ID) {
		return true
	}

	return s.User.Role != "" &&
		slices.Contains(model.IDs(n[model.FieldSelectedRoles]), s.User.Role) &&
		!slices.Contains(model.IDs(n[model.FieldSeenBy]), s.User.ID)
}
