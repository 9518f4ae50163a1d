package realtime

import (
	"encoding/json"

	"github.com/gamecafe/panelsync/internal/alert"
	"github.com/gamecafe/panelsync/internal/events"
	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/session"
)

type orderPayload struct {
	Order model.Doc `json:"order"`
}

type ordersPayload struct {
	Orders []model.Doc `json:"orders"`
}

type collectionPayload struct {
	Collection model.Doc `json:"collection"`
}

type multipleOrderPayload struct {
	Orders []model.Doc `json:"orders"`
	Table  model.Doc   `json:"table"`
	User   any         `json:"user"`
}

func (h *handlers) orderCreated(data json.RawMessage) {
	var p orderPayload
	if !h.decode(events.OrderCreated, data, &p) || p.Order == nil {
		return
	}

	snap := h.mirror.Load()
	key := ordersTodayKey(snap)

	h.cache.Batch(func(tx *querycache.Tx) {
		list, ok := cachedDocs(tx, key)
		if !ok {
			return
		}

		order, ok := resolveTable(tx, snap, p.Order)
		if !ok {
			invalidate(tx, events.OrderCreated, key)
			return
		}

		if next, changed := model.AppendIfAbsent(list, order); changed {
			tx.Set(key, next)
			patched(events.OrderCreated)
		}
	})

	if sound, ok := orderSound(snap, p.Order); ok {
		h.play(sound)
	}
}

func (h *handlers) orderUpdated(data json.RawMessage) {
	var p ordersPayload
	if !h.decode(events.OrderUpdated, data, &p) || len(p.Orders) == 0 {
		return
	}

	snap := h.mirror.Load()
	key := ordersTodayKey(snap)

	h.cache.Batch(func(tx *querycache.Tx) {
		today, haveToday := cachedDocs(tx, key)
		todayChanged, todayInvalid := false, false

		for _, order := range p.Orders {
			if tableID, ok := order.Ref(model.FieldTable); ok {
				tk := tableOrdersKey(tableID)
				if list, ok := cachedDocs(tx, tk); ok {
					if next, changed := model.Replace(list, order); changed {
						tx.Set(tk, next)
					}
				}
			}

			if !haveToday || todayInvalid {
				continue
			}

			resolved, ok := resolveTable(tx, snap, order)
			if !ok {
				invalidate(tx, events.OrderUpdated, key)
				todayInvalid = true

				continue
			}

			if next, changed := model.Replace(today, resolved); changed {
				today = next
				todayChanged = true
			}
		}

		if todayChanged && !todayInvalid {
			tx.Set(key, today)
			patched(events.OrderUpdated)
		}
	})
}

// orderDeleted removes the order from today's orders, the table's orders and
// the table row's order ids in one batch.
func (h *handlers) orderDeleted(data json.RawMessage) {
	var p orderPayload
	if !h.decode(events.OrderDeleted, data, &p) {
		return
	}

	id, ok := p.Order.ID()
	if !ok {
		return
	}

	snap := h.mirror.Load()
	tableID, hasTable := p.Order.Ref(model.FieldTable)

	written := 0
	set := func(tx *querycache.Tx, key querycache.Key, list []model.Doc) {
		tx.Set(key, list)
		written++
	}

	h.cache.Batch(func(tx *querycache.Tx) {
		key := ordersTodayKey(snap)
		if list, ok := cachedDocs(tx, key); ok {
			if next, changed := model.Remove(list, id); changed {
				set(tx, key, next)
			}
		}

		if !hasTable {
			return
		}

		tk := tableOrdersKey(tableID)
		if list, ok := cachedDocs(tx, tk); ok {
			if next, changed := model.Remove(list, id); changed {
				set(tx, tk, next)
			}
		}

		tablesKey := querycache.NewKey(model.PathTables, locationOf(snap, p.Order), snap.Date)
		tables, ok := cachedDocs(tx, tablesKey)
		if !ok {
			return
		}

		row, ok := model.Find(tables, tableID)
		if !ok {
			return
		}

		refs, changed := model.RemoveRef(row[model.FieldOrders], id)
		if !changed {
			return
		}

		if next, ok := model.Replace(tables, row.With(model.FieldOrders, refs)); ok {
			set(tx, tablesKey, next)
		}
	})

	if written > 0 {
		patched(events.OrderDeleted)
	}
}

func (h *handlers) collectionChanged(data json.RawMessage) {
	var p collectionPayload
	if !h.decode(events.CollectionChanged, data, &p) || p.Collection == nil {
		return
	}

	snap := h.mirror.Load()
	key := querycache.NewKey(model.PathCollectionsToday, snap.Date)

	h.cache.Batch(func(tx *querycache.Tx) {
		list, ok := cachedDocs(tx, key)
		if !ok {
			return
		}

		collection, ok := resolveTable(tx, snap, p.Collection)
		if !ok {
			invalidate(tx, events.CollectionChanged, key)
			return
		}

		tx.Set(key, model.Upsert(list, collection))
		patched(events.CollectionChanged)
	})
}

func (h *handlers) createMultipleOrder(data json.RawMessage) {
	var p multipleOrderPayload
	if !h.decode(events.CreateMultipleOrder, data, &p) {
		return
	}

	snap := h.mirror.Load()
	h.cache.Batch(func(tx *querycache.Tx) {
		invalidate(tx, events.CreateMultipleOrder, ordersTodayKey(snap))
	})

	if p.Table != nil && p.Table.String(model.FieldType) == model.TableTypeTakeout &&
		selfOriginated(snap, p.User) && snap.OpenTakeawayPayment != nil {
		snap.OpenTakeawayPayment(p.Table)
	}

	played := make(map[model.ID]bool)
	for _, order := range p.Orders {
		if locationOf(snap, order) != snap.LocationID {
			continue
		}

		kitchenID, ok := order.Ref(model.FieldKitchen)
		if !ok || played[kitchenID] {
			continue
		}

		kitchen, ok := snap.Kitchen(kitchenID)
		if !ok || !snap.SubscribedTo(kitchen) {
			continue
		}

		played[kitchenID] = true
		h.play(soundName(kitchen))
	}
}

// orderSound decides whether a pushed order should be announced and with
// which sound.
func orderSound(s session.Snapshot, order model.Doc) (string, bool) {
	if selfOriginated(s, order[model.FieldCreatedBy]) {
		return "", false
	}

	if model.IsTerminalStatus(order.String(model.FieldStatus)) {
		return "", false
	}

	if locationOf(s, order) != s.LocationID {
		return "", false
	}

	if categoryID, ok := order.Ref(model.FieldCategory); ok {
		if c, ok := s.Category(categoryID); ok && c.IsAutoServed {
			return "", false
		}
	}

	kitchenID, ok := order.Ref(model.FieldKitchen)
	if !ok {
		return "", false
	}

	kitchen, ok := s.Kitchen(kitchenID)
	if !ok || !s.SubscribedTo(kitchen) {
		return "", false
	}

	return soundName(kitchen), true
}

func soundName(k session.Kitchen) string {
	if k.Name != "" {
		return k.Name
	}

	return alert.SoundOrder
}
