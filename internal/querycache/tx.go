package querycache

import "slices"

// Tx is the view of the cache handed to a Batch callback. It must not be
// retained after the callback returns.
type Tx struct {
	c       *Cache
	refetch []Key
	changes []Change
}

// ChangeKind names what happened to an entry.
type ChangeKind string

// Entry changes reported to an observer.
const (
	ChangeUpdated ChangeKind = "updated"
	ChangeStale   ChangeKind = "stale"
	ChangeRemoved ChangeKind = "removed"
)

// Change is one entry mutation.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Key  Key        `json:"key"`
}

// Get returns the cached data for key.
func (tx *Tx) Get(key Key) (any, bool) {
	e, ok := tx.c.entries.Get(key.String())
	if !ok {
		return nil, false
	}

	return e.data, true
}

// Set replaces the cached data for key, creating the entry if needed. The
// stale flag of an existing entry is left alone: a pending refetch still
// lands on top of the patch.
func (tx *Tx) Set(key Key, data any) {
	now := tx.c.now()

	defer tx.changed(ChangeUpdated, key)

	if e, ok := tx.c.entries.Get(key.String()); ok {
		e.data = data
		e.updatedAt = now

		return
	}

	tx.c.entries.Add(key.String(), &entry{
		key:       slices.Clone(key),
		data:      data,
		updatedAt: now,
	})
}

// Seed stores data built from a pushed event rather than a fetch. The entry
// starts stale, so the next Fetch and the refetch worker both replace it
// with the server's list.
func (tx *Tx) Seed(key Key, data any) {
	tx.Set(key, data)

	if e, ok := tx.c.entries.Peek(key.String()); ok {
		tx.markStale(e)
	}
}

// Remove drops the entry for key. The eviction callback reports the change.
func (tx *Tx) Remove(key Key) bool {
	return tx.c.entries.Remove(key.String())
}

// Invalidate marks entries under prefix stale and schedules their refetch.
func (tx *Tx) Invalidate(prefix Key) int {
	n := 0
	for _, k := range tx.c.entries.Keys() {
		e, ok := tx.c.entries.Peek(k)
		if !ok || !e.key.HasPrefix(prefix) {
			continue
		}

		tx.markStale(e)
		n++
	}

	return n
}

// InvalidateKey marks the single entry for key stale. Longer keys sharing
// the prefix are left alone.
func (tx *Tx) InvalidateKey(key Key) bool {
	e, ok := tx.c.entries.Peek(key.String())
	if !ok {
		return false
	}

	tx.markStale(e)

	return true
}

// InvalidateAll marks every entry stale.
func (tx *Tx) InvalidateAll() int {
	return tx.Invalidate(Key{})
}

func (tx *Tx) markStale(e *entry) {
	e.stale = true
	e.gen++
	tx.refetch = append(tx.refetch, slices.Clone(e.key))
	tx.changed(ChangeStale, e.key)
}

func (tx *Tx) changed(kind ChangeKind, key Key) {
	if tx.c.observer == nil {
		return
	}

	tx.changes = append(tx.changes, Change{Kind: kind, Key: slices.Clone(key)})
}
