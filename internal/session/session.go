// Package session mirrors the panel's UI-scoped context (current user,
// selected location and date, reference lists and UI callbacks) for event
// handlers that outlive any single change of that context.
package session

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gamecafe/panelsync/internal/model"
)

// DateLayout is the layout of Snapshot.Date.
const DateLayout = "2006-01-02"

// User is the signed-in panel user.
type User struct {
	ID   model.ID `json:"_id"`
	Name string   `json:"name,omitempty"`
	Role model.ID `json:"role"`
}

// Kitchen is an order-preparation channel with its alert subscriptions.
type Kitchen struct {
	ID            model.ID   `json:"_id"`
	Name          string     `json:"name,omitempty"`
	SoundRoles    []model.ID `json:"soundRoles,omitempty"`
	SelectedUsers []model.ID `json:"selectedUsers,omitempty"`
	Locations     []model.ID `json:"locations,omitempty"`
}

// Category is a menu category.
type Category struct {
	ID           model.ID `json:"_id"`
	Name         string   `json:"name,omitempty"`
	IsAutoServed bool     `json:"isAutoServed,omitempty"`
}

// Snapshot is the context a handler observes at call time.
type Snapshot struct {
	User       User       `json:"user"`
	LocationID model.ID   `json:"locationId"`
	Date       string     `json:"date"`
	Kitchens   []Kitchen  `json:"kitchens,omitempty"`
	Categories []Category `json:"categories,omitempty"`

	// OpenTakeawayPayment starts the takeaway payment flow for a table.
	OpenTakeawayPayment func(table model.Doc) `json:"-"`
}

// Kitchen returns the kitchen with the given id.
func (s *Snapshot) Kitchen(id model.ID) (Kitchen, bool) {
	i := slices.IndexFunc(s.Kitchens, func(k Kitchen) bool { return k.ID == id })
	if i < 0 {
		return Kitchen{}, false
	}

	return s.Kitchens[i], true
}

// Category returns the category with the given id.
func (s *Snapshot) Category(id model.ID) (Category, bool) {
	i := slices.IndexFunc(s.Categories, func(c Category) bool { return c.ID == id })
	if i < 0 {
		return Category{}, false
	}

	return s.Categories[i], true
}

// SubscribedTo reports whether the user should hear alerts for a kitchen:
// their role is one of the kitchen's sound roles and, when the kitchen
// restricts alerts to selected users, they are one of them.
func (s *Snapshot) SubscribedTo(k Kitchen) bool {
	if !slices.Contains(k.SoundRoles, s.User.Role) {
		return false
	}

	if len(k.SelectedUsers) > 0 && !slices.Contains(k.SelectedUsers, s.User.ID) {
		return false
	}

	return true
}

// Mirror holds the current Snapshot. Writers replace it whole, so a reader
// never observes a half-applied update.
type Mirror struct {
	v atomic.Pointer[Snapshot]

	mu        sync.Mutex
	listeners map[uint64]func(prev, next Snapshot)
	nextID    uint64
}

// NewMirror creates a Mirror holding initial.
func NewMirror(initial Snapshot) *Mirror {
	m := &Mirror{}
	m.Store(initial)

	return m
}

// Load returns a copy of the current snapshot.
func (m *Mirror) Load() Snapshot {
	if s := m.v.Load(); s != nil {
		return *s
	}

	return Snapshot{}
}

// Store replaces the snapshot.
func (m *Mirror) Store(s Snapshot) {
	s.Kitchens = slices.Clone(s.Kitchens)
	s.Categories = slices.Clone(s.Categories)
	old := m.v.Swap(&s)
	m.notify(old, &s)
}

// Update applies fn to a copy of the current snapshot and stores the result.
// Concurrent Updates retry until theirs lands on the value they read.
func (m *Mirror) Update(fn func(s *Snapshot)) {
	for {
		old := m.v.Load()

		var next Snapshot
		if old != nil {
			next = *old
		}
		next.Kitchens = slices.Clone(next.Kitchens)
		next.Categories = slices.Clone(next.Categories)
		fn(&next)

		if m.v.CompareAndSwap(old, &next) {
			m.notify(old, &next)
			return
		}
	}
}

// OnChange registers fn to run after every change, on the writer's
// goroutine. fn must not block or write to the Mirror. The returned func
// removes it.
func (m *Mirror) OnChange(fn func(prev, next Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listeners == nil {
		m.listeners = make(map[uint64]func(prev, next Snapshot))
	}
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Mirror) notify(prev, next *Snapshot) {
	m.mu.Lock()
	fns := make([]func(prev, next Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	var before Snapshot
	if prev != nil {
		before = *prev
	}

	for _, fn := range fns {
		fn(before, *next)
	}
}

// SetLocation changes the selected location.
func (m *Mirror) SetLocation(id model.ID) {
	m.Update(func(s *Snapshot) { s.LocationID = id })
}

// SetDate changes the selected date.
func (m *Mirror) SetDate(date string) {
	m.Update(func(s *Snapshot) { s.Date = date })
}

// SetUser changes the signed-in user.
func (m *Mirror) SetUser(u User) {
	m.Update(func(s *Snapshot) { s.User = u })
}

// SetKitchens replaces the kitchen list.
func (m *Mirror) SetKitchens(kitchens []Kitchen) {
	m.Update(func(s *Snapshot) { s.Kitchens = slices.Clone(kitchens) })
}

// SetCategories replaces the category list.
func (m *Mirror) SetCategories(categories []Category) {
	m.Update(func(s *Snapshot) { s.Categories = slices.Clone(categories) })
}

// SetTakeawayPayment installs the takeaway-payment callback.
func (m *Mirror) SetTakeawayPayment(fn func(table model.Doc)) {
	m.Update(func(s *Snapshot) { s.OpenTakeawayPayment = fn })
}
