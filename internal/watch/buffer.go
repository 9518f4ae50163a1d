package watch

import (
	"sync"
	"time"

	"github.com/gamecafe/panelsync/internal/socket"
)

const (
	defaultBufferMaxLen = 1000
	defaultBufferMaxAge = 10 * time.Minute
)

// Buffer keeps recent notices for replay when a watcher reconnects.
type Buffer struct {
	mu     sync.RWMutex
	events []socket.Envelope
	maxAge time.Duration
	maxLen int
	now    func() time.Time
}

// NewBuffer creates a Buffer holding at most maxLen notices no older than maxAge.
func NewBuffer(maxLen int, maxAge time.Duration) *Buffer {
	return &Buffer{maxAge: maxAge, maxLen: maxLen, now: time.Now}
}

// Append stores a notice, evicting expired and excess ones from the front.
func (b *Buffer) Append(env socket.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-b.maxAge)
	start := 0
	for start < len(b.events) && b.events[start].Time.Before(cutoff) {
		start++
	}

	buf := append(b.events[start:], env)
	if len(buf) > b.maxLen {
		buf = buf[len(buf)-b.maxLen:]
	}

	b.events = buf
}

// Since returns a copy of every notice with ID > lastID.
func (b *Buffer) Since(lastID uint64) []socket.Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// IDs are appended in increasing order.
	lo, hi := 0, len(b.events)
	for lo < hi {
		mid := (lo + hi) / 2
		if b.events[mid].ID <= lastID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	if lo >= len(b.events) {
		return nil
	}

	out := make([]socket.Envelope, len(b.events)-lo)
	copy(out, b.events[lo:])

	return out
}

// OldestID returns the oldest buffered ID, or 0 if empty.
func (b *Buffer) OldestID() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return 0
	}

	return b.events[0].ID
}
