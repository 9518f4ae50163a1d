// Package watch streams query cache changes to local websocket clients. It
// speaks the same envelope protocol as the upstream realtime feed: a client
// subscribes with the last id it saw and receives the missed notices, or a
// reset when they are no longer buffered.
package watch

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/metrics"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/socket"
)

// EventCacheChanged is the envelope type of every notice.
const EventCacheChanged = "cacheChanged"

const (
	broadcastBuffer = 256
	registerBuffer  = 16
	maxClients      = 64
	drainTimeout    = 3 * time.Second
)

var shutdownMsg = []byte(`{"type":"shutdown"}`)

// Hub fans cache changes out to watchers. All client map mutations happen in
// the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	shutdown   chan struct{}
	done       chan struct{}
	count      atomic.Int64
	log        *logrus.Logger

	// mu orders id assignment with buffering and broadcast.
	mu     sync.Mutex
	seq    uint64
	buffer *Buffer
	now    func() time.Time
}

// NewHub creates a Hub. Call Run to start delivering.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, registerBuffer),
		unregister: make(chan *Client, registerBuffer),
		broadcast:  make(chan []byte, broadcastBuffer),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		log:        log,
		buffer:     NewBuffer(defaultBufferMaxLen, defaultBufferMaxAge),
		now:        time.Now,
	}
}

// Run delivers notices until Shutdown is called or ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.drainClients()
			return
		case <-h.shutdown:
			h.drainClients()
			return

		case c := <-h.register:
			if len(h.clients) >= maxClients {
				h.log.Warn("watch client limit reached, dropping client")
				c.closeSend()
				continue
			}
			h.clients[c] = true
			h.setCount()
			h.log.WithField("total", len(h.clients)).Debug("watch client registered")

		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				c.closeSend()
			}
			h.setCount()

		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.enqueue(msg) {
					// Too slow to keep up; it reconnects and replays.
					c.closeSend()
					delete(h.clients, c)
				}
			}
			h.setCount()
		}
	}
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.WatchClients.Set(float64(len(h.clients)))
}

// Publish assigns the next id to a cache change, buffers it and queues it for
// delivery. It never blocks, so it can serve as a querycache observer.
func (h *Hub) Publish(ch querycache.Change) {
	data, err := json.Marshal(ch)
	if err != nil {
		h.log.WithError(err).Error("marshal cache change")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	env := socket.Envelope{Type: EventCacheChanged, ID: h.seq, Data: data, Time: h.now()}

	msg, err := json.Marshal(env)
	if err != nil {
		h.log.WithError(err).Error("marshal cache notice")
		return
	}

	h.buffer.Append(env)

	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("watch broadcast channel full, dropping notice")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.log.Warn("watch register channel full, dropping client")
		c.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
	}
}

// ClientCount returns the number of connected watchers.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Shutdown drains connected clients and blocks until Run has returned.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

// drainClients announces the shutdown, waits for send buffers to flush or
// the drain timeout, then closes every client.
func (h *Hub) drainClients() {
	if len(h.clients) == 0 {
		return
	}

	h.log.WithField("clients", len(h.clients)).Info("draining watch clients")

	for c := range h.clients {
		c.enqueue(shutdownMsg)
	}

	deadline := time.After(drainTimeout)
	ticker := time.NewTicker(50 * time.Millisecond) //nolint:mnd // poll interval
	defer ticker.Stop()

	for !h.flushed() {
		select {
		case <-deadline:
			h.log.Warn("watch drain timeout, closing remaining clients")
			h.closeAll()
			return
		case <-ticker.C:
		}
	}

	h.closeAll()
}

func (h *Hub) flushed() bool {
	for c := range h.clients {
		if len(c.send) > 0 {
			return false
		}
	}

	return true
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		c.closeSend()
		delete(h.clients, c)
	}
	h.setCount()
}

// Replay queues buffered notices after lastID for c. It reports false when
// lastID is older than the buffer, in which case the client needs a reset.
func (h *Hub) Replay(c *Client, lastID uint64) bool {
	h.mu.Lock()
	seq := h.seq
	h.mu.Unlock()

	// An id from before a restart cannot be resumed.
	if lastID > seq {
		return false
	}

	oldest := h.buffer.OldestID()
	if oldest > 0 && lastID > 0 && lastID < oldest-1 {
		return false
	}

	for _, env := range h.buffer.Since(lastID) {
		msg, err := json.Marshal(env)
		if err != nil {
			continue
		}
		if !c.enqueue(msg) {
			break
		}
	}

	return true
}
