package api

import (
	"context"

	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/session"
	"github.com/gamecafe/panelsync/internal/socket"
)

// CacheStore is the slice of the query cache the ops API reads and invalidates.
type CacheStore interface {
	Fetch(ctx context.Context, key querycache.Key) (any, error)
	Entries() []querycache.Entry
	Len() int
	Invalidate(prefix querycache.Key) int
	InvalidateAll() int
}

// SessionStore is the session mirror.
type SessionStore interface {
	Load() session.Snapshot
	Update(fn func(s *session.Snapshot))
}

// SocketStatus reports and drives the realtime connection.
type SocketStatus interface {
	State() socket.State
	Reconnect()
}
