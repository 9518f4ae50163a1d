package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gamecafe/panelsync/internal/socket"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	socket    SocketStatus
	cache     CacheStore
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler with the given dependencies.
func NewHealthHandler(sock SocketStatus, cache CacheStore, version string) *HealthHandler {
	return &HealthHandler{
		socket:    sock,
		cache:     cache,
		version:   version,
		startTime: time.Now(),
	}
}

// healthResponse is the JSON payload returned by the health endpoint.
type healthResponse struct {
	Status        string       `json:"status"`
	Version       string       `json:"version"`
	Socket        socket.State `json:"socket"`
	CacheEntries  int          `json:"cache_entries"`
	UptimeSeconds float64      `json:"uptime_seconds"`
}

// Liveness handles GET /api/v1/health. The process is "ok" while the socket
// is connected, "degraded" while it is (re)connecting, and "failed" once
// reconnection has been given up, which also answers 503.
func (h *HealthHandler) Liveness(c *gin.Context) {
	state := socket.StateIdle
	if h.socket != nil {
		state = h.socket.State()
	}

	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Socket:        state,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.cache != nil {
		resp.CacheEntries = h.cache.Len()
	}

	code := http.StatusOK

	switch state {
	case socket.StateConnected:
	case socket.StateFailed, socket.StateClosed:
		resp.Status = "failed"
		code = http.StatusServiceUnavailable
	default:
		resp.Status = "degraded"
	}

	c.JSON(code, resp)
}

// Reconnect handles POST /api/v1/socket/reconnect, the manual retry offered
// once automatic reconnection has failed.
func (h *HealthHandler) Reconnect(c *gin.Context) {
	if h.socket == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	h.socket.Reconnect()
	c.JSON(http.StatusAccepted, gin.H{"socket": h.socket.State()})
}
