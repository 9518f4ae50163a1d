package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/socket"
)

func TestLiveness_ReflectsSocketState(t *testing.T) {
	tests := []struct {
		state      socket.State
		wantStatus string
		wantCode   int
	}{
		{socket.StateConnected, "ok", http.StatusOK},
		{socket.StateReconnecting, "degraded", http.StatusOK},
		{socket.StateConnecting, "degraded", http.StatusOK},
		{socket.StateFailed, "failed", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			f := newFixture(t)
			f.sock.state = tt.state
			f.cache.Set(querycache.NewKey(model.PathNotificationsNew), model.Doc{"count": 1})

			w := f.do(http.MethodGet, "/api/v1/health", "")
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}

			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			if body["socket"] != string(tt.state) {
				t.Errorf("socket = %v", body["socket"])
			}
			if body["version"] != "test-v1" {
				t.Errorf("version = %v", body["version"])
			}
			if body["cache_entries"] != float64(1) {
				t.Errorf("cache_entries = %v", body["cache_entries"])
			}
		})
	}
}

func TestReconnect_DrivesSocket(t *testing.T) {
	f := newFixture(t)
	f.sock.state = socket.StateFailed

	w := f.do(http.MethodPost, "/api/v1/socket/reconnect", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if f.sock.reconnects != 1 {
		t.Errorf("reconnects = %d", f.sock.reconnects)
	}
}

func TestRouter_SecurityHeadersAndRequestID(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}

func TestRouter_ServesMetrics(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
