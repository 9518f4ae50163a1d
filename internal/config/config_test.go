package config_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gamecafe/panelsync/internal/config"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PANEL_SOCKET_URL", "https://api.venue.example")
	t.Setenv("PANEL_API_TOKEN", "tok_live_123")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")
}

func TestLoad_ValidConfig(t *testing.T) {
	setValidEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Port != "3031" {
		t.Errorf("expected default port 3031, got %s", cfg.Port)
	}

	if cfg.Addr() != "127.0.0.1:3031" {
		t.Errorf("expected addr 127.0.0.1:3031, got %s", cfg.Addr())
	}

	if cfg.APIURL != "https://api.venue.example" {
		t.Errorf("expected PANEL_API_URL to default to the socket URL, got %s", cfg.APIURL)
	}

	if cfg.APIToken.Value() != "tok_live_123" {
		t.Errorf("token not loaded")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SocketPath != "/socket" {
		t.Errorf("unexpected SocketPath default: %s", cfg.SocketPath)
	}

	if cfg.LocationID != "1" {
		t.Errorf("unexpected LocationID default: %s", cfg.LocationID)
	}

	if cfg.FullRefreshAfter != 30*time.Second {
		t.Errorf("unexpected FullRefreshAfter default: %s", cfg.FullRefreshAfter)
	}

	if cfg.ReconnectMaxAttempts != 0 {
		t.Errorf("expected unlimited reconnect attempts, got %d", cfg.ReconnectMaxAttempts)
	}

	if cfg.ReconnectDelayMin != time.Second || cfg.ReconnectDelayMax != 5*time.Second {
		t.Errorf("unexpected reconnect delays: %s..%s", cfg.ReconnectDelayMin, cfg.ReconnectDelayMax)
	}

	if cfg.CacheMaxEntries != 512 {
		t.Errorf("unexpected CacheMaxEntries default: %d", cfg.CacheMaxEntries)
	}

	if !cfg.SoundEnabled {
		t.Error("expected sound enabled by default")
	}

	if cfg.Location().String() != "UTC" {
		t.Errorf("unexpected location: %s", cfg.Location())
	}
}

func TestSecret_IsRedacted(t *testing.T) {
	s := config.Secret("tok_live_123")

	for _, got := range []string{fmt.Sprint(s), fmt.Sprintf("%v", s), fmt.Sprintf("%#v", s)} {
		if strings.Contains(got, "tok_live") {
			t.Errorf("secret leaked: %q", got)
		}
	}

	text, _ := s.MarshalText()
	if string(text) != "[REDACTED]" {
		t.Errorf("MarshalText = %q", text)
	}
}

func TestLoad_ErrorCases(t *testing.T) {
	tests := []struct {
		name         string
		envOverrides map[string]string
		envClear     []string
		wantErr      string
	}{
		{
			name:     "missing PANEL_SOCKET_URL",
			envClear: []string{"PANEL_SOCKET_URL"},
			wantErr:  "PANEL_SOCKET_URL is required",
		},
		{
			name:         "socket URL bad scheme",
			envOverrides: map[string]string{"PANEL_SOCKET_URL": "ftp://api.venue.example"},
			wantErr:      "PANEL_SOCKET_URL scheme must be one of",
		},
		{
			name:         "plain http to remote host",
			envOverrides: map[string]string{"PANEL_SOCKET_URL": "http://api.venue.example"},
			wantErr:      "PANEL_SOCKET_URL must use TLS",
		},
		{
			name:         "api URL over websocket scheme",
			envOverrides: map[string]string{"PANEL_API_URL": "wss://api.venue.example"},
			wantErr:      "PANEL_API_URL scheme must be one of",
		},
		{
			name:         "socket path without slash",
			envOverrides: map[string]string{"PANEL_SOCKET_PATH": "socket"},
			wantErr:      "PANEL_SOCKET_PATH must start with '/'",
		},
		{
			name:         "unknown timezone",
			envOverrides: map[string]string{"PANEL_TIMEZONE": "Mars/Olympus"},
			wantErr:      "PANEL_TIMEZONE is not a known time zone",
		},
		{
			name:         "invalid PORT zero",
			envOverrides: map[string]string{"PORT": "0"},
			wantErr:      "PORT must be between 1 and 65535",
		},
		{
			name:         "invalid PORT non-numeric",
			envOverrides: map[string]string{"PORT": "abc"},
			wantErr:      "PORT must be a valid integer",
		},
		{
			name:         "invalid LISTEN_HOST",
			envOverrides: map[string]string{"LISTEN_HOST": "192.168.1.1"},
			wantErr:      "LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers",
		},
		{
			name:         "invalid LOG_LEVEL",
			envOverrides: map[string]string{"LOG_LEVEL": "loud"},
			wantErr:      "LOG_LEVEL is invalid",
		},
		{
			name:         "invalid LOG_FORMAT",
			envOverrides: map[string]string{"LOG_FORMAT": "xml"},
			wantErr:      "LOG_FORMAT must be 'text' or 'json'",
		},
		{
			name:         "CORS wildcard",
			envOverrides: map[string]string{"CORS_ORIGINS": "*"},
			wantErr:      "CORS_ORIGINS must not contain wildcard",
		},
		{
			name:         "CORS invalid origin",
			envOverrides: map[string]string{"CORS_ORIGINS": "not-a-url"},
			wantErr:      "CORS_ORIGINS contains invalid origin",
		},
		{
			name:         "refresh threshold not a duration",
			envOverrides: map[string]string{"RECONNECT_FULL_REFRESH_AFTER": "30"},
			wantErr:      "RECONNECT_FULL_REFRESH_AFTER must be a duration",
		},
		{
			name:         "refresh threshold negative",
			envOverrides: map[string]string{"RECONNECT_FULL_REFRESH_AFTER": "-1s"},
			wantErr:      "RECONNECT_FULL_REFRESH_AFTER must be positive",
		},
		{
			name:         "delay max below min",
			envOverrides: map[string]string{"RECONNECT_DELAY_MIN": "10s", "RECONNECT_DELAY_MAX": "2s"},
			wantErr:      "RECONNECT_DELAY_MAX must not be below RECONNECT_DELAY_MIN",
		},
		{
			name:         "negative max attempts",
			envOverrides: map[string]string{"RECONNECT_MAX_ATTEMPTS": "-3"},
			wantErr:      "RECONNECT_MAX_ATTEMPTS must be 0 (unlimited) or positive",
		},
		{
			name:         "cache max entries zero",
			envOverrides: map[string]string{"CACHE_MAX_ENTRIES": "0"},
			wantErr:      "CACHE_MAX_ENTRIES must be an integer between 1 and 100000",
		},
		{
			name:         "cache max entries non-numeric",
			envOverrides: map[string]string{"CACHE_MAX_ENTRIES": "lots"},
			wantErr:      "CACHE_MAX_ENTRIES must be an integer",
		},
		{
			name:         "sound flag not a bool",
			envOverrides: map[string]string{"SOUND_ENABLED": "loud"},
			wantErr:      "SOUND_ENABLED must be a boolean",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setValidEnv(t)
			for _, k := range tc.envClear {
				t.Setenv(k, "")
			}
			for k, v := range tc.envOverrides {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestLoad_LocalhostAllowsPlainText(t *testing.T) {
	setValidEnv(t)
	t.Setenv("PANEL_SOCKET_URL", "ws://localhost:4000")
	t.Setenv("PANEL_API_URL", "http://127.0.0.1:4000")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.SocketURL != "ws://localhost:4000" {
		t.Errorf("unexpected SocketURL: %s", cfg.SocketURL)
	}
}
