// Package config provides environment-driven configuration for panelsync.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	SocketURL  string
	SocketPath string
	APIURL     string
	APIToken   Secret
	LocationID string
	Timezone   string

	LogLevel    string
	LogFormat   string
	ListenHost  string
	Port        string
	CORSOrigins []string

	FullRefreshAfter     time.Duration
	ReconnectMaxAttempts int
	ReconnectDelayMin    time.Duration
	ReconnectDelayMax    time.Duration
	CacheMaxEntries      int
	SoundEnabled         bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		SocketURL:  envOrDefault("PANEL_SOCKET_URL", ""),
		SocketPath: envOrDefault("PANEL_SOCKET_PATH", "/socket"),
		APIToken:   Secret(envOrDefault("PANEL_API_TOKEN", "")),
		LocationID: envOrDefault("PANEL_LOCATION_ID", "1"),
		Timezone:   envOrDefault("PANEL_TIMEZONE", "UTC"),
		LogLevel:   envOrDefault("LOG_LEVEL", "info"),
		LogFormat:  envOrDefault("LOG_FORMAT", "text"),
		ListenHost: envOrDefault("LISTEN_HOST", "127.0.0.1"),
		Port:       envOrDefault("PORT", "3031"),
	}
	cfg.APIURL = envOrDefault("PANEL_API_URL", cfg.SocketURL)

	var err error

	if cfg.FullRefreshAfter, err = envDuration("RECONNECT_FULL_REFRESH_AFTER", "30s"); err != nil {
		return nil, err
	}

	if cfg.ReconnectDelayMin, err = envDuration("RECONNECT_DELAY_MIN", "1s"); err != nil {
		return nil, err
	}

	if cfg.ReconnectDelayMax, err = envDuration("RECONNECT_DELAY_MAX", "5s"); err != nil {
		return nil, err
	}

	if cfg.ReconnectMaxAttempts, err = strconv.Atoi(envOrDefault("RECONNECT_MAX_ATTEMPTS", "0")); err != nil {
		return nil, fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be an integer: %w", err)
	}

	if cfg.CacheMaxEntries, err = strconv.Atoi(envOrDefault("CACHE_MAX_ENTRIES", "512")); err != nil {
		return nil, fmt.Errorf("CACHE_MAX_ENTRIES must be an integer: %w", err)
	}

	if cfg.SoundEnabled, err = strconv.ParseBool(envOrDefault("SOUND_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("SOUND_ENABLED must be a boolean: %w", err)
	}

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3000")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// Location returns the timezone the panel's business day is counted in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s: %w", key, err)
	}

	return d, nil
}
