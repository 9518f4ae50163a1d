package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

func (c *Config) validate() error {
	if err := c.validatePanel(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateReconnect(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validatePanel() error {
	if c.SocketURL == "" {
		return fmt.Errorf("PANEL_SOCKET_URL is required")
	}

	if err := validateRemoteURL("PANEL_SOCKET_URL", c.SocketURL, "http", "https", "ws", "wss"); err != nil {
		return err
	}

	if err := validateRemoteURL("PANEL_API_URL", c.APIURL, "http", "https"); err != nil {
		return err
	}

	if !strings.HasPrefix(c.SocketPath, "/") {
		return fmt.Errorf("PANEL_SOCKET_PATH must start with '/', got %q", c.SocketPath)
	}

	if c.LocationID == "" {
		return fmt.Errorf("PANEL_LOCATION_ID must not be empty")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("PANEL_TIMEZONE is not a known time zone: %w", err)
	}

	return nil
}

// validateRemoteURL checks scheme and host, and refuses to send the token in
// clear text to anything but loopback.
func validateRemoteURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}

	valid := false
	for _, s := range schemes {
		if u.Scheme == s {
			valid = true
			break
		}
	}

	if !valid {
		return fmt.Errorf("%s scheme must be one of %s, got %q", name, strings.Join(schemes, ", "), u.Scheme)
	}

	if u.Hostname() == "" {
		return fmt.Errorf("%s must include a host", name)
	}

	if (u.Scheme == "http" || u.Scheme == "ws") && !isLocalhost(raw) {
		return fmt.Errorf("%s must use TLS (https/wss) for non-localhost hosts", name)
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// The ops API exposes cache contents; it is only served on loopback or
	// inside a container whose boundary is enforced externally.
	validHosts := map[string]bool{
		"127.0.0.1": true,
		"::1":       true,
		"localhost": true,
		"0.0.0.0":   true,
		"::":        true,
	}
	if !validHosts[c.ListenHost] {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be 'text' or 'json', got %q", c.LogFormat)
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateReconnect() error {
	if c.FullRefreshAfter <= 0 {
		return fmt.Errorf("RECONNECT_FULL_REFRESH_AFTER must be positive")
	}

	if c.ReconnectDelayMin <= 0 {
		return fmt.Errorf("RECONNECT_DELAY_MIN must be positive")
	}

	if c.ReconnectDelayMax < c.ReconnectDelayMin {
		return fmt.Errorf("RECONNECT_DELAY_MAX must not be below RECONNECT_DELAY_MIN")
	}

	if c.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be 0 (unlimited) or positive")
	}

	if c.CacheMaxEntries < 1 || c.CacheMaxEntries > 100000 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be an integer between 1 and 100000")
	}

	return nil
}

// isLocalhost returns true if the given address points to a loopback address.
func isLocalhost(addr string) bool {
	u, err := url.Parse(addr)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
