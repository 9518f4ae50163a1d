package socket

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultPath          = "/socket"
	defaultDelayMin      = 1 * time.Second
	defaultDelayMax      = 5 * time.Second
	defaultJitterPercent = 50
	defaultDialTimeout   = 10 * time.Second
	defaultPingInterval  = 25 * time.Second
	defaultReadLimit     = 1 << 20
	writeTimeout         = 10 * time.Second
	pingTimeout          = 10 * time.Second
	closeTimeout         = 5 * time.Second
	maxMissedPongs       = int32(2)
)

// ClientIDHeader carries the socket's per-process client id on the handshake.
const ClientIDHeader = "X-Panel-Client-ID"

// Options configures a Socket. Zero values take the defaults above.
type Options struct {
	// Path is appended to the base URL, e.g. "/socket".
	Path string
	// Header is sent on every handshake; it carries the credentials.
	Header http.Header
	// DisableReconnection stops automatic retries after a transport drop;
	// only an explicit Reconnect resumes the connection.
	DisableReconnection bool
	// MaxAttempts bounds consecutive reconnect attempts; 0 retries forever.
	MaxAttempts   int
	DelayMin      time.Duration
	DelayMax      time.Duration
	JitterPercent uint64
	DialTimeout   time.Duration
	PingInterval  time.Duration
	ReadLimit     int64
	HTTPClient    *http.Client
	Logger        *logrus.Logger
}

func (o *Options) defaults() {
	if o.Path == "" {
		o.Path = defaultPath
	}
	if o.DelayMin <= 0 {
		o.DelayMin = defaultDelayMin
	}
	if o.DelayMax < o.DelayMin {
		o.DelayMax = max(defaultDelayMax, o.DelayMin)
	}
	if o.JitterPercent == 0 {
		o.JitterPercent = defaultJitterPercent
	}
	if o.JitterPercent > 100 {
		o.JitterPercent = 100
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = defaultReadLimit
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
}

// Endpoint joins a base URL and a socket path, switching http(s) to ws(s).
func Endpoint(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse socket url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("socket url scheme must be http(s) or ws(s), got %q", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("socket url must include a host")
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")

	return u.String(), nil
}
