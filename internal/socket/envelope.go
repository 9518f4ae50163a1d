package socket

import (
	"encoding/json"
	"time"
)

// Frame types with transport meaning; every other type is a named event.
const (
	frameSubscribe = "subscribe"
	frameShutdown  = "shutdown"
)

// Disconnect reasons reported with the disconnect signal.
const (
	ReasonClientDisconnect = "io client disconnect"
	ReasonServerDisconnect = "io server disconnect"
	ReasonTransportClose   = "transport close"
	ReasonPingTimeout      = "ping timeout"
)

// Envelope is the wire format of every server-pushed event.
type Envelope struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
	Time time.Time       `json:"time,omitempty"`
}

// SubscribeMsg is sent after every (re)connect to request replay of events
// missed while disconnected.
type SubscribeMsg struct {
	Type        string `json:"type"`
	LastEventID uint64 `json:"last_event_id"`
}

// ResetMsg tells the client the replay window is gone and a full refresh is
// needed. It is dispatched as the "reset" event.
type ResetMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// DisconnectInfo is the payload of the disconnect signal.
type DisconnectInfo struct {
	Reason string `json:"reason"`
}

// AttemptInfo is the payload of reconnect, reconnect_attempt and
// reconnect_failed.
type AttemptInfo struct {
	Attempt int `json:"attempt"`
}

// ErrorInfo is the payload of connect_error and reconnect_error.
type ErrorInfo struct {
	Error string `json:"error"`
}
