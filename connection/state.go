package connection

import (
	"fmt"
	"time"
)

// State is the connection health as seen by the access layer.
type State int

const (
	// Disconnected means no request has succeeded yet, or the layer was torn down.
	Disconnected State = iota
	// Connecting means an attempt is in flight.
	Connecting
	// Connected means the most recent logical call reached the backend.
	Connected
	// Error means the most recent logical call exhausted its retries.
	Error
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "disconnected":
		*s = Disconnected
	case "connecting":
		*s = Connecting
	case "connected":
		*s = Connected
	case "error":
		*s = Error
	default:
		return fmt.Errorf("connection: unknown state %q", b)
	}
	return nil
}

// Snapshot is a consistent copy of the machine's state and counters.
type Snapshot struct {
	State State `json:"state"`
	// ErrorCount counts failed logical calls since the last time the machine
	// entered Connected.
	ErrorCount int `json:"errorCount"`
	// LastConnectedAt is set on every transition into Connected.
	LastConnectedAt time.Time `json:"lastConnectedAt,omitzero"`
	// Since is when the current state was entered.
	Since     time.Time `json:"since"`
	LastError error     `json:"-"`
}

// Change describes one transition. Snapshot is the state after it.
type Change struct {
	From     State
	To       State
	Snapshot Snapshot
}
