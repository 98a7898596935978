package client

import (
	"fmt"
	"time"
)

// State is the connection state shown in the status widget.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "closed"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a snapshot of the connection for the status widget, the
// monitor and the HTTP API.
type Status struct {
	State      State     `json:"state"`
	Tries      int       `json:"tries"`
	MaxRetries int       `json:"maxRetries"`
	URL        string    `json:"url"`
	Notice     string    `json:"notice,omitempty"`
	Messages   uint64    `json:"messages"`
	Session    string    `json:"session,omitempty"`
	Since      time.Time `json:"since"`
}

// TriesText renders the attempt counter as "tries/max".
func (s Status) TriesText() string {
	return fmt.Sprintf("%d/%d", s.Tries, s.MaxRetries)
}
