// pkg/core/session.go
package core

import "time"

// Session is one connection to the MOSAIC visualizer server, from the
// open handshake to the close.
type Session struct {
	ID        string
	URL       string
	StartTime time.Time
	EndTime   time.Time
	Metadata  map[string]any
}

// Unit is a registered simulation unit as the recorder stores it.
type Unit struct {
	Name         string
	Category     string
	Class        string
	Equipped     bool
	Latitude     float64
	Longitude    float64
	HasPosition  bool
	RegisteredAt time.Time
}

// PositionSample is one position update of a vehicle or agent.
type PositionSample struct {
	Name      string
	Time      time.Time
	SimTime   int64
	Latitude  float64
	Longitude float64
	State     string
}

// V2X event directions.
const (
	V2xSent     = "sent"
	V2xReceived = "received"
)

// V2xEvent records a unit sending or receiving a V2X message.
type V2xEvent struct {
	Name      string
	Time      time.Time
	SimTime   int64
	Direction string
	MessageID int
}

// Removal records a unit leaving the simulation.
type Removal struct {
	Name string
	Time time.Time
}
