// internal/storage/storage.go
package storage

import (
	"time"

	"github.com/OCAP2/visualizer/pkg/core"
)

// Backend is the interface all session recorders must satisfy.
// Calls come from the client's event loop and must not block on I/O.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Unit registration and removal
	AddUnit(u *core.Unit) error
	RemoveUnit(name string, at time.Time) error

	// Recording
	RecordPositions(samples []core.PositionSample) error
	RecordV2xEvent(e *core.V2xEvent) error
}

// Exporter is an optional interface for backends that write a file per session.
type Exporter interface {
	GetExportedFilePath() string
}

// Noop discards everything.
type Noop struct{}

func (Noop) Init() error                                 { return nil }
func (Noop) Close() error                                { return nil }
func (Noop) StartSession(*core.Session) error            { return nil }
func (Noop) EndSession() error                           { return nil }
func (Noop) AddUnit(*core.Unit) error                    { return nil }
func (Noop) RemoveUnit(string, time.Time) error          { return nil }
func (Noop) RecordPositions([]core.PositionSample) error { return nil }
func (Noop) RecordV2xEvent(*core.V2xEvent) error         { return nil }
