// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/OCAP2/visualizer/internal/config"
	"github.com/OCAP2/visualizer/pkg/core"
)

// ErrNoSession is returned when recording outside of a session.
var ErrNoSession = errors.New("no active session")

// UnitRecord groups a unit with its time-series data
type UnitRecord struct {
	Unit      core.Unit
	Positions []core.PositionSample
	RemovedAt time.Time
}

// Backend stores session data in memory and exports it to JSON when the session ends
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	records []*UnitRecord          // registration order
	current map[string]*UnitRecord // keyed by name, latest registration
	v2x     []core.V2xEvent

	lastExportPath string
	exportSeq      uint64 // sessions handed to an export
	lastExportSeq  uint64 // session behind lastExportPath
	exportErr      error
	exports        sync.WaitGroup
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		current: make(map[string]*UnitRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports a session that is still open and waits for all exports.
func (b *Backend) Close() error {
	b.mu.RLock()
	open := b.session != nil
	b.mu.RUnlock()
	if open {
		if err := b.EndSession(); err != nil {
			return err
		}
	}
	return b.Wait()
}

// Wait blocks until pending exports are written and returns the first
// export error since the last call.
func (b *Backend) Wait() error {
	b.exports.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.exportErr
	b.exportErr = nil
	return err
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.records = nil
	b.current = make(map[string]*UnitRecord)
	b.v2x = nil

	return nil
}

// EndSession closes the session and writes its export in the background.
// The file path is available from GetExportedFilePath once written.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	if b.session == nil {
		b.mu.Unlock()
		return ErrNoSession
	}
	if b.session.EndTime.IsZero() {
		b.session.EndTime = time.Now().UTC()
	}
	export := b.buildExport()
	path := b.exportPath()
	b.session = nil
	b.exportSeq++
	seq := b.exportSeq
	b.mu.Unlock()

	b.exports.Add(1)
	go func() {
		defer b.exports.Done()
		err := writeExport(path, export, b.cfg.CompressOutput)

		b.mu.Lock()
		defer b.mu.Unlock()
		if err != nil {
			if b.exportErr == nil {
				b.exportErr = err
			}
			return
		}
		if seq > b.lastExportSeq {
			b.lastExportPath = path
			b.lastExportSeq = seq
		}
	}()
	return nil
}

// AddUnit registers a unit. A name registered again after its removal
// starts a new record.
func (b *Backend) AddUnit(u *core.Unit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	rec := &UnitRecord{Unit: *u}
	b.records = append(b.records, rec)
	b.current[u.Name] = rec
	return nil
}

// RemoveUnit marks the current record of name as removed
func (b *Backend) RemoveUnit(name string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	if rec, ok := b.current[name]; ok {
		rec.RemovedAt = at
		delete(b.current, name)
	}
	return nil
}

// RecordPositions appends samples to their units. Samples of unknown
// units are dropped.
func (b *Backend) RecordPositions(samples []core.PositionSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	for _, s := range samples {
		if rec, ok := b.current[s.Name]; ok {
			rec.Positions = append(rec.Positions, s)
		}
	}
	return nil
}

// RecordV2xEvent records a V2X event
func (b *Backend) RecordV2xEvent(e *core.V2xEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.v2x = append(b.v2x, *e)
	return nil
}

// GetUnit returns the current record of a unit
func (b *Backend) GetUnit(name string) (*UnitRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.current[name]
	return rec, ok
}

// GetExportedFilePath returns the path of the last exported file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
