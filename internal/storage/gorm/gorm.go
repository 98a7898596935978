// Package gormstorage implements the storage.Backend interface on top of
// GORM with internal queues and a background DB writer goroutine. The
// sqlite and postgres backends embed it.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/visualizer/internal/model"
	"github.com/OCAP2/visualizer/internal/model/convert"
	"github.com/OCAP2/visualizer/internal/queue"
	"github.com/OCAP2/visualizer/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	// ErrNoSession is returned when recording outside of a session.
	ErrNoSession = errors.New("no active session")
	// ErrNotInitialized is returned when a session starts before Init.
	ErrNotInitialized = errors.New("gorm backend not initialized")
)

// DefaultFlushInterval is used when Options.FlushInterval is not set.
const DefaultFlushInterval = 2 * time.Second

// Options tunes the writer.
type Options struct {
	FlushInterval time.Duration
	// MaxPendingPositions bounds the position queue while the database
	// is unreachable. Zero means unbounded.
	MaxPendingPositions int
}

// sessionEnd stamps the end time of a session row.
type sessionEnd struct {
	ID string
	At time.Time
}

// queues holds all the write queues for batch DB insertion. Session rows
// are queued too, so that no call from the event loop touches the DB.
type queues struct {
	Sessions  *queue.Queue[model.Session]
	Units     *queue.Queue[model.Unit]
	Positions *queue.Queue[model.UnitPosition]
	V2x       *queue.Queue[model.V2xEvent]
	Removals  *queue.Queue[model.UnitRemoval]
	Ends      *queue.Queue[sessionEnd]
}

func newQueues(maxPositions int) *queues {
	return &queues{
		Sessions:  queue.New[model.Session](),
		Units:     queue.New[model.Unit](),
		Positions: queue.NewBounded[model.UnitPosition](maxPositions),
		V2x:       queue.New[model.V2xEvent](),
		Removals:  queue.New[model.UnitRemoval](),
		Ends:      queue.New[sessionEnd](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	db   *gorm.DB
	opts Options
	log  zerolog.Logger

	queues   *queues
	stopChan chan struct{}
	done     chan struct{}
	// wake asks the writer for a cycle before the next tick.
	wake chan struct{}

	// flushMu serializes writer cycles.
	flushMu sync.Mutex
	mu      sync.RWMutex
	session *model.Session
}

// New creates a new GORM storage backend on an open connection.
func New(db *gorm.DB, opts Options, log zerolog.Logger) *Backend {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		db:   db,
		opts: opts,
		log:  log,
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init creates internal queues and starts the DB writer goroutine. The
// schema must already be migrated.
func (b *Backend) Init() error {
	if b.db == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	b.queues = newQueues(b.opts.MaxPendingPositions)
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	b.wake = make(chan struct{}, 1)

	go b.writerLoop()
	return nil
}

// Close stops the writer and drains what is left in the queues.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil

	b.Flush()
	return nil
}

// StartSession queues the session row. Rows queued from now on are
// stamped with its ID.
func (b *Backend) StartSession(s *core.Session) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	row := convert.CoreToSession(*s)

	b.mu.Lock()
	b.session = &row
	b.mu.Unlock()

	b.queues.Sessions.Push(row)
	b.log.Info().Str("session", row.ID).Str("url", row.URL).Msg("Session started")
	return nil
}

// EndSession queues the end time of the active session and wakes the
// writer so the session is on disk without waiting for the next tick.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	session := b.session
	b.session = nil
	b.mu.Unlock()

	if session == nil {
		return ErrNoSession
	}

	b.queues.Ends.Push(sessionEnd{ID: session.ID, At: time.Now().UTC()})
	b.wakeWriter()

	b.log.Info().Str("session", session.ID).Msg("Session ended")
	return nil
}

// wakeWriter requests a writer cycle without blocking.
func (b *Backend) wakeWriter() {
	if b.wake == nil {
		return
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// SessionID returns the active session ID, or "" outside a session.
func (b *Backend) SessionID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return ""
	}
	return b.session.ID
}

func (b *Backend) active() (string, error) {
	id := b.SessionID()
	if id == "" {
		return "", ErrNoSession
	}
	return id, nil
}

// AddUnit queues a unit registration.
func (b *Backend) AddUnit(u *core.Unit) error {
	id, err := b.active()
	if err != nil {
		return err
	}
	b.queues.Units.Push(convert.CoreToUnit(*u, id))
	return nil
}

// RemoveUnit queues a unit removal.
func (b *Backend) RemoveUnit(name string, at time.Time) error {
	id, err := b.active()
	if err != nil {
		return err
	}
	b.queues.Removals.Push(convert.CoreToUnitRemoval(core.Removal{Name: name, Time: at}, id))
	return nil
}

// RecordPositions queues a batch of position samples.
func (b *Backend) RecordPositions(samples []core.PositionSample) error {
	id, err := b.active()
	if err != nil {
		return err
	}
	rows := make([]model.UnitPosition, len(samples))
	for i, s := range samples {
		rows[i] = convert.CoreToUnitPosition(s, id)
	}
	b.queues.Positions.Push(rows...)
	return nil
}

// RecordV2xEvent queues a V2X event.
func (b *Backend) RecordV2xEvent(e *core.V2xEvent) error {
	id, err := b.active()
	if err != nil {
		return err
	}
	b.queues.V2x.Push(convert.CoreToV2xEvent(*e, id))
	return nil
}

// QueueLengths reports the number of pending rows per queue.
func (b *Backend) QueueLengths() map[string]int {
	if b.queues == nil {
		return nil
	}
	return map[string]int{
		"sessions":  b.queues.Sessions.Len() + b.queues.Ends.Len(),
		"units":     b.queues.Units.Len(),
		"positions": b.queues.Positions.Len(),
		"v2x":       b.queues.V2x.Len(),
		"removals":  b.queues.Removals.Len(),
	}
}

// DroppedPositions reports how many position rows the queue bound discarded.
func (b *Backend) DroppedPositions() uint64 {
	if b.queues == nil {
		return 0
	}
	return b.queues.Positions.Dropped()
}

// Flush writes every queued row now. Session rows go first and session
// ends last, so a cycle never stamps the end of a session it has not
// created yet.
func (b *Backend) Flush() {
	if b.queues == nil {
		return
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	writeQueue(b.db, b.queues.Sessions, "sessions", b.log)
	writeQueue(b.db, b.queues.Units, "units", b.log)
	writeQueue(b.db, b.queues.Positions, "unit positions", b.log)
	writeQueue(b.db, b.queues.V2x, "v2x events", b.log)
	writeQueue(b.db, b.queues.Removals, "unit removals", b.log)
	b.writeEnds()
}

// writeEnds stamps queued session end times. Ends that fail stay queued.
func (b *Backend) writeEnds() {
	ends := b.queues.Ends.Drain()
	for i, e := range ends {
		err := b.db.Model(&model.Session{}).Where("id = ?", e.ID).
			Update("end_time", e.At).Error
		if err != nil {
			b.log.Error().Err(err).Str("session", e.ID).Msg("Error ending session")
			b.queues.Ends.Requeue(ends[i:])
			return
		}
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items are pushed back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	if tx.Error != nil {
		log.Error().Err(tx.Error).Str("queue", name).Msg("Error starting transaction")
		return
	}
	items := q.Drain()
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("queue", name).Int("items", len(items)).Msg("Error writing queue")
		tx.Rollback()
		q.Requeue(items)
		return
	}

	if err := tx.Commit().Error; err != nil {
		log.Error().Err(err).Str("queue", name).Msg("Error committing queue")
		q.Requeue(items)
		return
	}
	log.Trace().Str("queue", name).Int("items", len(items)).Msg("Queue written")
}

// writerLoop periodically drains the queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.Flush()
		case <-b.wake:
			b.Flush()
		}
	}
}
