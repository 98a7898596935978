// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition; the only SQLite-specific concerns are
// creating the in-memory DB and dumping it to disk.
package sqlitestorage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OCAP2/visualizer/internal/config"
	"github.com/OCAP2/visualizer/internal/database"
	gormstorage "github.com/OCAP2/visualizer/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg      config.SQLiteConfig
	opts     gormstorage.Options
	log      zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}
	// dumpNow asks the dump goroutine for a dump outside the interval.
	dumpNow chan struct{}
}

// New creates a new SQLite storage backend. The database is opened in Init.
func New(cfg config.SQLiteConfig, opts gormstorage.Options, log zerolog.Logger) *Backend {
	return &Backend{
		cfg:  cfg,
		opts: opts,
		log:  log.With().Str("storage", "sqlite").Logger(),
	}
}

// Init opens the in-memory database, migrates it, starts the embedded
// GORM backend and the dump goroutine.
func (b *Backend) Init() error {
	db, err := database.OpenSqlite("", b.log)
	if err != nil {
		return fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if err := database.Migrate(db, b.log); err != nil {
		return err
	}

	b.Backend = gormstorage.New(db, b.opts, b.log)
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" {
		if err := os.MkdirAll(filepath.Dir(b.cfg.DumpPath), 0755); err != nil {
			return fmt.Errorf("failed to create dump directory: %w", err)
		}
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	b.dumpNow = make(chan struct{}, 1)
	if b.cfg.DumpPath != "" {
		go b.dumpLoop()
	} else {
		close(b.done)
	}

	return nil
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a final dump.
func (b *Backend) Close() error {
	if b.Backend == nil || b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil

	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.Dump()
}

// EndSession ends the session and schedules a dump of it. The dump runs
// on the dump goroutine after the writer has stored the session.
func (b *Backend) EndSession() error {
	if b.Backend == nil {
		return gormstorage.ErrNoSession
	}
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	select {
	case b.dumpNow <- struct{}{}:
	default:
	}
	return nil
}

// Dump writes the current database to DumpPath. It is a no-op without a path.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.DB(), b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug().Dur("duration", time.Since(start)).Str("path", b.cfg.DumpPath).Msg("Dumped to disk")
	return nil
}

// GetExportedFilePath returns the dump file.
func (b *Backend) GetExportedFilePath() string {
	return b.cfg.DumpPath
}

// dumpLoop dumps the in-memory SQLite database to disk via VACUUM INTO on
// every interval and whenever a session ends. Without an interval only
// session ends trigger a dump.
func (b *Backend) dumpLoop() {
	defer close(b.done)

	var tick <-chan time.Time
	if b.cfg.DumpInterval > 0 {
		ticker := time.NewTicker(b.cfg.DumpInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-b.stopChan:
			return
		case <-tick:
		case <-b.dumpNow:
			b.Backend.Flush()
		}
		if err := b.Dump(); err != nil {
			b.log.Error().Err(err).Msg("Error dumping to disk")
		}
	}
}
