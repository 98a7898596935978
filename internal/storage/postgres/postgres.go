// Package postgres implements the storage.Backend interface on a
// PostgreSQL database through the GORM backend.
package postgres

import (
	"fmt"

	"github.com/OCAP2/visualizer/internal/config"
	"github.com/OCAP2/visualizer/internal/database"
	gormstorage "github.com/OCAP2/visualizer/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Backend wraps the GORM backend for a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg  config.PostgresConfig
	opts gormstorage.Options
	log  zerolog.Logger
}

// New creates a new Postgres storage backend. The connection is opened in Init.
func New(cfg config.PostgresConfig, opts gormstorage.Options, log zerolog.Logger) *Backend {
	return &Backend{
		cfg:  cfg,
		opts: opts,
		log:  log.With().Str("storage", "postgres").Logger(),
	}
}

// Init connects, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	db, err := database.OpenPostgres(b.cfg, b.log)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := database.Migrate(db, b.log); err != nil {
		return err
	}

	b.Backend = gormstorage.New(db, b.opts, b.log)
	return b.Backend.Init()
}

// Close stops the writer and closes the connection pool.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.DB().DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}
