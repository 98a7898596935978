// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/OCAP2/visualizer/internal/config"
	gormstorage "github.com/OCAP2/visualizer/internal/storage/gorm"
	"github.com/OCAP2/visualizer/internal/storage/memory"
	"github.com/OCAP2/visualizer/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/visualizer/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	opts := gormstorage.Options{
		FlushInterval:       cfg.FlushInterval,
		MaxPendingPositions: cfg.MaxPending,
	}
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, opts, log), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, opts, log), nil
	case "memory":
		return memory.New(cfg.Memory), nil
	case "none", "":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
