package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/visualizer/internal/config"
	"github.com/OCAP2/visualizer/internal/database"
	"github.com/OCAP2/visualizer/internal/model"
	gormstorage "github.com/OCAP2/visualizer/internal/storage/gorm"
	"github.com/OCAP2/visualizer/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndSession_DumpsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "visualizer.db")
	b := New(config.SQLiteConfig{DumpPath: path}, gormstorage.Options{FlushInterval: time.Hour}, zerolog.Nop())
	require.NoError(t, b.Init())

	start := time.Now().UTC()
	require.NoError(t, b.StartSession(&core.Session{ID: "s1", URL: "ws://localhost:46587", StartTime: start}))
	require.NoError(t, b.AddUnit(&core.Unit{Name: "veh_0", Category: "vehicle", RegisteredAt: start}))
	require.NoError(t, b.EndSession())

	// No dump interval: the file can only come from the session end.
	assert.Equal(t, path, b.GetExportedFilePath())
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, b.Close())
	assert.NoError(t, b.Close())

	disk, err := database.OpenSqlite(path, zerolog.Nop())
	require.NoError(t, err)
	var units []model.Unit
	require.NoError(t, disk.Find(&units).Error)
	require.Len(t, units, 1)
	assert.Equal(t, "s1", units[0].SessionID)
	assert.WithinDuration(t, start, units[0].RegisteredAt, time.Second)

	var session model.Session
	require.NoError(t, disk.First(&session).Error)
	assert.True(t, session.EndTime.Valid)
	assert.WithinDuration(t, start, session.StartTime, time.Second)
}

func TestDump_NoPath(t *testing.T) {
	b := New(config.SQLiteConfig{}, gormstorage.Options{}, zerolog.Nop())
	require.NoError(t, b.Init())

	assert.NoError(t, b.Dump())
	assert.Empty(t, b.GetExportedFilePath())
	assert.NoError(t, b.Close())
}

func TestClose_NotInitialized(t *testing.T) {
	b := New(config.SQLiteConfig{}, gormstorage.Options{}, zerolog.Nop())
	assert.NoError(t, b.Close())
}
