package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/visualizer/internal/config"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), filepath.Join(t.TempDir(), "backup.gz"))

	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.Error(t, m.WritePoint(influxdb2.NewPointWithMeasurement("visualizer_status")))
	assert.NoError(t, m.Close())
}

func TestConnect_UnreachableWritesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx", "backup.lp.gz")
	m := NewManager(config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "mosaic-metrics",
		Bucket:   "visualizer",
	}, zerolog.Nop(), path)
	assert.Equal(t, "http://127.0.0.1:1", m.URL())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.Valid())

	at := time.Unix(1700000000, 0)
	p := influxdb2.NewPoint("visualizer_status",
		map[string]string{"state": "connected"},
		map[string]any{"units": 3},
		at)
	require.NoError(t, m.WritePoint(p))
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	scanner := bufio.NewScanner(gz)
	require.True(t, scanner.Scan())
	assert.Equal(t, "visualizer_status,state=connected units=3i 1700000000000000000", scanner.Text())
}
