package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSinks(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "mosaic-visualizer"})
	assert.Error(t, err)
}

func TestNew_FileExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "mosaic-visualizer",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())
	assert.Nil(t, p.meterProvider)

	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_MetricExporterInstallsGlobalProvider(t *testing.T) {
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })

	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "mosaic-visualizer",
		MetricWriter: &buf,
	})
	require.NoError(t, err)
	assert.Nil(t, p.LoggerProvider())
	assert.Equal(t, DefaultMetricInterval, p.config.MetricInterval)

	// Meters taken from the global provider, as the dispatcher and client do.
	counter, err := otel.Meter("github.com/OCAP2/visualizer/test").Int64Counter("client.messages.received")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, buf.String(), "client.messages.received")
	assert.Contains(t, buf.String(), "mosaic-visualizer")

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestProvider_Meter(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	counter, err := p.Meter("test").Int64Counter("units.registered")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}
