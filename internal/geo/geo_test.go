package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		wantError bool
	}{
		{name: "berlin", lat: 52.52, lon: 13.405},
		{name: "origin", lat: 0, lon: 0},
		{name: "bounds", lat: -90, lon: 180},
		{name: "latitude too large", lat: 90.1, lon: 0, wantError: true},
		{name: "longitude too small", lat: 0, lon: -180.5, wantError: true},
		{name: "nan", lat: math.NaN(), lon: 0, wantError: true},
		{name: "inf", lat: 0, lon: math.Inf(1), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.lat, tt.lon)
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidCoordinates)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProject_Origin(t *testing.T) {
	point := Project(0, 0)

	coords, ok := point.Coordinates()
	require.True(t, ok, "expected valid coordinates")
	assert.InDelta(t, 0, coords.X, 1e-6)
	assert.InDelta(t, 0, coords.Y, 1e-6)
}

func TestProject_NonZeroCoordinates(t *testing.T) {
	point := Project(52.52, 13.405)

	coords, ok := point.Coordinates()
	require.True(t, ok, "expected valid coordinates")

	// web mercator x is linear in longitude
	wantX := 13.405 * math.Pi / 180 * 6378137
	assert.InDelta(t, wantX, coords.X, 1)
	assert.Greater(t, coords.Y, 6_800_000.0)
	assert.Less(t, coords.Y, 6_900_000.0)
}

func TestProject_NegativeCoordinates(t *testing.T) {
	point := Project(-33.8688, -151.2093)

	coords, ok := point.Coordinates()
	require.True(t, ok, "expected valid coordinates")
	assert.Less(t, coords.X, 0.0)
	assert.Less(t, coords.Y, 0.0)
}

func TestPoint4326_AxisOrder(t *testing.T) {
	point := Point4326(48.1, 8.2)

	coords, ok := point.Coordinates()
	require.True(t, ok, "expected valid coordinates")
	assert.Equal(t, 8.2, coords.X)
	assert.Equal(t, 48.1, coords.Y)
}

func TestPoint4326_NonFiniteIsEmpty(t *testing.T) {
	point := Point4326(math.NaN(), 8.2)
	assert.True(t, point.IsEmpty())

	_, ok := Project(0, math.Inf(1)).Coordinates()
	assert.False(t, ok)
}
