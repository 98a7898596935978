package layer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayer_AddRemove(t *testing.T) {
	l := New()
	a := NewMarker("a", "vehicle")
	b := NewMarker("b", "rsu")

	l.Add(a)
	l.Add(b)
	l.Add(a)
	require.Equal(t, 2, l.Len())

	l.Remove(a)
	assert.Equal(t, []*Marker{b}, l.Markers())

	// Removing twice is harmless.
	l.Remove(a)
	assert.Equal(t, 1, l.Len())
}

func TestLayer_AddNil(t *testing.T) {
	l := New()
	l.Add(nil)
	assert.Equal(t, 0, l.Len())
}

func TestLayer_Clear(t *testing.T) {
	l := New()
	l.Add(NewMarker("a", "vehicle"))
	l.Add(NewMarker("b", "vehicle"))

	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Markers())
}

func TestLayer_MarkersSortedByName(t *testing.T) {
	l := New()
	l.Add(NewMarker("veh_2", "vehicle"))
	l.Add(NewMarker("rsu_0", "rsu"))
	l.Add(NewMarker("veh_1", "vehicle"))

	var names []string
	for _, m := range l.Markers() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"rsu_0", "veh_1", "veh_2"}, names)
}

func TestMarker_IconSource(t *testing.T) {
	m := NewMarker("veh_0", "vehicle")
	assert.Equal(t, "", m.IconSource())

	m.SetStyle("car-sending")
	assert.Equal(t, "markers/car-sending.png", m.IconSource())
}

func TestLayer_FeatureCollectionJSON(t *testing.T) {
	l := New()

	placed := NewMarker("rsu_0", "rsu")
	placed.SetGeometry(52.5, 13.3)
	placed.SetStyle("roadside-unit")
	placed.Set("equipped", false)
	l.Add(placed)

	unplaced := NewMarker("veh_0", "vehicle")
	unplaced.SetStyle("car")
	l.Add(unplaced)

	data, err := json.Marshal(l.FeatureCollection())
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)

	rsu := fc.Features[0]
	assert.Equal(t, "rsu_0", rsu.ID)
	assert.Equal(t, "Point", rsu.Geometry.Type)
	assert.Equal(t, []float64{13.3, 52.5}, rsu.Geometry.Coordinates)
	assert.Equal(t, "roadside-unit", rsu.Properties["icon"])
	assert.Equal(t, "markers/roadside-unit.png", rsu.Properties["iconSrc"])
	assert.Contains(t, rsu.Properties, "projected")

	veh := fc.Features[1]
	assert.Equal(t, "veh_0", veh.ID)
	assert.Empty(t, veh.Geometry.Coordinates)
	assert.NotContains(t, veh.Properties, "projected")
}

func TestMarker_PropertiesDoNotShareIconAnchor(t *testing.T) {
	m := NewMarker("veh_0", "vehicle")

	anchor, ok := m.Properties()["iconAnchor"].([]float64)
	require.True(t, ok)
	anchor[0] = 42

	assert.Equal(t, [2]float64{0.5, 1}, IconAnchor)
	assert.Equal(t, []float64{0.5, 1}, m.Properties()["iconAnchor"])
}
