package layer

import (
	"fmt"
	"maps"

	"github.com/OCAP2/visualizer/internal/geo"
	geom "github.com/peterstace/simplefeatures/geom"
)

// IconAnchor is the relative anchor of every marker icon: horizontally
// centered, bottom edge on the position.
var IconAnchor = [2]float64{0.5, 1}

// Marker is the renderable representation of one unit. It is owned by
// exactly one unit view-model and lives in at most one Layer.
type Marker struct {
	name     string
	kind     string
	icon     string
	placed   bool
	lat, lon float64
	geometry geom.Point
	props    map[string]any
}

// NewMarker creates an unplaced marker without an icon.
func NewMarker(name, kind string) *Marker {
	return &Marker{
		name:     name,
		kind:     kind,
		geometry: geom.NewEmptyPoint(geom.DimXY),
		props:    map[string]any{},
	}
}

func (m *Marker) Name() string { return m.name }

// Kind is the marker type as map front-ends know it ("vehicle", "rsu", ...).
func (m *Marker) Kind() string { return m.kind }

func (m *Marker) Icon() string { return m.icon }

// IconSource is the asset path of the current icon.
func (m *Marker) IconSource() string {
	if m.icon == "" {
		return ""
	}
	return fmt.Sprintf("markers/%s.png", m.icon)
}

// Placed reports whether the marker has ever been given a geometry.
func (m *Marker) Placed() bool { return m.placed }

// Position returns the WGS84 position the geometry was computed from.
func (m *Marker) Position() (latitude, longitude float64, ok bool) {
	return m.lat, m.lon, m.placed
}

// Geometry returns the projected (EPSG:3857) point.
func (m *Marker) Geometry() geom.Point { return m.geometry }

// SetGeometry places the marker at the given WGS84 position.
func (m *Marker) SetGeometry(latitude, longitude float64) {
	m.lat, m.lon = latitude, longitude
	m.geometry = geo.Project(latitude, longitude)
	m.placed = true
}

// SetStyle sets the icon identifier.
func (m *Marker) SetStyle(icon string) {
	m.icon = icon
}

// Set stores a display property.
func (m *Marker) Set(key string, value any) {
	m.props[key] = value
}

// Properties returns a copy of the display properties including name,
// type and icon.
func (m *Marker) Properties() map[string]any {
	props := maps.Clone(m.props)
	props["name"] = m.name
	props["type"] = m.kind
	props["icon"] = m.icon
	props["iconSrc"] = m.IconSource()
	props["iconAnchor"] = []float64{IconAnchor[0], IconAnchor[1]}
	if m.placed {
		if c, ok := m.geometry.Coordinates(); ok {
			props["projected"] = []float64{c.X, c.Y}
		}
	}
	return props
}
