package layer

import (
	"sort"

	"github.com/OCAP2/visualizer/internal/geo"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Layer is the shared collection of all active markers. It is not
// synchronized; the owner serializes access.
type Layer struct {
	markers map[*Marker]struct{}
}

// New creates an empty layer.
func New() *Layer {
	return &Layer{markers: make(map[*Marker]struct{})}
}

// Add inserts a marker. Adding the same marker twice is a no-op.
func (l *Layer) Add(m *Marker) {
	if m == nil {
		return
	}
	l.markers[m] = struct{}{}
}

// Remove deletes a marker. Unknown markers are ignored.
func (l *Layer) Remove(m *Marker) {
	delete(l.markers, m)
}

// Clear drops every marker.
func (l *Layer) Clear() {
	l.markers = make(map[*Marker]struct{})
}

// Len returns the number of markers.
func (l *Layer) Len() int {
	return len(l.markers)
}

// Markers returns all markers sorted by name.
func (l *Layer) Markers() []*Marker {
	out := make([]*Marker, 0, len(l.markers))
	for m := range l.markers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// FeatureCollection exports the layer as GeoJSON features in lon/lat.
// Markers that were never placed are exported with an empty geometry.
func (l *Layer) FeatureCollection() geom.GeoJSONFeatureCollection {
	markers := l.Markers()
	fc := make(geom.GeoJSONFeatureCollection, 0, len(markers))
	for _, m := range markers {
		g := geom.NewEmptyPoint(geom.DimXY).AsGeometry()
		if lat, lon, ok := m.Position(); ok {
			g = geo.Point4326(lat, lon).AsGeometry()
		}
		fc = append(fc, geom.GeoJSONFeature{
			Geometry:   g,
			ID:         m.name,
			Properties: m.Properties(),
		})
	}
	return fc
}
