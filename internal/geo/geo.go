package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Markers are placed in EPSG:3857 (web mercator), the projection map
// front-ends render in. Positions arrive from MOSAIC as WGS84 lat/lon.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

var to3857 = wgs84.EPSG().Transform(4326, 3857)

// Validate checks that latitude and longitude are finite and in range.
func Validate(latitude, longitude float64) error {
	if math.IsNaN(latitude) || math.IsNaN(longitude) ||
		math.IsInf(latitude, 0) || math.IsInf(longitude, 0) {
		return ErrInvalidCoordinates
	}
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Project converts a WGS84 latitude/longitude into a web mercator point.
// Coordinates the projection cannot represent give an empty point.
func Project(latitude, longitude float64) geom.Point {
	x, y, _ := to3857(longitude, latitude, 0)
	return point(x, y)
}

// Point4326 returns an unprojected point with X=longitude and Y=latitude,
// the axis order GeoJSON expects. Non-finite input gives an empty point.
func Point4326(latitude, longitude float64) geom.Point {
	return point(longitude, latitude)
}

func point(x, y float64) geom.Point {
	p, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY)
	}
	return p
}
