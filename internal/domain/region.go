package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

//go:embed boundary.geojson
var defaultBoundary []byte

// coordPrecision is the number of decimal places emitted coordinates keep.
const coordPrecision = 1e4

// Region is the fixed geographic frame of the radar raster plus the
// region-of-interest boundary used for the second coverage figure.
type Region struct {
	LowerLat  float64
	UpperLat  float64
	LowerLong float64
	UpperLong float64

	// Boundary is the region-of-interest outline, distinct from the raster bbox.
	Boundary orb.MultiPolygon
}

// DefaultRegion returns the rain-area frame with the embedded Singapore outline.
func DefaultRegion() Region {
	boundary, err := ParseBoundary(defaultBoundary)
	if err != nil {
		panic(fmt.Sprintf("embedded boundary: %v", err))
	}
	return Region{
		LowerLat:  1.156,
		UpperLat:  1.475,
		LowerLong: 103.565,
		UpperLong: 104.130,
		Boundary:  boundary,
	}
}

// WithBoundary returns a copy of r using the given region-of-interest outline.
func (r Region) WithBoundary(b orb.MultiPolygon) Region {
	r.Boundary = b
	return r
}

// Bound is the raster's geographic bounding box.
func (r Region) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.LowerLong, r.LowerLat},
		Max: orb.Point{r.UpperLong, r.UpperLat},
	}
}

// Lon returns the rounded longitude of lattice column x in a raster of the given width.
func (r Region) Lon(x, width int) float64 {
	return roundCoord(r.LowerLong + float64(x)/float64(width)*(r.UpperLong-r.LowerLong))
}

// Lat returns the rounded latitude of lattice row y; rows grow southward.
func (r Region) Lat(y, height int) float64 {
	return roundCoord(r.UpperLat - float64(y)/float64(height)*(r.UpperLat-r.LowerLat))
}

// BoundaryArea is the geodesic area of the region-of-interest outline in m².
func (r Region) BoundaryArea() float64 {
	return math.Abs(geo.Area(r.Boundary))
}

// ParseBoundary reads every Polygon and MultiPolygon feature of a GeoJSON
// FeatureCollection into one MultiPolygon.
func ParseBoundary(data []byte) (orb.MultiPolygon, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundary: %w", err)
	}
	var mp orb.MultiPolygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		}
	}
	if len(mp) == 0 {
		return nil, errors.New("parse boundary: no polygon features")
	}
	return mp, nil
}

func roundCoord(v float64) float64 {
	return math.Round(v*coordPrecision) / coordPrecision
}
