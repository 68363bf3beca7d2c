package domain

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geo"
)

// Vectorizer converts decoded radar frames into snapshots. It holds only
// read-only configuration and is safe for concurrent use.
type Vectorizer struct {
	region       Region
	ramp         Ramp
	boundaryArea float64
	boundaryBox  orb.Bound
}

// NewVectorizer creates a Vectorizer for the given frame and color ramp.
func NewVectorizer(region Region, ramp Ramp) *Vectorizer {
	v := &Vectorizer{region: region, ramp: ramp}
	if len(region.Boundary) > 0 {
		v.boundaryArea = region.BoundaryArea()
		v.boundaryBox = region.Boundary.Bound()
	}
	return v
}

// Region returns the frame the vectorizer maps pixels into.
func (v *Vectorizer) Region() Region { return v.region }

type colorGroup struct {
	color     RGB
	intensity int
	cells     []int32
}

// Vectorize classifies every pixel, dissolves same-color cells into
// MultiPolygons and computes coverage in a single pass over the raster.
func (v *Vectorizer) Vectorize(raster RasterImage, slot SlotID) (*Snapshot, error) {
	if err := raster.Validate(); err != nil {
		return nil, err
	}

	w, h := raster.Width, raster.Height
	grid := cellGrid{width: w, height: h, label: make([]int32, w*h)}
	levels := make([]uint8, w*h)
	index := make(map[RGB]int32)
	var groups []*colorGroup
	lit := 0

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			c, alpha := raster.At(x, y)
			if alpha == 0 {
				grid.label[i] = -1
				continue
			}
			gi, ok := index[c]
			if !ok {
				gi = int32(len(groups))
				index[c] = gi
				groups = append(groups, &colorGroup{color: c, intensity: v.ramp.Classify(c, alpha)})
			}
			g := groups[gi]
			grid.label[i] = gi
			g.cells = append(g.cells, int32(i))
			levels[i] = uint8(g.intensity)
			lit++
		}
	}

	layers := make([]ColorLayer, 0, len(groups))
	for gi, g := range groups {
		polys := assemblePolygons(grid.traceGroup(g.cells, int32(gi)))
		mp := make(orb.MultiPolygon, 0, len(polys))
		for _, rings := range polys {
			poly := make(orb.Polygon, 0, len(rings))
			for _, r := range rings {
				poly = append(poly, r.geoRing(v.region, w, h))
			}
			mp = append(mp, poly)
		}
		rewind(mp)
		layers = append(layers, ColorLayer{
			Color:     g.color,
			Intensity: g.intensity,
			Cells:     len(g.cells),
			Geometry:  mp,
		})
	}

	return &Snapshot{
		SlotID: slot,
		BBox:   v.region.Bound(),
		Width:  w,
		Height: h,
		Layers: layers,
		Coverage: Coverage{
			All:    float64(lit) / float64(w*h) * 100,
			Region: v.regionCoverage(grid),
		},
		Levels: levels,
	}, nil
}

// regionCoverage is the geodesic area of lit cells inside the boundary over
// the boundary's area, as a percentage. Cells are disjoint, so summing each
// cell's clipped area equals the area of the boundary's intersection with the
// union of all lit cells.
func (v *Vectorizer) regionCoverage(grid cellGrid) float64 {
	if v.boundaryArea == 0 {
		return 0
	}
	w, h := grid.width, grid.height
	covered := 0.0
	for y := 0; y < h; y++ {
		top, bottom := v.region.Lat(y, h), v.region.Lat(y+1, h)
		if bottom > v.boundaryBox.Max[1] || top < v.boundaryBox.Min[1] {
			continue
		}
		for x := 0; x < w; x++ {
			if grid.label[y*w+x] < 0 {
				continue
			}
			cell := orb.Bound{
				Min: orb.Point{v.region.Lon(x, w), bottom},
				Max: orb.Point{v.region.Lon(x+1, w), top},
			}
			if !cell.Intersects(v.boundaryBox) {
				continue
			}
			clipped := clip.MultiPolygon(cell, v.region.Boundary.Clone())
			if len(clipped) == 0 {
				continue
			}
			covered += math.Abs(geo.Area(clipped))
		}
	}
	return covered / v.boundaryArea * 100
}
