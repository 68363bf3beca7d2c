package domain

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitRegion maps lattice points straight onto degrees: lon = x, lat = size - y.
func unitRegion(size int) Region {
	return Region{LowerLat: 0, UpperLat: float64(size), LowerLong: 0, UpperLong: float64(size)}
}

func blankRaster(w, h int) RasterImage {
	return RasterImage{Width: w, Height: h, Pix: make([]uint8, w*h*4)}
}

func paint(r RasterImage, c RGB, cells ...[2]int) {
	for _, xy := range cells {
		i := (xy[1]*r.Width + xy[0]) * 4
		r.Pix[i], r.Pix[i+1], r.Pix[i+2], r.Pix[i+3] = c.R, c.G, c.B, 255
	}
}

func block(x0, y0, x1, y1 int) [][2]int {
	var cells [][2]int
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			cells = append(cells, [2]int{x, y})
		}
	}
	return cells
}

func TestVectorize_SingleBlock(t *testing.T) {
	raster := blankRaster(4, 4)
	paint(raster, DefaultRamp[10], block(1, 1, 2, 2)...)

	snap, err := NewVectorizer(unitRegion(4), DefaultRamp).Vectorize(raster, 202404261510)
	require.NoError(t, err)

	assert.Equal(t, SlotID(202404261510), snap.SlotID)
	assert.InDelta(t, 25.0, snap.Coverage.All, 1e-9)
	require.Len(t, snap.Layers, 1)

	layer := snap.Layers[0]
	assert.Equal(t, DefaultRamp[10], layer.Color)
	assert.Equal(t, 37, layer.Intensity)
	assert.Equal(t, 4, layer.Cells)

	want := orb.MultiPolygon{{{{1, 3}, {1, 1}, {3, 1}, {3, 3}, {1, 3}}}}
	if diff := cmp.Diff(want, layer.Geometry); diff != "" {
		t.Fatalf("geometry mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 0, snap.Level(0, 0))
	assert.Equal(t, 0, snap.Level(3, 3))
	assert.Equal(t, 37, snap.Level(1, 1))
	assert.Equal(t, "\n FF\n FF\n", RenderASCII(snap))
}

func TestVectorize_AdjacentCellsMerge(t *testing.T) {
	raster := blankRaster(3, 1)
	paint(raster, DefaultRamp[0], [2]int{0, 0}, [2]int{1, 0})

	snap, err := NewVectorizer(unitRegion(3), DefaultRamp).Vectorize(raster, 202404261510)
	require.NoError(t, err)
	require.Len(t, snap.Layers, 1)

	geom := snap.Layers[0].Geometry
	require.Len(t, geom, 1, "adjacent cells should dissolve into one polygon")
	require.Len(t, geom[0], 1)
	assert.Len(t, geom[0][0], 5, "no shared internal edge should survive")
	for _, p := range geom[0][0] {
		assert.NotEqual(t, 1.0, p[0], "internal edge at lon 1 leaked into ring: %v", geom[0][0])
	}
}

func TestVectorize_DiagonalCellsStaySeparate(t *testing.T) {
	raster := blankRaster(2, 2)
	paint(raster, DefaultRamp[5], [2]int{0, 0}, [2]int{1, 1})

	snap, err := NewVectorizer(unitRegion(2), DefaultRamp).Vectorize(raster, 202404261510)
	require.NoError(t, err)
	require.Len(t, snap.Layers, 1)

	geom := snap.Layers[0].Geometry
	require.Len(t, geom, 2)
	for _, poly := range geom {
		require.Len(t, poly, 1)
		assert.Len(t, poly[0], 5)
		assert.Equal(t, orb.CCW, poly[0].Orientation())
	}
}

func TestVectorize_HoleIsClockwise(t *testing.T) {
	raster := blankRaster(5, 5)
	ring := block(1, 1, 3, 3)
	paint(raster, DefaultRamp[20], ring...)
	raster.Pix[(2*5+2)*4+3] = 0 // punch the center

	snap, err := NewVectorizer(unitRegion(5), DefaultRamp).Vectorize(raster, 202404261510)
	require.NoError(t, err)
	require.Len(t, snap.Layers, 1)

	geom := snap.Layers[0].Geometry
	require.Len(t, geom, 1)
	require.Len(t, geom[0], 2, "expected exterior + hole")
	assert.Equal(t, orb.CCW, geom[0][0].Orientation())
	assert.Equal(t, orb.CW, geom[0][1].Orientation())
	assert.Equal(t, 8, snap.Layers[0].Cells)
}

func TestVectorize_IslandInsideHole(t *testing.T) {
	raster := blankRaster(7, 7)
	c := DefaultRamp[15]
	for _, xy := range block(1, 1, 5, 5) {
		if xy[0] >= 2 && xy[0] <= 4 && xy[1] >= 2 && xy[1] <= 4 {
			continue
		}
		paint(raster, c, xy)
	}
	paint(raster, c, [2]int{3, 3})

	snap, err := NewVectorizer(unitRegion(7), DefaultRamp).Vectorize(raster, 202404261510)
	require.NoError(t, err)
	require.Len(t, snap.Layers, 1)

	geom := snap.Layers[0].Geometry
	require.Len(t, geom, 2)
	assert.Len(t, geom[0], 2, "frame keeps its hole")
	assert.Len(t, geom[1], 1, "island has no hole")
	assert.Equal(t, orb.Ring{{3, 3}, {4, 3}, {4, 4}, {3, 4}, {3, 3}}, geom[1][0])
}

// requireSimpleLayer checks every ring is closed, never revisits a vertex and
// winds the RFC 7946 way, and that the polygons cover exactly the layer's
// cells (unitRegion makes one cell one square degree).
func requireSimpleLayer(t *testing.T, layer ColorLayer) {
	t.Helper()
	area := 0.0
	for pi, poly := range layer.Geometry {
		for ri, ring := range poly {
			require.True(t, ring.Closed(), "polygon %d ring %d not closed", pi, ri)
			seen := make(map[orb.Point]bool, len(ring))
			for _, p := range ring[:len(ring)-1] {
				require.False(t, seen[p], "polygon %d ring %d repeats vertex %v: %v", pi, ri, p, ring)
				seen[p] = true
			}
			want := orb.CW
			if ri == 0 {
				want = orb.CCW
			}
			require.Equal(t, want, ring.Orientation(), "polygon %d ring %d", pi, ri)
		}
		area += planar.Area(poly)
	}
	require.InDelta(t, float64(layer.Cells), area, 1e-9)
}

func TestVectorize_DiagonalHolesAreSeparateRings(t *testing.T) {
	raster := blankRaster(4, 4)
	paint(raster, DefaultRamp[12], block(0, 0, 3, 3)...)
	for _, xy := range [][2]int{{1, 1}, {2, 2}} {
		raster.Pix[(xy[1]*4+xy[0])*4+3] = 0
	}

	snap, err := NewVectorizer(unitRegion(4), DefaultRamp).Vectorize(raster, 202404261510)
	require.NoError(t, err)
	require.Len(t, snap.Layers, 1)
	requireSimpleLayer(t, snap.Layers[0])

	geom := snap.Layers[0].Geometry
	require.Len(t, geom, 1)
	require.Len(t, geom[0], 3, "exterior + one hole per empty cell")
	assert.ElementsMatch(t,
		[]orb.Bound{
			{Min: orb.Point{1, 2}, Max: orb.Point{2, 3}},
			{Min: orb.Point{2, 1}, Max: orb.Point{3, 2}},
		},
		[]orb.Bound{geom[0][1].Bound(), geom[0][2].Bound()},
	)
	assert.Len(t, geom[0][1], 5)
	assert.Len(t, geom[0][2], 5)
}

func TestVectorize_DiagonalClosureSplitsRing(t *testing.T) {
	// A 3x3 frame missing its bottom-right corner: (2,1) and (1,2) meet only
	// at a vertex, so the empty center touches the outside there.
	raster := blankRaster(3, 3)
	paint(raster, DefaultRamp[3], [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0},
		[2]int{0, 1}, [2]int{2, 1}, [2]int{0, 2}, [2]int{1, 2})

	snap, err := NewVectorizer(unitRegion(3), DefaultRamp).Vectorize(raster, 202404261510)
	require.NoError(t, err)
	require.Len(t, snap.Layers, 1)
	requireSimpleLayer(t, snap.Layers[0])

	geom := snap.Layers[0].Geometry
	require.Len(t, geom, 1)
	require.Len(t, geom[0], 2, "the enclosed cell becomes a hole touching the exterior")
	assert.ElementsMatch(t, []orb.Point{{1, 2}, {2, 2}, {2, 1}, {1, 1}}, []orb.Point(geom[0][1][:4]))
	assert.Contains(t, []orb.Point(geom[0][0]), orb.Point{2, 1}, "shell and hole share the pinch vertex")
}

func TestVectorize_RandomGridsYieldSimpleRings(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	colors := []RGB{DefaultRamp[2], DefaultRamp[20]}
	for i := 0; i < 300; i++ {
		w, h := 2+rng.IntN(8), 2+rng.IntN(8)
		raster := blankRaster(w, h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if n := rng.IntN(4); n < len(colors) {
					paint(raster, colors[n], [2]int{x, y})
				}
			}
		}
		region := Region{LowerLat: 0, UpperLat: float64(h), LowerLong: 0, UpperLong: float64(w)}
		snap, err := NewVectorizer(region, DefaultRamp).Vectorize(raster, 202404261510)
		require.NoError(t, err)
		for _, layer := range snap.Layers {
			requireSimpleLayer(t, layer)
		}
	}
}

func TestVectorize_GroupsByExactColor(t *testing.T) {
	raster := blankRaster(3, 1)
	base := DefaultRamp[3]
	nudged := RGB{R: base.R + 1, G: base.G, B: base.B}
	paint(raster, base, [2]int{0, 0})
	paint(raster, nudged, [2]int{1, 0})
	paint(raster, DefaultRamp[29], [2]int{2, 0})

	snap, err := NewVectorizer(unitRegion(3), DefaultRamp).Vectorize(raster, 202404261510)
	require.NoError(t, err)
	require.Len(t, snap.Layers, 3, "one layer per distinct color even within one band")

	assert.Equal(t, base, snap.Layers[0].Color)
	assert.Equal(t, nudged, snap.Layers[1].Color)
	assert.Equal(t, snap.Layers[0].Intensity, snap.Layers[1].Intensity)
	assert.Equal(t, 100, snap.Layers[2].Intensity)
}

func TestVectorize_Deterministic(t *testing.T) {
	raster := blankRaster(16, 12)
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			if (x*7+y*3)%5 == 0 {
				continue
			}
			paint(raster, DefaultRamp[(x*y+x)%30], [2]int{x, y})
		}
	}
	v := NewVectorizer(DefaultRegion(), DefaultRamp)

	a, err := v.Vectorize(raster, 202404261510)
	require.NoError(t, err)
	b, err := v.Vectorize(raster, 202404261510)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("vectorize not reproducible (-a +b):\n%s", diff)
	}
}

func TestVectorize_CoordinatesRounded(t *testing.T) {
	raster := blankRaster(7, 3)
	paint(raster, DefaultRamp[0], block(0, 0, 6, 2)...)

	snap, err := NewVectorizer(DefaultRegion(), DefaultRamp).Vectorize(raster, 202404261510)
	require.NoError(t, err)

	for _, poly := range snap.Layers[0].Geometry {
		for _, ring := range poly {
			for _, p := range ring {
				assert.Equal(t, roundCoord(p[0]), p[0])
				assert.Equal(t, roundCoord(p[1]), p[1])
			}
		}
	}
	assert.Equal(t, orb.Bound{Min: orb.Point{103.565, 1.156}, Max: orb.Point{104.13, 1.475}}, snap.Layers[0].Geometry.Bound())
}

func TestVectorize_RegionCoverage(t *testing.T) {
	region := Region{LowerLat: 0, UpperLat: 1, LowerLong: 0, UpperLong: 1}
	region.Boundary = orb.MultiPolygon{{{{0, 0}, {0.5, 0}, {0.5, 1}, {0, 1}, {0, 0}}}}
	v := NewVectorizer(region, DefaultRamp)

	west := blankRaster(4, 4)
	paint(west, DefaultRamp[2], block(0, 0, 1, 3)...)
	snap, err := v.Vectorize(west, 202404261510)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, snap.Coverage.All, 1e-9)
	assert.InDelta(t, 100.0, snap.Coverage.Region, 1e-6)

	east := blankRaster(4, 4)
	paint(east, DefaultRamp[2], block(2, 0, 3, 3)...)
	snap, err = v.Vectorize(east, 202404261510)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, snap.Coverage.Region, 1e-6)

	quarter := blankRaster(4, 4)
	paint(quarter, DefaultRamp[2], block(0, 0, 0, 3)...)
	snap, err = v.Vectorize(quarter, 202404261510)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, snap.Coverage.Region, 1e-3)
}

func TestVectorize_DefaultRegionCoverage(t *testing.T) {
	raster := blankRaster(40, 30)
	paint(raster, DefaultRamp[7], block(0, 0, 39, 29)...)

	snap, err := NewVectorizer(DefaultRegion(), DefaultRamp).Vectorize(raster, 202404261510)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, snap.Coverage.All, 1e-9)
	assert.InDelta(t, 100.0, snap.Coverage.Region, 1e-2)
	require.Len(t, snap.Layers[0].Geometry, 1)
}

func TestVectorize_EmptyRaster(t *testing.T) {
	snap, err := NewVectorizer(DefaultRegion(), DefaultRamp).Vectorize(blankRaster(5, 5), 202404261510)
	require.NoError(t, err)
	assert.Empty(t, snap.Layers)
	assert.Zero(t, snap.Coverage.All)
	assert.Zero(t, snap.Coverage.Region)
	assert.Equal(t, "\n\n\n\n", RenderASCII(snap))
}

func TestVectorize_MalformedRaster(t *testing.T) {
	v := NewVectorizer(DefaultRegion(), DefaultRamp)

	_, err := v.Vectorize(RasterImage{Width: 2, Height: 2, Pix: make([]uint8, 3)}, 202404261510)
	assert.True(t, errors.Is(err, ErrVectorize))

	_, err = v.Vectorize(RasterImage{}, 202404261510)
	assert.True(t, errors.Is(err, ErrVectorize))
}

func BenchmarkVectorize(b *testing.B) {
	raster := blankRaster(217, 120)
	for y := 0; y < 120; y++ {
		for x := 0; x < 217; x++ {
			if (x/9+y/7)%3 == 0 {
				paint(raster, DefaultRamp[(x/5+y/4)%30], [2]int{x, y})
			}
		}
	}
	v := NewVectorizer(DefaultRegion(), DefaultRamp)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.Vectorize(raster, 202404261510); err != nil {
			b.Fatal(err)
		}
	}
}
