package domain

import (
	"math"

	"github.com/paulmach/orb"
)

// ColorLayer is the dissolved geometry of every cell sharing one exact color.
type ColorLayer struct {
	Color     RGB
	Intensity int
	Cells     int
	Geometry  orb.MultiPolygon
}

// Coverage holds rain coverage as percentages (0–100).
type Coverage struct {
	All    float64 `json:"all"`
	Region float64 `json:"region"`
}

// Rounded returns the coverage shortened to two decimals for display.
func (c Coverage) Rounded() Coverage {
	return Coverage{All: ShortenPercentage(c.All), Region: ShortenPercentage(c.Region)}
}

// Snapshot is the immutable vectorized form of one radar frame.
type Snapshot struct {
	SlotID   SlotID
	BBox     orb.Bound
	Width    int
	Height   int
	Layers   []ColorLayer
	Coverage Coverage

	// Levels is the row-major intensity grid (0 = no rain, 1–100 otherwise).
	Levels []uint8
}

// Level returns the intensity of cell (x, y).
func (s *Snapshot) Level(x, y int) int {
	return int(s.Levels[y*s.Width+x])
}

// Rows returns the intensity grid as one slice per raster row.
func (s *Snapshot) Rows() [][]int {
	rows := make([][]int, s.Height)
	for y := range rows {
		row := make([]int, s.Width)
		for x := range row {
			row[x] = s.Level(x, y)
		}
		rows[y] = row
	}
	return rows
}

// PolygonCount is the number of polygons across all layers.
func (s *Snapshot) PolygonCount() int {
	n := 0
	for _, l := range s.Layers {
		n += len(l.Geometry)
	}
	return n
}

// ShortenPercentage rounds to two decimals.
func ShortenPercentage(p float64) float64 {
	return math.Round(p*100) / 100
}
