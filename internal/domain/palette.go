package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB is an exact pixel color. It doubles as the grouping key for vectorization.
type RGB struct {
	R, G, B uint8
}

// Hex formats the color as lowercase #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses #rrggbb (the leading # is optional).
func ParseHex(s string) (RGB, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("parse color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Ramp is an ordered palette of reference colors from lightest to heaviest rain.
type Ramp []RGB

// DefaultRamp is the radar product's 30-step rainfall color scale.
var DefaultRamp = mustRamp(
	"#40FFFD", "#3BEEEC", "#32D0D2", "#2CB9BD", "#229698", "#1C827D",
	"#1B8742", "#229F44", "#27B240", "#2CC53B", "#30D43E", "#38EF46",
	"#3BFB49", "#59FA61", "#FEFB63", "#FDFA53", "#FDEB50", "#FDD74A",
	"#FCC344", "#FAB03F", "#FAA23D", "#FB8938", "#FB7133", "#F94C2D",
	"#F9282A", "#DD1423", "#BE0F1D", "#B21867", "#D028A6", "#F93DF5",
)

func mustRamp(hexes ...string) Ramp {
	r := make(Ramp, len(hexes))
	for i, h := range hexes {
		c, err := ParseHex(h)
		if err != nil {
			panic(err)
		}
		r[i] = c
	}
	return r
}

// Nearest returns the index of the ramp entry closest to c by Euclidean RGB
// distance. Ties go to the lowest index.
func (r Ramp) Nearest(c RGB) int {
	best, bestDist := 0, -1
	for i, p := range r {
		dr := int(c.R) - int(p.R)
		dg := int(c.G) - int(p.G)
		db := int(c.B) - int(p.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return best
}

// Intensity maps a ramp index to its 1–100 band: ceil((index+1)/len*100).
func (r Ramp) Intensity(index int) int {
	n := len(r)
	return ((index+1)*100 + n - 1) / n
}

// Classify returns the intensity level of a pixel, 0 when fully transparent.
func (r Ramp) Classify(c RGB, alpha uint8) int {
	if alpha == 0 || len(r) == 0 {
		return 0
	}
	return r.Intensity(r.Nearest(c))
}
