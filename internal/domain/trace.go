package domain

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// direction of a boundary edge in map terms; rows grow southward.
type direction uint8

const (
	east direction = iota
	north
	west
	south
)

func (d direction) left() direction  { return (d + 1) % 4 }
func (d direction) right() direction { return (d + 3) % 4 }

func (d direction) delta() (dx, dy int) {
	switch d {
	case east:
		return 1, 0
	case north:
		return 0, -1
	case west:
		return -1, 0
	default:
		return 0, 1
	}
}

// latticeRing is a closed boundary in lattice coordinates (column, row).
// Only corners are kept and the first point is not repeated.
type latticeRing struct {
	xs, ys []int

	// area2 is twice the signed area as drawn on the map: positive for
	// counter-clockwise (exterior) rings, negative for holes.
	area2 int64

	// sample lies at the center of a member cell bordering the ring.
	sample orb.Point

	minX, minY, maxX, maxY int
}

func (r latticeRing) contains(p orb.Point) bool {
	if p[0] < float64(r.minX) || p[0] > float64(r.maxX) || p[1] < float64(r.minY) || p[1] > float64(r.maxY) {
		return false
	}
	ring := make(orb.Ring, 0, len(r.xs)+1)
	for i := range r.xs {
		ring = append(ring, orb.Point{float64(r.xs[i]), float64(r.ys[i])})
	}
	ring = append(ring, ring[0])
	return planar.RingContains(ring, p)
}

func (r latticeRing) geoRing(region Region, width, height int) orb.Ring {
	ring := make(orb.Ring, 0, len(r.xs)+1)
	for i := range r.xs {
		ring = append(ring, orb.Point{region.Lon(r.xs[i], width), region.Lat(r.ys[i], height)})
	}
	return append(ring, ring[0])
}

// cellGrid is the label layer the tracer walks: label[y*width+x] is the color
// group of the cell, or -1 for no rain.
type cellGrid struct {
	width, height int
	label         []int32
}

func (g cellGrid) member(x, y int, group int32) bool {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return false
	}
	return g.label[y*g.width+x] == group
}

// traceGroup dissolves the member cells of group (row-major indices) into
// boundary rings. Every edge keeps its member cell on the left, so exteriors
// come out counter-clockwise and holes clockwise. At a vertex where two cells
// touch only diagonally the tracer turns left; if the two cells are joined
// elsewhere the cycle comes back through that vertex, and it is split there
// so every emitted ring is simple.
func (g cellGrid) traceGroup(cells []int32, group int32) []latticeRing {
	stride := g.width + 1

	var (
		from []int32
		dirs []direction
	)
	out := make(map[int32]*[4]int32, len(cells))
	addEdge := func(x, y int, d direction) {
		v := int32(y*stride + x)
		slots, ok := out[v]
		if !ok {
			slots = &[4]int32{-1, -1, -1, -1}
			out[v] = slots
		}
		slots[d] = int32(len(from))
		from = append(from, v)
		dirs = append(dirs, d)
	}

	for _, c := range cells {
		x, y := int(c)%g.width, int(c)/g.width
		if !g.member(x, y+1, group) {
			addEdge(x, y+1, east)
		}
		if !g.member(x+1, y, group) {
			addEdge(x+1, y+1, north)
		}
		if !g.member(x, y-1, group) {
			addEdge(x+1, y, west)
		}
		if !g.member(x-1, y, group) {
			addEdge(x, y, south)
		}
	}

	used := make([]bool, len(from))
	next := func(e int32) int32 {
		dx, dy := dirs[e].delta()
		slots := out[from[e]+int32(dy*stride+dx)]
		if slots == nil {
			return -1
		}
		for _, d := range [3]direction{dirs[e].left(), dirs[e], dirs[e].right()} {
			if n := slots[d]; n >= 0 && !used[n] {
				return n
			}
		}
		return -1
	}

	// Only a vertex with two outgoing edges can be passed twice.
	pinch := func(v int32) bool {
		n := 0
		for _, e := range out[v] {
			if e >= 0 {
				n++
			}
		}
		return n > 1
	}

	var rings []latticeRing
	seq := make([]int32, 0, 64)
	for s := range from {
		if used[s] {
			continue
		}
		start := int32(s)
		seq = seq[:0]
		for cur := start; ; {
			seq = append(seq, cur)
			n := next(cur)
			if n < 0 || n == start {
				break
			}
			used[n] = true
			cur = n
		}
		used[start] = true
		for _, loop := range splitPinches(seq, from, pinch) {
			rings = append(rings, buildRing(loop, from, dirs, stride))
		}
	}
	return rings
}

// splitPinches breaks an edge cycle into simple loops at every pinch vertex
// it passes through twice. Each loop still keeps member cells on its left.
func splitPinches(seq, from []int32, pinch func(v int32) bool) [][]int32 {
	var (
		loops [][]int32
		stack []int32
		at    map[int32]int
	)
	for _, e := range seq {
		v := from[e]
		if !pinch(v) {
			stack = append(stack, e)
			continue
		}
		if at == nil {
			at = make(map[int32]int)
		}
		if i, ok := at[v]; ok {
			loop := append([]int32(nil), stack[i:]...)
			for _, le := range loop {
				delete(at, from[le])
			}
			loops = append(loops, loop)
			stack = stack[:i]
		}
		at[v] = len(stack)
		stack = append(stack, e)
	}
	if loops == nil {
		return [][]int32{seq}
	}
	return append(loops, stack)
}

func buildRing(seq []int32, from []int32, dirs []direction, stride int) latticeRing {
	var r latticeRing
	n := len(seq)
	for i, e := range seq {
		prev := seq[(i+n-1)%n]
		if dirs[prev] == dirs[e] {
			continue
		}
		x, y := int(from[e])%stride, int(from[e])/stride
		r.xs = append(r.xs, x)
		r.ys = append(r.ys, y)
	}

	r.minX, r.minY, r.maxX, r.maxY = r.xs[0], r.ys[0], r.xs[0], r.ys[0]
	for i := range r.xs {
		j := (i + 1) % len(r.xs)
		// Rows grow southward, so the map-oriented shoelace flips the sign.
		r.area2 += int64(r.xs[j]*r.ys[i] - r.xs[i]*r.ys[j])
		r.minX, r.maxX = min(r.minX, r.xs[i]), max(r.maxX, r.xs[i])
		r.minY, r.maxY = min(r.minY, r.ys[i]), max(r.maxY, r.ys[i])
	}

	first := seq[0]
	x0, y0 := int(from[first])%stride, int(from[first])/stride
	dx, dy := dirs[first].delta()
	lx, ly := dirs[first].left().delta()
	r.sample = orb.Point{
		float64(x0) + 0.5*float64(dx+lx),
		float64(y0) + 0.5*float64(dy+ly),
	}
	return r
}

// assemblePolygons attaches each hole to the smallest exterior containing it.
// The result keeps exteriors in discovery order, each followed by its holes.
func assemblePolygons(rings []latticeRing) [][]latticeRing {
	var polys [][]latticeRing
	var holes []latticeRing
	for _, r := range rings {
		if r.area2 > 0 {
			polys = append(polys, []latticeRing{r})
		} else {
			holes = append(holes, r)
		}
	}
	for _, h := range holes {
		best := -1
		for i, p := range polys {
			if !p[0].contains(h.sample) {
				continue
			}
			if best < 0 || p[0].area2 < polys[best][0].area2 {
				best = i
			}
		}
		if best >= 0 {
			polys[best] = append(polys[best], h)
		}
	}
	return polys
}

// rewind enforces RFC 7946 winding: exterior rings counter-clockwise, holes clockwise.
func rewind(mp orb.MultiPolygon) {
	for _, p := range mp {
		for i, r := range p {
			want := orb.CW
			if i == 0 {
				want = orb.CCW
			}
			if o := r.Orientation(); o != 0 && o != want {
				r.Reverse()
			}
		}
	}
}
