// Package domain models the rain-area radar product and converts it into
// vector snapshots.
//
// # Data Source
//
// The radar provider publishes one PNG frame every five minutes, named after
// the frame's local time:
//
//	<base>/dpsri_70km_<YYYYMMDDHHMM>0000dBR.dpsri.png
//
// Frames cover a fixed bounding box (lat 1.156–1.475, lon 103.565–104.130).
// Pixel (0,0) is the north-west corner; rows run southward and columns run
// eastward, so latitude is interpolated from the upper edge downward.
//
// # Slots
//
// A slot is the five-minute bucket a frame belongs to, written as a 12-digit
// number in UTC+8 with the minute rounded down to a multiple of five, e.g.
// 202404261510. New frames appear a few minutes after their slot starts, so the
// newest slot is often missing and the service steps backward in five-minute
// increments until it finds a published frame. See [SlotAt] and [FallbackChain].
//
// # Pixel Encoding
//
// Transparent pixels (alpha = 0) mean no rain. Opaque pixels carry one of 30
// ramp colors from light cyan (drizzle) through green, yellow and red to
// magenta (extreme). Anti-aliasing and recompression can shift a color by a few
// units, so classification snaps to the nearest ramp entry by Euclidean RGB
// distance, ties going to the lighter entry:
//
//	intensity = ceil((rampIndex + 1) / 30 * 100)
//
// giving a 1–100 band where 0 is reserved for "no rain". See [Ramp.Classify].
//
// # Vectorization
//
// Every opaque pixel is a lattice cell. Cells are grouped by their exact RGB
// value (not by intensity band) and each group is dissolved into one
// MultiPolygon by tracing the boundary between member and non-member cells.
// Exterior rings are counter-clockwise and holes clockwise (RFC 7946).
// Coordinates are rounded to 4 decimal places (≈11 m). See [Vectorizer].
//
// # Coverage
//
// Two figures are reported: the share of lit pixels over the whole frame, and
// the share of the region-of-interest boundary (the Singapore outline by
// default) covered by lit cells, measured as geodesic area.
package domain
