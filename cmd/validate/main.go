// Command validate runs a radar frame through the vectorizer offline and
// checks the output for integrity: raster shape, color classification,
// polygon topology (closed rings, RFC 7946 winding, rounded coordinates
// within the bbox) and round-trip parity of the GeoJSON and compact payloads.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -frame data/mock/2024042615100000dBR.dpsri.png \
//	  -slot 202404261510 \
//	  -ascii
package main

import (
	"flag"
	"fmt"
	"image/png"
	"math"
	"os"

	"github.com/couchcryptid/rainarea-service/internal/domain"
	gojson "github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	framePath := flag.String("frame", "", "path to a radar PNG frame")
	slotFlag := flag.String("slot", "202404261510", "slot ID to stamp on the snapshot (yyyymmddHHMM)")
	boundaryPath := flag.String("boundary", "", "optional GeoJSON region-of-interest boundary")
	ascii := flag.Bool("ascii", false, "print the ASCII rendering")
	flag.Parse()

	if *framePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*framePath, *slotFlag, *boundaryPath, *ascii); code != 0 {
		os.Exit(code)
	}
}

func run(framePath, slotRaw, boundaryPath string, ascii bool) int {
	fmt.Println("=== Rain Area Frame Validation ===")
	fmt.Println()

	slot, err := domain.ParseSlotID(slotRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	region := domain.DefaultRegion()
	if boundaryPath != "" {
		data, err := os.ReadFile(boundaryPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read boundary: %v\n", err)
			return 1
		}
		b, err := domain.ParseBoundary(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
		region = region.WithBoundary(b)
	}

	raster, err := loadFrame(framePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load frame: %v\n", err)
		return 1
	}

	snap, err := domain.NewVectorizer(region, domain.DefaultRamp).Vectorize(raster, slot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: vectorize: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRaster(raster, snap),
		validateTopology(snap),
		validateGeoJSON(snap),
		validateCompact(snap),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Frame: %dx%d, %d colors, %d polygons\n",
		snap.Width, snap.Height, len(snap.Layers), snap.PolygonCount())
	fmt.Printf("Coverage: all=%.2f%% region=%.2f%%\n",
		domain.ShortenPercentage(snap.Coverage.All), domain.ShortenPercentage(snap.Coverage.Region))

	if ascii {
		fmt.Println()
		fmt.Println(domain.ASCIIDocument(snap))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadFrame(path string) (domain.RasterImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RasterImage{}, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return domain.RasterImage{}, err
	}
	return domain.NewRasterFromImage(img), nil
}

// ── Phase 1: Raster ──
// Every lit pixel must be classified and counted exactly once.

func validateRaster(raster domain.RasterImage, snap *domain.Snapshot) *phase {
	p := &phase{name: "Phase 1: Raster classification"}

	if snap.Width != raster.Width || snap.Height != raster.Height {
		p.errorf("snapshot is %dx%d, raster is %dx%d", snap.Width, snap.Height, raster.Width, raster.Height)
		return p
	}

	lit := 0
	for y := 0; y < raster.Height; y++ {
		for x := 0; x < raster.Width; x++ {
			c, alpha := raster.At(x, y)
			want := domain.DefaultRamp.Classify(c, alpha)
			if got := snap.Level(x, y); got != want {
				p.errorf("cell (%d,%d): level %d, want %d", x, y, got, want)
			}
			if alpha != 0 {
				lit++
			}
		}
	}

	cells := 0
	seen := make(map[domain.RGB]bool, len(snap.Layers))
	for _, l := range snap.Layers {
		if seen[l.Color] {
			p.errorf("color %s appears in more than one layer", l.Color.Hex())
		}
		seen[l.Color] = true
		cells += l.Cells
		if l.Intensity < 1 || l.Intensity > 100 {
			p.errorf("color %s: intensity %d out of range", l.Color.Hex(), l.Intensity)
		}
	}
	if cells != lit {
		p.errorf("layers cover %d cells, raster has %d lit pixels", cells, lit)
	}

	wantAll := float64(lit) / float64(raster.Width*raster.Height) * 100
	if math.Abs(snap.Coverage.All-wantAll) > 1e-9 {
		p.errorf("coverage.all %.4f, want %.4f", snap.Coverage.All, wantAll)
	}
	if snap.Coverage.Region < 0 || snap.Coverage.Region > 100 {
		p.errorf("coverage.region %.4f out of range", snap.Coverage.Region)
	}
	return p
}

// ── Phase 2: Topology ──

func validateTopology(snap *domain.Snapshot) *phase {
	p := &phase{name: "Phase 2: Polygon topology"}
	for _, l := range snap.Layers {
		for pi, poly := range l.Geometry {
			for ri, ring := range poly {
				checkRing(p, fmt.Sprintf("%s polygon %d ring %d", l.Color.Hex(), pi, ri), ring, ri == 0, snap.BBox)
			}
		}
	}
	return p
}

func checkRing(p *phase, label string, ring orb.Ring, exterior bool, bbox orb.Bound) {
	if len(ring) < 4 {
		p.errorf("%s: %d points, need at least 4", label, len(ring))
		return
	}
	if !ring.Closed() {
		p.errorf("%s: not closed", label)
	}

	want := orb.CW
	if exterior {
		want = orb.CCW
	}
	if o := ring.Orientation(); o != want {
		p.errorf("%s: orientation %v, want %v", label, o, want)
	}

	for _, pt := range ring {
		if !rounded(pt[0]) || !rounded(pt[1]) {
			p.errorf("%s: point %v has more than 4 decimals", label, pt)
			return
		}
		if !bbox.Contains(pt) {
			p.errorf("%s: point %v outside bbox", label, pt)
			return
		}
	}
}

func rounded(v float64) bool {
	return math.Abs(v*1e4-math.Round(v*1e4)) < 1e-6
}

// ── Phase 3: GeoJSON ──
// The encoded payload must decode back to the same features.

func validateGeoJSON(snap *domain.Snapshot) *phase {
	p := &phase{name: "Phase 3: GeoJSON round trip"}

	data, err := snap.MarshalGeoJSON()
	if err != nil {
		p.errorf("marshal: %v", err)
		return p
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		p.errorf("unmarshal: %v", err)
		return p
	}

	if id, _ := fc.ExtraMembers["id"].(string); id != snap.SlotID.String() {
		p.errorf("id %q, want %q", id, snap.SlotID.String())
	}
	if len(fc.Features) != len(snap.Layers) {
		p.errorf("%d features, want %d", len(fc.Features), len(snap.Layers))
		return p
	}
	for i, f := range fc.Features {
		l := snap.Layers[i]
		if f.Properties.MustString("color", "") != l.Color.Hex() {
			p.errorf("feature %d: color %v, want %s", i, f.Properties["color"], l.Color.Hex())
		}
		if f.Properties.MustInt("intensity", -1) != l.Intensity {
			p.errorf("feature %d: intensity %v, want %d", i, f.Properties["intensity"], l.Intensity)
		}
		mp, ok := f.Geometry.(orb.MultiPolygon)
		if !ok {
			p.errorf("feature %d: geometry %s, want MultiPolygon", i, f.Geometry.GeoJSONType())
			continue
		}
		if !orb.Equal(mp, l.Geometry) {
			p.errorf("feature %d: geometry differs after round trip", i)
		}
	}
	return p
}

// ── Phase 4: Compact ──

func validateCompact(snap *domain.Snapshot) *phase {
	p := &phase{name: "Phase 4: Compact grid round trip"}

	data, err := snap.MarshalCompact()
	if err != nil {
		p.errorf("marshal: %v", err)
		return p
	}
	var got domain.CompactSnapshot
	if err := gojson.Unmarshal(data, &got); err != nil {
		p.errorf("unmarshal: %v", err)
		return p
	}

	if got.ID != snap.SlotID.String() || got.DT != int64(snap.SlotID) {
		p.errorf("id %q dt %d, want %s", got.ID, got.DT, snap.SlotID)
	}
	if len(got.Data) != snap.Height {
		p.errorf("%d rows, want %d", len(got.Data), snap.Height)
		return p
	}
	for y, row := range got.Data {
		if len(row) != snap.Width {
			p.errorf("row %d: %d cells, want %d", y, len(row), snap.Width)
			continue
		}
		for x, v := range row {
			if v != snap.Level(x, y) {
				p.errorf("cell (%d,%d): %d, want %d", x, y, v, snap.Level(x, y))
			}
		}
	}
	return p
}
