// Command genmock writes a synthetic radar frame for local runs and tests.
// Rain cells are painted as elliptical blobs whose intensity falls off from
// the center along the default color ramp; everything else is transparent.
// The output is deterministic for a given seed.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/2024042615100000dBR.dpsri.png \
//	  -width 217 -height 120 -blobs 6 -seed 42
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/couchcryptid/rainarea-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Default frame dimensions match the upstream product.
const (
	defaultWidth  = 217
	defaultHeight = 120
)

type blob struct {
	cx, cy float64
	rx, ry float64
	peak   int // ramp index at the center
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output PNG path")
	width := flag.Int("width", defaultWidth, "frame width in pixels")
	height := flag.Int("height", defaultHeight, "frame height in pixels")
	blobs := flag.Int("blobs", 6, "number of rain cells")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("-out is required")
	}
	if *width <= 0 || *height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", *width, *height)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	cells := make([]blob, *blobs)
	for i := range cells {
		cells[i] = blob{
			cx:   rng.Float64() * float64(*width),
			cy:   rng.Float64() * float64(*height),
			rx:   4 + rng.Float64()*float64(*width)/8,
			ry:   3 + rng.Float64()*float64(*height)/8,
			peak: rng.IntN(len(domain.DefaultRamp)),
		}
	}

	img := paint(*width, *height, cells)
	if err := writePNG(*out, img); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	log.Printf("wrote %dx%d frame with %d cells: %s", *width, *height, len(cells), *out)

	printStats(img)
	return nil
}

// paint renders the cells; where cells overlap the heavier color wins.
func paint(width, height int, cells []blob) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	level := make([]int, width*height)
	for i := range level {
		level[i] = -1
	}

	for _, b := range cells {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dx := (float64(x) + 0.5 - b.cx) / b.rx
				dy := (float64(y) + 0.5 - b.cy) / b.ry
				d := math.Sqrt(dx*dx + dy*dy)
				if d >= 1 {
					continue
				}
				idx := int(float64(b.peak+1) * (1 - d))
				if idx > level[y*width+x] {
					level[y*width+x] = idx
				}
			}
		}
	}

	for i, idx := range level {
		if idx < 0 {
			continue
		}
		c := domain.DefaultRamp[min(idx, len(domain.DefaultRamp)-1)]
		img.SetNRGBA(i%width, i/width, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
	}
	return img
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printStats runs the frame through the vectorizer so test assertions can be
// updated from the output.
func printStats(img image.Image) {
	raster := domain.NewRasterFromImage(img)
	slot := domain.ResolveCurrentSlot(clockwork.NewRealClock(), 0)
	snap, err := domain.NewVectorizer(domain.DefaultRegion(), domain.DefaultRamp).Vectorize(raster, slot)
	if err != nil {
		log.Printf("vectorize: %v", err)
		return
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Colors: %d\n", len(snap.Layers))
	fmt.Printf("Polygons: %d\n", snap.PolygonCount())
	fmt.Printf("Coverage: all=%.2f%% region=%.2f%%\n",
		domain.ShortenPercentage(snap.Coverage.All), domain.ShortenPercentage(snap.Coverage.Region))
}
