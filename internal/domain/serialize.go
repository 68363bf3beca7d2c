package domain

import (
	"fmt"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"
)

// jsonCodec routes orb's GeoJSON encoding through goccy/go-json.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return gojson.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return gojson.Unmarshal(data, v) }

func init() {
	geojson.CustomJSONMarshaler = jsonCodec{}
	geojson.CustomJSONUnmarshaler = jsonCodec{}
}

// FeatureCollection renders the snapshot as GeoJSON: one MultiPolygon feature
// per color layer tagged with its display color and intensity, the raster
// bbox, and the slot ID as a foreign member.
func (s *Snapshot) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(s.BBox)
	fc.ExtraMembers = geojson.Properties{"id": s.SlotID.String()}
	for _, l := range s.Layers {
		f := geojson.NewFeature(l.Geometry)
		f.Properties["color"] = l.Color.Hex()
		f.Properties["intensity"] = l.Intensity
		fc.Append(f)
	}
	return fc
}

// MarshalGeoJSON encodes the snapshot's FeatureCollection.
func (s *Snapshot) MarshalGeoJSON() ([]byte, error) {
	data, err := s.FeatureCollection().MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal geojson %s: %w", s.SlotID, err)
	}
	return data, nil
}

// CompactSnapshot ships the raw intensity grid instead of polygon geometry
// for clients that render on their side.
type CompactSnapshot struct {
	ID       string   `json:"id"`
	DT       int64    `json:"dt"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Coverage Coverage `json:"coverage_percentage"`
	Data     [][]int  `json:"data"`
}

// Compact returns the grid form of the snapshot.
func (s *Snapshot) Compact() CompactSnapshot {
	return CompactSnapshot{
		ID:       s.SlotID.String(),
		DT:       int64(s.SlotID),
		Width:    s.Width,
		Height:   s.Height,
		Coverage: s.Coverage.Rounded(),
		Data:     s.Rows(),
	}
}

// MarshalCompact encodes the compact grid form.
func (s *Snapshot) MarshalCompact() ([]byte, error) {
	data, err := gojson.Marshal(s.Compact())
	if err != nil {
		return nil, fmt.Errorf("marshal compact %s: %w", s.SlotID, err)
	}
	return data, nil
}

// RenderASCII encodes each intensity as one character (level+33, space for no
// rain), trims trailing spaces per row and joins rows with newlines.
func RenderASCII(s *Snapshot) string {
	var b strings.Builder
	b.Grow((s.Width + 1) * s.Height)
	row := make([]rune, s.Width)
	for y := 0; y < s.Height; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < s.Width; x++ {
			if lvl := s.Level(x, y); lvl > 0 {
				row[x] = rune(lvl + 33)
			} else {
				row[x] = ' '
			}
		}
		b.WriteString(strings.TrimRight(string(row), " "))
	}
	return b.String()
}

// ASCIIDocument prefixes the rendered grid with the slot ID line.
func ASCIIDocument(s *Snapshot) string {
	return s.SlotID.String() + "\n" + RenderASCII(s)
}
