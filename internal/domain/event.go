package domain

import "time"

// SnapshotPublished announces that the rolling cache moved to a new slot.
type SnapshotPublished struct {
	ID            string    `json:"id"`
	GeneratedAt   time.Time `json:"generated_at"`
	Coverage      Coverage  `json:"coverage_percentage"`
	Polygons      int       `json:"polygons"`
	FallbackDepth int       `json:"fallback_depth"`
}

// NewSnapshotPublished builds the event for a freshly cached snapshot.
func NewSnapshotPublished(s *Snapshot, generatedAt time.Time, fallbackDepth int) SnapshotPublished {
	return SnapshotPublished{
		ID:            s.SlotID.String(),
		GeneratedAt:   generatedAt.UTC(),
		Coverage:      s.Coverage.Rounded(),
		Polygons:      s.PolygonCount(),
		FallbackDepth: fallbackDepth,
	}
}
