package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rainarea-service/internal/domain"
	"github.com/couchcryptid/rainarea-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const publishTimeout = 5 * time.Second

// RasterFetcher downloads the radar frame for a slot.
type RasterFetcher interface {
	FetchRaster(ctx context.Context, slot domain.SlotID) (domain.RasterImage, error)
}

// Vectorizer converts a decoded frame into a snapshot.
type Vectorizer interface {
	Vectorize(raster domain.RasterImage, slot domain.SlotID) (*domain.Snapshot, error)
}

// HistoryStore caches snapshots built for explicit historical requests.
type HistoryStore interface {
	Get(slot domain.SlotID) (*domain.Snapshot, bool)
	Put(slot domain.SlotID, snap *domain.Snapshot)
}

// SnapshotPublisher announces each new cache generation.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, event domain.SnapshotPublished) error
}

// Settings tunes the refresh loop and historical lookups.
type Settings struct {
	Interval      time.Duration
	FallbackSteps int
	HistoryRate   float64
	HistoryBurst  int
}

// Outcome reports what one refresh tick did.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Entry is one immutable cache generation. Payloads are encoded once when the
// entry is built so readers never pay for serialization.
type Entry struct {
	Snapshot      *domain.Snapshot
	GeoJSON       []byte
	Compact       []byte
	GeneratedAt   time.Time
	FallbackDepth int
}

// Slot is the slot the entry was built from.
func (e *Entry) Slot() domain.SlotID { return e.Snapshot.SlotID }

// Refresher owns the rolling snapshot cache. A single background loop moves
// it forward; readers load the current entry without locking.
type Refresher struct {
	fetcher    RasterFetcher
	vectorizer Vectorizer
	history    HistoryStore
	publisher  SnapshotPublisher
	limiter    *rate.Limiter
	settings   Settings
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	current atomic.Pointer[Entry]
	running atomic.Bool
}

// New creates a Refresher. history may be nil to disable the historical LRU.
func New(f RasterFetcher, v Vectorizer, history HistoryStore, s Settings, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	return &Refresher{
		fetcher:    f,
		vectorizer: v,
		history:    history,
		limiter:    rate.NewLimiter(rate.Limit(s.HistoryRate), s.HistoryBurst),
		settings:   s,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
		metrics:    metrics,
	}
}

// SetPublisher attaches an event sink for new cache generations.
func (r *Refresher) SetPublisher(p SnapshotPublisher) {
	r.publisher = p
}

// SetClock replaces the clock used for slot resolution and the ticker.
// It must be called before Serve.
func (r *Refresher) SetClock(c clockwork.Clock) {
	r.clock = c
}

// Now resolves the slot the wall clock is currently in.
func (r *Refresher) Now() domain.SlotID {
	return domain.ResolveCurrentSlot(r.clock, 0)
}

// CheckReadiness returns nil once a snapshot is cached.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if r.current.Load() == nil {
		return errors.New("no radar snapshot cached yet")
	}
	return nil
}

func (r *Refresher) String() string { return "refresher" }

// Serve runs the refresh loop until ctx is cancelled. The first tick fires
// immediately. A tick that arrives while the previous refresh is still in
// flight is dropped.
func (r *Refresher) Serve(ctx context.Context) error {
	r.logger.Info("refresher started",
		"interval", r.settings.Interval,
		"fallback_steps", r.settings.FallbackSteps,
	)

	var wg sync.WaitGroup
	defer wg.Wait()
	tick := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Refresh(ctx)
		}()
	}

	ticker := r.clock.NewTicker(r.settings.Interval)
	defer ticker.Stop()

	tick()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.Chan():
			tick()
		}
	}
}

// Refresh performs one tick: resolve the current slot and walk the fallback
// chain until a slot builds or the cached slot is reached. Failures never
// escape; the previous entry keeps serving.
func (r *Refresher) Refresh(ctx context.Context) Outcome {
	if !r.running.CompareAndSwap(false, true) {
		r.metrics.TicksSkipped.Inc()
		r.logger.Debug("refresh still in flight, skipping tick")
		return OutcomeSkipped
	}
	defer r.running.Store(false)

	outcome := r.refresh(ctx)
	r.metrics.RefreshRuns.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (r *Refresher) refresh(ctx context.Context) Outcome {
	cached := r.current.Load()
	chain := domain.FallbackChain(r.Now(), r.settings.FallbackSteps)

	var lastErr error
	for depth, slot := range chain {
		if cached != nil && !cached.Slot().Before(slot) {
			if depth > 0 {
				r.logger.Info("no newer radar frame, keeping cached snapshot",
					"cached", cached.Slot().String(), "current", chain[0].String(), "error", lastErr)
			}
			return OutcomeUnchanged
		}

		snap, err := r.build(ctx, slot)
		if err == nil {
			var entry *Entry
			entry, err = r.newEntry(snap, depth)
			if err == nil {
				r.current.Store(entry)
				r.observe(entry)
				r.publish(ctx, entry)
				return OutcomeUpdated
			}
		}

		lastErr = err
		if ctx.Err() != nil {
			return OutcomeFailed
		}
		r.logger.Debug("slot unavailable, stepping back", "slot", slot.String(), "depth", depth, "error", err)
	}

	r.logger.Error("refresh exhausted fallback chain",
		"current", chain[0].String(), "attempts", len(chain), "error", lastErr)
	return OutcomeFailed
}

func (r *Refresher) build(ctx context.Context, slot domain.SlotID) (*domain.Snapshot, error) {
	raster, err := r.fetcher.FetchRaster(ctx, slot)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	snap, err := r.vectorizer.Vectorize(raster, slot)
	if err != nil {
		return nil, fmt.Errorf("vectorize %s: %w", slot, err)
	}
	r.metrics.VectorizeDuration.Observe(time.Since(start).Seconds())
	return snap, nil
}

func (r *Refresher) newEntry(snap *domain.Snapshot, depth int) (*Entry, error) {
	geo, err := snap.MarshalGeoJSON()
	if err != nil {
		return nil, err
	}
	compact, err := snap.MarshalCompact()
	if err != nil {
		return nil, err
	}
	return &Entry{
		Snapshot:      snap,
		GeoJSON:       geo,
		Compact:       compact,
		GeneratedAt:   r.clock.Now(),
		FallbackDepth: depth,
	}, nil
}

func (r *Refresher) observe(e *Entry) {
	cov := e.Snapshot.Coverage
	r.metrics.CurrentSlot.Set(float64(e.Slot()))
	r.metrics.FallbackDepth.Observe(float64(e.FallbackDepth))
	r.metrics.Coverage.WithLabelValues("all").Set(cov.All)
	r.metrics.Coverage.WithLabelValues("region").Set(cov.Region)
	r.metrics.PolygonCount.Set(float64(e.Snapshot.PolygonCount()))

	r.logger.Info("snapshot updated",
		"slot", e.Slot().String(),
		"fallback_depth", e.FallbackDepth,
		"coverage_all", domain.ShortenPercentage(cov.All),
		"coverage_region", domain.ShortenPercentage(cov.Region),
		"polygons", e.Snapshot.PolygonCount(),
	)
}

func (r *Refresher) publish(ctx context.Context, e *Entry) {
	if r.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	event := domain.NewSnapshotPublished(e.Snapshot, e.GeneratedAt, e.FallbackDepth)
	if err := r.publisher.PublishSnapshot(ctx, event); err != nil {
		r.logger.Warn("publish snapshot event failed", "slot", e.Slot().String(), "error", err)
		return
	}
	r.metrics.SnapshotsPublished.Inc()
}

// GetCurrent returns the cached entry without blocking. Before the first
// successful refresh it returns domain.ErrSnapshotUnavailable.
func (r *Refresher) GetCurrent() (*Entry, error) {
	e := r.current.Load()
	if e == nil {
		return nil, domain.ErrSnapshotUnavailable
	}
	return e, nil
}

// CoveragePercentages returns the cached snapshot's coverage rounded to two decimals.
func (r *Refresher) CoveragePercentages() (domain.Coverage, error) {
	e, err := r.GetCurrent()
	if err != nil {
		return domain.Coverage{}, err
	}
	return e.Snapshot.Coverage.Rounded(), nil
}

// GetHistorical builds the snapshot for one explicit slot. The input is
// validated before any I/O; there is no fallback stepping. A slot the
// provider never published yields domain.ErrSnapshotNotFound.
func (r *Refresher) GetHistorical(ctx context.Context, raw string) (*domain.Snapshot, error) {
	slot, err := domain.ParseSlotID(raw)
	if err != nil {
		return nil, err
	}

	if e := r.current.Load(); e != nil && e.Slot() == slot {
		r.metrics.HistoryCache.WithLabelValues("hit").Inc()
		return e.Snapshot, nil
	}
	if r.history != nil {
		if snap, ok := r.history.Get(slot); ok {
			r.metrics.HistoryCache.WithLabelValues("hit").Inc()
			return snap, nil
		}
	}
	r.metrics.HistoryCache.WithLabelValues("miss").Inc()

	if !r.limiter.Allow() {
		r.metrics.HistoryCache.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: slot %s", domain.ErrRateLimited, slot)
	}

	snap, err := r.build(ctx, slot)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: slot %s: %w", domain.ErrSnapshotNotFound, slot, err)
		}
		return nil, err
	}
	if r.history != nil {
		r.history.Put(slot, snap)
	}
	return snap, nil
}
