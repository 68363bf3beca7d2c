// Package radar downloads rain-area radar frames from the upstream image host
// and its mirrors.
package radar

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rainarea-service/internal/config"
	"github.com/couchcryptid/rainarea-service/internal/domain"
	"github.com/couchcryptid/rainarea-service/internal/observability"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/sony/gobreaker/v2"
)

const (
	retryBackoff  = 200 * time.Millisecond
	maxImageBytes = 8 << 20
	pngMediaType  = "image/png"
)

// Client implements the raster fetcher over HTTP. The first base URL is the
// primary; failing over moves a sticky index so later fetches start at the
// mirror that last worked.
type Client struct {
	mirrors        []*mirror
	suffix         string
	retries        int
	requestTimeout time.Duration
	budget         time.Duration
	backoff        time.Duration
	httpClient     *http.Client
	sticky         atomic.Int32
	metrics        *observability.Metrics
	logger         *slog.Logger
}

type mirror struct {
	name    string
	baseURL string
	breaker *gobreaker.CircuitBreaker[domain.RasterImage]
}

// NewClient creates a radar client for the configured base URLs.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		suffix:         cfg.RadarURLSuffix,
		retries:        cfg.RadarRetries,
		requestTimeout: cfg.RadarRequestTimeout,
		budget:         cfg.RadarFetchBudget,
		backoff:        retryBackoff,
		httpClient:     &http.Client{},
		metrics:        metrics,
		logger:         logger,
	}
	for _, base := range cfg.RadarBaseURLs {
		c.mirrors = append(c.mirrors, c.newMirror(base))
	}
	return c
}

func (c *Client) newMirror(baseURL string) *mirror {
	name := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		name = u.Host
	}
	c.metrics.BreakerState.WithLabelValues(name).Set(0)

	breaker := gobreaker.NewCircuitBreaker[domain.RasterImage](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("mirror breaker state change", "mirror", name, "from", from.String(), "to", to.String())
			c.metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
		// A missing frame says nothing about the mirror's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
	})
	return &mirror{name: name, baseURL: baseURL, breaker: breaker}
}

// FetchRaster downloads and decodes the frame for slot. It walks the mirrors
// starting at the sticky one, retrying each up to the configured attempt
// count, all within one wall-clock budget. NotFound ends the walk at once.
func (c *Client) FetchRaster(ctx context.Context, slot domain.SlotID) (domain.RasterImage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	n := len(c.mirrors)
	start := int(c.sticky.Load())
	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		m := c.mirrors[idx]

		raster, err := c.fetchFromMirror(ctx, m, slot)
		if err == nil {
			return raster, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrNotFound) || ctx.Err() != nil {
			return domain.RasterImage{}, err
		}

		next := (idx + 1) % n
		if n > 1 && c.sticky.CompareAndSwap(int32(idx), int32(next)) {
			c.logger.Warn("switching radar mirror", "slot", slot.String(), "from", m.name, "to", c.mirrors[next].name, "error", err)
		}
	}
	return domain.RasterImage{}, lastErr
}

func (c *Client) fetchFromMirror(ctx context.Context, m *mirror, slot domain.SlotID) (domain.RasterImage, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			if !sharedretry.SleepWithContext(ctx, c.backoff) {
				return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrTimeout, ctx.Err())
			}
		}

		raster, err := m.breaker.Execute(func() (domain.RasterImage, error) {
			return c.fetchOnce(ctx, m, slot)
		})
		if err == nil {
			c.metrics.FetchAttempts.WithLabelValues(m.name, "success").Inc()
			return raster, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.FetchAttempts.WithLabelValues(m.name, "breaker_open").Inc()
			return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrMirrorUnavailable, err)
		}

		c.metrics.FetchAttempts.WithLabelValues(m.name, outcome(err)).Inc()
		lastErr = err
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RasterImage{}, err
		}
		if ctx.Err() != nil {
			return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrTimeout, ctx.Err())
		}
		c.logger.Debug("radar fetch attempt failed", "slot", slot.String(), "mirror", m.name, "attempt", attempt, "error", err)
	}
	return domain.RasterImage{}, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, m *mirror, slot domain.SlotID) (domain.RasterImage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, FrameURL(m.baseURL, slot, c.suffix), nil)
	if err != nil {
		return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrUpstream, fmt.Errorf("create request: %w", err))
	}

	start := time.Now()
	defer func() {
		c.metrics.FetchDuration.WithLabelValues(m.name).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrTimeout, err)
		}
		return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrNotFound, fmt.Errorf("%s: status %d", m.name, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrUpstream, fmt.Errorf("%s: status %d", m.name, resp.StatusCode))
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != pngMediaType {
		return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrInvalidContentType,
			fmt.Errorf("%s: content type %q", m.name, resp.Header.Get("Content-Type")))
	}

	img, err := png.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		if reqCtx.Err() != nil {
			return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrTimeout, reqCtx.Err())
		}
		return domain.RasterImage{}, domain.NewFetchError(slot, domain.ErrDecode, err)
	}
	return domain.NewRasterFromImage(img), nil
}

// FrameURL builds the image location for slot: base + slotID + "0000" + suffix.
func FrameURL(baseURL string, slot domain.SlotID, suffix string) string {
	return baseURL + slot.String() + "0000" + suffix
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrInvalidContentType):
		return "content_type"
	case errors.Is(err, domain.ErrDecode):
		return "decode"
	default:
		return "upstream"
	}
}
