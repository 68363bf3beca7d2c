package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/rainarea-service/internal/domain"
	gojson "github.com/goccy/go-json"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"

	historicalCacheControl = "public, max-age=31536000, immutable"
)

type format int

const (
	formatGeoJSON format = iota
	formatCompact
	formatASCII
)

func requestedFormat(r *http.Request) format {
	q := r.URL.Query()
	switch {
	case truthy(q.Get("ascii")):
		return formatASCII
	case truthy(q.Get("json")):
		return formatCompact
	default:
		return formatGeoJSON
	}
}

func truthy(v string) bool {
	return v != "" && v != "0" && !strings.EqualFold(v, "false")
}

type statusResponse struct {
	Data struct {
		Datetime string `json:"datetime"`
	} `json:"data"`
	Coverage      domain.Coverage `json:"coverage"`
	FallbackDepth int             `json:"fallback_depth"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	e, err := s.source.GetCurrent()
	if err != nil {
		s.writeError(w, err)
		return
	}
	var resp statusResponse
	resp.Data.Datetime = e.Slot().String()
	resp.Coverage = e.Snapshot.Coverage.Rounded()
	resp.FallbackDepth = e.FallbackDepth
	resp.GeneratedAt = e.GeneratedAt.UTC()

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	e, err := s.source.GetCurrent()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", currentCacheControl(s.source.Now(), e.Slot()))

	switch requestedFormat(r) {
	case formatASCII:
		writeBody(w, contentTypeText, []byte(domain.ASCIIDocument(e.Snapshot)))
	case formatCompact:
		writeBody(w, contentTypeJSON, e.Compact)
	default:
		writeBody(w, contentTypeJSON, e.GeoJSON)
	}
}

func (s *Server) handleNowID(w http.ResponseWriter, _ *http.Request) {
	e, err := s.source.GetCurrent()
	if err != nil {
		w.Header().Set("Cache-Control", "no-cache")
		writeBody(w, contentTypeText, nil)
		return
	}
	w.Header().Set("Cache-Control", currentCacheControl(s.source.Now(), e.Slot()))
	writeBody(w, contentTypeText, []byte(e.Slot().String()))
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	snap, err := s.source.GetHistorical(r.Context(), r.URL.Query().Get("datetime"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var (
		body        []byte
		contentType = contentTypeJSON
	)
	switch requestedFormat(r) {
	case formatASCII:
		body, contentType = []byte(domain.ASCIIDocument(snap)), contentTypeText
	case formatCompact:
		body, err = snap.MarshalCompact()
	default:
		body, err = snap.MarshalGeoJSON()
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", historicalCacheControl)
	writeBody(w, contentType, body)
}

// currentCacheControl lets browsers hold the current snapshot for a minute and
// shared caches until the next slot is due to be published.
func currentCacheControl(now, cached domain.SlotID) string {
	return fmt.Sprintf("public, max-age=60, s-maxage=%d", proxyMaxAge(now, cached))
}

func proxyMaxAge(now, cached domain.SlotID) int {
	behind := int(now.Time().Sub(cached.Time()) / time.Minute)
	return max(0, domain.SlotMinutes-behind) * 60
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", "status", status, "error", err)
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidSlotFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrSnapshotUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrFetchFailed), errors.Is(err, domain.ErrVectorize):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck // client went away
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	gojson.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
