package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSlotFormat rejects slot input before any I/O is attempted.
	ErrInvalidSlotFormat = errors.New("invalid slot format")
	// ErrSnapshotNotFound means the provider never published a frame for the requested slot.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrSnapshotUnavailable means no snapshot has been built yet (cold cache).
	ErrSnapshotUnavailable = errors.New("snapshot not available yet")
	// ErrVectorize means the decoded raster was malformed.
	ErrVectorize = errors.New("vectorize raster")
	// ErrFetchFailed groups every raster acquisition failure.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrRateLimited rejects an uncached historical lookup over the upstream budget.
	ErrRateLimited = errors.New("historical lookups rate limited")
)

// Fetch failure causes carried by FetchError.
var (
	ErrNotFound           = errors.New("not found")
	ErrTimeout            = errors.New("timeout")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrDecode             = errors.New("decode error")
	ErrUpstream           = errors.New("upstream error")
	ErrMirrorUnavailable  = errors.New("mirror unavailable")
)

// FetchError is the single condition the orchestrator sees for a failed
// raster acquisition. Cause is one of the cause sentinels above.
type FetchError struct {
	Slot  SlotID
	Cause error
	Err   error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch raster %s: %v", e.Slot, e.Cause)
	}
	return fmt.Sprintf("fetch raster %s: %v: %v", e.Slot, e.Cause, e.Err)
}

// Is matches ErrFetchFailed and the cause sentinel.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed || target == e.Cause
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError builds a FetchError for slot with the given cause.
func NewFetchError(slot SlotID, cause, err error) *FetchError {
	return &FetchError{Slot: slot, Cause: cause, Err: err}
}
