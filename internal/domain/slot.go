package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
)

// RegionZone is the fixed UTC+8 offset slot identifiers are expressed in.
var RegionZone = time.FixedZone("SGT", 8*60*60)

// SlotMinutes is the publishing cadence of the radar product.
const SlotMinutes = 5

const slotLayout = "200601021504"

// SlotID identifies one published radar frame as YYYYMMDDHHMM in region time.
// The minute component is always a multiple of SlotMinutes.
type SlotID int64

// SlotAt returns the slot containing t shifted by offsetMinutes.
func SlotAt(t time.Time, offsetMinutes int) SlotID {
	local := t.In(RegionZone).Add(time.Duration(offsetMinutes) * time.Minute)
	minute := local.Minute() - local.Minute()%SlotMinutes
	return SlotID(int64(local.Year())*100000000 +
		int64(local.Month())*1000000 +
		int64(local.Day())*10000 +
		int64(local.Hour())*100 +
		int64(minute))
}

// ResolveCurrentSlot returns the slot for clock's current instant, optionally
// shifted by nowOffsetMinutes (negative values step into the past).
func ResolveCurrentSlot(clock clockwork.Clock, nowOffsetMinutes int) SlotID {
	return SlotAt(clock.Now(), nowOffsetMinutes)
}

// ResolveFallbackSlot returns the slot stepIndex five-minute steps before the current one.
func ResolveFallbackSlot(clock clockwork.Clock, stepIndex int) SlotID {
	return ResolveCurrentSlot(clock, -SlotMinutes*stepIndex)
}

// FallbackChain lists current followed by up to steps earlier slots, newest first.
func FallbackChain(current SlotID, steps int) []SlotID {
	chain := make([]SlotID, 0, steps+1)
	for i := 0; i <= steps; i++ {
		chain = append(chain, current.Add(-SlotMinutes*i))
	}
	return chain
}

// ParseSlotID validates a 12-digit YYYYMMDDHHMM string whose minute is a
// multiple of five and which names a real calendar instant.
func ParseSlotID(s string) (SlotID, error) {
	if len(s) != len(slotLayout) {
		return 0, fmt.Errorf("%w: %q is not 12 digits", ErrInvalidSlotFormat, s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidSlotFormat, s)
		}
	}
	if last := s[len(s)-1]; last != '0' && last != '5' {
		return 0, fmt.Errorf("%w: %q minute is not a 5-minute step", ErrInvalidSlotFormat, s)
	}
	if _, err := time.ParseInLocation(slotLayout, s, RegionZone); err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSlotFormat, s, err)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSlotFormat, s, err)
	}
	return SlotID(n), nil
}

// String formats the slot as a fixed-width 12-digit string.
func (s SlotID) String() string {
	return fmt.Sprintf("%012d", int64(s))
}

// IsZero reports whether the slot is unset.
func (s SlotID) IsZero() bool { return s == 0 }

// Time returns the instant the slot starts, in RegionZone.
func (s SlotID) Time() time.Time {
	n := int64(s)
	return time.Date(
		int(n/100000000),
		time.Month(n/1000000%100),
		int(n/10000%100),
		int(n/100%100),
		int(n%100),
		0, 0, RegionZone,
	)
}

// Add shifts the slot by minutes, rounding down to a slot boundary.
func (s SlotID) Add(minutes int) SlotID {
	return SlotAt(s.Time(), minutes)
}

// Before reports whether s is an earlier slot than other.
func (s SlotID) Before(other SlotID) bool { return s < other }
