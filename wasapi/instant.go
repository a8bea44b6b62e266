package wasapi

import (
	"fmt"
	"math"
	"time"
)

// StreamInstant is a point in time on the platform's performance counter
// clock, with nanosecond resolution.
type StreamInstant struct {
	ns int64
}

// NewStreamInstant returns the instant secs seconds and nanos nanoseconds
// after the clock's origin.
func NewStreamInstant(secs int64, nanos uint32) StreamInstant {
	return StreamInstant{ns: secs*int64(time.Second) + int64(nanos)}
}

// streamInstantFromPerfCounter converts a position expressed in 100ns units.
func streamInstantFromPerfCounter(pos uint64) (StreamInstant, bool) {
	if pos > math.MaxInt64/100 {
		return StreamInstant{}, false
	}
	return StreamInstant{ns: int64(pos) * 100}, true
}

// Nanoseconds since the clock's origin.
func (si StreamInstant) Nanoseconds() int64 {
	return si.ns
}

// DurationSince returns the time elapsed from earlier to si. The second
// return value is false if earlier is after si.
func (si StreamInstant) DurationSince(earlier StreamInstant) (time.Duration, bool) {
	if earlier.ns > si.ns {
		return 0, false
	}
	return time.Duration(si.ns - earlier.ns), true
}

// Add returns si+d. The second return value is false on overflow.
func (si StreamInstant) Add(d time.Duration) (StreamInstant, bool) {
	res := si.ns + int64(d)
	if (d > 0 && res < si.ns) || (d < 0 && res > si.ns) {
		return StreamInstant{}, false
	}
	return StreamInstant{ns: res}, true
}

// Sub returns si-d. The second return value is false on overflow.
func (si StreamInstant) Sub(d time.Duration) (StreamInstant, bool) {
	if d == math.MinInt64 {
		return StreamInstant{}, false
	}
	return si.Add(-d)
}

// Before is true if si is before other.
func (si StreamInstant) Before(other StreamInstant) bool {
	return si.ns < other.ns
}

func (si StreamInstant) String() string {
	return fmt.Sprintf("%d.%09ds", si.ns/int64(time.Second), si.ns%int64(time.Second))
}
