// Package clock implements the campaign driver's timing primitives
// (component H): microsecond-accurate sleeping, round-trippable
// timestamp formatting, and the geometric spacing used to build bounds
// tables.
//
// Grounded on original_source/resources/timing.py (Sleeper, wrapping
// libc usleep) and resources/utils.py (getFormattedTime /
// reverseFormatTime). Go's time.Sleep has sufficient resolution on
// Linux for the sub-millisecond case this package exists to serve, so
// no cgo call into libc is reimplemented here — see DESIGN.md for why
// that is the one component left on the standard library.
package clock

import (
	"math"
	"time"
)

// TimestampLayout is the round-trippable format spec.md §4.H requires:
// "YYYY-MM-DD HH:MM:SS.ffffff".
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Now returns the current local time formatted per TimestampLayout.
func Now() string {
	return time.Now().Format(TimestampLayout)
}

// FormatTime formats an arbitrary time.Time per TimestampLayout.
func FormatTime(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTime parses a string previously produced by FormatTime/Now. The
// round trip FormatTime(ParseTime(s)) == s holds for any s it produced.
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}

// Sleep blocks for the given duration. Intervals below roughly 1ms are
// the common case inside the InjectFault state (spec.md §4.F step 3);
// time.Sleep's scheduler-timer resolution is adequate for this use on
// Linux, matching how the pack's other repos rely on stdlib timing
// rather than a dedicated high-resolution sleep library.
func Sleep(d time.Duration) {
	time.Sleep(d)
}

// SleepSeconds is a convenience wrapper taking a float64 second count,
// matching the original's Sleeper.sleep(seconds) signature.
func SleepSeconds(seconds float64) {
	if seconds <= 0 {
		return
	}
	Sleep(time.Duration(seconds * float64(time.Second)))
}

// GeomSpace returns n points geometrically spaced from start down to
// stop with the end point excluded, matching numpy.geomspace(start,
// stop, num=n, endpoint=False) as used to build the bounds step table
// in resources/threadFunctions.py's gdbCommunicator.
func GeomSpace(start, stop float64, n int) []float64 {
	if n <= 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	ratio := stop / start
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n) // endpoint=False: exponent never reaches 1.0
		out[i] = start * math.Pow(ratio, t)
	}
	return out
}
