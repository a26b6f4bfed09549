// Package timeslot holds the pure interval arithmetic behind slot
// computation: partitioning a working window into fixed-length slots and
// subtracting busy intervals. All intervals are half-open [Start, End).
package timeslot

import (
	"fmt"
	"time"
)

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// merely touch at a boundary do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Partition splits [windowStart, windowEnd) into contiguous slots of the
// given length, starting at windowStart. A trailing slot that would extend
// past windowEnd is discarded.
func Partition(windowStart, windowEnd time.Time, slotLen time.Duration) []Interval {
	if slotLen <= 0 || !windowEnd.After(windowStart) {
		return nil
	}
	var out []Interval
	for s := windowStart; !s.Add(slotLen).After(windowEnd); s = s.Add(slotLen) {
		out = append(out, Interval{Start: s, End: s.Add(slotLen)})
	}
	return out
}

// Subtract returns the candidates that overlap none of the busy intervals,
// preserving order.
func Subtract(candidates, busy []Interval) []Interval {
	var free []Interval
	for _, c := range candidates {
		if !overlapsAny(c, busy) {
			free = append(free, c)
		}
	}
	return free
}

func overlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}

// ParseClock parses a wall-clock time of day such as "10:00". Longer forms
// like "10:00:00" are tolerated; everything past minutes is ignored.
func ParseClock(s string) (hour, minute int, err error) {
	if len(s) < 5 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	t, err := time.Parse("15:04", s[:5])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
