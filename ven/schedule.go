package ven

import (
	"time"
)

// ChooseIntervalAt is ChooseInterval with an explicit clock, for tests.
func ChooseIntervalAt(now, start time.Time, spans []time.Duration) (int, bool) {
	if len(spans) == 0 {
		return 0, false
	}
	if now.Before(start) {
		return -1, true
	}
	elapsed := now.Sub(start)
	for i, span := range spans {
		if elapsed < span {
			return i, true
		}
		elapsed -= span
	}
	return 0, false
}

// ChooseInterval is the reference IntervalChooser: walk the spans from
// the active period start until the elapsed time falls inside one.
func ChooseInterval(start time.Time, spans []time.Duration) (int, bool) {
	return ChooseIntervalAt(time.Now(), start, spans)
}
