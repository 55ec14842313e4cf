package schedule

import (
	"time"

	"github.com/aatumaykin/singleschedule/internal/constants"
)

// Tolerance is the catch-up window added to "now" when checking occurrences.
const Tolerance = constants.DueTolerance

// Epoch is the baseline for tasks that have never run.
var Epoch = time.Unix(0, 0).UTC()

// IsDue reports whether rule has an occurrence after lastRun that falls at or
// before now+Tolerance. A nil lastRun means the task never ran, so any past
// occurrence makes it due. However many occurrences were missed, the answer
// is a single true: the caller runs the task once and advances lastRun.
func IsDue(rule Rule, lastRun *time.Time, now time.Time) bool {
	next, ok := NextAfter(rule, lastRun)
	if !ok {
		return false
	}
	return !next.After(now.Add(Tolerance))
}

// NextAfter returns the first occurrence strictly after lastRun (or Epoch).
// ok is false for exhausted rules.
func NextAfter(rule Rule, lastRun *time.Time) (time.Time, bool) {
	if rule == nil {
		return time.Time{}, false
	}
	baseline := Epoch
	if lastRun != nil {
		baseline = *lastRun
	}
	next := rule.Next(baseline)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// Horizon is the last_run value recorded after a task runs at now: the end
// of the window this evaluation already covered. Recording it guarantees
// IsDue(rule, &horizon, now) is false for every rule.
func Horizon(now time.Time) time.Time {
	return now.Add(Tolerance)
}

// Preview lists up to n upcoming occurrences after from.
func Preview(rule Rule, from time.Time, n int) []time.Time {
	if rule == nil || n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = rule.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}
