package schedule

import (
	"time"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
)

// Wall drops the zone of t and keeps its wall clock, anchored in UTC.
// Slot ranges are compared in this frame, the same one the DATETIME
// columns hold, so every store orders ambiguous DST hours identically.
func Wall(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ValidRange reports whether end is strictly after start in wall-clock
// terms.
func ValidRange(start, end time.Time) bool {
	return Wall(end).After(Wall(start))
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect on
// the wall clock.  Both ranges must be expressed in the same facility
// location.  Ranges that only touch (one ends exactly when the other
// begins) do not overlap.  The predicate is symmetric.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return Wall(aStart).Before(Wall(bEnd)) && Wall(aEnd).After(Wall(bStart))
}

// FirstConflict returns the first active slot in existing whose range
// overlaps [start, end).  Slots cancelled by the facility are ignored.
// Callers must pass slots of a single facility.
func FirstConflict(existing []model.Slot, start, end time.Time) (model.Slot, bool) {
	for _, s := range existing {
		if !s.Active() {
			continue
		}
		if Overlaps(start, end, s.Start, s.End) {
			return s, true
		}
	}
	return model.Slot{}, false
}
