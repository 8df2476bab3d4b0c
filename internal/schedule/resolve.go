package schedule

import (
	"slices"
	"time"

	"classcal/internal/clock"
	"classcal/internal/model"
)

// Resolution is the in-progress and upcoming occurrence relative to "now".
// Any field may be nil.
type Resolution struct {
	Current   *model.Occurrence
	Next      *model.Occurrence
	NextToday *model.Occurrence
}

// Resolve picks the current and next occurrences for the reference point
// (today, nowMinute).
//
//   - Current is on today with StartMinute <= nowMinute < EndMinute. When
//     several are in progress the first in canonical order wins.
//   - NextToday is the earliest occurrence today starting after nowMinute.
//   - Next is the earliest occurrence strictly in the future across all
//     dates in occs, so callers may pass a multi-week expansion.
//
// occs is not modified.
func Resolve(occs []model.Occurrence, today model.Date, nowMinute int) Resolution {
	sorted := slices.Clone(occs)
	SortCanonical(sorted)

	var res Resolution
	for i := range sorted {
		o := &sorted[i]
		switch o.Date.Compare(today) {
		case -1:
			continue
		case 0:
			if res.Current == nil && o.StartMinute <= nowMinute && nowMinute < o.EndMinute {
				res.Current = o
			}
			if o.StartMinute > nowMinute {
				if res.NextToday == nil {
					res.NextToday = o
				}
				if res.Next == nil {
					res.Next = o
				}
			}
		case 1:
			if res.Next == nil {
				res.Next = o
			}
		}
		// Canonical order puts later dates after today, so once Next is set
		// after today nothing else can change.
		if res.Next != nil && o.Date.After(today) {
			break
		}
	}
	return res
}

// ResolveAt is Resolve with the reference point taken from an instant in
// clk's zone.
func ResolveAt(occs []model.Occurrence, clk *clock.Clock, now time.Time) Resolution {
	return Resolve(occs, clk.DateOnly(now), clk.MinuteOfDay(now))
}
