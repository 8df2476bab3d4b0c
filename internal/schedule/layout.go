package schedule

import (
	"cmp"
	"slices"

	"classcal/internal/model"
)

// Layout assigns a horizontal track to every occurrence of one day so that
// occurrences whose [start, end) intervals intersect never share a track.
//
// Occurrences are placed in (start, end) order, each on the lowest track
// whose full span is still free minute by minute. TotalTracks is the
// highest track used plus one and is the same for every placement of the
// day. The greedy pass does not try to minimise width.
//
// All occurrences must share one date; use LayoutDays for a multi-day set.
// The result is in placement order.
func Layout(day []model.Occurrence) []model.Placement {
	if len(day) == 0 {
		return nil
	}

	ordered := slices.Clone(day)
	slices.SortStableFunc(ordered, func(a, b model.Occurrence) int {
		if c := cmp.Compare(a.StartMinute, b.StartMinute); c != 0 {
			return c
		}
		if c := cmp.Compare(a.EndMinute, b.EndMinute); c != 0 {
			return c
		}
		return cmp.Compare(a.DefinitionIndex, b.DefinitionIndex)
	})

	// occupied[track][minute]
	var occupied [][MinutesPerDay]bool

	placements := make([]model.Placement, 0, len(ordered))
	maxTrack := 0
	for _, o := range ordered {
		start, end := clampMinute(o.StartMinute), clampMinute(o.EndMinute)

		track := 0
		for ; track < len(occupied); track++ {
			if spanFree(&occupied[track], start, end) {
				break
			}
		}
		if track == len(occupied) {
			occupied = append(occupied, [MinutesPerDay]bool{})
		}
		for m := start; m < end; m++ {
			occupied[track][m] = true
		}

		if track > maxTrack {
			maxTrack = track
		}
		placements = append(placements, model.Placement{Occurrence: o, Track: track})
	}

	for i := range placements {
		placements[i].TotalTracks = maxTrack + 1
	}
	return placements
}

// LayoutDays groups occs by date and lays out each day independently.
func LayoutDays(occs []model.Occurrence) map[model.Date][]model.Placement {
	out := make(map[model.Date][]model.Placement)
	for date, day := range GroupByDate(occs) {
		out[date] = Layout(day)
	}
	return out
}

func spanFree(track *[MinutesPerDay]bool, start, end int) bool {
	for m := start; m < end; m++ {
		if track[m] {
			return false
		}
	}
	return true
}

func clampMinute(m int) int {
	if m < 0 {
		return 0
	}
	if m > MinutesPerDay {
		return MinutesPerDay
	}
	return m
}
