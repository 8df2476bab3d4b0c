package schedule

import (
	"cmp"
	"slices"

	"classcal/internal/model"
)

// compareCanonical orders by (date, start minute), then by position of the
// source definition in the snapshot.
func compareCanonical(a, b model.Occurrence) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if c := cmp.Compare(a.StartMinute, b.StartMinute); c != 0 {
		return c
	}
	return cmp.Compare(a.DefinitionIndex, b.DefinitionIndex)
}

// SortCanonical sorts occurrences in place into canonical order.
func SortCanonical(occs []model.Occurrence) {
	slices.SortStableFunc(occs, compareCanonical)
}

// GroupByDate buckets occurrences by date, preserving their relative order.
func GroupByDate(occs []model.Occurrence) map[model.Date][]model.Occurrence {
	out := make(map[model.Date][]model.Occurrence)
	for _, o := range occs {
		out[o.Date] = append(out[o.Date], o)
	}
	return out
}
