package schedule

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcal/internal/model"
)

func mondayLecture() model.EventDefinition {
	return model.EventDefinition{
		Title:          "Linear Algebra",
		Identifier:     "MATH-201",
		Location:       "Hall B",
		InstructorName: "Dr. Ito",
		Weekdays:       []string{"Monday"},
		ValidFrom:      "2025-09-01",
		ValidUntil:     "2025-11-29",
		StartTime:      "09:00",
		EndTime:        "10:30",
		ExceptionDates: []string{"2025-09-29"},
	}
}

func window(start, end string) model.Window {
	return model.Window{Start: model.MustParseDate(start), End: model.MustParseDate(end)}
}

func dates(occs []model.Occurrence) []string {
	out := make([]string, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Date.String())
	}
	return out
}

func TestExpandMondayWithException(t *testing.T) {
	t.Parallel()
	defs := []model.EventDefinition{mondayLecture()}

	res, err := Expand(defs, window("2025-09-01", "2025-09-30"))
	require.NoError(t, err)
	assert.Empty(t, res.Problems)
	assert.Equal(t, []string{"2025-09-01", "2025-09-08", "2025-09-15", "2025-09-22"}, dates(res.Occurrences))

	for _, o := range res.Occurrences {
		assert.Equal(t, 9*60, o.StartMinute)
		assert.Equal(t, 10*60+30, o.EndMinute)
		assert.Same(t, &defs[0], o.Definition)
		assert.Equal(t, 0, o.DefinitionIndex)
	}
}

func TestExpandHonoursValidityRange(t *testing.T) {
	t.Parallel()
	def := mondayLecture()
	def.Weekdays = []string{"Monday", "Wednesday", "Friday"}
	def.ValidFrom = "2025-09-03"
	def.ValidUntil = "2025-09-12"
	def.ExceptionDates = nil

	res, err := Expand([]model.EventDefinition{def}, window("2025-08-25", "2025-09-21"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-09-03", "2025-09-05", "2025-09-08", "2025-09-10", "2025-09-12"}, dates(res.Occurrences))
}

func TestExpandDefinitionOutsideWindow(t *testing.T) {
	t.Parallel()
	res, err := Expand([]model.EventDefinition{mondayLecture()}, window("2026-01-01", "2026-01-31"))
	require.NoError(t, err)
	assert.Empty(t, res.Occurrences)
	assert.Empty(t, res.Problems)

	res, err = Expand([]model.EventDefinition{mondayLecture()}, window("2025-08-01", "2025-08-31"))
	require.NoError(t, err)
	assert.Empty(t, res.Occurrences)
}

func TestExpandExceptionOutsideRangeHasNoEffect(t *testing.T) {
	t.Parallel()
	def := mondayLecture()
	def.ExceptionDates = []string{"2025-12-01", "2025-08-25", "not-a-date"}

	res, err := Expand([]model.EventDefinition{def}, window("2025-09-01", "2025-09-30"))
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 5)
	assert.Empty(t, res.Problems)
}

func TestExpandReportsProblemsWithoutAborting(t *testing.T) {
	t.Parallel()
	good := mondayLecture()

	badTime := mondayLecture()
	badTime.StartTime = "9h"

	inverted := mondayLecture()
	inverted.StartTime, inverted.EndTime = "11:00", "10:00"

	backwards := mondayLecture()
	backwards.ValidFrom, backwards.ValidUntil = "2025-12-01", "2025-09-01"

	noDays := mondayLecture()
	noDays.Weekdays = []string{"Funday"}

	badDate := mondayLecture()
	badDate.ValidFrom = "2025/09/01"

	defs := []model.EventDefinition{badTime, good, inverted, backwards, noDays, badDate}
	res, err := Expand(defs, window("2025-09-01", "2025-09-30"))
	require.NoError(t, err)

	assert.Len(t, res.Occurrences, 4)
	for _, o := range res.Occurrences {
		assert.Equal(t, 1, o.DefinitionIndex)
	}

	require.Len(t, res.Problems, 5)
	wantKinds := []error{ErrMalformedTime, ErrInvalidRange, ErrInvalidRange, ErrEmptyWeekdaySet, ErrInvalidRange}
	wantIndex := []int{0, 2, 3, 4, 5}
	for i, p := range res.Problems {
		assert.Equal(t, wantIndex[i], p.Index)
		assert.Same(t, &defs[wantIndex[i]], p.Definition)
		assert.True(t, errors.Is(p, wantKinds[i]), "problem %d: %v", i, p)
		assert.Equal(t, wantKinds[i], p.Kind())
	}
}

func TestExpandRejectsReversedWindow(t *testing.T) {
	t.Parallel()
	_, err := Expand(nil, window("2025-09-30", "2025-09-01"))
	assert.ErrorIs(t, err, ErrWindowOutOfOrder)
}

func TestExpandCanonicalOrder(t *testing.T) {
	t.Parallel()
	late := mondayLecture()
	late.StartTime, late.EndTime = "13:00", "14:00"
	late.ExceptionDates = nil
	early := mondayLecture()
	early.ExceptionDates = nil
	twin := early

	res, err := Expand([]model.EventDefinition{late, early, twin}, window("2025-09-01", "2025-09-08"))
	require.NoError(t, err)
	got := make([]int, 0, len(res.Occurrences))
	for _, o := range res.Occurrences {
		got = append(got, o.DefinitionIndex)
	}
	assert.Equal(t, []int{1, 2, 0, 1, 2, 0}, got)
}

// naiveExists is the existence invariant written out directly.
func naiveExists(def model.EventDefinition, d model.Date) bool {
	from, until := model.MustParseDate(def.ValidFrom), model.MustParseDate(def.ValidUntil)
	if d.Before(from) || d.After(until) {
		return false
	}
	if !slices.Contains(def.Weekdays, d.Weekday().String()) {
		return false
	}
	return !slices.Contains(def.ExceptionDates, d.String())
}

func randomDefinition(rng *rand.Rand) model.EventDefinition {
	base := model.MustParseDate("2025-01-01")
	from := base.AddDays(rng.Intn(120))
	until := from.AddDays(rng.Intn(150))

	var weekdays []string
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if rng.Intn(3) == 0 {
			weekdays = append(weekdays, wd.String())
		}
	}
	if len(weekdays) == 0 {
		weekdays = []string{time.Weekday(rng.Intn(7)).String()}
	}

	var exceptions []string
	for i := 0; i < rng.Intn(6); i++ {
		exceptions = append(exceptions, base.AddDays(rng.Intn(300)).String())
	}

	start := rng.Intn(20) * 60
	return model.EventDefinition{
		Title:          "random",
		Weekdays:       weekdays,
		ValidFrom:      from.String(),
		ValidUntil:     until.String(),
		StartTime:      model.FormatMinute(start),
		EndTime:        model.FormatMinute(start + 30 + rng.Intn(180)),
		ExceptionDates: exceptions,
	}
}

func TestExpandExistenceInvariant(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	defs := make([]model.EventDefinition, 25)
	for i := range defs {
		defs[i] = randomDefinition(rng)
	}
	w := window("2025-01-01", "2025-10-31")

	res, err := Expand(defs, w)
	require.NoError(t, err)
	require.Empty(t, res.Problems)

	got := make(map[[2]int]bool)
	for _, o := range res.Occurrences {
		key := [2]int{o.DefinitionIndex, w.Start.DaysUntil(o.Date)}
		assert.False(t, got[key], "duplicate occurrence %v", o)
		got[key] = true
	}
	for i, def := range defs {
		for n, d := range w.Days() {
			assert.Equal(t, naiveExists(def, d), got[[2]int{i, n}], "definition %d on %s", i, d)
		}
	}
}

func TestExpandWindowBoundarySplit(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	defs := make([]model.EventDefinition, 15)
	for i := range defs {
		defs[i] = randomDefinition(rng)
	}

	a := model.MustParseDate("2025-02-01")
	c := model.MustParseDate("2025-05-31")
	for _, split := range []int{0, 1, 30, 59, 118} {
		b := a.AddDays(split)
		left, err := Expand(defs, model.Window{Start: a, End: b})
		require.NoError(t, err)
		right, err := Expand(defs, model.Window{Start: b.AddDays(1), End: c})
		require.NoError(t, err)
		whole, err := Expand(defs, model.Window{Start: a, End: c})
		require.NoError(t, err)

		joined := append(slices.Clone(left.Occurrences), right.Occurrences...)
		SortCanonical(joined)
		assert.Equal(t, whole.Occurrences, joined, "split after %s", b)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{in: "00:00", want: 0, ok: true},
		{in: "09:05", want: 545, ok: true},
		{in: "9:05", want: 545, ok: true},
		{in: " 23:59 ", want: 1439, ok: true},
		{in: "24:00"},
		{in: "12:60"},
		{in: "12:5"},
		{in: "1200"},
		{in: "+1:00"},
		{in: "ab:cd"},
		{in: ""},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrMalformedTime, "ParseClock(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseClock(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseClock(%q)", tt.in)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Validate(mondayLecture()))

	def := mondayLecture()
	def.Weekdays = nil
	assert.ErrorIs(t, Validate(def), ErrEmptyWeekdaySet)

	def = mondayLecture()
	def.EndTime = "09:00"
	assert.ErrorIs(t, Validate(def), ErrInvalidRange)
}
