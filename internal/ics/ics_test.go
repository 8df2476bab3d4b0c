package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcal/internal/clock"
	"classcal/internal/model"
	"classcal/internal/schedule"
)

func seoulClock(t *testing.T) *clock.Clock {
	t.Helper()
	clk, err := clock.Load("Asia/Seoul", clock.WithNow(clock.Fixed(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	return clk
}

func lecture() model.EventDefinition {
	return model.EventDefinition{
		Title:          "Algorithms",
		Identifier:     "CS-301",
		Location:       "Hall B",
		InstructorName: "Dr. Kim",
		Weekdays:       []string{"Monday", "Wednesday"},
		ValidFrom:      "2025-08-31",
		ValidUntil:     "2025-12-19",
		StartTime:      "10:00",
		EndTime:        "11:15",
		ExceptionDates: []string{"2025-10-06"},
	}
}

func expandDates(t *testing.T, defs []model.EventDefinition) []string {
	t.Helper()
	res, err := schedule.Expand(defs, model.Window{
		Start: model.MustParseDate("2025-08-01"),
		End:   model.MustParseDate("2026-01-31"),
	})
	require.NoError(t, err)
	require.Empty(t, res.Problems)
	out := make([]string, 0, len(res.Occurrences))
	for _, o := range res.Occurrences {
		out = append(out, o.String())
	}
	return out
}

func TestEncodeWritesWeeklyRule(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	errs := Encode(&buf, []model.EventDefinition{lecture()}, seoulClock(t))
	require.Empty(t, errs)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20251219T145959Z")
	assert.Contains(t, out, "20250901T100000")
	assert.Contains(t, out, "TZID=Asia/Seoul")
	assert.Contains(t, out, "X-CLASSCAL-IDENTIFIER:CS-301")
	assert.Contains(t, out, "SUMMARY:Algorithms")
}

func TestEncodeFixedOffsetUsesUTC(t *testing.T) {
	t.Parallel()
	clk, err := clock.Load("+09:00")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.Empty(t, Encode(&buf, []model.EventDefinition{lecture()}, clk))
	out := buf.String()
	assert.Contains(t, out, "DTSTART:20250901T010000Z")
	assert.NotContains(t, out, "TZID")
}

func TestEncodeSkipsInvalidDefinitions(t *testing.T) {
	t.Parallel()
	bad := lecture()
	bad.StartTime = "9am"

	var buf bytes.Buffer
	errs := Encode(&buf, []model.EventDefinition{bad, lecture()}, seoulClock(t))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], schedule.ErrMalformedTime)
	assert.Equal(t, 1, strings.Count(buf.String(), "BEGIN:VEVENT"))
}

func TestEncodeStableUIDs(t *testing.T) {
	t.Parallel()
	a, b := lecture(), lecture()
	assert.Equal(t, definitionUID(&a, 0), definitionUID(&b, 0))

	b.EndTime = "12:00"
	assert.NotEqual(t, definitionUID(&a, 0), definitionUID(&b, 0))
	b.EndTime = a.EndTime
	b.ValidUntil = "2025-11-28"
	assert.NotEqual(t, definitionUID(&a, 0), definitionUID(&b, 0))

	// Identical definitions at different positions stay distinct.
	assert.NotEqual(t, definitionUID(&a, 0), definitionUID(&a, 1))
}

func TestEncodeDuplicatesGetDistinctUIDs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.Empty(t, Encode(&buf, []model.EventDefinition{lecture(), lecture()}, seoulClock(t)))

	uids := map[string]bool{}
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, "UID:") {
			uids[strings.TrimSpace(line)] = true
		}
	}
	assert.Len(t, uids, 2)
}

func TestEncodeSkipsDefinitionWithoutOccurrence(t *testing.T) {
	t.Parallel()
	empty := model.EventDefinition{
		Title:      "Never",
		Weekdays:   []string{"Monday"},
		ValidFrom:  "2025-09-02",
		ValidUntil: "2025-09-05",
		StartTime:  "09:00",
		EndTime:    "10:00",
	}
	res, err := schedule.Expand([]model.EventDefinition{empty}, model.Window{
		Start: model.MustParseDate("2025-08-01"),
		End:   model.MustParseDate("2025-10-31"),
	})
	require.NoError(t, err)
	require.Empty(t, res.Occurrences)

	var buf bytes.Buffer
	errs := Encode(&buf, []model.EventDefinition{empty, lecture()}, seoulClock(t))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNoOccurrence)

	var p schedule.Problem
	require.ErrorAs(t, errs[0], &p)
	assert.Equal(t, 0, p.Index)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
	assert.NotContains(t, out, "20250908T090000")

	decoded, derrs := Decode(strings.NewReader(out), seoulClock(t))
	assert.Empty(t, derrs)
	assert.Len(t, decoded, 1)
}

func TestRoundTripPreservesOccurrences(t *testing.T) {
	t.Parallel()
	clk := seoulClock(t)
	defs := []model.EventDefinition{lecture()}

	var buf bytes.Buffer
	require.Empty(t, Encode(&buf, defs, clk))

	decoded, errs := Decode(&buf, clk)
	require.Empty(t, errs)
	require.Len(t, decoded, 1)

	got := decoded[0]
	assert.Equal(t, "CS-301", got.Identifier)
	assert.Equal(t, "Dr. Kim", got.InstructorName)
	assert.Equal(t, "Hall B", got.Location)
	assert.Equal(t, "10:00", got.StartTime)
	assert.Equal(t, "11:15", got.EndTime)
	assert.ElementsMatch(t, []string{"Monday", "Wednesday"}, got.Weekdays)
	assert.Equal(t, []string{"2025-10-06"}, got.ExceptionDates)

	assert.Equal(t, expandDates(t, defs), expandDates(t, decoded))
}

func TestDecodeSkipsUnsupportedEvents(t *testing.T) {
	t.Parallel()
	clk, err := clock.Load("UTC")
	require.NoError(t, err)

	src := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:count",
		"SUMMARY:Seminar",
		"DTSTART:20250902T130000Z",
		"DTEND:20250902T143000Z",
		"RRULE:FREQ=WEEKLY;BYDAY=TU,TH;COUNT=4",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:daily",
		"SUMMARY:Standup",
		"DTSTART:20250902T090000Z",
		"DTEND:20250902T091500Z",
		"RRULE:FREQ=DAILY;COUNT=3",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:forever",
		"SUMMARY:Club",
		"DTSTART:20250905T180000Z",
		"DTEND:20250905T190000Z",
		"RRULE:FREQ=WEEKLY",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:once",
		"SUMMARY:Exam",
		"DTSTART:20251020T090000Z",
		"DTEND:20251020T110000Z",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	defs, errs := Decode(strings.NewReader(src), clk)
	assert.Len(t, errs, 2)
	for _, e := range errs {
		assert.ErrorIs(t, e, errUnsupportedRule)
	}
	require.Len(t, defs, 2)

	assert.Equal(t, "Seminar", defs[0].Title)
	assert.Equal(t, []string{"Tuesday", "Thursday"}, defs[0].Weekdays)
	assert.Equal(t, "2025-09-02", defs[0].ValidFrom)
	assert.Equal(t, "2025-09-11", defs[0].ValidUntil)
	assert.Equal(t, "13:00", defs[0].StartTime)
	assert.Equal(t, "14:30", defs[0].EndTime)

	assert.Equal(t, "Exam", defs[1].Title)
	assert.Equal(t, []string{"Monday"}, defs[1].Weekdays)
	assert.Equal(t, "2025-10-20", defs[1].ValidFrom)
	assert.Equal(t, "2025-10-20", defs[1].ValidUntil)
}
