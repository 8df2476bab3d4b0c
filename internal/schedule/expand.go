package schedule

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "classcal/internal/log"
	"classcal/internal/model"
)

// ExpandResult wraps the expanded occurrences and the definitions that were
// excluded because they failed validation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	Problems    []Problem
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Expand turns a snapshot of definitions into the concrete occurrences that
// fall inside the inclusive window w.
//
// An occurrence exists for definition D on date X iff weekday(X) is one of
// D's weekdays, D.ValidFrom <= X <= D.ValidUntil and X is not one of D's
// exception dates. Invalid definitions are skipped and reported in
// ExpandResult.Problems; they never abort the batch.
//
// The result is in canonical order (see SortCanonical).
func Expand(defs []model.EventDefinition, w model.Window) (ExpandResult, error) {
	var result ExpandResult

	if w.End.Before(w.Start) {
		return result, fmt.Errorf("expand %s: %w", w, ErrWindowOutOfOrder)
	}

	occurrences := make([]model.Occurrence, 0)

	for i := range defs {
		def := &defs[i]
		c, err := compile(def, i)
		if err != nil {
			p := Problem{Index: i, Definition: def, Err: err}
			result.Problems = append(result.Problems, p)
			appLog.Warn("expand: skipping invalid definition", "index", i, "definition", def.Label(), "err", err)
			continue
		}
		occurrences = append(occurrences, expandCompiled(c, w)...)
	}

	SortCanonical(occurrences)
	result.Occurrences = occurrences

	appLog.Debug("expand completed",
		"window", w.String(),
		"definitions", len(defs),
		"occurrences", len(occurrences),
		"problems", len(result.Problems),
	)
	return result, nil
}

// expandCompiled expands one validated definition within w.
func expandCompiled(c compiled, w model.Window) []model.Occurrence {
	// Quick range check: a definition entirely outside w contributes nothing.
	if c.validFrom.After(w.End) || c.validUntil.Before(w.Start) {
		return nil
	}

	// With a weekly interval of one, clamping DTSTART/UNTIL to the window
	// yields the same dates and keeps iteration bounded by the window.
	from := latest(c.validFrom, w.Start)
	until := earliest(c.validUntil, w.End)

	byDay := make([]rrule.Weekday, 0, len(c.weekdays))
	for _, wd := range c.weekdays {
		byDay = append(byDay, rruleWeekdays[wd])
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   from.Time(time.UTC),
		Until:     until.Time(time.UTC),
		Byweekday: byDay,
	})
	if err != nil {
		appLog.Error("expand: failed to build rule", err, "definition", c.def.Label())
		return nil
	}

	var set rrule.Set
	set.RRule(r)

	// Exception dates outside the validity range never match the rule, so
	// they are harmless here.
	for _, ex := range c.exceptions {
		set.ExDate(ex.Time(time.UTC))
	}

	dates := set.Between(from.Time(time.UTC), until.Time(time.UTC), true)

	out := make([]model.Occurrence, 0, len(dates))
	for _, t := range dates {
		out = append(out, model.Occurrence{
			Definition:      c.def,
			DefinitionIndex: c.index,
			Date:            model.DateOf(t),
			StartMinute:     c.start,
			EndMinute:       c.end,
		})
	}
	return out
}

func latest(a, b model.Date) model.Date {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b model.Date) model.Date {
	if a.Before(b) {
		return a
	}
	return b
}
