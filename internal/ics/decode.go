package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"classcal/internal/clock"
	appLog "classcal/internal/log"
	"classcal/internal/model"
)

var errUnsupportedRule = errors.New("unsupported recurrence rule")

// maxExpandedInstances guards COUNT-based rules when computing validUntil.
const maxExpandedInstances = 5000

// Decode parses an iCalendar stream into event definitions. Only weekly
// (or single) VEVENTs map onto definitions; anything else is skipped and
// reported in the error slice while the remaining events are still parsed.
//
// A nil definition slice with a non-empty error slice means the calendar
// itself could not be parsed.
func Decode(r io.Reader, clk *clock.Clock) ([]model.EventDefinition, []error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, []error{fmt.Errorf("ics parse: %w", err)}
	}

	defs := make([]model.EventDefinition, 0)
	var errs []error
	for _, ve := range cal.Events() {
		def, perr := decodeEvent(ve, clk.Location())
		if perr != nil {
			uid := ""
			if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
				uid = p.Value
			}
			// Log and skip this event, but keep parsing others.
			appLog.Warn("ics vevent skipped", "uid", uid, "err", perr)
			errs = append(errs, fmt.Errorf("vevent %q: %w", uid, perr))
			continue
		}
		defs = append(defs, def)
	}

	appLog.Info("ics parse completed", "event_count", len(defs), "skipped", len(errs))
	return defs, errs
}

func decodeEvent(ve *ical.VEvent, loc *time.Location) (model.EventDefinition, error) {
	var out model.EventDefinition

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(propIdentifier); p != nil {
		out.Identifier = p.Value
	}
	if p := ve.GetProperty(propInstructor); p != nil {
		out.InstructorName = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := parsePropTime(startProp, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	if !strings.Contains(startProp.Value, "T") {
		return out, errors.New("all-day events have no time interval")
	}

	var end time.Time
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		if end, err = parsePropTime(endProp, loc); err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
	} else {
		return out, errors.New("missing DTEND")
	}
	if model.DateOf(start) != model.DateOf(end) && !(end.Hour() == 0 && end.Minute() == 0 && model.DateOf(end) == model.DateOf(start).AddDays(1)) {
		return out, errors.New("event spans midnight")
	}

	out.StartTime = start.Format("15:04")
	out.EndTime = end.Format("15:04")
	if out.EndTime == "00:00" {
		out.EndTime = "23:59"
	}

	firstDate := model.DateOf(start)
	out.ValidFrom = firstDate.String()
	out.Weekdays = []string{firstDate.Weekday().String()}
	out.ValidUntil = out.ValidFrom

	if rp := ve.GetProperty(ical.ComponentPropertyRrule); rp != nil {
		weekdays, until, rerr := decodeRule(rp.Value, start, loc)
		if rerr != nil {
			return out, rerr
		}
		out.Weekdays = weekdays
		out.ValidUntil = until.String()
	}

	out.ExceptionDates = []string{}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, perr := parseICSTime(part, tzidOf(p), loc)
			if perr != nil {
				appLog.Warn("ics: ignoring malformed EXDATE", "value", part)
				continue
			}
			out.ExceptionDates = append(out.ExceptionDates, model.DateOf(t).String())
		}
	}
	return out, nil
}

// decodeRule maps a weekly RRULE onto a weekday set and the last date the
// rule produces (inclusive).
func decodeRule(raw string, start time.Time, loc *time.Location) ([]string, model.Date, error) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, model.Date{}, fmt.Errorf("RRULE %q: %w", raw, err)
	}
	if opt.Freq != rrule.WEEKLY {
		return nil, model.Date{}, fmt.Errorf("%w: %s is not weekly", errUnsupportedRule, raw)
	}
	if opt.Interval > 1 {
		return nil, model.Date{}, fmt.Errorf("%w: interval %d", errUnsupportedRule, opt.Interval)
	}
	if opt.Until.IsZero() && opt.Count == 0 {
		return nil, model.Date{}, fmt.Errorf("%w: unbounded rule", errUnsupportedRule)
	}

	weekdays := make([]string, 0, len(opt.Byweekday))
	for _, wd := range opt.Byweekday {
		weekdays = append(weekdays, time.Weekday((wd.Day()+1)%7).String())
	}
	if len(weekdays) == 0 {
		weekdays = []string{start.Weekday().String()}
	}

	opt.Dtstart = start
	if opt.Count > maxExpandedInstances {
		opt.Count = maxExpandedInstances
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, model.Date{}, fmt.Errorf("RRULE %q: %w", raw, err)
	}
	all := r.All()
	if len(all) == 0 {
		return nil, model.Date{}, fmt.Errorf("RRULE %q produces no instances", raw)
	}
	last := all[len(all)-1].In(loc)
	return weekdays, model.DateOf(last), nil
}

func tzidOf(p *ical.IANAProperty) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		return tzs[0]
	}
	return ""
}

func parsePropTime(p *ical.IANAProperty, loc *time.Location) (time.Time, error) {
	return parseICSTime(p.Value, tzidOf(p), loc)
}

// parseICSTime parses a basic ICS date/date-time string and converts it to
// loc. Floating times are read in tzid when it resolves, else in loc.
func parseICSTime(v, tzid string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	src := loc
	if tzid != "" {
		if l, err := clock.ResolveLocation(tzid); err == nil {
			src = l
		}
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(utcLayout, v)
		return t.In(loc), err
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		t, err := time.ParseInLocation(localLayout, v, src)
		return t.In(loc), err
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}
