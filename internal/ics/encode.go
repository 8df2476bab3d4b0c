package ics

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"classcal/internal/clock"
	appLog "classcal/internal/log"
	"classcal/internal/model"
	"classcal/internal/schedule"
)

const (
	productID = "-//classcal//weekly timetable//EN"

	propIdentifier = ical.ComponentProperty("X-CLASSCAL-IDENTIFIER")
	propInstructor = ical.ComponentProperty("X-CLASSCAL-INSTRUCTOR")

	localLayout = "20060102T150405"
	utcLayout   = "20060102T150405Z"
)

// ErrNoOccurrence reports a definition whose validity range holds none of
// its weekdays.
var ErrNoOccurrence = errors.New("no weekday falls within the validity range")

// uidNamespace scopes the name-based UIDs generated for definitions.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:classcal:definition"))

var byDayCodes = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Encode writes defs as an iCalendar stream, one weekly VEVENT per valid
// definition. Invalid definitions are skipped and returned as errors; the
// rest are still written.
func Encode(w io.Writer, defs []model.EventDefinition, clk *clock.Clock) []error {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	tzid := zoneID(clk.Location())
	stamp := clk.Now().UTC()

	var errs []error
	written := 0
	for i := range defs {
		def := &defs[i]
		if err := schedule.Validate(*def); err != nil {
			errs = append(errs, schedule.Problem{Index: i, Definition: def, Err: err})
			continue
		}
		if err := addEvent(cal, def, i, clk, tzid, stamp); err != nil {
			errs = append(errs, schedule.Problem{Index: i, Definition: def, Err: err})
			continue
		}
		written++
	}

	if err := cal.SerializeTo(w); err != nil {
		errs = append(errs, fmt.Errorf("ics serialize: %w", err))
	}
	appLog.Info("ics export completed", "event_count", written, "skipped", len(errs))
	return errs
}

func addEvent(cal *ical.Calendar, def *model.EventDefinition, index int, clk *clock.Clock, tzid string, stamp time.Time) error {
	// Validate has already accepted every field parsed below.
	from, _ := model.ParseDate(def.ValidFrom)
	until, _ := model.ParseDate(def.ValidUntil)
	startMin, _ := schedule.ParseClock(def.StartTime)
	endMin, _ := schedule.ParseClock(def.EndTime)

	weekdays := make(map[time.Weekday]bool)
	codes := make([]string, 0, len(def.Weekdays))
	for _, name := range def.Weekdays {
		wd, err := model.ParseWeekday(name)
		if err != nil || weekdays[wd] {
			continue
		}
		weekdays[wd] = true
		codes = append(codes, byDayCodes[wd])
	}

	// DTSTART is the first matching weekday on or after validFrom.
	first := from
	for !weekdays[first.Weekday()] {
		first = first.AddDays(1)
	}
	// DTSTART is always an instance, so a range without any matching
	// weekday cannot be written as a VEVENT.
	if first.After(until) {
		return fmt.Errorf("%w: %s", ErrNoOccurrence, model.Window{Start: from, End: until})
	}

	ev := cal.AddEvent(definitionUID(def, index))
	ev.SetDtStampTime(stamp)
	ev.SetSummary(def.Title)
	if def.Location != "" {
		ev.SetLocation(def.Location)
	}
	if def.Identifier != "" {
		ev.SetProperty(propIdentifier, def.Identifier)
	}
	if def.InstructorName != "" {
		ev.SetProperty(propInstructor, def.InstructorName)
		ev.SetDescription("Instructor: " + def.InstructorName)
	}

	setTime(ev, ical.ComponentPropertyDtStart, clk.At(first, startMin), tzid)
	setTime(ev, ical.ComponentPropertyDtEnd, clk.At(first, endMin), tzid)

	// UNTIL is always UTC; use the end of the last valid day.
	untilUTC := clk.At(until, schedule.MinutesPerDay-1).Add(59 * time.Second).UTC()
	ev.AddProperty(ical.ComponentPropertyRrule,
		"FREQ=WEEKLY;BYDAY="+strings.Join(codes, ",")+";UNTIL="+untilUTC.Format(utcLayout))

	for _, raw := range def.ExceptionDates {
		d, err := model.ParseDate(raw)
		if err != nil {
			continue
		}
		// EXDATE must match the instance start exactly.
		setTimeProp(ev, ical.ComponentPropertyExdate, clk.At(d, startMin), tzid, true)
	}
	return nil
}

func setTime(ev *ical.VEvent, prop ical.ComponentProperty, t time.Time, tzid string) {
	setTimeProp(ev, prop, t, tzid, false)
}

func setTimeProp(ev *ical.VEvent, prop ical.ComponentProperty, t time.Time, tzid string, add bool) {
	value := t.UTC().Format(utcLayout)
	var params []ical.PropertyParameter
	if tzid != "" {
		value = t.Format(localLayout)
		params = append(params, &ical.KeyValues{Key: "TZID", Value: []string{tzid}})
	}
	if add {
		ev.AddProperty(prop, value, params...)
		return
	}
	ev.SetProperty(prop, value, params...)
}

// zoneID returns the TZID to label local times with, or "" when times
// should be written in UTC (UTC itself and fixed offsets, which have no
// IANA name a client could resolve).
func zoneID(loc *time.Location) string {
	name := loc.String()
	if name == "" || name == "UTC" || name == "Local" {
		return ""
	}
	if _, err := time.LoadLocation(name); err != nil {
		return ""
	}
	return name
}

// definitionUID derives a stable UID from the definition's fields and its
// snapshot index, so re-exports update rather than duplicate client entries
// while look-alike definitions still get distinct UIDs.
func definitionUID(def *model.EventDefinition, index int) string {
	key := strings.Join([]string{
		strconv.Itoa(index),
		def.Identifier, def.Title,
		strings.Join(def.Weekdays, ","),
		def.ValidFrom, def.ValidUntil,
		def.StartTime, def.EndTime,
	}, "|")
	return uuid.NewSHA1(uidNamespace, []byte(key)).String()
}
