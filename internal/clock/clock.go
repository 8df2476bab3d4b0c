// Package clock is the single place that knows "what time is it" and in
// which civil timezone. Everything downstream works on model.Date values and
// minutes since local midnight produced here.
package clock

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"classcal/internal/model"
)

// Clock converts instants into dates and minutes-of-day in one fixed zone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// Option customizes a Clock.
type Option func(*Clock)

// WithNow replaces the source of the current instant (tests).
func WithNow(fn func() time.Time) Option {
	return func(c *Clock) {
		if fn != nil {
			c.now = fn
		}
	}
}

// New returns a Clock for loc. A nil loc means UTC.
func New(loc *time.Location, opts ...Option) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	c := &Clock{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load builds a Clock from a zone name. Accepted forms:
//   - IANA names ("Asia/Seoul", "Europe/Berlin")
//   - "UTC" / "Local"
//   - fixed offsets ("+09:00", "UTC-03:30", "-0500")
func Load(name string, opts ...Option) (*Clock, error) {
	loc, err := ResolveLocation(name)
	if err != nil {
		return nil, err
	}
	return New(loc, opts...), nil
}

var offsetRe = regexp.MustCompile(`^(?:UTC|GMT)?([+-])(\d{1,2}):?(\d{2})?$`)

// ResolveLocation maps a zone name to a *time.Location (see Load).
func ResolveLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	if m := offsetRe.FindStringSubmatch(strings.ToUpper(name)); m != nil {
		h, _ := strconv.Atoi(m[2])
		min := 0
		if m[3] != "" {
			min, _ = strconv.Atoi(m[3])
		}
		if h > 14 || min > 59 {
			return nil, fmt.Errorf("clock: offset out of range: %q", name)
		}
		secs := h*3600 + min*60
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(name, secs), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("clock: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

func (c *Clock) Location() *time.Location { return c.loc }

// Now returns the current instant expressed in the clock's zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today is DateOnly(Now()).
func (c *Clock) Today() model.Date {
	return c.DateOnly(c.Now())
}

// DateOnly returns the civil date of t in the clock's zone.
func (c *Clock) DateOnly(t time.Time) model.Date {
	return model.DateOf(t.In(c.loc))
}

// MinuteOfDay returns minutes since local midnight of t in the clock's zone.
func (c *Clock) MinuteOfDay(t time.Time) int {
	t = t.In(c.loc)
	return t.Hour()*60 + t.Minute()
}

// WeekdayOf is zone independent: a civil date has exactly one weekday.
func (c *Clock) WeekdayOf(d model.Date) time.Weekday {
	return d.Weekday()
}

// ToISODate formats d as YYYY-MM-DD.
func (c *Clock) ToISODate(d model.Date) string {
	return d.String()
}

// At returns the instant of minute-of-day m on date d in the clock's zone.
func (c *Clock) At(d model.Date, m int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, m/60, m%60, 0, 0, c.loc)
}

// Fixed returns a now function that always reports t; handy for tests and
// for CLI "--at" overrides.
func Fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
