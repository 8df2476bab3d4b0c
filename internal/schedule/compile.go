package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	appLog "classcal/internal/log"
	"classcal/internal/model"
)

// MinutesPerDay bounds every start/end minute.
const MinutesPerDay = 24 * 60

// compiled is a validated EventDefinition with parsed fields.
type compiled struct {
	def        *model.EventDefinition
	index      int
	weekdays   []time.Weekday
	validFrom  model.Date
	validUntil model.Date
	start      int
	end        int
	exceptions []model.Date
}

// compile validates def and reports the first problem found, in this order:
// weekdays, validity range, times.
func compile(def *model.EventDefinition, index int) (compiled, error) {
	c := compiled{def: def, index: index}

	seen := make(map[time.Weekday]bool, len(def.Weekdays))
	for _, name := range def.Weekdays {
		wd, err := model.ParseWeekday(name)
		if err != nil {
			appLog.Warn("schedule: ignoring unknown weekday", "definition", def.Label(), "weekday", name)
			continue
		}
		if !seen[wd] {
			seen[wd] = true
			c.weekdays = append(c.weekdays, wd)
		}
	}
	if len(c.weekdays) == 0 {
		return c, ErrEmptyWeekdaySet
	}

	var err error
	if c.validFrom, err = model.ParseDate(def.ValidFrom); err != nil {
		return c, fmt.Errorf("%w: validFrom: %v", ErrInvalidRange, err)
	}
	if c.validUntil, err = model.ParseDate(def.ValidUntil); err != nil {
		return c, fmt.Errorf("%w: validUntil: %v", ErrInvalidRange, err)
	}
	if c.validUntil.Before(c.validFrom) {
		return c, fmt.Errorf("%w: validFrom %s is after validUntil %s", ErrInvalidRange, c.validFrom, c.validUntil)
	}

	if c.start, err = ParseClock(def.StartTime); err != nil {
		return c, fmt.Errorf("startTime: %w", err)
	}
	if c.end, err = ParseClock(def.EndTime); err != nil {
		return c, fmt.Errorf("endTime: %w", err)
	}
	if c.start >= c.end {
		return c, fmt.Errorf("%w: startTime %s is not before endTime %s", ErrInvalidRange, def.StartTime, def.EndTime)
	}

	for _, raw := range def.ExceptionDates {
		d, perr := model.ParseDate(raw)
		if perr != nil {
			appLog.Warn("schedule: ignoring malformed exception date", "definition", def.Label(), "date", raw)
			continue
		}
		c.exceptions = append(c.exceptions, d)
	}
	return c, nil
}

// Validate reports whether def can produce occurrences. The error wraps one
// of ErrMalformedTime, ErrInvalidRange or ErrEmptyWeekdaySet.
func Validate(def model.EventDefinition) error {
	_, err := compile(&def, 0)
	return err
}

// ParseClock parses a 24-hour HH:MM string into minutes since midnight.
// Hours may have one or two digits; minutes must have two.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 || !digits(h) || !digits(m) {
		return 0, fmt.Errorf("%w: %q, expected HH:MM", ErrMalformedTime, s)
	}
	hour, _ := strconv.Atoi(h)
	minute, _ := strconv.Atoi(m)
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrMalformedTime, s)
	}
	return hour*60 + minute, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
