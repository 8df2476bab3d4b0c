package model

import "fmt"

// EventDefinition is one weekly-recurring class session as stored by the
// user. Dates and times stay in their text form here; the schedule package
// validates and compiles them.
type EventDefinition struct {
	Title          string `json:"title" yaml:"title"`
	Identifier     string `json:"identifier" yaml:"identifier"`
	Location       string `json:"location" yaml:"location"`
	InstructorName string `json:"instructorName" yaml:"instructor_name"`

	// Weekdays holds canonical English long names ("Monday").
	Weekdays []string `json:"weekdays" yaml:"weekdays"`

	// ValidFrom / ValidUntil are inclusive YYYY-MM-DD dates.
	ValidFrom  string `json:"validFrom" yaml:"valid_from"`
	ValidUntil string `json:"validUntil" yaml:"valid_until"`

	// StartTime / EndTime are 24-hour HH:MM on the same day.
	StartTime string `json:"startTime" yaml:"start_time"`
	EndTime   string `json:"endTime" yaml:"end_time"`

	ExceptionDates []string `json:"exceptionDates" yaml:"exception_dates"`
}

// Label is a short human-readable name used in logs.
func (e *EventDefinition) Label() string {
	if e == nil {
		return "<nil>"
	}
	if e.Identifier != "" {
		return e.Identifier
	}
	return e.Title
}

// Occurrence is one concrete dated instance of an EventDefinition.
// It is derived on every query and never persisted.
type Occurrence struct {
	Definition *EventDefinition

	// DefinitionIndex is the position of Definition in the snapshot the
	// occurrence was expanded from; it breaks ties in canonical order.
	DefinitionIndex int

	Date        Date
	StartMinute int
	EndMinute   int
}

// Overlaps reports whether the half-open [start, end) intervals of o and
// other intersect on the same date.
func (o Occurrence) Overlaps(other Occurrence) bool {
	if o.Date != other.Date {
		return false
	}
	return o.StartMinute < other.EndMinute && other.StartMinute < o.EndMinute
}

func (o Occurrence) String() string {
	return fmt.Sprintf("%s %s %s-%s", o.Definition.Label(), o.Date,
		FormatMinute(o.StartMinute), FormatMinute(o.EndMinute))
}

// Placement is the track assignment of one occurrence within its day.
type Placement struct {
	Occurrence  Occurrence
	Track       int
	TotalTracks int
}

// FormatMinute renders minutes since midnight as HH:MM.
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
