// Package window computes the date ranges calendar views are expanded over.
package window

import (
	"time"

	"classcal/internal/model"
)

const (
	// DaysPerWeek is the number of columns in every view.
	DaysPerWeek = 7
	// GridWeeks is the fixed number of rows in a month grid.
	GridWeeks = 6
)

// StartOfWeek returns the Monday on or before d (ISO weeks, Sunday=7).
func StartOfWeek(d model.Date) model.Date {
	return d.AddDays(1 - model.ISOWeekday(d.Weekday()))
}

// Week returns the Monday..Sunday window containing d.
func Week(d model.Date) model.Window {
	start := StartOfWeek(d)
	return model.Window{Start: start, End: start.AddDays(DaysPerWeek - 1)}
}

// MonthGrid returns the 6x7 grid covering month: it starts on the Sunday on
// or before the 1st and spans 42 days, so every month fits regardless of
// the weekday it starts on.
func MonthGrid(year int, month time.Month) model.Window {
	first := model.NewDate(year, month, 1)
	start := first.AddDays(-int(first.Weekday()))
	return model.Window{Start: start, End: start.AddDays(GridWeeks*DaysPerWeek - 1)}
}

// Span returns the window of n days starting at d (n < 1 is treated as 1).
func Span(d model.Date, n int) model.Window {
	if n < 1 {
		n = 1
	}
	return model.Window{Start: d, End: d.AddDays(n - 1)}
}

// Rows splits a window into consecutive weeks of DaysPerWeek dates. A
// trailing partial week is kept.
func Rows(w model.Window) [][]model.Date {
	days := w.Days()
	rows := make([][]model.Date, 0, (len(days)+DaysPerWeek-1)/DaysPerWeek)
	for len(days) > 0 {
		n := DaysPerWeek
		if len(days) < n {
			n = len(days)
		}
		rows = append(rows, days[:n])
		days = days[n:]
	}
	return rows
}
