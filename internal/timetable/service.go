// Package timetable binds the definition store, the calendar clock and the
// schedule engine into the views the web UI and CLI render.
package timetable

import (
	"context"
	"fmt"
	"time"

	"classcal/internal/clock"
	appLog "classcal/internal/log"
	"classcal/internal/model"
	"classcal/internal/schedule"
	"classcal/internal/store"
	"classcal/internal/window"
)

const defaultLookaheadDays = 28

// Service answers calendar queries against a fresh store snapshot each time.
type Service struct {
	store     store.Store
	clock     *clock.Clock
	lookahead int
}

// NewService constructs a Service. lookaheadDays bounds the search for the
// next occurrence; values < 1 use the default.
func NewService(st store.Store, clk *clock.Clock, lookaheadDays int) *Service {
	if lookaheadDays < 1 {
		lookaheadDays = defaultLookaheadDays
	}
	return &Service{store: st, clock: clk, lookahead: lookaheadDays}
}

func (s *Service) Clock() *clock.Clock { return s.clock }
func (s *Service) Store() store.Store  { return s.store }

// Day is one calendar day with its laid-out occurrences.
type Day struct {
	Date       model.Date
	Today      bool
	InRange    bool // false for leading/trailing days of a month grid
	Placements []model.Placement
}

// View is the expansion of one window.
type View struct {
	Window      model.Window
	Days        []Day
	Occurrences []model.Occurrence
	Problems    []schedule.Problem
}

// Status is the current/next snapshot relative to Now.
type Status struct {
	Now        time.Time
	Resolution schedule.Resolution
	Problems   []schedule.Problem
}

func (s *Service) snapshot(ctx context.Context) ([]model.EventDefinition, error) {
	defs, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}
	return defs, nil
}

// Expand returns the occurrences of the stored definitions within w.
func (s *Service) Expand(ctx context.Context, w model.Window) (schedule.ExpandResult, error) {
	defs, err := s.snapshot(ctx)
	if err != nil {
		return schedule.ExpandResult{}, err
	}
	return schedule.Expand(defs, w)
}

// Window expands w and lays out each of its days.
func (s *Service) Window(ctx context.Context, w model.Window) (View, error) {
	return s.view(ctx, w, w)
}

// Day returns a single day.
func (s *Service) Day(ctx context.Context, d model.Date) (View, error) {
	w := window.Span(d, 1)
	return s.view(ctx, w, w)
}

// Week returns the Monday..Sunday week containing d.
func (s *Service) Week(ctx context.Context, d model.Date) (View, error) {
	w := window.Week(d)
	return s.view(ctx, w, w)
}

// Month returns the 6x7 grid for month; days outside the month are marked
// with InRange=false.
func (s *Service) Month(ctx context.Context, year int, month time.Month) (View, error) {
	if month < time.January || month > time.December {
		return View{}, fmt.Errorf("invalid month %d", month)
	}
	// Day 0 of the following month normalizes to the last day of month.
	inMonth := model.Window{Start: model.NewDate(year, month, 1), End: model.NewDate(year, month+1, 0)}
	return s.view(ctx, window.MonthGrid(year, month), inMonth)
}

func (s *Service) view(ctx context.Context, w, inRange model.Window) (View, error) {
	res, err := s.Expand(ctx, w)
	if err != nil {
		return View{}, err
	}

	today := s.clock.Today()
	byDay := schedule.LayoutDays(res.Occurrences)

	days := make([]Day, 0, w.Len())
	for _, d := range w.Days() {
		days = append(days, Day{
			Date:       d,
			Today:      d == today,
			InRange:    inRange.Contains(d),
			Placements: byDay[d],
		})
	}

	return View{
		Window:      w,
		Days:        days,
		Occurrences: res.Occurrences,
		Problems:    res.Problems,
	}, nil
}

// Status resolves the current and next occurrence at the clock's now.
func (s *Service) Status(ctx context.Context) (Status, error) {
	return s.StatusAt(ctx, s.clock.Now())
}

// StatusAt resolves current/next at an arbitrary instant. Next is searched
// from today through today+lookahead days.
func (s *Service) StatusAt(ctx context.Context, now time.Time) (Status, error) {
	now = now.In(s.clock.Location())
	today := s.clock.DateOnly(now)

	res, err := s.Expand(ctx, window.Span(today, s.lookahead+1))
	if err != nil {
		return Status{}, err
	}

	st := Status{
		Now:        now,
		Resolution: schedule.ResolveAt(res.Occurrences, s.clock, now),
		Problems:   res.Problems,
	}
	appLog.Debug("status resolved",
		"now", now,
		"current", describe(st.Resolution.Current),
		"next", describe(st.Resolution.Next),
	)
	return st, nil
}

func describe(o *model.Occurrence) string {
	if o == nil {
		return "-"
	}
	return o.String()
}
