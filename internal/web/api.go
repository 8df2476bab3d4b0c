package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"classcal/internal/clock"
	"classcal/internal/ics"
	appLog "classcal/internal/log"
	"classcal/internal/model"
	"classcal/internal/schedule"
	"classcal/internal/store"
	"classcal/internal/timetable"
)

// occurrenceDTO is a JSON-friendly view of an occurrence.
type occurrenceDTO struct {
	DefinitionIndex int       `json:"definitionIndex"`
	Title           string    `json:"title"`
	Identifier      string    `json:"identifier,omitempty"`
	Location        string    `json:"location,omitempty"`
	InstructorName  string    `json:"instructorName,omitempty"`
	Date            string    `json:"date"`
	StartTime       string    `json:"startTime"`
	EndTime         string    `json:"endTime"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
}

type placementDTO struct {
	occurrenceDTO
	Track       int `json:"track"`
	TotalTracks int `json:"totalTracks"`
}

type dayDTO struct {
	Date       string         `json:"date"`
	Weekday    string         `json:"weekday"`
	Today      bool           `json:"today"`
	InRange    bool           `json:"inRange"`
	Placements []placementDTO `json:"placements"`
}

type problemDTO struct {
	Index      int    `json:"index"`
	Definition string `json:"definition"`
	Kind       string `json:"kind,omitempty"`
	Error      string `json:"error"`
}

// viewResponse is the JSON response shape for /api/day, /api/week and
// /api/month.
type viewResponse struct {
	RangeStart      string       `json:"rangeStart"`
	RangeEnd        string       `json:"rangeEnd"`
	DisplayTimeZone string       `json:"displayTimezone"`
	Days            []dayDTO     `json:"days"`
	OccurrenceCount int          `json:"occurrenceCount"`
	Problems        []problemDTO `json:"problems"`
}

// statusResponse is the JSON response shape for /api/now.
type statusResponse struct {
	Now       time.Time      `json:"now"`
	Today     string         `json:"today"`
	Current   *occurrenceDTO `json:"current"`
	Next      *occurrenceDTO `json:"next"`
	NextToday *occurrenceDTO `json:"nextToday"`
	Problems  []problemDTO   `json:"problems"`
}

func toOccurrenceDTO(clk *clock.Clock, o model.Occurrence) occurrenceDTO {
	dto := occurrenceDTO{
		DefinitionIndex: o.DefinitionIndex,
		Date:            o.Date.String(),
		StartTime:       model.FormatMinute(o.StartMinute),
		EndTime:         model.FormatMinute(o.EndMinute),
		Start:           clk.At(o.Date, o.StartMinute),
		End:             clk.At(o.Date, o.EndMinute),
	}
	if d := o.Definition; d != nil {
		dto.Title = d.Title
		dto.Identifier = d.Identifier
		dto.Location = d.Location
		dto.InstructorName = d.InstructorName
	}
	return dto
}

func optionalOccurrence(clk *clock.Clock, o *model.Occurrence) *occurrenceDTO {
	if o == nil {
		return nil
	}
	dto := toOccurrenceDTO(clk, *o)
	return &dto
}

func toProblemDTOs(problems []schedule.Problem) []problemDTO {
	out := make([]problemDTO, 0, len(problems))
	for _, p := range problems {
		dto := problemDTO{
			Index:      p.Index,
			Definition: p.Definition.Label(),
			Error:      p.Err.Error(),
		}
		if k := p.Kind(); k != nil {
			dto.Kind = k.Error()
		}
		out = append(out, dto)
	}
	return out
}

func toViewResponse(clk *clock.Clock, v timetable.View) viewResponse {
	days := make([]dayDTO, 0, len(v.Days))
	for _, d := range v.Days {
		ps := make([]placementDTO, 0, len(d.Placements))
		for _, p := range d.Placements {
			ps = append(ps, placementDTO{
				occurrenceDTO: toOccurrenceDTO(clk, p.Occurrence),
				Track:         p.Track,
				TotalTracks:   p.TotalTracks,
			})
		}
		days = append(days, dayDTO{
			Date:       d.Date.String(),
			Weekday:    d.Date.Weekday().String(),
			Today:      d.Today,
			InRange:    d.InRange,
			Placements: ps,
		})
	}
	return viewResponse{
		RangeStart:      v.Window.Start.String(),
		RangeEnd:        v.Window.End.String(),
		DisplayTimeZone: clk.Location().String(),
		Days:            days,
		OccurrenceCount: len(v.Occurrences),
		Problems:        toProblemDTOs(v.Problems),
	}
}

// queryDate reads a YYYY-MM-DD query parameter, defaulting to today.
func (s *Server) queryDate(r *http.Request, key string) (model.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return s.svc.Clock().Today(), nil
	}
	return model.ParseDate(raw)
}

func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func (s *Server) handleGetDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.svc.Store().Load(r.Context())
	if err != nil {
		appLog.Error("api definitions: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load definitions")
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

// handlePutDefinitions replaces the stored snapshot. The whole request is
// rejected when any definition is invalid.
func (s *Server) handlePutDefinitions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	defs, err := store.DecodeDefinitions(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if problems := validateAll(defs); len(problems) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, struct {
			Error    string       `json:"error"`
			Problems []problemDTO `json:"problems"`
		}{Error: "invalid definitions", Problems: toProblemDTOs(problems)})
		return
	}
	if err := s.save(r.Context(), defs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save definitions")
		return
	}
	appLog.Info("api definitions replaced", "count", len(defs))
	writeJSON(w, http.StatusOK, defs)
}

func validateAll(defs []model.EventDefinition) []schedule.Problem {
	var problems []schedule.Problem
	for i := range defs {
		if err := schedule.Validate(defs[i]); err != nil {
			problems = append(problems, schedule.Problem{Index: i, Definition: &defs[i], Err: err})
		}
	}
	return problems
}

func (s *Server) save(ctx context.Context, defs []model.EventDefinition) error {
	if err := s.svc.Store().Save(ctx, defs); err != nil {
		appLog.Error("store save failed", err)
		return err
	}
	if s.refresher != nil {
		s.refresher.Trigger(context.WithoutCancel(ctx))
	}
	return nil
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	d, err := s.queryDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	s.writeView(w, r, func(ctx context.Context) (timetable.View, error) { return s.svc.Day(ctx, d) })
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	d, err := s.queryDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	s.writeView(w, r, func(ctx context.Context) (timetable.View, error) { return s.svc.Week(ctx, d) })
}

// handleMonth returns the 6-week grid for a month.
//
// GET /api/month?year=2025&month=9 (both default to the current month)
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	today := s.svc.Clock().Today()
	q := r.URL.Query()
	year, err := parseIntDefault(q.Get("year"), today.Year)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	month, err := parseIntDefault(q.Get("month"), int(today.Month))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	s.writeView(w, r, func(ctx context.Context) (timetable.View, error) {
		return s.svc.Month(ctx, year, time.Month(month))
	})
}

func (s *Server) writeView(w http.ResponseWriter, r *http.Request, build func(context.Context) (timetable.View, error)) {
	v, err := build(r.Context())
	if err != nil {
		appLog.Error("api view failed", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "failed to expand definitions")
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(s.svc.Clock(), v))
}

// handleNow returns the current and next sessions.
//
// GET /api/now?at=2025-09-01T10:30:00+09:00
//   - at: optional RFC 3339 instant; defaults to now. Without it the
//     refresher's cached status is served when available.
func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	var (
		st  timetable.Status
		err error
	)
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid at")
			return
		}
		st, err = s.svc.StatusAt(r.Context(), at)
	} else {
		st, err = s.currentStatus(r.Context())
	}
	if err != nil {
		appLog.Error("api now failed", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve status")
		return
	}

	clk := s.svc.Clock()
	writeJSON(w, http.StatusOK, statusResponse{
		Now:       st.Now,
		Today:     clk.DateOnly(st.Now).String(),
		Current:   optionalOccurrence(clk, st.Resolution.Current),
		Next:      optionalOccurrence(clk, st.Resolution.Next),
		NextToday: optionalOccurrence(clk, st.Resolution.NextToday),
		Problems:  toProblemDTOs(st.Problems),
	})
}

func (s *Server) currentStatus(ctx context.Context) (timetable.Status, error) {
	if s.refresher != nil {
		if st, ok, err := s.refresher.Latest(); ok && err == nil {
			return st, nil
		}
	}
	return s.svc.Status(ctx)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	defs, err := s.svc.Store().Load(r.Context())
	if err != nil {
		appLog.Error("api export: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load definitions")
		return
	}

	var buf bytes.Buffer
	if errs := ics.Encode(&buf, defs, s.svc.Clock()); len(errs) > 0 {
		appLog.Warn("api export: some definitions were skipped", "skipped", len(errs), "err", errors.Join(errs...))
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="classcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type importResponse struct {
	Imported int      `json:"imported"`
	Total    int      `json:"total"`
	Skipped  []string `json:"skipped"`
}

// handleImport parses an iCalendar body into definitions.
//
// POST /api/import.ics?mode=append|replace (default append)
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "append"
	}
	if mode != "append" && mode != "replace" {
		writeError(w, http.StatusBadRequest, "mode must be append or replace")
		return
	}

	imported, errs := ics.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), s.svc.Clock())
	if imported == nil {
		writeError(w, http.StatusBadRequest, errors.Join(errs...).Error())
		return
	}

	skipped := make([]string, 0, len(errs))
	for _, e := range errs {
		skipped = append(skipped, e.Error())
	}

	// Events that decode but still fail validation are dropped too.
	valid := make([]model.EventDefinition, 0, len(imported))
	for _, d := range imported {
		if err := schedule.Validate(d); err != nil {
			skipped = append(skipped, d.Title+": "+err.Error())
			continue
		}
		valid = append(valid, d)
	}

	defs := valid
	if mode == "append" {
		existing, err := s.svc.Store().Load(r.Context())
		if err != nil {
			appLog.Error("api import: load failed", err)
			writeError(w, http.StatusInternalServerError, "failed to load definitions")
			return
		}
		defs = append(existing, valid...)
	}

	if err := s.save(r.Context(), defs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save definitions")
		return
	}
	appLog.Info("api import completed", "mode", mode, "imported", len(valid), "skipped", len(skipped))
	writeJSON(w, http.StatusOK, importResponse{Imported: len(valid), Total: len(defs), Skipped: skipped})
}
