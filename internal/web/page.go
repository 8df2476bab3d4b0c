package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	appLog "classcal/internal/log"
	"classcal/internal/model"
	"classcal/internal/timetable"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var weekTemplate = template.Must(template.ParseFS(templateFS, "templates/week.html.tmpl"))

// Default visible hours of the week grid; widened to fit the data.
const (
	defaultFirstHour = 8
	defaultLastHour  = 18
)

type weekPage struct {
	RangeLabel string
	TimeZone   string
	Hours      []hourMark
	Columns    []weekColumn
	Current    string
	Next       string
	Problems   int
}

type hourMark struct {
	Label string
	Style template.CSS
}

type weekColumn struct {
	Label  string
	Today  bool
	Blocks []weekBlock
}

type weekBlock struct {
	Title   string
	Detail  string
	Time    string
	Current bool
	Style   template.CSS
}

// handleWeekPage renders the week containing ?date= (default today) as a
// time grid. Colliding sessions are drawn side by side using their track
// assignment. The root element carries data-ready="true" for capture.
func (s *Server) handleWeekPage(w http.ResponseWriter, r *http.Request) {
	d, err := s.queryDate(r, "date")
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	view, err := s.svc.Week(r.Context(), d)
	if err != nil {
		appLog.Error("week page: expand failed", err)
		http.Error(w, "failed to expand definitions", http.StatusInternalServerError)
		return
	}
	st, err := s.currentStatus(r.Context())
	if err != nil {
		appLog.Error("week page: status failed", err)
		st = timetable.Status{}
	}

	page := buildWeekPage(view, st, s.svc.Clock().Location().String())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := weekTemplate.Execute(w, page); err != nil {
		appLog.Error("week page: render failed", err)
	}
}

func buildWeekPage(view timetable.View, st timetable.Status, tz string) weekPage {
	first, last := visibleHours(view)
	span := float64((last - first) * 60)

	page := weekPage{
		RangeLabel: view.Window.String(),
		TimeZone:   tz,
		Current:    occurrenceLabel(st.Resolution.Current),
		Next:       occurrenceLabel(st.Resolution.Next),
		Problems:   len(view.Problems),
	}
	for h := first; h < last; h++ {
		top := float64((h-first)*60) / span * 100
		page.Hours = append(page.Hours, hourMark{
			Label: fmt.Sprintf("%02d:00", h),
			Style: template.CSS(fmt.Sprintf("top:%.3f%%", top)),
		})
	}

	for _, day := range view.Days {
		col := weekColumn{
			Label: fmt.Sprintf("%s %02d/%02d", day.Date.Weekday().String()[:3], int(day.Date.Month), day.Date.Day),
			Today: day.Today,
		}
		for _, p := range day.Placements {
			o := p.Occurrence
			top := float64(o.StartMinute-first*60) / span * 100
			height := float64(o.EndMinute-o.StartMinute) / span * 100
			width := 100 / float64(p.TotalTracks)
			left := width * float64(p.Track)

			b := weekBlock{
				Time:    model.FormatMinute(o.StartMinute) + "-" + model.FormatMinute(o.EndMinute),
				Current: isSame(st.Resolution.Current, o),
				Style: template.CSS(fmt.Sprintf("top:%.3f%%;height:%.3f%%;left:%.3f%%;width:%.3f%%",
					top, height, left, width)),
			}
			if def := o.Definition; def != nil {
				b.Title = def.Title
				b.Detail = def.Location
				if def.Identifier != "" {
					b.Title = def.Identifier + " " + def.Title
				}
			}
			col.Blocks = append(col.Blocks, b)
		}
		page.Columns = append(page.Columns, col)
	}
	return page
}

// visibleHours returns the [first, last) hour range covering every
// placement in view, never narrower than the default working day.
func visibleHours(view timetable.View) (int, int) {
	first, last := defaultFirstHour, defaultLastHour
	for _, o := range view.Occurrences {
		if h := o.StartMinute / 60; h < first {
			first = h
		}
		if h := (o.EndMinute + 59) / 60; h > last {
			last = h
		}
	}
	return first, last
}

func occurrenceLabel(o *model.Occurrence) string {
	if o == nil {
		return ""
	}
	title := o.Definition.Label()
	if o.Definition != nil && o.Definition.Title != "" {
		title = o.Definition.Title
	}
	return fmt.Sprintf("%s · %s %s-%s", title, o.Date, model.FormatMinute(o.StartMinute), model.FormatMinute(o.EndMinute))
}

func isSame(a *model.Occurrence, b model.Occurrence) bool {
	return a != nil && a.DefinitionIndex == b.DefinitionIndex && a.Date == b.Date && a.StartMinute == b.StartMinute
}
