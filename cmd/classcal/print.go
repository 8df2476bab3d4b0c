package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"classcal/internal/model"
	"classcal/internal/schedule"
	"classcal/internal/timetable"
	"classcal/internal/window"
)

var (
	dayHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4A90E2"))

	todayStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	currentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	rowStyle   = lipgloss.NewStyle().PaddingLeft(2)
	timeStyle  = lipgloss.NewStyle().Width(13)
	trackStyle = lipgloss.NewStyle().Width(7)
	labelStyle = lipgloss.NewStyle().Bold(true).Width(12)
	cellStyle  = lipgloss.NewStyle().Width(8)
)

// printView writes one block per day; empty days outside the requested
// range (month grid padding) are omitted.
func printView(w io.Writer, v timetable.View) {
	var blocks []string
	for _, day := range v.Days {
		if !day.InRange && len(day.Placements) == 0 {
			continue
		}
		blocks = append(blocks, renderDay(day))
	}
	if len(blocks) == 0 {
		return
	}
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, blocks...))
}

func renderDay(day timetable.Day) string {
	header := fmt.Sprintf("%s %s", day.Date.Weekday().String()[:3], day.Date)
	if day.Today {
		header = todayStyle.Render(header + " (today)")
	} else {
		header = dayHeaderStyle.Render(header)
	}

	lines := []string{header}
	if len(day.Placements) == 0 {
		lines = append(lines, rowStyle.Render(mutedStyle.Render("no sessions")))
	}
	for _, p := range day.Placements {
		o := p.Occurrence
		lines = append(lines, rowStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
			timeStyle.Render(model.FormatMinute(o.StartMinute)+"-"+model.FormatMinute(o.EndMinute)),
			trackStyle.Render(trackLabel(p)),
			occurrenceTitle(o),
		)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// printMonthGrid draws the 6x7 grid with the session count per day.
// Padding days from the neighbouring months are muted.
func printMonthGrid(w io.Writer, v timetable.View) {
	byDate := make(map[model.Date]timetable.Day, len(v.Days))
	for _, d := range v.Days {
		byDate[d.Date] = d
	}

	rows := window.Rows(v.Window)
	if len(rows) == 0 {
		return
	}

	var header []string
	for _, d := range rows[0] {
		header = append(header, cellStyle.Inherit(dayHeaderStyle).Render(d.Weekday().String()[:3]))
	}
	lines := []string{lipgloss.JoinHorizontal(lipgloss.Top, header...)}

	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, d := range row {
			day := byDate[d]
			text := fmt.Sprintf("%2d", d.Day)
			if n := len(day.Placements); n > 0 {
				text += fmt.Sprintf(" (%d)", n)
			}
			style := cellStyle
			switch {
			case day.Today:
				style = cellStyle.Inherit(currentStyle)
			case !day.InRange:
				style = cellStyle.Inherit(mutedStyle)
			}
			cells = append(cells, style.Render(text))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func trackLabel(p model.Placement) string {
	if p.TotalTracks <= 1 {
		return ""
	}
	return fmt.Sprintf("[%d/%d]", p.Track+1, p.TotalTracks)
}

func occurrenceTitle(o model.Occurrence) string {
	d := o.Definition
	if d == nil {
		return "?"
	}
	title := d.Title
	if d.Identifier != "" {
		title = d.Identifier + " " + title
	}
	if d.Location != "" {
		title += " @ " + d.Location
	}
	if d.InstructorName != "" {
		title += " (" + d.InstructorName + ")"
	}
	return title
}

func printStatus(w io.Writer, st timetable.Status) {
	rows := []string{
		statusRow("now", st.Now.Format("Mon 2006-01-02 15:04 MST")),
		statusRow("current", currentStyle.Render(statusLine(st.Resolution.Current))),
		statusRow("next today", statusLine(st.Resolution.NextToday)),
		statusRow("next", statusLine(st.Resolution.Next)),
	}
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func statusRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label+":"), value)
}

func statusLine(o *model.Occurrence) string {
	if o == nil {
		return mutedStyle.Render("none")
	}
	return fmt.Sprintf("%s %s-%s %s", o.Date, model.FormatMinute(o.StartMinute), model.FormatMinute(o.EndMinute), occurrenceTitle(*o))
}

func printProblems(w io.Writer, problems []schedule.Problem) {
	if len(problems) == 0 {
		return
	}
	lines := make([]string, 0, len(problems))
	for _, p := range problems {
		lines = append(lines, "skipped: "+p.Error())
	}
	fmt.Fprintln(w, mutedStyle.Render(strings.Join(lines, "\n")))
}
