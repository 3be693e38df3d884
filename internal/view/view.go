// Package view computes the day ranges shown by the week and month grids
// and buckets occurrences into their cells.
package view

import (
	"fmt"
	"strings"
	"time"

	"weekcal/internal/model"
)

// Kind selects the calendar layout.
type Kind string

const (
	Week  Kind = "week"
	Month Kind = "month"
)

// monthCells is the fixed six-row month grid.
const monthCells = 42

// ParseKind accepts "week" or "month" (case-insensitive); empty means Week.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "week":
		return Week, nil
	case "month":
		return Month, nil
	default:
		return "", fmt.Errorf("view: unknown kind %q", s)
	}
}

// ParseWeekStart maps the config values "monday"/"sunday" to a weekday.
// Anything else falls back to Monday.
func ParseWeekStart(s string) time.Weekday {
	if strings.EqualFold(strings.TrimSpace(s), "sunday") {
		return time.Sunday
	}
	return time.Monday
}

// Range returns the days shown for current: 7 days for Week starting at
// the weekStart on or before current, 42 days for Month starting at the
// weekStart on or before the first of current's month. Days are local
// midnights in current's location; last is the final day shown.
func Range(kind Kind, current time.Time, weekStart time.Weekday) (first, last time.Time, days []time.Time) {
	anchor := midnight(current)
	n := 7
	if kind == Month {
		anchor = time.Date(current.Year(), current.Month(), 1, 0, 0, 0, 0, current.Location())
		n = monthCells
	}

	back := (int(anchor.Weekday()) - int(weekStart) + 7) % 7
	first = anchor.AddDate(0, 0, -back)

	days = make([]time.Time, n)
	for i := range days {
		days[i] = first.AddDate(0, 0, i)
	}
	return first, days[n-1], days
}

// VisibleWindow returns [first 00:00, last 23:59:59.999999999] for the
// range of current, suitable as the base of an expansion window.
func VisibleWindow(kind Kind, current time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	first, last, _ := Range(kind, current, weekStart)
	return first, last.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Next moves current one page forward: a week or a month.
func Next(kind Kind, current time.Time) time.Time {
	if kind == Month {
		return current.AddDate(0, 1, 0)
	}
	return current.AddDate(0, 0, 7)
}

// Prev moves current one page back.
func Prev(kind Kind, current time.Time) time.Time {
	if kind == Month {
		return current.AddDate(0, -1, 0)
	}
	return current.AddDate(0, 0, -7)
}

// CellEvents returns the occurrences starting on day's calendar date and,
// when hour is non-nil, within that hour. Order is preserved.
func CellEvents(occ []model.Event, day time.Time, hour *int) []model.Event {
	out := make([]model.Event, 0)
	y, m, d := day.Date()
	for _, ev := range occ {
		s := ev.Start.In(day.Location())
		sy, sm, sd := s.Date()
		if sy != y || sm != m || sd != d {
			continue
		}
		if hour != nil && s.Hour() != *hour {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Cell is one grid cell. Hour is nil for month cells.
type Cell struct {
	Day    time.Time
	Hour   *int
	Events []model.Event
}

// Grid buckets occurrences into the cells of the requested layout: one
// cell per day for Month, 24 hourly cells per day for Week.
func Grid(kind Kind, current time.Time, weekStart time.Weekday, occ []model.Event) []Cell {
	_, _, days := Range(kind, current, weekStart)

	if kind == Month {
		cells := make([]Cell, 0, len(days))
		for _, d := range days {
			cells = append(cells, Cell{Day: d, Events: CellEvents(occ, d, nil)})
		}
		return cells
	}

	cells := make([]Cell, 0, len(days)*24)
	for _, d := range days {
		for h := 0; h < 24; h++ {
			hour := h
			cells = append(cells, Cell{Day: d, Hour: &hour, Events: CellEvents(occ, d, &hour)})
		}
	}
	return cells
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
