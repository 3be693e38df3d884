// Package recur expands base events carrying a repeat kind into the
// concrete occurrences that fall inside a date window.
package recur

import (
	"sort"
	"time"

	"weekcal/internal/model"
)

// DefaultLookaheadDays is how far past the visible range's end the
// expansion window reaches by default.
const DefaultLookaheadDays = 60

// Expand returns the occurrences of events inside [windowStart, windowEnd].
//
//   - Non-repeating events (Repeat empty or NONE) are emitted once,
//     unchanged, whether or not they fall inside the window.
//   - Recurring events are tested against every calendar day from
//     windowStart to windowEnd inclusive; each matching day yields one
//     occurrence at the base event's start time-of-day, lasting exactly
//     the base event's duration.
//   - An unknown repeat kind matches no day and so yields nothing.
//
// Calendar fields are read in windowStart's location. The result keeps
// input order, then ascending day; it is not sorted across events and is
// never deduplicated. Inputs are not modified.
func Expand(events []model.Event, windowStart, windowEnd time.Time) []model.Event {
	out := make([]model.Event, 0, len(events))
	loc := windowStart.Location()

	for _, ev := range events {
		if !ev.Repeat.Recurring() {
			out = append(out, ev)
			continue
		}

		anchor := ev.Start.In(loc)
		dur := ev.Duration()

		// The cursor keeps windowStart's wall clock; the last day is only
		// visited if that clock is not after windowEnd.
		for cursor := windowStart; !cursor.After(windowEnd); cursor = cursor.AddDate(0, 0, 1) {
			if !Matches(ev.Repeat, anchor, cursor) {
				continue
			}
			start := time.Date(cursor.Year(), cursor.Month(), cursor.Day(),
				anchor.Hour(), anchor.Minute(), 0, 0, loc)

			occ := ev
			occ.Start = start
			occ.End = start.Add(dur)
			out = append(out, occ)
		}
	}

	return out
}

// Matches reports whether day is an instance of a repeat rule anchored
// at anchor. Both values are compared in their own locations; callers
// that mix zones should convert first (Expand does).
func Matches(repeat model.RepeatType, anchor, day time.Time) bool {
	switch repeat {
	case model.RepeatDaily:
		return true
	case model.RepeatWeekly:
		return day.Weekday() == anchor.Weekday()
	case model.RepeatWeekdays:
		wd := day.Weekday()
		return wd >= time.Monday && wd <= time.Friday
	case model.RepeatMonthly:
		// Same weekday in the same seven-day bucket of the month.
		return day.Weekday() == anchor.Weekday() &&
			WeekOfMonth(day.Day()) == WeekOfMonth(anchor.Day())
	case model.RepeatYearly:
		return day.Month() == anchor.Month() && day.Day() == anchor.Day()
	default:
		return false
	}
}

// WeekOfMonth returns ceil(dayOfMonth / 7): 1 for days 1-7, 2 for 8-14
// and so on up to 5.
func WeekOfMonth(dayOfMonth int) int {
	return (dayOfMonth + 6) / 7
}

// Window derives the expansion window from a visible calendar range.
// Only the end is extended; the start stays at the visible start.
func Window(visibleStart, visibleEnd time.Time, lookaheadDays int) (time.Time, time.Time) {
	if lookaheadDays < 0 {
		lookaheadDays = 0
	}
	return visibleStart, visibleEnd.AddDate(0, 0, lookaheadDays)
}

// SortByStart orders occurrences chronologically in place. Equal starts
// keep their expansion order.
func SortByStart(occ []model.Event) {
	sort.SliceStable(occ, func(i, j int) bool {
		return occ[i].Start.Before(occ[j].Start)
	})
}
