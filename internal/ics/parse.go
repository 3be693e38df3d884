package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/recur"
)

const untitled = "(untitled)"

const propertyRecurrenceID = ical.ComponentProperty("RECURRENCE-ID")

// Import parses an ICS payload into base events tagged with source.
//
//   - DTSTART/DTEND use the library's TZID handling; a missing DTEND gives
//     one hour (one day for all-day events).
//   - RRULE is mapped to a RepeatType; rules the calendar cannot express
//     are logged and the event is kept as a single instance.
//   - RECURRENCE-ID overrides are skipped and EXDATE is ignored, since
//     per-instance exceptions are not modeled.
func Import(source string, body []byte) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	events := make([]model.Event, 0)
	skipped := 0

	for _, ve := range cal.Events() {
		if ve.GetProperty(propertyRecurrenceID) != nil {
			skipped++
			continue
		}
		ev, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Warn("ics: vevent skipped", "source", source, "reason", perr.Error())
			skipped++
			continue
		}
		ev.Source = source
		events = append(events, ev)
	}

	appLog.Info("ics import completed", "source", source, "event_count", len(events), "skipped", skipped)
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (model.Event, error) {
	var out model.Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.ID = uidProp.Value

	out.Title = untitled
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil && strings.TrimSpace(p.Value) != "" {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(propertyColor); p != nil {
		out.Color = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("%s: missing DTSTART", out.ID)
	}
	out.AllDay = isDateValue(dtStart)

	var err error
	if out.AllDay {
		out.Start, err = ve.GetAllDayStartAt()
	} else {
		out.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return out, fmt.Errorf("%s: DTSTART: %w", out.ID, err)
	}

	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		if out.AllDay {
			out.End, err = ve.GetAllDayEndAt()
		} else {
			out.End, err = ve.GetEndAt()
		}
		if err != nil {
			return out, fmt.Errorf("%s: DTEND: %w", out.ID, err)
		}
	}
	if !out.End.After(out.Start) {
		if out.AllDay {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = out.Start.Add(time.Hour)
		}
	}

	out.Repeat = model.RepeatNone
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		repeat, rerr := recur.FromRRule(p.Value, out.Start)
		if rerr != nil {
			appLog.Warn("ics: rrule not representable, importing single instance", "uid", out.ID, "rrule", p.Value, "reason", rerr.Error())
		} else {
			out.Repeat = repeat
		}
	}

	return out, nil
}

// isDateValue reports whether a DTSTART is a DATE (all-day) value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
