package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"weekcal/internal/model"
	"weekcal/internal/recur"
)

// DefaultProdID identifies calendars written by Export.
const DefaultProdID = "-//weekcal//weekcal 1.0//EN"

const propertyColor = ical.ComponentProperty("COLOR")

// Export writes base events (not occurrences) as a VCALENDAR. Recurring
// events carry the RRULE equivalent of their repeat kind, so any RFC 5545
// client reproduces the same days. stamp is used for every DTSTAMP.
func Export(events []model.Event, prodID string, stamp time.Time) []byte {
	if prodID == "" {
		prodID = DefaultProdID
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Color != "" {
			ve.SetProperty(propertyColor, ev.Color)
		}

		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start)
			ve.SetAllDayEndAt(ev.End)
		} else {
			ve.SetStartAt(ev.Start)
			ve.SetEndAt(ev.End)
		}

		if rule, ok := recur.RRule(ev.Repeat, ev.Start); ok {
			ve.SetProperty(ical.ComponentPropertyRrule, rule)
		}
	}

	return []byte(cal.Serialize())
}
