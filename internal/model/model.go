package model

import (
	"fmt"
	"strings"
	"time"
)

// RepeatType is the recurrence kind attached to a base event.
type RepeatType string

const (
	RepeatNone     RepeatType = "NONE"
	RepeatDaily    RepeatType = "DAILY"
	RepeatWeekly   RepeatType = "WEEKLY"
	RepeatMonthly  RepeatType = "MONTHLY"
	RepeatYearly   RepeatType = "YEARLY"
	RepeatWeekdays RepeatType = "WEEKDAYS"
)

// RepeatTypes lists every known kind in the order the event form offers them.
var RepeatTypes = []RepeatType{
	RepeatNone,
	RepeatDaily,
	RepeatWeekly,
	RepeatMonthly,
	RepeatYearly,
	RepeatWeekdays,
}

// Valid reports whether r is one of the known kinds. The empty value is
// valid and means RepeatNone.
func (r RepeatType) Valid() bool {
	if r == "" {
		return true
	}
	for _, k := range RepeatTypes {
		if r == k {
			return true
		}
	}
	return false
}

// Recurring reports whether r produces more than the single base instance.
func (r RepeatType) Recurring() bool {
	return r != "" && r != RepeatNone
}

// ParseRepeat converts user input into a RepeatType. Matching is
// case-insensitive; an empty string maps to RepeatNone.
func ParseRepeat(s string) (RepeatType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return RepeatNone, nil
	}
	r := RepeatType(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown repeat type %q", s)
	}
	return r, nil
}

// Event is a base, user-authored calendar entry. The same shape is used
// for the synthetic occurrences produced by recurrence expansion: an
// occurrence keeps the base ID and only differs in Start/End.
type Event struct {
	ID    string
	Title string

	// Start / End are wall-clock instants; End > Start is expected.
	Start time.Time
	End   time.Time

	AllDay      bool
	Color       string
	Description string

	Repeat RepeatType

	// Source is the subscription ID an event was imported from, empty for
	// events created locally.
	Source string
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}
