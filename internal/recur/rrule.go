package recur

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"weekcal/internal/model"
)

// ErrUnsupportedRule is returned when an RRULE has no RepeatType equivalent.
var ErrUnsupportedRule = errors.New("recur: unsupported RRULE")

// rruleWeekdays is indexed by time.Weekday (Sunday = 0).
var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

var workWeek = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}

// RRule renders the RFC 5545 rule (without DTSTART) that expands the same
// days as repeat anchored at anchor. The second result is false for
// non-recurring or unknown kinds.
//
// MONTHLY becomes BYDAY=+nXX where n is the seven-day bucket of anchor;
// for days 1-35 that is exactly the n-th weekday of the month.
func RRule(repeat model.RepeatType, anchor time.Time) (string, bool) {
	var opt rrule.ROption

	switch repeat {
	case model.RepeatDaily:
		opt.Freq = rrule.DAILY
	case model.RepeatWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[anchor.Weekday()]}
	case model.RepeatWeekdays:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = workWeek
	case model.RepeatMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[anchor.Weekday()].Nth(WeekOfMonth(anchor.Day()))}
	case model.RepeatYearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(anchor.Month())}
		opt.Bymonthday = []int{anchor.Day()}
	default:
		return "", false
	}

	return opt.RRuleString(), true
}

// FromRRule maps an RRULE value (e.g. "FREQ=WEEKLY;BYDAY=MO") back to a
// RepeatType, given the event's start. COUNT and UNTIL are ignored since
// expansion is always bounded by the caller's window; anything else that
// the six kinds cannot express yields ErrUnsupportedRule.
func FromRRule(rule string, anchor time.Time) (model.RepeatType, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return "", fmt.Errorf("recur: parse %q: %w", rule, err)
	}
	if opt.Interval > 1 || len(opt.Bysetpos) > 0 || len(opt.Byyearday) > 0 ||
		len(opt.Byweekno) > 0 || len(opt.Byhour) > 0 || len(opt.Byminute) > 0 ||
		len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedRule, rule)
	}

	wd := rruleWeekdays[anchor.Weekday()]

	switch opt.Freq {
	case rrule.DAILY:
		if len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 {
			break
		}
		if len(opt.Byweekday) == 0 {
			return model.RepeatDaily, nil
		}
		if sameDays(opt.Byweekday, workWeek) {
			return model.RepeatWeekdays, nil
		}

	case rrule.WEEKLY:
		if len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 {
			break
		}
		if len(opt.Byweekday) == 0 || sameDays(opt.Byweekday, []rrule.Weekday{wd}) {
			return model.RepeatWeekly, nil
		}
		if sameDays(opt.Byweekday, workWeek) {
			return model.RepeatWeekdays, nil
		}

	case rrule.MONTHLY:
		if len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 || len(opt.Byweekday) != 1 {
			break
		}
		bd := opt.Byweekday[0]
		if bd.Day() == wd.Day() && bd.N() == WeekOfMonth(anchor.Day()) {
			return model.RepeatMonthly, nil
		}

	case rrule.YEARLY:
		if len(opt.Byweekday) > 0 {
			break
		}
		if len(opt.Bymonth) > 1 || len(opt.Bymonthday) > 1 {
			break
		}
		if len(opt.Bymonth) == 1 && opt.Bymonth[0] != int(anchor.Month()) {
			break
		}
		if len(opt.Bymonthday) == 1 && opt.Bymonthday[0] != anchor.Day() {
			break
		}
		return model.RepeatYearly, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedRule, rule)
}

// sameDays compares two BYDAY lists as sets, ignoring ordinals.
func sameDays(a, b []rrule.Weekday) bool {
	if len(a) != len(b) {
		return false
	}
	var seen [7]bool
	for _, d := range a {
		if d.N() != 0 {
			return false
		}
		seen[d.Day()] = true
	}
	for _, d := range b {
		if !seen[d.Day()] {
			return false
		}
	}
	return true
}

var ordinals = [...]string{"", "1st", "2nd", "3rd", "4th", "5th"}

// Describe returns the label the event form shows for repeat anchored at
// anchor, e.g. "Monthly on the 2nd Tuesday".
func Describe(repeat model.RepeatType, anchor time.Time) string {
	switch repeat {
	case "", model.RepeatNone:
		return "Does not repeat"
	case model.RepeatDaily:
		return "Daily"
	case model.RepeatWeekly:
		return "Weekly on " + anchor.Weekday().String()
	case model.RepeatMonthly:
		return fmt.Sprintf("Monthly on the %s %s", ordinals[WeekOfMonth(anchor.Day())], anchor.Weekday())
	case model.RepeatYearly:
		return "Annually on " + anchor.Format("January 2")
	case model.RepeatWeekdays:
		return "Every weekday (Monday to Friday)"
	default:
		return "Custom"
	}
}
