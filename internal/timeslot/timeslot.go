// Package timeslot holds the HH:MM helpers behind the event form's time
// pickers. Values are plain wall-clock times with no date or zone.
package timeslot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	minutesPerDay = 24 * 60
	quarter       = 15
)

// ErrBadClock is returned for strings that are not HH:MM.
var ErrBadClock = errors.New("timeslot: invalid HH:MM value")

// Clock is a time of day. Hour may be 24 (only with Minute 0) when it
// comes from NearestQuarterHour rounding up past 23:52.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (one- or two-digit fields, no sign). Hours
// 0-24 and minutes 0-59 are accepted.
func ParseClock(s string) (Clock, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || !isClockField(hs) || !isClockField(ms) {
		return Clock{}, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 24 {
		return Clock{}, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	if h == 24 && m != 0 {
		return Clock{}, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

func isClockField(f string) bool {
	if len(f) == 0 || len(f) > 2 {
		return false
	}
	for i := 0; i < len(f); i++ {
		if f[i] < '0' || f[i] > '9' {
			return false
		}
	}
	return true
}

// FromTime returns t's hour and minute.
func FromTime(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// String formats c as zero-padded 24-hour HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns the minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// Add shifts c by delta minutes on a 24-hour dial. Crossing midnight in
// either direction wraps silently.
func (c Clock) Add(delta int) Clock {
	total := (c.Minutes() + delta) % minutesPerDay
	if total < 0 {
		total += minutesPerDay
	}
	return Clock{Hour: total / 60, Minute: total % 60}
}

// NearestQuarterHour rounds now's minutes to the nearest multiple of 15
// (halves round up) and carries 60 into the hour. The hour is not wrapped:
// 23:53 yields 24:00.
func NearestQuarterHour(now time.Time) Clock {
	hour := now.Hour()
	// floor(m/15 + 0.5) in integers.
	minute := (now.Minute()*2 + quarter) / (2 * quarter) * quarter
	if minute == 60 {
		minute = 0
		hour++
	}
	return Clock{Hour: hour, Minute: minute}
}

// AddMinutes adds delta minutes to an HH:MM string and returns HH:MM,
// discarding any day rollover: AddMinutes("23:50", 20) is "00:10".
func AddMinutes(s string, delta int) (string, error) {
	c, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return c.Add(delta).String(), nil
}

// Options returns the 96 quarter-hour picker choices, starting at the
// nearest quarter hour to base and wrapping around midnight.
func Options(base time.Time) []Clock {
	all := make([]Clock, 0, minutesPerDay/quarter)
	for m := 0; m < minutesPerDay; m += quarter {
		all = append(all, Clock{Hour: m / 60, Minute: m % 60})
	}

	nearest := NearestQuarterHour(base)
	if nearest.Hour == 24 {
		return all
	}
	idx := nearest.Minutes() / quarter
	return append(all[idx:], all[:idx]...)
}

// Combine places c on day's calendar date with zero seconds, in day's
// location. 24:00 lands on the following midnight.
func Combine(day time.Time, c Clock) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// Suggest returns the form's default slot: the nearest quarter hour to
// now and that time plus durationMinutes.
func Suggest(now time.Time, durationMinutes int) (start, end Clock) {
	start = NearestQuarterHour(now)
	return start, start.Add(durationMinutes)
}
