package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"weekcal/internal/model"
)

func runApp(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	if err := app.Run(append([]string{"weekcal"}, args...)); err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
	return out.String()
}

func TestSlotCommand(t *testing.T) {
	t.Parallel()

	if got := runApp(t, "slot", "--at", "23:50", "--add", "20"); got != "00:10\n" {
		t.Fatalf("slot output = %q", got)
	}
	if got := runApp(t, "slot", "--at", "9:00", "--add", "-15"); got != "08:45\n" {
		t.Fatalf("slot output = %q", got)
	}
}

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//cli//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:lunch@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240306T120000Z\r\n" +
	"DTEND:20240306T130000Z\r\n" +
	"SUMMARY:Lunch\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240304T090000Z\r\n" +
	"DTEND:20240304T091500Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"RRULE:FREQ=WEEKLY\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestExpandCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "weekcal.yaml")
	icsPath := filepath.Join(dir, "cal.ics")
	if err := os.WriteFile(cfgPath, []byte("timezone: UTC\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(icsPath, []byte(sampleICS), 0o600); err != nil {
		t.Fatal(err)
	}

	got := runApp(t, "--config", cfgPath, "expand", "--ics", icsPath, "--from", "2024-03-04", "--to", "2024-03-17", "--sorted")
	want := strings.Join([]string{
		"2024-03-04 09:00-09:15\tStandup\t[WEEKLY]",
		"2024-03-06 12:00-13:00\tLunch\t[NONE]",
		"2024-03-11 09:00-09:15\tStandup\t[WEEKLY]",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("expand output:\n%s\nwant:\n%s", got, want)
	}
}

func TestParseWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 6, 15, 4, 0, 0, time.UTC)

	from, to, err := parseWindow("", "", now, time.UTC)
	if err != nil {
		t.Fatalf("parseWindow: %v", err)
	}
	if !from.Equal(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from = %s", from)
	}
	if want := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond); !to.Equal(want) {
		t.Fatalf("to = %s, want %s", to, want)
	}

	if _, _, err := parseWindow("2024-3-6", "", now, time.UTC); err == nil {
		t.Fatalf("expected error for malformed --from")
	}
	if _, _, err := parseWindow("", "tomorrow", now, time.UTC); err == nil {
		t.Fatalf("expected error for malformed --to")
	}
}

func TestFormatOccurrence(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 4, 0, 30, 0, 0, time.UTC)
	ev := model.Event{Title: "Standup", Start: start, End: start.Add(time.Hour)}

	seoul := time.FixedZone("KST", 9*3600)
	if got := formatOccurrence(ev, seoul); got != "2024-03-04 09:30-10:30\tStandup\t[NONE]" {
		t.Fatalf("formatOccurrence = %q", got)
	}
}

func TestReadOnlyCommandsDoNotWriteConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "weekcal.yaml")
	icsPath := filepath.Join(dir, "cal.ics")
	if err := os.WriteFile(icsPath, []byte(sampleICS), 0o600); err != nil {
		t.Fatal(err)
	}

	runApp(t, "--config", cfgPath, "slot")
	runApp(t, "--config", cfgPath, "expand", "--ics", icsPath, "--from", "2024-03-04")

	if _, err := os.Stat(cfgPath); !os.IsNotExist(err) {
		t.Fatalf("read-only commands created %s (stat err = %v)", cfgPath, err)
	}
}

func TestRefreshScheduleSkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	sched, runNow, err := newRefreshSchedule(time.UTC, "@every 1h", func() {
		if runs.Add(1) == 1 {
			close(started)
		}
		<-release
	})
	if err != nil {
		t.Fatalf("newRefreshSchedule: %v", err)
	}
	defer sched.Stop()

	done := make(chan struct{})
	go func() {
		runNow()
		close(done)
	}()
	<-started

	// The first run is still blocked, so this one must be skipped.
	runNow()
	if n := runs.Load(); n != 1 {
		t.Fatalf("overlapping run executed: runs = %d", n)
	}

	close(release)
	<-done

	runNow()
	if n := runs.Load(); n != 2 {
		t.Fatalf("run after completion skipped: runs = %d", n)
	}
}

func TestRefreshScheduleRejectsBadSpec(t *testing.T) {
	t.Parallel()

	if _, _, err := newRefreshSchedule(time.UTC, "every now and then", func() {}); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
}
