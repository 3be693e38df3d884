package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"weekcal/internal/model"
)

func event(id, title string, repeat model.RepeatType) model.Event {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	return model.Event{
		ID:     id,
		Title:  title,
		Start:  start,
		End:    start.Add(time.Hour),
		Repeat: repeat,
	}
}

func titles(evs []model.Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Title
	}
	return out
}

func TestAddAssignsIDAndKeepsOrder(t *testing.T) {
	t.Parallel()

	s := New()
	first, err := s.Add(event("", "standup", model.RepeatWeekly))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := uuid.Parse(first.ID); err != nil {
		t.Fatalf("assigned id %q is not a UUID: %v", first.ID, err)
	}
	if _, err := s.Add(event("fixed", "review", model.RepeatNone)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(event("", "retro", model.RepeatMonthly)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got := titles(s.List())
	want := []string{"standup", "review", "retro"}
	if len(got) != len(want) {
		t.Fatalf("List = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List = %v, want %v", got, want)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestAddRejects(t *testing.T) {
	t.Parallel()

	s := New()
	if _, err := s.Add(event("x", "one", model.RepeatNone)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(event("x", "two", model.RepeatNone)); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate err = %v", err)
	}

	blank := event("", "  ", model.RepeatNone)
	backwards := event("", "backwards", model.RepeatNone)
	backwards.End = backwards.Start
	odd := event("", "odd", "FORTNIGHTLY")

	for _, ev := range []model.Event{blank, backwards, odd} {
		if _, err := s.Add(ev); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Add(%q) err = %v, want ErrInvalid", ev.Title, err)
		}
	}
	if s.Len() != 1 {
		t.Fatalf("rejected events were stored: Len = %d", s.Len())
	}
}

func TestListIsACopy(t *testing.T) {
	t.Parallel()

	s := New()
	_, _ = s.Add(event("a", "standup", model.RepeatNone))

	list := s.List()
	list[0].Title = "changed"

	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "standup" {
		t.Fatalf("store mutated through List: %q", got.Title)
	}
}

func TestUpdateDeleteGet(t *testing.T) {
	t.Parallel()

	s := New()
	_, _ = s.Add(event("a", "first", model.RepeatNone))
	_, _ = s.Add(event("b", "second", model.RepeatNone))

	upd := event("a", "renamed", model.RepeatDaily)
	if err := s.Update(upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, _ := s.Get("a"); got.Title != "renamed" || got.Repeat != model.RepeatDaily {
		t.Fatalf("Update not applied: %+v", got)
	}
	if got := titles(s.List()); got[0] != "renamed" {
		t.Fatalf("Update moved the event: %v", got)
	}

	if err := s.Update(event("missing", "x", model.RepeatNone)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update missing err = %v", err)
	}
	if err := s.Update(event("a", "", model.RepeatNone)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Update invalid err = %v", err)
	}

	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v", err)
	}
	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get deleted err = %v", err)
	}
	if got := titles(s.List()); len(got) != 1 || got[0] != "second" {
		t.Fatalf("after delete: %v", got)
	}
}

func TestReplaceSource(t *testing.T) {
	t.Parallel()

	s := New()
	_, _ = s.Add(event("local", "local", model.RepeatNone))

	bad := event("bad", "bad", model.RepeatNone)
	bad.End = bad.Start.Add(-time.Minute)

	added, skipped, err := s.ReplaceSource("work", []model.Event{
		event("w1", "sync", model.RepeatWeekly),
		event("w1", "sync again", model.RepeatWeekly),
		event("", "no id", model.RepeatNone),
		bad,
	})
	if err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	if added != 2 || skipped != 2 {
		t.Fatalf("added=%d skipped=%d, want 2 and 2", added, skipped)
	}
	for _, ev := range s.List()[1:] {
		if ev.Source != "work" || ev.ID == "" {
			t.Fatalf("imported event not stamped: %+v", ev)
		}
	}

	// A second refresh replaces the previous import and leaves local events.
	added, _, err = s.ReplaceSource("work", []model.Event{event("w2", "planning", model.RepeatNone)})
	if err != nil || added != 1 {
		t.Fatalf("second ReplaceSource: added=%d err=%v", added, err)
	}
	got := titles(s.List())
	if len(got) != 2 || got[0] != "local" || got[1] != "planning" {
		t.Fatalf("after refresh: %v", got)
	}

	if _, _, err := s.ReplaceSource("home", []model.Event{event("local", "clash", model.RepeatNone)}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("clash err = %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("failed replace changed the store: Len = %d", s.Len())
	}

	if _, _, err := s.ReplaceSource("", nil); err == nil {
		t.Fatalf("expected error for empty source")
	}
}
