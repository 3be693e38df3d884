// Package store keeps base events in memory for the lifetime of the
// process. Insertion order is preserved so expansion output is stable.
package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

var (
	ErrNotFound    = errors.New("store: event not found")
	ErrDuplicateID = errors.New("store: event id already exists")
	ErrInvalid     = errors.New("store: invalid event")
)

// Store is a concurrency-safe, ordered collection of base events.
type Store struct {
	mu     sync.RWMutex
	events []model.Event
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Validate checks the rules the event form enforces before an
// event is saved.
func Validate(ev model.Event) error {
	if strings.TrimSpace(ev.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if !ev.End.After(ev.Start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalid)
	}
	if !ev.Repeat.Valid() {
		return fmt.Errorf("%w: unknown repeat %q", ErrInvalid, ev.Repeat)
	}
	return nil
}

// Add validates ev, assigns a UUID if ev.ID is empty, and appends it.
func (s *Store) Add(ev model.Event) (model.Event, error) {
	if err := Validate(ev); err != nil {
		return model.Event{}, err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(ev.ID) >= 0 {
		return model.Event{}, fmt.Errorf("%w: %s", ErrDuplicateID, ev.ID)
	}
	s.events = append(s.events, ev)
	appLog.Debug("store: event added", "id", ev.ID, "repeat", ev.Repeat)
	return ev, nil
}

// Update replaces the event with ev.ID in place.
func (s *Store) Update(ev model.Event) error {
	if err := Validate(ev); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(ev.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ev.ID)
	}
	s.events[i] = ev
	appLog.Debug("store: event updated", "id", ev.ID)
	return nil
}

// Delete removes the event with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.events = append(s.events[:i], s.events[i+1:]...)
	appLog.Debug("store: event deleted", "id", id)
	return nil
}

// Get returns the event with the given id.
func (s *Store) Get(id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.events[i], nil
}

// List returns a copy of all events in insertion order.
func (s *Store) List() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// ReplaceSource drops every event whose Source is source and appends
// events in their place, stamping each with source. Invalid events are
// skipped and counted. Local events (empty Source) cannot be replaced.
func (s *Store) ReplaceSource(source string, events []model.Event) (added, skipped int, err error) {
	if source == "" {
		return 0, 0, errors.New("store: source is empty")
	}

	fresh := make([]model.Event, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		ev.Source = source
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if _, dup := seen[ev.ID]; dup {
			skipped++
			continue
		}
		if verr := Validate(ev); verr != nil {
			appLog.Debug("store: skipping invalid imported event", "source", source, "id", ev.ID, "reason", verr.Error())
			skipped++
			continue
		}
		seen[ev.ID] = struct{}{}
		fresh = append(fresh, ev)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]model.Event, 0, len(s.events)+len(fresh))
	for _, ev := range s.events {
		if ev.Source == source {
			continue
		}
		if _, clash := seen[ev.ID]; clash {
			return 0, 0, fmt.Errorf("%w: %s", ErrDuplicateID, ev.ID)
		}
		kept = append(kept, ev)
	}
	s.events = append(kept, fresh...)

	return len(fresh), skipped, nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}
