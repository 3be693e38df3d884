package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"weekcal/internal/ics"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/recur"
	"weekcal/internal/timeslot"
	"weekcal/internal/view"
)

const dateLayout = "2006-01-02"

// eventDTO is the JSON shape of both base events and occurrences.
type eventDTO struct {
	ID          string    `json:"id"`
	InstanceKey string    `json:"instance_key"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Color       string    `json:"color,omitempty"`
	Repeat      string    `json:"repeat"`
	RepeatLabel string    `json:"repeat_label"`
	Source      string    `json:"source,omitempty"`
}

func toDTO(ev model.Event) eventDTO {
	repeat := ev.Repeat
	if repeat == "" {
		repeat = model.RepeatNone
	}
	return eventDTO{
		ID:          ev.ID,
		InstanceKey: ev.ID + "@" + ev.Start.Format(time.RFC3339),
		Title:       ev.Title,
		Description: ev.Description,
		Start:       ev.Start,
		End:         ev.End,
		AllDay:      ev.AllDay,
		Color:       ev.Color,
		Repeat:      string(repeat),
		RepeatLabel: recur.Describe(repeat, ev.Start),
		Source:      ev.Source,
	}
}

func toDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, toDTO(ev))
	}
	return out
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	View         string     `json:"view"`
	VisibleStart time.Time  `json:"visible_start"`
	VisibleEnd   time.Time  `json:"visible_end"`
	WindowStart  time.Time  `json:"window_start"`
	WindowEnd    time.Time  `json:"window_end"`
	TimeZone     string     `json:"timezone"`
	WeekStart    string     `json:"week_start"`
	Occurrences  []eventDTO `json:"occurrences"`
}

// pageRequest is the view/date pair most read endpoints take.
type pageRequest struct {
	kind    view.Kind
	current time.Time
}

func (s *Server) parsePage(r *http.Request) (pageRequest, error) {
	q := r.URL.Query()

	viewParam := q.Get("view")
	if viewParam == "" {
		viewParam = s.cfg.DefaultView
	}
	kind, err := view.ParseKind(viewParam)
	if err != nil {
		return pageRequest{}, err
	}

	current := s.now().In(s.loc)
	if d := q.Get("date"); d != "" {
		current, err = time.ParseInLocation(dateLayout, d, s.loc)
		if err != nil {
			return pageRequest{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", d)
		}
	}
	return pageRequest{kind: kind, current: current}, nil
}

// expandPage expands every stored event over the page's visible range
// extended by the configured lookahead.
func (s *Server) expandPage(p pageRequest) (visStart, visEnd, winStart, winEnd time.Time, occ []model.Event) {
	visStart, visEnd = view.VisibleWindow(p.kind, p.current, s.firstWeekday(p.kind))
	winStart, winEnd = recur.Window(visStart, visEnd, s.cfg.LookaheadDays)
	occ = recur.Expand(s.store.List(), winStart, winEnd)
	return
}

// handleEvents returns the expansion for a calendar page.
//
// GET /api/events?view=week|month&date=YYYY-MM-DD&sorted=1
//
// Non-repeating events are included regardless of the window, matching
// the engine's passthrough; use /api/grid for per-cell filtering.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	page, err := s.parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	visStart, visEnd, winStart, winEnd, occ := s.expandPage(page)
	if r.URL.Query().Get("sorted") == "1" {
		recur.SortByStart(occ)
	}

	appLog.Debug("api events request",
		"view", page.kind,
		"window_start", winStart.Format(time.RFC3339),
		"window_end", winEnd.Format(time.RFC3339),
		"occurrences", len(occ),
	)

	writeJSON(w, http.StatusOK, eventsResponse{
		View:         string(page.kind),
		VisibleStart: visStart,
		VisibleEnd:   visEnd,
		WindowStart:  winStart,
		WindowEnd:    winEnd,
		TimeZone:     s.loc.String(),
		WeekStart:    s.firstWeekday(page.kind).String(),
		Occurrences:  toDTOs(occ),
	})
}

type cellDTO struct {
	Date   string     `json:"date"`
	Hour   *int       `json:"hour,omitempty"`
	Events []eventDTO `json:"events"`
}

type gridResponse struct {
	View  string    `json:"view"`
	Cells []cellDTO `json:"cells"`
}

// handleGrid buckets occurrences into day (month) or day×hour (week) cells.
//
// GET /api/grid?view=week|month&date=YYYY-MM-DD&empty=0
//
// empty=0 drops cells with no events.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	page, err := s.parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	omitEmpty := r.URL.Query().Get("empty") == "0"

	_, _, _, _, occ := s.expandPage(page)
	cells := view.Grid(page.kind, page.current, s.firstWeekday(page.kind), occ)

	resp := gridResponse{View: string(page.kind), Cells: make([]cellDTO, 0, len(cells))}
	for _, c := range cells {
		if omitEmpty && len(c.Events) == 0 {
			continue
		}
		resp.Cells = append(resp.Cells, cellDTO{
			Date:   c.Day.Format(dateLayout),
			Hour:   c.Hour,
			Events: toDTOs(c.Events),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBaseEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toDTOs(s.store.List()))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(ev))
}

// eventRequest is the body of POST/PUT /api/events, mirroring the event
// form: one date plus start and end times of day. Pointer fields tell an
// omitted value from an explicit empty one, so PUT can keep what the
// body leaves out.
type eventRequest struct {
	Title       *string `json:"title"`
	Date        string  `json:"date"`  // YYYY-MM-DD, default today
	Start       string  `json:"start"` // HH:MM, default nearest quarter hour
	End         string  `json:"end"`   // HH:MM, default start + default duration
	AllDay      *bool   `json:"all_day"`
	Color       string  `json:"color"`
	Description *string `json:"description"`
	Repeat      *string `json:"repeat"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// toEvent resolves the form fields into an Event. An end time at or
// before the start time is taken to be on the following day.
func (s *Server) toEvent(req eventRequest) (model.Event, error) {
	now := s.now().In(s.loc)

	day := now
	if req.Date != "" {
		d, err := time.ParseInLocation(dateLayout, req.Date, s.loc)
		if err != nil {
			return model.Event{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", req.Date)
		}
		day = d
	}

	repeat, err := model.ParseRepeat(deref(req.Repeat))
	if err != nil {
		return model.Event{}, err
	}

	color := req.Color
	if color == "" {
		color = s.cfg.DefaultColor
	}

	allDay := deref(req.AllDay)
	ev := model.Event{
		Title:       strings.TrimSpace(deref(req.Title)),
		AllDay:      allDay,
		Color:       color,
		Description: deref(req.Description),
		Repeat:      repeat,
	}

	if allDay {
		ev.Start = timeslot.Combine(day, timeslot.Clock{})
		ev.End = ev.Start.AddDate(0, 0, 1)
		return ev, nil
	}

	startClock, endClock := timeslot.Suggest(now, s.cfg.DefaultDurationMinutes)
	if req.Start != "" {
		if startClock, err = timeslot.ParseClock(req.Start); err != nil {
			return model.Event{}, err
		}
		endClock = startClock.Add(s.cfg.DefaultDurationMinutes)
	}
	if req.End != "" {
		if endClock, err = timeslot.ParseClock(req.End); err != nil {
			return model.Event{}, err
		}
	}

	ev.Start = timeslot.Combine(day, startClock)
	ev.End = timeslot.Combine(day, endClock)
	if !ev.End.After(ev.Start) {
		ev.End = timeslot.Combine(day.AddDate(0, 0, 1), endClock)
	}
	return ev, nil
}

// mergeExisting fills every field the PUT body omitted from the stored
// event. Times are only carried over while the event stays timed.
func (s *Server) mergeExisting(req *eventRequest, existing model.Event) {
	if req.Title == nil {
		req.Title = &existing.Title
	}
	if req.Description == nil {
		req.Description = &existing.Description
	}
	if req.Repeat == nil {
		repeat := string(existing.Repeat)
		req.Repeat = &repeat
	}
	if req.AllDay == nil {
		req.AllDay = &existing.AllDay
	}
	if req.Color == "" {
		req.Color = existing.Color
	}
	if req.Date == "" {
		req.Date = existing.Start.In(s.loc).Format(dateLayout)
	}
	if *req.AllDay {
		return
	}
	if req.Start == "" && !existing.AllDay {
		req.Start = timeslot.FromTime(existing.Start.In(s.loc)).String()
	}
	if req.End == "" && !existing.AllDay {
		req.End = timeslot.FromTime(existing.End.In(s.loc)).String()
	}
}

func decodeEventRequest(r *http.Request) (eventRequest, error) {
	var req eventRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid json: %w", err)
	}
	return req, nil
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEventRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := s.toEvent(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := s.store.Add(ev)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	appLog.Info("event created", "id", saved.ID, "repeat", saved.Repeat)
	writeJSON(w, http.StatusCreated, toDTO(saved))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.store.Get(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	req, err := decodeEventRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mergeExisting(&req, existing)

	ev, err := s.toEvent(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev.ID = existing.ID
	ev.Source = existing.Source

	if err := s.store.Update(ev); err != nil {
		writeStoreError(w, err)
		return
	}
	appLog.Info("event updated", "id", ev.ID)
	writeJSON(w, http.StatusOK, toDTO(ev))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(id); err != nil {
		writeStoreError(w, err)
		return
	}
	appLog.Info("event deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

type timeslotResponse struct {
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Options []string `json:"options,omitempty"`
}

// handleTimeslot suggests the form's default start/end.
//
// GET /api/timeslot?at=HH:MM&add=60&options=1
//   - at:      base time (default now); rounded to the nearest quarter hour
//   - add:     minutes from start to end (default from config)
//   - options: include the 96 picker options rotated to start near "at"
func (s *Server) handleTimeslot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now().In(s.loc)

	base := now
	if at := q.Get("at"); at != "" {
		c, err := timeslot.ParseClock(at)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		base = timeslot.Combine(now, c)
	}

	add := s.cfg.DefaultDurationMinutes
	if v := q.Get("add"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "add must be an integer")
			return
		}
		add = n
	}

	start, end := timeslot.Suggest(base, add)
	resp := timeslotResponse{Start: start.String(), End: end.String()}
	if q.Get("options") == "1" {
		for _, c := range timeslot.Options(base) {
			resp.Options = append(resp.Options, c.String())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type repeatOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// handleRepeatOptions lists the repeat choices labeled for a given date.
//
// GET /api/repeat-options?date=YYYY-MM-DD
func (s *Server) handleRepeatOptions(w http.ResponseWriter, r *http.Request) {
	anchor := s.now().In(s.loc)
	if d := r.URL.Query().Get("date"); d != "" {
		t, err := time.ParseInLocation(dateLayout, d, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", d))
			return
		}
		anchor = t
	}

	opts := make([]repeatOption, 0, len(model.RepeatTypes))
	for _, k := range model.RepeatTypes {
		opts = append(opts, repeatOption{Value: string(k), Label: recur.Describe(k, anchor)})
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleExportICS(w http.ResponseWriter, _ *http.Request) {
	body := ics.Export(s.store.List(), ics.DefaultProdID, s.now().UTC())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
