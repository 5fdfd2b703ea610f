package web

import (
	"net/http"
	"strings"
	"time"

	"baekon/internal/calref"
	"baekon/internal/ics"
	appLog "baekon/internal/log"
	"baekon/internal/model"
	"baekon/internal/planner"
	"baekon/internal/voice"
)

const calendarName = "BÆKON"

type voiceRequest struct {
	Transcript string `json:"transcript"`
}

// handleVoice runs a transcript through the command matcher and planner.
//
// POST /api/voice?at=2025-01-15T09:00:00Z {"transcript": "Schedule gym tomorrow at 7am"}
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	ctx, _, err := s.requestContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req voiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reply, err := s.svc.HandleTranscript(ctx, req.Transcript)
	if err != nil {
		writePlannerError(w, "voice", err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleVoiceCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, voice.Commands())
}

type eventsResponse struct {
	Events []model.Event `json:"events"`
}

// handleListEvents returns stored events.
//
// GET /api/events?source=local
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	all := s.svc.Store().Events()
	events := make([]model.Event, 0, len(all))
	for _, ev := range all {
		if source == "" || ev.Source == source {
			events = append(events, ev)
		}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

type createEventResponse struct {
	Event     model.Event       `json:"event"`
	Placement planner.Placement `json:"placement"`
}

// handleCreateEvent creates an event from a date phrase.
//
// POST /api/events {"title": "Dentist", "when": "next friday", "time": "10am"}
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx, _, err := s.requestContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req planner.EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, place, err := s.svc.CreateEvent(ctx, req)
	if err != nil {
		writePlannerError(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, createEventResponse{Event: ev, Placement: place})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Store().DeleteEvent(r.PathValue("id")); err != nil {
		writePlannerError(w, "delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEventsICS exports stored events as an iCalendar feed.
func (s *Server) handleEventsICS(w http.ResponseWriter, _ *http.Request) {
	body := ics.Encode(calendarName, s.svc.Store().Events(), s.svc.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="baekon.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type notesResponse struct {
	Notes []model.Note `json:"notes"`
}

// handleListNotes lists notes, filtered by ?q= when given.
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, notesResponse{Notes: s.svc.Store().SearchNotes(r.URL.Query().Get("q"))})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	ctx, _, err := s.requestContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req planner.NoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := s.svc.CreateNote(ctx, req)
	if err != nil {
		writePlannerError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

type agendaResponse struct {
	RangeStart      time.Time          `json:"range_start"`
	RangeEnd        time.Time          `json:"range_end"`
	Resolved        bool               `json:"resolved"`
	DisplayTimeZone string             `json:"display_timezone"`
	Occurrences     []model.Occurrence `json:"occurrences"`
}

// handleAgenda returns expanded occurrences.
//
// GET /api/agenda?when=tomorrow
//   - when: a date phrase; the agenda covers that single day (today if it
//     does not resolve)
//
// GET /api/agenda?days=7&backfill=1
//   - days:     days ahead of today (default horizon_days)
//   - backfill: days before today to include (default 0)
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	ctx, ref, err := s.requestContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	loc := s.svc.Location()

	if when := strings.TrimSpace(q.Get("when")); when != "" {
		day, err := s.svc.Day(ctx, when)
		if err != nil {
			writePlannerError(w, "agenda", err)
			return
		}
		writeJSON(w, http.StatusOK, agendaResponse{
			RangeStart:      day.Date,
			RangeEnd:        calref.AddDays(day.Date, 1),
			Resolved:        day.Resolved,
			DisplayTimeZone: loc.String(),
			Occurrences:     day.Occurrences,
		})
		return
	}

	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	backfill := parseIntDefault(q.Get("backfill"), 0)
	if backfill < 0 {
		backfill = 0
	}

	today := calref.StartOfDay(ref)
	from, to := calref.AddDays(today, -backfill), calref.AddDays(today, days)
	occ, err := s.svc.Agenda(ctx, from, to)
	if err != nil {
		writePlannerError(w, "agenda", err)
		return
	}
	writeJSON(w, http.StatusOK, agendaResponse{
		RangeStart:      from,
		RangeEnd:        to,
		Resolved:        true,
		DisplayTimeZone: loc.String(),
		Occurrences:     occ,
	})
}

// handleRefresh re-imports subscriptions now. Partial failures are
// reported in the status body with 200.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "no subscriptions configured")
		return
	}
	st, err := s.refresher.RunOnce(r.Context())
	if err != nil {
		appLog.Warn("api refresh incomplete", "reason", err.Error())
	}
	writeJSON(w, http.StatusOK, st)
}
