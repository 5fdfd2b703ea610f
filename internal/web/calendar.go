package web

import (
	"net/http"
	"time"

	"github.com/iancoleman/orderedmap"

	"baekon/internal/calref"
	"baekon/internal/dateresolve"
)

const dateLayout = "2006-01-02"

var resolver = dateresolve.New()

// calendarResponse is the JSON shape for /api/calendar.
type calendarResponse struct {
	Today    calref.DateInfo  `json:"today"`
	Week     calref.WeekInfo  `json:"week"`
	Month    calref.MonthInfo `json:"month"`
	Year     *calref.YearInfo `json:"year,omitempty"`
	TimeZone string           `json:"timezone"`
	// Upcoming maps phrase to YYYY-MM-DD in table order.
	Upcoming *orderedmap.OrderedMap `json:"upcoming"`
}

// handleCalendar returns the calendar snapshot.
//
// GET /api/calendar?at=RFC3339&year=1&format=text
//   - at:     reference instant (default now)
//   - year:   include the twelve-month breakdown
//   - format: "text" renders the plain-text summary instead of JSON
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ref, err := s.referenceTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := calref.New(ref)

	q := r.URL.Query()
	if q.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(snap.Describe()))
		return
	}

	upcoming := orderedmap.New()
	upcoming.SetEscapeHTML(false)
	snap.Upcoming.Each(func(e calref.UpcomingDate) bool {
		upcoming.Set(e.Phrase, e.Date.Format(dateLayout))
		return true
	})

	resp := calendarResponse{
		Today:    snap.TodayInfo,
		Week:     snap.Week,
		Month:    snap.Month,
		TimeZone: snap.Today.Location().String(),
		Upcoming: upcoming,
	}
	if parseIntDefault(q.Get("year"), 0) == 1 {
		resp.Year = &snap.Year
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveResponse is the JSON shape for /api/resolve.
type resolveResponse struct {
	Phrase   string     `json:"phrase"`
	Resolved bool       `json:"resolved"`
	Date     *time.Time `json:"date,omitempty"`
	Rule     string     `json:"rule,omitempty"`
	Cached   bool       `json:"cached"`
}

// handleResolve resolves a date phrase. An unresolved phrase is a normal
// 200 answer with resolved=false; the caller picks its own fallback.
//
// GET /api/resolve?phrase=next+friday&at=RFC3339
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	phrase := r.URL.Query().Get("phrase")
	if dateresolve.Normalize(phrase) == "" {
		writeError(w, http.StatusBadRequest, "phrase is required")
		return
	}
	ref, err := s.referenceTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Results depend only on the reference day, not the time of day.
	key := ref.Format(dateLayout) + "|" + ref.Location().String() + "|" + dateresolve.Normalize(phrase)
	if cached, ok := s.resolveCache.Get(key); ok {
		cached.Phrase = phrase
		cached.Cached = true
		writeJSON(w, http.StatusOK, cached)
		return
	}

	resp := resolveResponse{Phrase: phrase}
	if d, rule, ok := resolver.ResolveRule(phrase, ref); ok {
		resp.Resolved, resp.Date, resp.Rule = true, &d, rule
	}
	s.resolveCache.Add(key, resp)
	writeJSON(w, http.StatusOK, resp)
}
