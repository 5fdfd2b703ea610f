package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baekon/internal/config"
	"baekon/internal/planner"
	"baekon/internal/voice"
)

// Wednesday.
var now = time.Date(2025, 1, 8, 10, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, http.Handler) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	svc := planner.NewService(planner.NewStore(), planner.Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
	s, err := NewServer(cfg, svc, nil)
	require.NoError(t, err)
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "secret"}
	})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	rec := do(t, h, http.MethodGet, "/api/calendar", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/calendar", nil)
	req.SetBasicAuth("me", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/calendar", nil)
	req.SetBasicAuth("me", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBasicAuthNeedsBothFields(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "me"}
	})
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/calendar", "").Code)
}

func TestCalendarJSON(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/api/calendar", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Today struct {
			DayName   string `json:"day_name"`
			DayOfYear int    `json:"day_of_year"`
		} `json:"today"`
		Year     json.RawMessage   `json:"year"`
		Upcoming map[string]string `json:"upcoming"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Wednesday", resp.Today.DayName)
	assert.Equal(t, 8, resp.Today.DayOfYear)
	assert.Nil(t, resp.Year)
	assert.Equal(t, "2025-01-09", resp.Upcoming["tomorrow"])
	assert.Equal(t, "2025-01-17", resp.Upcoming["next friday"])
	assert.Len(t, resp.Upcoming, 72)

	body := rec.Body.String()
	iTomorrow := strings.Index(body, `"tomorrow"`)
	iThursday := strings.Index(body, `"thursday"`)
	iInOneDay := strings.Index(body, `"in 1 day"`)
	assert.True(t, iTomorrow < iThursday && iThursday < iInOneDay, "upcoming keeps table order")
}

func TestCalendarOptions(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/calendar?at=2025-08-16T12:00:00Z&year=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Today struct {
			DayName string `json:"day_name"`
		} `json:"today"`
		Year struct {
			Months []json.RawMessage `json:"months"`
		} `json:"year"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Saturday", resp.Today.DayName)
	assert.Len(t, resp.Year.Months, 12)

	rec = do(t, h, http.MethodGet, "/api/calendar?format=text", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Today: Wednesday")

	rec = do(t, h, http.MethodGet, "/api/calendar?at=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "RFC3339")
}

func TestResolve(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/resolve?phrase=Next+Friday", "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[resolveResponse](t, rec)
	assert.True(t, first.Resolved)
	require.NotNil(t, first.Date)
	assert.Equal(t, "2025-01-17", first.Date.Format(dateLayout))
	assert.Equal(t, "exact", first.Rule)
	assert.False(t, first.Cached)

	second := decode[resolveResponse](t, do(t, h, http.MethodGet, "/api/resolve?phrase=next+friday", ""))
	assert.True(t, second.Cached)
	assert.Equal(t, "next friday", second.Phrase)
	assert.Equal(t, first.Date.Unix(), second.Date.Unix())

	other := decode[resolveResponse](t, do(t, h, http.MethodGet, "/api/resolve?phrase=next+friday&at=2025-01-09T08:00:00Z", ""))
	assert.False(t, other.Cached)
	assert.Equal(t, "2025-01-17", other.Date.Format(dateLayout))

	timed := decode[resolveResponse](t, do(t, h, http.MethodGet, "/api/resolve?phrase=at+2pm+tomorrow", ""))
	assert.Equal(t, "time-prefixed", timed.Rule)
	assert.Equal(t, 14, timed.Date.Hour())

	miss := decode[resolveResponse](t, do(t, h, http.MethodGet, "/api/resolve?phrase=mumble", ""))
	assert.False(t, miss.Resolved)
	assert.Nil(t, miss.Date)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/resolve?phrase=++", "").Code)
}

func TestVoiceCreatesEvent(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/voice", `{"transcript":"Schedule gym tomorrow at 7am"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	reply := decode[planner.Reply](t, rec)
	assert.Equal(t, voice.ActionScheduleEvent, reply.Action)
	require.NotNil(t, reply.Event)
	assert.Equal(t, "gym", reply.Event.Title)

	list := decode[eventsResponse](t, do(t, h, http.MethodGet, "/api/events", ""))
	require.Len(t, list.Events, 1)
	assert.True(t, list.Events[0].StartTime.Equal(time.Date(2025, 1, 9, 7, 0, 0, 0, time.UTC)))

	assert.Empty(t, decode[eventsResponse](t, do(t, h, http.MethodGet, "/api/events?source=team", "")).Events)

	rec = do(t, h, http.MethodGet, "/api/events.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Body.String(), "SUMMARY:gym")

	agenda := decode[agendaResponse](t, do(t, h, http.MethodGet, "/api/agenda?when=tomorrow", ""))
	assert.True(t, agenda.Resolved)
	assert.Len(t, agenda.Occurrences, 1)

	agenda = decode[agendaResponse](t, do(t, h, http.MethodGet, "/api/agenda?days=1", ""))
	assert.Empty(t, agenda.Occurrences)
	agenda = decode[agendaResponse](t, do(t, h, http.MethodGet, "/api/agenda", ""))
	assert.Len(t, agenda.Occurrences, 1)
}

func TestReferenceTimeOnPlannerEndpoints(t *testing.T) {
	_, h := newTestServer(t, nil)
	const at = "?at=2025-03-03T08:00:00Z"
	march := func(d, hour int) time.Time { return time.Date(2025, 3, d, hour, 0, 0, 0, time.UTC) }

	rec := do(t, h, http.MethodPost, "/api/voice"+at, `{"transcript":"Schedule gym tomorrow at 7am"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	reply := decode[planner.Reply](t, rec)
	require.NotNil(t, reply.Event)
	assert.True(t, reply.Event.StartTime.Equal(march(4, 7)), reply.Event.StartTime)

	rec = do(t, h, http.MethodPost, "/api/events"+at, `{"title":"Dentist","when":"tomorrow"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[createEventResponse](t, rec)
	assert.True(t, created.Event.StartTime.Equal(march(4, 9)), created.Event.StartTime)
	assert.True(t, created.Event.CreatedAt.Equal(march(3, 8)), created.Event.CreatedAt)

	agenda := decode[agendaResponse](t, do(t, h, http.MethodGet, "/api/agenda"+at+"&when=tomorrow", ""))
	assert.True(t, agenda.RangeStart.Equal(march(4, 0)))
	assert.Len(t, agenda.Occurrences, 2)

	agenda = decode[agendaResponse](t, do(t, h, http.MethodGet, "/api/agenda"+at+"&days=2", ""))
	assert.True(t, agenda.RangeStart.Equal(march(3, 0)))
	assert.Len(t, agenda.Occurrences, 2)

	// Without at, tomorrow is January 9th.
	agenda = decode[agendaResponse](t, do(t, h, http.MethodGet, "/api/agenda?when=tomorrow", ""))
	assert.Empty(t, agenda.Occurrences)

	for _, target := range []string{"/api/voice?at=soon", "/api/events?at=soon"} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, target, `{"title":"x"}`).Code, target)
	}
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/agenda?at=soon", "").Code)
}

func TestVoiceUnrecognized(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodPost, "/api/voice", `{"transcript":"I have a meeting thing"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	reply := decode[planner.Reply](t, rec)
	assert.False(t, reply.Match.Recognized)
	assert.NotEmpty(t, reply.Match.Corrections)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/voice", `{"transcript":`).Code)
}

func TestVoiceCommands(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/api/voice/commands", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cmds := decode[[]map[string]any](t, rec)
	assert.Len(t, cmds, len(voice.Commands()))
	assert.Equal(t, voice.ActionCreateTimeBlock, cmds[0]["action"])
}

func TestCreateEventErrors(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/events", `{"title":"","when":"tomorrow"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "title is empty")

	rec = do(t, h, http.MethodPost, "/api/events", `{"title":"x","recurrence":"FREQ=NEVER"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPut, "/api/events", `{}`).Code)
}

func TestCreateAndDeleteEvent(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/events", `{"title":"Dentist","when":"next friday","time":"10am","duration_minutes":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[createEventResponse](t, rec)
	assert.True(t, created.Placement.Resolved)
	assert.True(t, created.Event.EndTime.Equal(time.Date(2025, 1, 17, 10, 30, 0, 0, time.UTC)))

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/events/"+created.Event.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/events/"+created.Event.ID, "").Code)
}

func TestNotes(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/notes", `{"content":"Renew passport\nbefore march","tags":["admin"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/notes", `{}`).Code)

	list := decode[notesResponse](t, do(t, h, http.MethodGet, "/api/notes?q=passport", ""))
	require.Len(t, list.Notes, 1)
	assert.Equal(t, "Renew passport", list.Notes[0].Title)
	assert.Empty(t, decode[notesResponse](t, do(t, h, http.MethodGet, "/api/notes?q=taxes", "")).Notes)
}

func TestRefreshWithoutSubscriptions(t *testing.T) {
	_, h := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/api/refresh", "").Code)
}
