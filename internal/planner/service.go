// Package planner creates events and notes from free-text requests and voice
// transcripts, and answers agenda queries.
//
// Date phrases go through dateresolve first and go-naturaldate second; a
// phrase neither understands falls back to today. A phrase that resolves to a date without a time of day gets
// the configured default hour.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/teambition/rrule-go"
	"github.com/tj/go-naturaldate"

	"baekon/internal/calref"
	"baekon/internal/dateresolve"
	"baekon/internal/ics"
	appLog "baekon/internal/log"
	"baekon/internal/model"
	"baekon/internal/voice"
)

var (
	ErrEmptyTitle        = errors.New("title is empty")
	ErrEmptyNote         = errors.New("note has no title or content")
	ErrInvalidRecurrence = errors.New("invalid recurrence rule")
	ErrInvalidRange      = errors.New("agenda range end is before start")
	ErrNotFound          = errors.New("not found")
	ErrNothingToUndo     = errors.New("nothing to undo")
)

const (
	defaultEventHour     = 9
	defaultEventDuration = time.Hour
	maxDerivedTitleRunes = 40
	timeBlockTag         = "time-block"

	// ruleNatural names placements made by go-naturaldate.
	ruleNatural = "natural"
)

// Options configures a Service. Zero values take defaults.
type Options struct {
	// Location is the zone "today" is computed in.
	Location *time.Location
	// DefaultHour is used when a phrase resolves to a date only.
	DefaultHour int
	// DefaultDuration is used when a request has none.
	DefaultDuration time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// Service is the planner front door. Safe for concurrent use.
type Service struct {
	store    *Store
	resolver *dateresolve.Resolver
	matcher  *voice.Matcher

	loc         *time.Location
	defaultHour int
	defaultDur  time.Duration
	now         func() time.Time

	mu   sync.Mutex
	last *created
}

// created remembers the most recent creation for undo.
type created struct {
	kind string // "event" or "note"
	id   string
}

// NewService returns a Service over store.
func NewService(store *Store, opts Options) *Service {
	if store == nil {
		store = NewStore()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DefaultHour < 0 || opts.DefaultHour > 23 {
		opts.DefaultHour = defaultEventHour
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = defaultEventDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:       store,
		resolver:    dateresolve.New(),
		matcher:     voice.NewMatcher(),
		loc:         opts.Location,
		defaultHour: opts.DefaultHour,
		defaultDur:  opts.DefaultDuration,
		now:         opts.Now,
	}
}

// Store returns the backing store.
func (s *Service) Store() *Store { return s.store }

// Now returns the current time in the planner's location.
func (s *Service) Now() time.Time { return s.now().In(s.loc) }

// Location returns the planner's zone.
func (s *Service) Location() *time.Location { return s.loc }

type referenceKey struct{}

// WithReference returns a context under which service calls treat t as the
// current time. Used to pin "today" per request.
func WithReference(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, referenceKey{}, t)
}

// nowFor is the reference time carried by ctx, or Now.
func (s *Service) nowFor(ctx context.Context) time.Time {
	if t, ok := ctx.Value(referenceKey{}).(time.Time); ok && !t.IsZero() {
		return t.In(s.loc)
	}
	return s.Now()
}

// EventRequest describes an event to create.
type EventRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	When        string   `json:"when"`
	Time        string   `json:"time,omitempty"`
	Minutes     int      `json:"duration_minutes,omitempty"`
	AllDay      bool     `json:"all_day,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Recurrence  string   `json:"recurrence,omitempty"`
}

// Placement reports how an event's start was derived.
type Placement struct {
	// Resolved is false when the phrase did not resolve and today was used.
	Resolved bool   `json:"resolved"`
	Rule     string `json:"rule,omitempty"`
	// TimeGiven is false when the default hour was applied.
	TimeGiven bool `json:"time_given"`
}

// CreateEvent stores a new event.
func (s *Service) CreateEvent(ctx context.Context, req EventRequest) (model.Event, Placement, error) {
	if err := ctx.Err(); err != nil {
		return model.Event{}, Placement{}, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return model.Event{}, Placement{}, fmt.Errorf("planner: create event: %w", ErrEmptyTitle)
	}
	rule := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(req.Recurrence), "RRULE:"))
	if rule != "" {
		if _, err := rrule.StrToRRule(rule); err != nil {
			return model.Event{}, Placement{}, fmt.Errorf("planner: create event: %w: %v", ErrInvalidRecurrence, err)
		}
	}

	now := s.nowFor(ctx)
	start, place := s.placeStart(req.When, req.Time, now)

	var end time.Time
	if req.AllDay {
		start = calref.StartOfDay(start)
		end = calref.AddDays(start, 1)
	} else {
		dur := s.defaultDur
		if req.Minutes > 0 {
			dur = time.Duration(req.Minutes) * time.Minute
		}
		end = start.Add(dur)
	}

	ev := s.store.PutEvent(model.Event{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		StartTime:   start,
		EndTime:     end,
		Tags:        req.Tags,
		AllDay:      req.AllDay,
		Recurrence:  rule,
		Source:      model.SourceLocal,
		CreatedAt:   now,
	})
	s.remember("event", ev.ID)

	if !place.Resolved && strings.TrimSpace(req.When) != "" {
		appLog.Info("planner: date phrase unresolved, using today", "when", req.When, "event", ev.ID)
	}
	appLog.Info("planner: event created", "event", ev.ID, "start", ev.StartTime.Format(time.RFC3339), "rule", place.Rule)
	return ev, place, nil
}

// placeStart turns a date phrase and an optional clock into a start time.
func (s *Service) placeStart(when, clock string, now time.Time) (time.Time, Placement) {
	var place Placement

	day, rule, ok := s.resolveDate(when, now)
	if ok {
		place.Resolved, place.Rule = true, rule
		place.TimeGiven = rule == "time-prefixed"
	} else {
		day = calref.StartOfDay(now)
	}

	if h, m, ok := dateresolve.ParseClock(clock); ok {
		day = time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
		place.TimeGiven = true
	}
	if !place.TimeGiven {
		day = time.Date(day.Year(), day.Month(), day.Day(), s.defaultHour, 0, 0, 0, day.Location())
	}
	return day, place
}

// resolveDate tries the rule resolver, then go-naturaldate for phrases the
// rules do not cover ("yesterday", "a week from now"). Natural results are
// reduced to their date.
func (s *Service) resolveDate(phrase string, now time.Time) (time.Time, string, bool) {
	if d, rule, ok := s.resolver.ResolveRule(phrase, now); ok {
		return d, rule, true
	}
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return time.Time{}, "", false
	}
	t, err := naturaldate.Parse(phrase, now, naturaldate.WithDirection(naturaldate.Future))
	// An unchanged reference carries no date information.
	if err != nil || t.Equal(now) {
		return time.Time{}, "", false
	}
	appLog.Debug("planner: natural date fallback", "phrase", phrase, "date", t.Format(time.RFC3339))
	return calref.StartOfDay(t.In(now.Location())), ruleNatural, true
}

// NoteRequest describes a note to create.
type NoteRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags,omitempty"`
	Section  string   `json:"section,omitempty"`
	Priority int      `json:"priority,omitempty"`
}

// CreateNote stores a new note. A missing title is derived from the first
// line of the content.
func (s *Service) CreateNote(ctx context.Context, req NoteRequest) (model.Note, error) {
	if err := ctx.Err(); err != nil {
		return model.Note{}, err
	}
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" && content == "" {
		return model.Note{}, fmt.Errorf("planner: create note: %w", ErrEmptyNote)
	}
	if title == "" {
		title = deriveTitle(content)
	}

	n := s.store.PutNote(model.Note{
		Title:     title,
		Content:   content,
		Tags:      req.Tags,
		Section:   strings.TrimSpace(req.Section),
		Priority:  req.Priority,
		CreatedAt: s.nowFor(ctx),
	})
	s.remember("note", n.ID)
	appLog.Info("planner: note created", "note", n.ID)
	return n, nil
}

func deriveTitle(content string) string {
	line, _, _ := strings.Cut(content, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= maxDerivedTitleRunes {
		return line
	}
	r := []rune(line)
	return strings.TrimSpace(string(r[:maxDerivedTitleRunes])) + "…"
}

// Agenda returns occurrences overlapping [from, to), recurring events
// expanded, in start order.
func (s *Service) Agenda(ctx context.Context, from, to time.Time) ([]model.Occurrence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("planner: agenda: %w", ErrInvalidRange)
	}
	res, err := ics.Expand(s.store.Events(), ics.ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      from,
		RangeEnd:        to,
	})
	if err != nil {
		return nil, fmt.Errorf("planner: agenda: %w", err)
	}
	if res.Occurrences == nil {
		return []model.Occurrence{}, nil
	}
	return res.Occurrences, nil
}

// DayAgenda is one day's schedule.
type DayAgenda struct {
	Date        time.Time          `json:"date"`
	Resolved    bool               `json:"resolved"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

// Day returns the agenda for the day phrase names, or today when it does
// not resolve.
func (s *Service) Day(ctx context.Context, phrase string) (DayAgenda, error) {
	now := s.nowFor(ctx)
	day, _, ok := s.resolveDate(phrase, now)
	if !ok {
		day = now
	}
	day = calref.StartOfDay(day)

	occ, err := s.Agenda(ctx, day, calref.AddDays(day, 1))
	if err != nil {
		return DayAgenda{}, err
	}
	return DayAgenda{Date: day, Resolved: ok, Occurrences: occ}, nil
}

// Undo deletes the most recently created event or note.
func (s *Service) Undo(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	last := s.last
	s.last = nil
	s.mu.Unlock()

	if last == nil {
		return "", fmt.Errorf("planner: undo: %w", ErrNothingToUndo)
	}
	var err error
	if last.kind == "event" {
		err = s.store.DeleteEvent(last.id)
	} else {
		err = s.store.DeleteNote(last.id)
	}
	if err != nil {
		return "", fmt.Errorf("planner: undo %s %s: %w", last.kind, last.id, err)
	}
	appLog.Info("planner: undone", "kind", last.kind, "id", last.id)
	return last.id, nil
}

func (s *Service) remember(kind, id string) {
	s.mu.Lock()
	s.last = &created{kind: kind, id: id}
	s.mu.Unlock()
}
