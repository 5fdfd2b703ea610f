package planner

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"baekon/internal/model"
)

// Store keeps events and notes in memory. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	events map[string]model.Event
	notes  map[string]model.Note
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		events: make(map[string]model.Event),
		notes:  make(map[string]model.Note),
	}
}

// PutEvent inserts or replaces ev, assigning an ID when it has none.
func (s *Store) PutEvent(ev model.Event) model.Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Source == "" {
		ev.Source = model.SourceLocal
	}
	ev.Tags = cloneStrings(ev.Tags)

	s.mu.Lock()
	s.events[ev.ID] = ev
	s.mu.Unlock()
	return ev
}

// Event returns the event with id.
func (s *Store) Event(id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	return ev, ok
}

// Events returns all events ordered by start time.
func (s *Store) Events() []model.Event {
	s.mu.RLock()
	out := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DeleteEvent removes the event with id.
func (s *Store) DeleteEvent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// ReplaceSource atomically swaps every event from source for events and
// reports how many were removed. Imported IDs are stored as
// "<source>/<id>", so feeds sharing a UID do not collide.
func (s *Store) ReplaceSource(source string, events []model.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ev := range s.events {
		if ev.Source == source {
			delete(s.events, id)
			removed++
		}
	}
	for _, ev := range events {
		ev.ID = sourceKey(source, ev.ID)
		ev.Source = source
		s.events[ev.ID] = ev
	}
	return removed
}

func sourceKey(source, id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	if strings.HasPrefix(id, source+"/") {
		return id
	}
	return source + "/" + id
}

// PutNote inserts or replaces n, assigning an ID when it has none.
func (s *Store) PutNote(n model.Note) model.Note {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.Tags = cloneStrings(n.Tags)

	s.mu.Lock()
	s.notes[n.ID] = n
	s.mu.Unlock()
	return n
}

// DeleteNote removes the note with id.
func (s *Store) DeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

// Notes returns notes by descending priority, then newest first.
func (s *Store) Notes() []model.Note {
	s.mu.RLock()
	out := make([]model.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// SearchNotes returns notes whose title, content, section or tags contain
// query, case-insensitively, in Notes order.
func (s *Store) SearchNotes(query string) []model.Note {
	q := strings.ToLower(strings.TrimSpace(query))
	all := s.Notes()
	if q == "" {
		return all
	}
	out := all[:0]
	for _, n := range all {
		if noteContains(n, q) {
			out = append(out, n)
		}
	}
	return out
}

func noteContains(n model.Note, q string) bool {
	for _, field := range append([]string{n.Title, n.Content, n.Section}, n.Tags...) {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
