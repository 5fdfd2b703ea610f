package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baekon/internal/model"
	"baekon/internal/voice"
)

// Wednesday.
var now = time.Date(2025, 1, 8, 10, 30, 0, 0, time.UTC)

func at(m time.Month, d, h, min int) time.Time {
	return time.Date(2025, m, d, h, min, 0, 0, time.UTC)
}

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewStore(), Options{
		Location:        time.UTC,
		DefaultHour:     9,
		DefaultDuration: time.Hour,
		Now:             func() time.Time { return now },
	})
}

func TestCreateEventPlacement(t *testing.T) {
	tests := []struct {
		name      string
		req       EventRequest
		start     time.Time
		end       time.Time
		resolved  bool
		timeGiven bool
	}{
		{"date only gets default hour", EventRequest{Title: "Dentist", When: "tomorrow"}, at(1, 9, 9, 0), at(1, 9, 10, 0), true, false},
		{"time prefixed", EventRequest{Title: "Review", When: "at 2pm next friday"}, at(1, 17, 14, 0), at(1, 17, 15, 0), true, true},
		{"separate clock", EventRequest{Title: "Gym", When: "monday", Time: "7:15am"}, at(1, 13, 7, 15), at(1, 13, 8, 15), true, true},
		{"unresolved falls back to today", EventRequest{Title: "Call mom", When: "someday"}, at(1, 8, 9, 0), at(1, 8, 10, 0), false, false},
		{"clock only is today", EventRequest{Title: "Lunch", Time: "12pm"}, at(1, 8, 12, 0), at(1, 8, 13, 0), false, true},
		{"custom duration", EventRequest{Title: "Sync", When: "in 2 days", Minutes: 30}, at(1, 10, 9, 0), at(1, 10, 9, 30), true, false},
		{"all day", EventRequest{Title: "Offsite", When: "march 3", AllDay: true}, at(3, 3, 0, 0), at(3, 4, 0, 0), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(t)
			ev, place, err := s.CreateEvent(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.start, ev.StartTime)
			assert.Equal(t, tt.end, ev.EndTime)
			assert.Equal(t, tt.resolved, place.Resolved)
			assert.Equal(t, tt.timeGiven, place.TimeGiven)
			assert.NotEmpty(t, ev.ID)
			assert.Equal(t, model.SourceLocal, ev.Source)
			assert.Equal(t, now, ev.CreatedAt)

			stored, ok := s.Store().Event(ev.ID)
			require.True(t, ok)
			assert.Equal(t, ev, stored)
		})
	}
}

func TestNaturalDateFallback(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	ev, place, err := s.CreateEvent(ctx, EventRequest{Title: "Expense report", When: "yesterday"})
	require.NoError(t, err)
	assert.Equal(t, at(1, 7, 9, 0), ev.StartTime)
	assert.Equal(t, Placement{Resolved: true, Rule: ruleNatural}, place)

	ev, place, err = s.CreateEvent(ctx, EventRequest{Title: "Retro", When: "yesterday", Time: "3pm"})
	require.NoError(t, err)
	assert.Equal(t, at(1, 7, 15, 0), ev.StartTime)
	assert.True(t, place.TimeGiven)

	// Phrases the rules know never reach the fallback.
	_, place, err = s.CreateEvent(ctx, EventRequest{Title: "Dentist", When: "tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, "exact", place.Rule)

	day, err := s.Day(ctx, "yesterday")
	require.NoError(t, err)
	assert.True(t, day.Resolved)
	assert.Equal(t, at(1, 7, 0, 0), day.Date)
}

func TestWithReferencePinsToday(t *testing.T) {
	s := newService(t)
	ref := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	ctx := WithReference(context.Background(), ref)

	ev, _, err := s.CreateEvent(ctx, EventRequest{Title: "Dentist", When: "tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, at(3, 4, 9, 0), ev.StartTime)
	assert.Equal(t, ref, ev.CreatedAt)

	day, err := s.Day(ctx, "tomorrow")
	require.NoError(t, err)
	assert.Equal(t, at(3, 4, 0, 0), day.Date)
	assert.Len(t, day.Occurrences, 1)

	reply, err := s.HandleTranscript(ctx, "Schedule gym tomorrow at 7am")
	require.NoError(t, err)
	require.NotNil(t, reply.Event)
	assert.Equal(t, at(3, 4, 7, 0), reply.Event.StartTime)

	// Calls without a reference still use the service clock.
	day, err = s.Day(context.Background(), "tomorrow")
	require.NoError(t, err)
	assert.Equal(t, at(1, 9, 0, 0), day.Date)
}

func TestCreateEventErrors(t *testing.T) {
	s := newService(t)

	_, _, err := s.CreateEvent(context.Background(), EventRequest{Title: "  ", When: "tomorrow"})
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, _, err = s.CreateEvent(context.Background(), EventRequest{Title: "x", Recurrence: "FREQ=SOMETIMES"})
	assert.ErrorIs(t, err, ErrInvalidRecurrence)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = s.CreateEvent(ctx, EventRequest{Title: "x"})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, s.Store().Events())
}

func TestCreateEventStripsRRulePrefix(t *testing.T) {
	s := newService(t)
	ev, _, err := s.CreateEvent(context.Background(), EventRequest{Title: "Standup", Recurrence: "RRULE:FREQ=DAILY;COUNT=2"})
	require.NoError(t, err)
	assert.Equal(t, "FREQ=DAILY;COUNT=2", ev.Recurrence)
}

func TestAgendaExpandsRecurring(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, _, err := s.CreateEvent(ctx, EventRequest{Title: "Standup", When: "monday", Time: "9:30am", Minutes: 15, Recurrence: "FREQ=WEEKLY;COUNT=4"})
	require.NoError(t, err)
	_, _, err = s.CreateEvent(ctx, EventRequest{Title: "Dentist", When: "january 20", Time: "8am"})
	require.NoError(t, err)

	occ, err := s.Agenda(ctx, at(1, 1, 0, 0), at(3, 1, 0, 0))
	require.NoError(t, err)

	var got []string
	for _, o := range occ {
		got = append(got, o.Start.Format("Jan 2 15:04")+" "+o.Title)
	}
	assert.Equal(t, []string{
		"Jan 13 09:30 Standup",
		"Jan 20 08:00 Dentist",
		"Jan 20 09:30 Standup",
		"Jan 27 09:30 Standup",
		"Feb 3 09:30 Standup",
	}, got)

	_, err = s.Agenda(ctx, at(2, 1, 0, 0), at(1, 1, 0, 0))
	assert.ErrorIs(t, err, ErrInvalidRange)

	empty, err := s.Agenda(ctx, at(6, 1, 0, 0), at(6, 2, 0, 0))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestDayFallsBackToToday(t *testing.T) {
	s := newService(t)
	day, err := s.Day(context.Background(), "whenever")
	require.NoError(t, err)
	assert.False(t, day.Resolved)
	assert.Equal(t, at(1, 8, 0, 0), day.Date)
}

func TestHandleTranscriptSchedules(t *testing.T) {
	s := newService(t)
	reply, err := s.HandleTranscript(context.Background(), "Schedule gym tomorrow at 7am")
	require.NoError(t, err)

	assert.Equal(t, voice.ActionScheduleEvent, reply.Action)
	require.NotNil(t, reply.Event)
	assert.Equal(t, "gym", reply.Event.Title)
	assert.Equal(t, at(1, 9, 7, 0), reply.Event.StartTime)
	assert.Equal(t, `Scheduled "gym" for Thu Jan 9 at 7:00 AM.`, reply.Message)
	assert.Len(t, s.Store().Events(), 1)
}

func TestHandleTranscriptTimeBlock(t *testing.T) {
	s := newService(t)
	reply, err := s.HandleTranscript(context.Background(), "Block time for deep work tomorrow")
	require.NoError(t, err)

	assert.Equal(t, voice.ActionCreateTimeBlock, reply.Action)
	require.NotNil(t, reply.Event)
	assert.Equal(t, "deep work", reply.Event.Title)
	assert.Equal(t, []string{timeBlockTag}, reply.Event.Tags)
	assert.Equal(t, at(1, 9, 9, 0), reply.Event.StartTime)
	assert.False(t, reply.Placement.TimeGiven)
}

func TestHandleTranscriptQueries(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.HandleTranscript(ctx, "Schedule gym tomorrow at 7am")
	require.NoError(t, err)
	_, err = s.HandleTranscript(ctx, "Schedule review tomorrow")
	require.NoError(t, err)

	reply, err := s.HandleTranscript(ctx, "What's on my schedule tomorrow?")
	require.NoError(t, err)
	assert.Equal(t, voice.ActionQuerySchedule, reply.Action)
	require.NotNil(t, reply.Day)
	assert.True(t, reply.Day.Resolved)
	assert.Len(t, reply.Day.Occurrences, 2)
	assert.Equal(t, "2 items on Thu Jan 9.", reply.Message)

	reply, err = s.HandleTranscript(ctx, "When am I free tomorrow?")
	require.NoError(t, err)
	assert.Equal(t, voice.ActionQueryFreeTime, reply.Action)
	assert.Equal(t, []Slot{
		{Start: at(1, 9, 8, 0), End: at(1, 9, 9, 0)},
		{Start: at(1, 9, 10, 0), End: at(1, 9, 20, 0)},
	}, reply.Free)
}

func TestHandleTranscriptNotesAndUndo(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	reply, err := s.HandleTranscript(ctx, "Take a note: buy oat milk")
	require.NoError(t, err)
	require.NotNil(t, reply.Note)
	assert.Equal(t, "buy oat milk", reply.Note.Title)

	reply, err = s.HandleTranscript(ctx, "find notes about milk")
	require.NoError(t, err)
	assert.Equal(t, voice.ActionSearchNotes, reply.Action)
	assert.Len(t, reply.Notes, 1)

	reply, err = s.HandleTranscript(ctx, "undo that")
	require.NoError(t, err)
	assert.Equal(t, "Undone.", reply.Message)
	assert.Empty(t, s.Store().Notes())

	reply, err = s.HandleTranscript(ctx, "undo")
	require.NoError(t, err)
	assert.Equal(t, "Nothing to undo.", reply.Message)
}

func TestHandleTranscriptOther(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	reply, err := s.HandleTranscript(ctx, "mumble mumble")
	require.NoError(t, err)
	assert.False(t, reply.Match.Recognized)
	assert.Empty(t, reply.Action)
	assert.Equal(t, voice.HelpHint, reply.Message)

	reply, err = s.HandleTranscript(ctx, "help")
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Commands)
	assert.Contains(t, reply.Message, "Schedule gym tomorrow at 7am")

	reply, err = s.HandleTranscript(ctx, "Go to calendar")
	require.NoError(t, err)
	assert.Equal(t, "calendar", reply.View)

	assert.Empty(t, s.Store().Events())
}

func TestCreateNote(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.CreateNote(ctx, NoteRequest{})
	assert.ErrorIs(t, err, ErrEmptyNote)

	long := "This first line is definitely longer than forty characters in total\nsecond line"
	n, err := s.CreateNote(ctx, NoteRequest{Content: long, Section: " ideas ", Priority: 2})
	require.NoError(t, err)
	assert.Equal(t, "This first line is definitely longer tha…", n.Title)
	assert.Equal(t, "ideas", n.Section)
	assert.Equal(t, now, n.CreatedAt)
}

func TestFreeSlots(t *testing.T) {
	day := at(1, 9, 0, 0)
	occ := []model.Occurrence{
		{Title: "holiday", AllDay: true, Start: day, End: day.AddDate(0, 0, 1)},
		{Title: "a", Start: at(1, 9, 9, 0), End: at(1, 9, 11, 0)},
		{Title: "b", Start: at(1, 9, 10, 0), End: at(1, 9, 10, 30)},
		{Title: "late", Start: at(1, 9, 19, 0), End: at(1, 9, 23, 0)},
	}
	assert.Equal(t, []Slot{
		{Start: at(1, 9, 8, 0), End: at(1, 9, 9, 0)},
		{Start: at(1, 9, 11, 0), End: at(1, 9, 19, 0)},
	}, FreeSlots(day, occ))

	assert.Equal(t, []Slot{{Start: at(1, 9, 8, 0), End: at(1, 9, 20, 0)}}, FreeSlots(day, nil))
}

func TestStoreReplaceSource(t *testing.T) {
	st := NewStore()
	local := st.PutEvent(model.Event{Title: "mine", StartTime: at(1, 1, 9, 0)})
	st.ReplaceSource("team", []model.Event{{ID: "a", Title: "old", StartTime: at(1, 2, 9, 0)}})

	removed := st.ReplaceSource("team", []model.Event{
		{ID: "b", Title: "new", StartTime: at(1, 3, 9, 0)},
		{Title: "no id", StartTime: at(1, 4, 9, 0)},
	})
	assert.Equal(t, 1, removed)

	events := st.Events()
	require.Len(t, events, 3)
	assert.Equal(t, local.ID, events[0].ID)
	assert.Equal(t, "team/b", events[1].ID)
	assert.Equal(t, "team", events[2].Source)
	assert.True(t, strings.HasPrefix(events[2].ID, "team/"), events[2].ID)

	assert.ErrorIs(t, st.DeleteEvent("team/a"), ErrNotFound)
	assert.NoError(t, st.DeleteEvent("team/b"))
}

func TestStoreReplaceSourceSharedUID(t *testing.T) {
	st := NewStore()
	invite := model.Event{ID: "standup@corp", Title: "Standup", StartTime: at(1, 6, 9, 30)}

	st.ReplaceSource("work", []model.Event{invite})
	st.ReplaceSource("team", []model.Event{invite})
	require.Len(t, st.Events(), 2)

	removed := st.ReplaceSource("team", nil)
	assert.Equal(t, 1, removed)

	events := st.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "work/standup@corp", events[0].ID)
	assert.Equal(t, "work", events[0].Source)

	// Re-importing already keyed events keeps their IDs stable.
	st.ReplaceSource("work", events)
	_, ok := st.Event("work/standup@corp")
	assert.True(t, ok)
}

func TestStoreNotesOrder(t *testing.T) {
	st := NewStore()
	st.PutNote(model.Note{ID: "old", Title: "old", CreatedAt: at(1, 1, 0, 0)})
	st.PutNote(model.Note{ID: "new", Title: "new", CreatedAt: at(1, 2, 0, 0)})
	st.PutNote(model.Note{ID: "urgent", Title: "urgent", Priority: 3, CreatedAt: at(1, 1, 0, 0), Tags: []string{"Work"}})

	var ids []string
	for _, n := range st.Notes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"urgent", "new", "old"}, ids)

	found := st.SearchNotes("work")
	require.Len(t, found, 1)
	assert.Equal(t, "urgent", found[0].ID)
	assert.Len(t, st.SearchNotes(""), 3)
}

func TestStoreConcurrentWrites(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.PutEvent(model.Event{Title: fmt.Sprint(i)})
			_ = st.Events()
		}(i)
	}
	wg.Wait()
	assert.Len(t, st.Events(), 50)
}
