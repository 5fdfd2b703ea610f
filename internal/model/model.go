package model

import "time"

// SourceLocal marks events created through the planner itself rather than
// imported from a subscription.
const SourceLocal = "local"

// Event is a stored calendar entry before recurrence expansion.
type Event struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	Description string `json:"description,omitempty"`

	// StartTime / EndTime in the event's own timezone.
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Tags   []string `json:"tags,omitempty"`
	AllDay bool     `json:"all_day"`

	// Recurrence is an RRULE value (without the "RRULE:" prefix), or empty.
	Recurrence string      `json:"recurrence,omitempty"`
	ExDates    []time.Time `json:"ex_dates,omitempty"`

	// Source is SourceLocal or a subscription ID.
	Source string `json:"source"`

	CreatedAt time.Time `json:"created_at"`
}

// Recurring reports whether the event carries an RRULE.
func (e Event) Recurring() bool { return e.Recurrence != "" }

// Note is a freeform planner note.
type Note struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags,omitempty"`
	Section  string   `json:"section,omitempty"`
	Priority int      `json:"priority"`

	CreatedAt time.Time `json:"created_at"`
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	EventID string `json:"event_id"`
	Source  string `json:"source"`

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string `json:"instance_key"`

	Title  string   `json:"title"`
	Tags   []string `json:"tags,omitempty"`
	AllDay bool     `json:"all_day"`

	// Start / End are in the display timezone.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
