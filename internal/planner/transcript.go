package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"baekon/internal/calref"
	appLog "baekon/internal/log"
	"baekon/internal/model"
	"baekon/internal/voice"
)

// Free time is searched within these hours of the day.
const (
	workdayStartHour = 8
	workdayEndHour   = 20
)

const dayLayout = "Mon Jan 2"

// Slot is a free interval.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Reply is the outcome of a transcript. Match is always set; the other
// fields depend on the recognized action.
type Reply struct {
	Match   voice.Result `json:"match"`
	Action  string       `json:"action,omitempty"`
	Message string       `json:"message"`

	Event     *model.Event    `json:"event,omitempty"`
	Placement *Placement      `json:"placement,omitempty"`
	Note      *model.Note     `json:"note,omitempty"`
	Day       *DayAgenda      `json:"day,omitempty"`
	Free      []Slot          `json:"free,omitempty"`
	Notes     []model.Note    `json:"notes,omitempty"`
	Commands  []voice.Command `json:"commands,omitempty"`
	View      string          `json:"view,omitempty"`
}

// HandleTranscript matches transcript against the command table and
// carries out the recognized action. Navigation and cancel are returned
// for the client to apply.
func (s *Service) HandleTranscript(ctx context.Context, transcript string) (Reply, error) {
	res := s.matcher.Match(transcript)
	reply := Reply{Match: res}

	if !res.Recognized {
		reply.Message = res.Suggestion
		appLog.Debug("planner: transcript not recognized", "confidence", res.Confidence, "corrections", len(res.Corrections))
		return reply, nil
	}
	reply.Action = res.Command.Action
	appLog.Debug("planner: transcript matched", "action", reply.Action, "confidence", res.Confidence)

	switch res.Command.Action {
	case voice.ActionScheduleEvent, voice.ActionCreateTimeBlock:
		req := EventRequest{Title: res.Arg("title"), When: res.Arg("when"), Time: res.Arg("time")}
		if res.Command.Action == voice.ActionCreateTimeBlock {
			req.Tags = []string{timeBlockTag}
		}
		ev, place, err := s.CreateEvent(ctx, req)
		if err != nil {
			return reply, err
		}
		reply.Event, reply.Placement = &ev, &place
		reply.Message = fmt.Sprintf("Scheduled %q for %s.", ev.Title, ev.StartTime.Format(dayLayout+" at 3:04 PM"))
		if !place.Resolved && req.When != "" {
			reply.Message += fmt.Sprintf(" I couldn't place %q, so it's on today.", req.When)
		}

	case voice.ActionCreateNote:
		n, err := s.CreateNote(ctx, NoteRequest{Content: res.Arg("content")})
		if err != nil {
			return reply, err
		}
		reply.Note = &n
		reply.Message = fmt.Sprintf("Noted: %q.", n.Title)

	case voice.ActionQuerySchedule:
		day, err := s.Day(ctx, res.Arg("when"))
		if err != nil {
			return reply, err
		}
		reply.Day = &day
		reply.Message = fmt.Sprintf("%s on %s.", plural(len(day.Occurrences), "item"), day.Date.Format(dayLayout))

	case voice.ActionQueryFreeTime:
		day, err := s.Day(ctx, res.Arg("when"))
		if err != nil {
			return reply, err
		}
		reply.Day = &day
		reply.Free = FreeSlots(day.Date, day.Occurrences)
		reply.Message = fmt.Sprintf("%s on %s.", plural(len(reply.Free), "free slot"), day.Date.Format(dayLayout))

	case voice.ActionSearchNotes:
		reply.Notes = s.store.SearchNotes(res.Arg("query"))
		reply.Message = fmt.Sprintf("Found %s.", plural(len(reply.Notes), "note"))

	case voice.ActionUndo:
		if _, err := s.Undo(ctx); err != nil {
			if !errors.Is(err, ErrNothingToUndo) {
				return reply, err
			}
			reply.Message = "Nothing to undo."
			break
		}
		reply.Message = "Undone."

	case voice.ActionHelp:
		reply.Commands = s.matcher.Commands()
		var ex []string
		for _, c := range reply.Commands {
			if len(c.Examples) > 0 {
				ex = append(ex, c.Examples[0])
			}
		}
		reply.Message = "You can say: " + strings.Join(ex, "; ") + "."

	case voice.ActionNavigate:
		reply.View = res.Arg("view")
		reply.Message = fmt.Sprintf("Opening %s.", reply.View)

	case voice.ActionCancel:
		reply.Message = "Okay."

	default:
		reply.Message = res.Command.Description
	}
	return reply, nil
}

// FreeSlots returns the gaps between timed occurrences within working hours
// of day. All-day occurrences do not block time.
func FreeSlots(day time.Time, occ []model.Occurrence) []Slot {
	day = calref.StartOfDay(day)
	from := time.Date(day.Year(), day.Month(), day.Day(), workdayStartHour, 0, 0, 0, day.Location())
	to := time.Date(day.Year(), day.Month(), day.Day(), workdayEndHour, 0, 0, 0, day.Location())

	var slots []Slot
	cursor := from
	for _, o := range occ {
		if o.AllDay || !o.End.After(cursor) {
			continue
		}
		if o.Start.After(cursor) {
			end := o.Start
			if end.After(to) {
				end = to
			}
			if end.After(cursor) {
				slots = append(slots, Slot{Start: cursor, End: end})
			}
		}
		if o.End.After(cursor) {
			cursor = o.End
		}
		if !cursor.Before(to) {
			return slots
		}
	}
	if cursor.Before(to) {
		slots = append(slots, Slot{Start: cursor, End: to})
	}
	return slots
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
