package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "baekon/internal/log"
	"baekon/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ErrInvalidRange is returned when RangeEnd precedes RangeStart.
var ErrInvalidRange = errors.New("ics: range end is before range start")

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone occurrences are converted to. Nil means
	// time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the half-open window [RangeStart, RangeEnd).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. Zero means 5000.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds occurrences sorted by start.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents lists event IDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
	// InvalidEvents lists event IDs whose recurrence rule failed to parse.
	InvalidEvents []string
}

// Expand turns events into concrete occurrences overlapping the window.
// Recurring events are expanded with their RRULE minus EXDATEs; an event
// whose rule cannot be parsed is reported and skipped.
func Expand(events []model.Event, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, ErrInvalidRange
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	for _, ev := range events {
		if !ev.Recurring() {
			if overlaps(ev.StartTime, ev.EndTime, cfg.RangeStart, cfg.RangeEnd) {
				result.Occurrences = append(result.Occurrences, makeOccurrence(ev, ev.StartTime, ev.EndTime, cfg.DisplayLocation))
			}
			continue
		}

		occ, hitCap, err := expandRecurring(ev, cfg)
		if err != nil {
			appLog.Error("expand: bad RRULE", err, "event", ev.ID, "rrule", ev.Recurrence)
			result.InvalidEvents = append(result.InvalidEvents, ev.ID)
			continue
		}
		if hitCap {
			appLog.Warn("expand: occurrences truncated", "event", ev.ID, "cap", cfg.MaxOccurrencesPerEvent)
			result.TruncatedEvents = append(result.TruncatedEvents, ev.ID)
		}
		result.Occurrences = append(result.Occurrences, occ...)
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		a, b := result.Occurrences[i], result.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.Title < b.Title
	})
	return result, nil
}

func expandRecurring(ev model.Event, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	r, err := rrule.StrToRRule(ev.Recurrence)
	if err != nil {
		return nil, false, err
	}
	r.DTStart(ev.StartTime)

	var set rrule.Set
	set.RRule(r)
	loc := ev.StartTime.Location()
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(loc))
	}

	dur := ev.EndTime.Sub(ev.StartTime)
	if dur < 0 {
		dur = 0
	}

	// Widen the lower bound by the duration so instances that started
	// before the window but are still running are included.
	starts := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	out := make([]model.Occurrence, 0, len(starts))
	hitCap := false
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, days(dur))
		}
		if !overlaps(s, e, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		if len(out) == cfg.MaxOccurrencesPerEvent {
			hitCap = true
			break
		}
		out = append(out, makeOccurrence(ev, s, e, cfg.DisplayLocation))
	}
	return out, hitCap, nil
}

// days rounds an all-day span to whole days, at least one.
func days(d time.Duration) int {
	n := int((d + 12*time.Hour) / (24 * time.Hour))
	if n < 1 {
		return 1
	}
	return n
}

func makeOccurrence(ev model.Event, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	return model.Occurrence{
		EventID:     ev.ID,
		Source:      ev.Source,
		InstanceKey: ev.ID + "/" + startLocal.Format(time.RFC3339),
		Title:       ev.Title,
		Tags:        ev.Tags,
		AllDay:      ev.AllDay,
		Start:       startLocal,
		End:         end.In(displayLoc),
	}
}

// overlaps reports whether [aStart, aEnd) intersects [bStart, bEnd). A
// zero-length span counts when its instant lies inside b.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
