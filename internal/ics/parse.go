// Package ics reads and writes iCalendar data for the planner: parsing
// subscribed feeds, encoding stored events for export, expanding
// recurrences and fetching remote feeds with HTTP caching.
package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "baekon/internal/log"
	"baekon/internal/model"
)

// ErrEmptyBody is returned by Parse for an empty payload.
var ErrEmptyBody = errors.New("ics: empty body")

// ParsedEvent is the normalized form of one VEVENT.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Categories  []string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time

	// RecurrenceID is set on VEVENTs that override one instance of a
	// recurring event.
	RecurrenceID *time.Time
}

// IsOverride reports whether the VEVENT replaces a single recurring instance.
func (p ParsedEvent) IsOverride() bool { return p.RecurrenceID != nil }

// Parse parses one feed. Malformed VEVENTs are logged and skipped.
func Parse(src Source, body []byte) ([]ParsedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(src, ve)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Seq = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		out.Categories = append(out.Categories, splitList(p.Value)...)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	start, err := ve.GetStartAt()
	if err != nil || out.AllDay {
		start, err = parseICSTime(dtStart.Value, tzid(dtStart))
		if err != nil {
			return out, err
		}
	}
	out.Start = start

	switch end, err := ve.GetEndAt(); {
	case out.AllDay:
		out.End = start.AddDate(0, 0, 1)
		if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
			if t, err := parseICSTime(p.Value, tzid(p)); err == nil && t.After(start) {
				out.End = t
			}
		}
	case err == nil && !end.Before(start):
		out.End = end
	default:
		out.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = strings.TrimSpace(p.Value)
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range splitList(p.Value) {
			if t, err := parseICSTime(part, tzid(p)); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value, tzid(p)); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

// ToEvents converts parsed VEVENTs into stored events tagged with source.
// An override becomes a standalone event and its original instance is
// excluded from the base series.
func ToEvents(source string, parsed []ParsedEvent, now time.Time) []model.Event {
	out := make([]model.Event, 0, len(parsed))
	base := make(map[string]int)

	for _, p := range parsed {
		if p.IsOverride() {
			continue
		}
		base[p.UID] = len(out)
		out = append(out, model.Event{
			ID:          p.UID,
			Title:       p.Summary,
			Description: p.Description,
			StartTime:   p.Start,
			EndTime:     p.End,
			Tags:        p.Categories,
			AllDay:      p.AllDay,
			Recurrence:  p.RawRRule,
			ExDates:     p.ExDates,
			Source:      source,
			CreatedAt:   now,
		})
	}

	for _, p := range parsed {
		if !p.IsOverride() {
			continue
		}
		if i, ok := base[p.UID]; ok {
			out[i].ExDates = append(out[i].ExDates, *p.RecurrenceID)
		}
		out = append(out, model.Event{
			ID:          p.UID + "@" + p.RecurrenceID.UTC().Format("20060102T150405Z"),
			Title:       p.Summary,
			Description: p.Description,
			StartTime:   p.Start,
			EndTime:     p.End,
			Tags:        p.Categories,
			AllDay:      p.AllDay,
			Source:      source,
			CreatedAt:   now,
		})
	}
	return out
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func tzid(p *ical.IANAProperty) *time.Location {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if loc, err := time.LoadLocation(tzs[0]); err == nil {
			return loc
		}
	}
	return time.Local
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string { return textUnescaper.Replace(s) }

// parseICSTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.Local
	}
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
