package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"baekon/internal/model"
)

const (
	productID      = "-//baekon//planner//EN"
	utcLayout      = "20060102T150405Z"
	dateLayout     = "20060102"
	dateValueParam = "DATE"
)

// Encode renders events as a VCALENDAR named name. Recurring events keep
// their RRULE and EXDATEs so clients expand them themselves.
func Encode(name string, events []model.Event, stamp time.Time) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(stamp.UTC())
		if !ev.CreatedAt.IsZero() {
			ve.SetCreatedTime(ev.CreatedAt.UTC())
		}

		if ev.AllDay {
			ve.SetProperty(ical.ComponentPropertyDtStart, ev.StartTime.Format(dateLayout), ical.WithValue(dateValueParam))
			end := ev.EndTime
			if !end.After(ev.StartTime) {
				end = ev.StartTime.AddDate(0, 0, 1)
			}
			ve.SetProperty(ical.ComponentPropertyDtEnd, end.Format(dateLayout), ical.WithValue(dateValueParam))
		} else {
			ve.SetStartAt(ev.StartTime.UTC())
			ve.SetEndAt(ev.EndTime.UTC())
		}

		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if len(ev.Tags) > 0 {
			ve.SetProperty(ical.ComponentPropertyCategories, strings.Join(ev.Tags, ","))
		}
		if ev.Recurring() {
			ve.SetProperty(ical.ComponentPropertyRrule, ev.Recurrence)
			for _, ex := range ev.ExDates {
				if ev.AllDay {
					ve.AddProperty(ical.ComponentPropertyExdate, ex.Format(dateLayout), ical.WithValue(dateValueParam))
				} else {
					ve.AddProperty(ical.ComponentPropertyExdate, ex.UTC().Format(utcLayout))
				}
			}
		}
	}

	return []byte(cal.Serialize())
}
