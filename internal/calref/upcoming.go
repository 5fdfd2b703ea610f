package calref

import (
	"fmt"
	"strings"
	"time"
)

const (
	weekdayWindow  = 14
	maxDaysAhead   = 30
	maxWeeksAhead  = 12
	maxMonthsAhead = 12
)

// UpcomingDate is one phrase → date entry.
type UpcomingDate struct {
	Phrase string    `json:"phrase"`
	Date   time.Time `json:"date"`
}

// UpcomingDates is an ordered phrase table. Order is insertion order and is
// part of the contract: substring scans walk it front to back.
type UpcomingDates struct {
	entries []UpcomingDate
	index   map[string]int
}

// GenerateUpcoming builds the phrase table for today:
//
//   - "tomorrow"
//   - weekday names for the next 14 days: the first occurrence takes the bare
//     name, the second (day 8..14) is keyed "next <day>"
//   - "next week", "week after next", "next month"
//   - "in N day(s)" for 1..30, "in N week(s)" for 1..12, "in N month(s)" for 1..12
func GenerateUpcoming(today time.Time) *UpcomingDates {
	today = StartOfDay(today)
	u := &UpcomingDates{index: make(map[string]int)}

	u.add("tomorrow", AddDays(today, 1))

	// Starts at 1, so a bare weekday never resolves to today.
	for i := 1; i <= weekdayWindow; i++ {
		d := AddDays(today, i)
		name := strings.ToLower(DayName(d.Weekday()))
		if !u.has(name) {
			u.add(name, d)
		} else if i > 7 {
			u.add("next "+name, d)
		}
	}

	u.add("next week", AddDays(today, 7))
	u.add("week after next", AddDays(today, 14))
	u.add("next month", today.AddDate(0, 1, 0))

	for n := 1; n <= maxDaysAhead; n++ {
		u.add(countPhrase(n, "day"), AddDays(today, n))
	}
	for n := 1; n <= maxWeeksAhead; n++ {
		u.add(countPhrase(n, "week"), AddDays(today, 7*n))
	}
	for n := 1; n <= maxMonthsAhead; n++ {
		u.add(countPhrase(n, "month"), today.AddDate(0, n, 0))
	}
	return u
}

func countPhrase(n int, unit string) string {
	if n == 1 {
		return "in 1 " + unit
	}
	return fmt.Sprintf("in %d %ss", n, unit)
}

func (u *UpcomingDates) has(phrase string) bool {
	_, ok := u.index[phrase]
	return ok
}

// add keeps the first value for a phrase.
func (u *UpcomingDates) add(phrase string, d time.Time) {
	if u.has(phrase) {
		return
	}
	u.index[phrase] = len(u.entries)
	u.entries = append(u.entries, UpcomingDate{Phrase: phrase, Date: d})
}

// Lookup returns the date for an exact, already-normalized phrase.
func (u *UpcomingDates) Lookup(phrase string) (time.Time, bool) {
	if u == nil {
		return time.Time{}, false
	}
	i, ok := u.index[phrase]
	if !ok {
		return time.Time{}, false
	}
	return u.entries[i].Date, true
}

// Len returns the number of phrases.
func (u *UpcomingDates) Len() int {
	if u == nil {
		return 0
	}
	return len(u.entries)
}

// Entries returns a copy of the table in insertion order.
func (u *UpcomingDates) Entries() []UpcomingDate {
	if u == nil {
		return nil
	}
	out := make([]UpcomingDate, len(u.entries))
	copy(out, u.entries)
	return out
}

// Each calls fn for every entry in order until fn returns false.
func (u *UpcomingDates) Each(fn func(UpcomingDate) bool) {
	if u == nil {
		return
	}
	for _, e := range u.entries {
		if !fn(e) {
			return
		}
	}
}
