package calref

import (
	"fmt"
	"strings"
)

const dateLayout = "2006-01-02"

// Describe renders the snapshot as plain text: today, the current week and
// a handful of upcoming phrases.
func (s *Snapshot) Describe() string {
	var b strings.Builder

	t := s.TodayInfo
	fmt.Fprintf(&b, "Today: %s, %s %d, %d (%s)\n", t.DayName, t.MonthName, t.DayNumber, t.Year, t.Date.Format(dateLayout))
	fmt.Fprintf(&b, "Week %d of %d, Q%d, day %d of %d\n", t.WeekOfYear, t.Year, t.Quarter, t.DayOfYear, s.Year.TotalDays)
	fmt.Fprintf(&b, "%s %d has %d days\n", s.Month.MonthName, s.Month.Year, s.Month.TotalDays)

	b.WriteString("This week:\n")
	for _, d := range s.Week.Days {
		marker := " "
		if d.IsToday {
			marker = "*"
		}
		fmt.Fprintf(&b, " %s %-9s %s\n", marker, d.DayName, d.Date.Format(dateLayout))
	}

	b.WriteString("Upcoming:\n")
	s.Upcoming.Each(func(e UpcomingDate) bool {
		// The "in N ..." ranges are long and mechanical.
		if strings.HasPrefix(e.Phrase, "in ") {
			return true
		}
		fmt.Fprintf(&b, "  %-16s %s (%s)\n", e.Phrase, e.Date.Format(dateLayout), DayName(e.Date.Weekday()))
		return true
	})
	return b.String()
}
