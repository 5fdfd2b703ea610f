package dateresolve

import (
	"regexp"
	"strconv"
)

var clockPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

// ParseClock parses a time of day such as "7am", "9:30 pm" or "14:05".
func ParseClock(s string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(Normalize(s))
	if m == nil {
		return 0, 0, false
	}
	return clock(m[1], m[2], m[3])
}

// clock applies 12-hour conventions: pm adds 12 except for 12pm, 12am is
// midnight. Hours past 23 and minutes past 59 are rejected.
func clock(h, m, meridiem string) (int, int, bool) {
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, false
	}
	minute := 0
	if m != "" {
		if minute, err = strconv.Atoi(m); err != nil {
			return 0, 0, false
		}
	}
	switch meridiem {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
