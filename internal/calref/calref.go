// Package calref computes calendar reference data anchored to a single
// "today": day, week, month and year structures plus a table of upcoming
// dates keyed by natural-language phrases.
//
// Every value in a Snapshot derives from the same truncated reference time,
// so no two fields can disagree about what today is.
package calref

import (
	"time"
)

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// DayName returns the English name for wd ("Sunday" for time.Sunday).
func DayName(wd time.Weekday) string {
	return dayNames[wd]
}

// MonthName returns the English month name.
func MonthName(m time.Month) string {
	return monthNames[m-1]
}

// DateInfo describes a single calendar day.
type DateInfo struct {
	Date        time.Time `json:"date"`
	DayName     string    `json:"day_name"`
	DayNumber   int       `json:"day_number"`
	MonthName   string    `json:"month_name"`
	MonthNumber int       `json:"month_number"` // 1-12
	Year        int       `json:"year"`
	Quarter     int       `json:"quarter"` // 1-4
	WeekOfYear  int       `json:"week_of_year"`
	DayOfYear   int       `json:"day_of_year"` // 1 for January 1st
	IsWeekend   bool      `json:"is_weekend"`
	IsToday     bool      `json:"is_today"`
}

// WeekInfo is a Sunday-to-Saturday week.
type WeekInfo struct {
	WeekNumber int         `json:"week_number"`
	StartDate  time.Time   `json:"start_date"`
	EndDate    time.Time   `json:"end_date"`
	Days       [7]DateInfo `json:"days"`
}

// MonthInfo describes a calendar month. Weeks are whole Sunday-based weeks,
// so the first and last may include days of the adjacent months.
type MonthInfo struct {
	MonthName   string     `json:"month_name"`
	MonthNumber int        `json:"month_number"`
	Year        int        `json:"year"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	TotalDays   int        `json:"total_days"`
	Weeks       []WeekInfo `json:"weeks"`
}

// YearInfo describes a Gregorian year.
type YearInfo struct {
	Year       int           `json:"year"`
	IsLeapYear bool          `json:"is_leap_year"`
	TotalDays  int           `json:"total_days"`
	Months     [12]MonthInfo `json:"months"`
}

// Snapshot bundles everything derived from one reference instant.
// It is built per call and never mutated afterwards.
type Snapshot struct {
	Today     time.Time      `json:"today"`
	TodayInfo DateInfo       `json:"today_info"`
	Week      WeekInfo       `json:"week"`
	Month     MonthInfo      `json:"month"`
	Year      YearInfo       `json:"year"`
	Upcoming  *UpcomingDates `json:"-"`
}

// New builds a snapshot for the day containing now, in now's location.
func New(now time.Time) *Snapshot {
	today := StartOfDay(now)
	return &Snapshot{
		Today:     today,
		TodayInfo: DateInfoFor(today, today),
		Week:      WeekInfoFor(today, today),
		Month:     MonthInfoFor(today, today),
		Year:      YearInfoFor(today, today),
		Upcoming:  GenerateUpcoming(today),
	}
}

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddDays moves a midnight date by n calendar days. Using AddDate keeps the
// result at midnight across DST changes, which Add(24h) would not.
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// DateInfoFor describes date relative to today.
func DateInfoFor(date, today time.Time) DateInfo {
	d := StartOfDay(date)
	yday := d.YearDay()
	jan1 := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, d.Location())
	wd := d.Weekday()

	return DateInfo{
		Date:        d,
		DayName:     DayName(wd),
		DayNumber:   d.Day(),
		MonthName:   MonthName(d.Month()),
		MonthNumber: int(d.Month()),
		Year:        d.Year(),
		Quarter:     (int(d.Month())-1)/3 + 1,
		// ceil((dayOfYear + jan1Weekday) / 7)
		WeekOfYear: (yday + int(jan1.Weekday()) + 6) / 7,
		DayOfYear:  yday,
		IsWeekend:  wd == time.Saturday || wd == time.Sunday,
		IsToday:    d.Equal(StartOfDay(today)),
	}
}

// WeekInfoFor returns the Sunday-based week containing date.
func WeekInfoFor(date, today time.Time) WeekInfo {
	d := StartOfDay(date)
	start := AddDays(d, -int(d.Weekday()))

	w := WeekInfo{
		WeekNumber: DateInfoFor(d, today).WeekOfYear,
		StartDate:  start,
		EndDate:    AddDays(start, 6),
	}
	for i := range w.Days {
		w.Days[i] = DateInfoFor(AddDays(start, i), today)
	}
	return w
}

// MonthInfoFor returns the month containing date. Weeks are collected by
// stepping seven days from the 1st until a week reaches the last day.
// This deliberately differs from stopping once the stepped date passes the
// month end, which drops the final week of months like February 2025 (the
// 1st a Saturday): every day of the month lands in some week.
func MonthInfoFor(date, today time.Time) MonthInfo {
	d := StartOfDay(date)
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	// Day 0 of the next month is the last day of this one.
	end := time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, d.Location())

	m := MonthInfo{
		MonthName:   MonthName(d.Month()),
		MonthNumber: int(d.Month()),
		Year:        d.Year(),
		StartDate:   start,
		EndDate:     end,
		TotalDays:   end.Day(),
	}

	for cur := start; ; cur = AddDays(cur, 7) {
		w := WeekInfoFor(cur, today)
		m.Weeks = append(m.Weeks, w)
		if !w.EndDate.Before(end) {
			break
		}
	}
	return m
}

// YearInfoFor returns the year containing date. Each month is derived from
// its 15th so that month identity never depends on boundary arithmetic.
func YearInfoFor(date, today time.Time) YearInfo {
	d := StartOfDay(date)
	y := YearInfo{
		Year:       d.Year(),
		IsLeapYear: IsLeapYear(d.Year()),
		TotalDays:  365,
	}
	if y.IsLeapYear {
		y.TotalDays = 366
	}
	for i := range y.Months {
		mid := time.Date(d.Year(), time.Month(i+1), 15, 0, 0, 0, 0, d.Location())
		y.Months[i] = MonthInfoFor(mid, today)
	}
	return y
}

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in month m of year.
func DaysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
