// Package dateresolve turns free-text phrases such as "next friday",
// "in 3 weeks", "december 25" or "at 2pm tomorrow" into concrete dates.
//
// Resolution walks an ordered rule list against a calref snapshot built from
// an explicit reference time. The first rule that resolves wins. Unresolved
// input reports false; choosing a fallback date is the caller's business.
package dateresolve

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"baekon/internal/calref"
)

// Rule is one resolution strategy. Rules run in slice order.
type Rule struct {
	Name    string
	Resolve func(r *Resolver, phrase string, snap *calref.Snapshot) (time.Time, bool)
	// Claims, if set, reports phrases this rule owns even when Resolve fails.
	// Later rules are not tried for a claimed phrase.
	Claims func(phrase string) bool
}

// Resolver holds the rule list. The zero value is not usable; use New.
type Resolver struct {
	rules []Rule
}

// DefaultRules returns the standard rule order:
//
//  1. exact         - exact phrase in the upcoming-date table
//  2. time-prefixed - "at H[:MM] [am|pm] <phrase>", phrase resolved recursively
//  3. partial       - first table phrase (insertion order) contained in the
//     input, or containing it
//  4. month-name    - "<month> [day]", day defaults to the 15th
//
// time-prefixed must run before partial, or "at 2pm tomorrow" would be
// claimed by the "tomorrow" entry and lose its time.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "exact", Resolve: resolveExact},
		{Name: "time-prefixed", Resolve: resolveTimePrefixed, Claims: badClockPrefix},
		{Name: "partial", Resolve: resolvePartial},
		{Name: "month-name", Resolve: resolveMonthName},
	}
}

// New returns a Resolver using rules, or DefaultRules when none are given.
func New(rules ...Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Resolver{rules: rules}
}

var defaultResolver = New()

// Resolve resolves phrase relative to ref with the default rules.
func Resolve(phrase string, ref time.Time) (time.Time, bool) {
	return defaultResolver.Resolve(phrase, ref)
}

// Rules lists rule names in evaluation order.
func (r *Resolver) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}

// Resolve returns the date phrase denotes relative to ref. Date-only results
// are at midnight in ref's location.
func (r *Resolver) Resolve(phrase string, ref time.Time) (time.Time, bool) {
	d, _, ok := r.resolveWith(phrase, calref.New(ref))
	return d, ok
}

// ResolveRule is like Resolve but also reports the name of the rule that
// matched.
func (r *Resolver) ResolveRule(phrase string, ref time.Time) (time.Time, string, bool) {
	return r.resolveWith(phrase, calref.New(ref))
}

func (r *Resolver) resolveWith(phrase string, snap *calref.Snapshot) (time.Time, string, bool) {
	p := Normalize(phrase)
	if p == "" {
		return time.Time{}, "", false
	}
	for _, rule := range r.rules {
		if d, ok := rule.Resolve(r, p, snap); ok {
			return d, rule.Name, true
		}
		if rule.Claims != nil && rule.Claims(p) {
			return time.Time{}, "", false
		}
	}
	return time.Time{}, "", false
}

// Normalize lowercases and trims a phrase.
func Normalize(phrase string) string {
	return strings.ToLower(strings.TrimSpace(phrase))
}

func resolveExact(_ *Resolver, phrase string, snap *calref.Snapshot) (time.Time, bool) {
	return snap.Upcoming.Lookup(phrase)
}

func resolvePartial(_ *Resolver, phrase string, snap *calref.Snapshot) (time.Time, bool) {
	var (
		found time.Time
		ok    bool
	)
	snap.Upcoming.Each(func(e calref.UpcomingDate) bool {
		if strings.Contains(phrase, e.Phrase) || strings.Contains(e.Phrase, phrase) {
			found, ok = e.Date, true
			return false
		}
		return true
	})
	return found, ok
}

var monthPattern = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\s*(\d{1,2})?`)

const defaultDayOfMonth = 15

var monthIndex = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

func resolveMonthName(_ *Resolver, phrase string, snap *calref.Snapshot) (time.Time, bool) {
	m := monthPattern.FindStringSubmatch(phrase)
	if m == nil {
		return time.Time{}, false
	}
	month := monthIndex[m[1]]

	dayNum := defaultDayOfMonth
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return time.Time{}, false
		}
		dayNum = n
	}

	today := snap.Today
	year := today.Year()
	if dayNum < 1 || dayNum > calref.DaysIn(year, month) {
		// February 29th may still be valid next year; other days never are.
		if !(month == time.February && dayNum == 29) {
			return time.Time{}, false
		}
	}

	target := time.Date(year, month, dayNum, 0, 0, 0, 0, today.Location())
	if target.Month() != month || target.Before(today) {
		year++
		if dayNum > calref.DaysIn(year, month) {
			return time.Time{}, false
		}
		target = time.Date(year, month, dayNum, 0, 0, 0, 0, today.Location())
	}
	return target, true
}

var timePrefixPattern = regexp.MustCompile(`at (\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s+(.+)`)

func resolveTimePrefixed(r *Resolver, phrase string, snap *calref.Snapshot) (time.Time, bool) {
	m := timePrefixPattern.FindStringSubmatch(phrase)
	if m == nil {
		return time.Time{}, false
	}

	hour, minute, ok := clock(m[1], m[2], m[3])
	if !ok {
		return time.Time{}, false
	}

	d, _, ok := r.resolveWith(m[4], snap)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location()), true
}

// badClockPrefix matches "at <time> <rest>" whose time is out of range, so
// "at 99pm tomorrow" fails instead of falling through to partial and
// silently losing its time.
func badClockPrefix(phrase string) bool {
	m := timePrefixPattern.FindStringSubmatch(phrase)
	if m == nil {
		return false
	}
	_, _, ok := clock(m[1], m[2], m[3])
	return !ok
}
