// Package dateparse parses the auction end times users type.
package dateparse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical local date-time form.
const Layout = "2006-01-02 15:04"

// ErrUnrecognized is returned for input none of the forms match.
var ErrUnrecognized = errors.New("unrecognized time")

// ParseEnd parses an auction end relative to time.Now.
func ParseEnd(input string) (time.Time, error) {
	return ParseEndFrom(input, time.Now())
}

// ParseEndFrom parses an auction end relative to now. Supported forms:
//   - RFC 3339 and Layout (local time)
//   - YYYY-MM-DD, today, tomorrow, monday..sunday, next monday,
//     next week, eow, eom: the end of that day
//   - +N (days), +Nd, +Nh, +Nw, in N days, in N hours, in N weeks
//
// Day forms resolve to 23:59 local so an auction runs through the day
// it names. Offsets keep the clock time of now.
func ParseEndFrom(input string, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return time.Time{}, ErrUnrecognized
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(Layout, raw, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, now.Location()); err == nil {
		return endOfDay(t), nil
	}

	s := strings.ToLower(raw)
	switch s {
	case "today":
		return endOfDay(now), nil
	case "tomorrow":
		return endOfDay(now.AddDate(0, 0, 1)), nil
	case "next week", "nextweek":
		return endOfDay(now.AddDate(0, 0, 7)), nil
	case "next month", "nextmonth":
		return endOfDay(now.AddDate(0, 1, 0)), nil
	case "end of week", "eow":
		return endOfDay(nextWeekday(now, time.Friday, false)), nil
	case "end of month", "eom":
		return endOfDay(endOfMonth(now)), nil
	}

	if day, ok := parseWeekday(s); ok {
		next := strings.HasPrefix(s, "next ")
		return endOfDay(nextWeekday(now, day, next)), nil
	}

	if m := offsetPattern.FindStringSubmatch(s); m != nil {
		return applyOffset(now, m[1], m[2])
	}
	if m := inPattern.FindStringSubmatch(s); m != nil {
		return applyOffset(now, m[1], m[2][:1])
	}

	return time.Time{}, ErrUnrecognized
}

var (
	offsetPattern = regexp.MustCompile(`^\+(\d+)([dhw]?)$`)
	inPattern     = regexp.MustCompile(`^in (\d+) (days?|hours?|weeks?)$`)
)

func applyOffset(now time.Time, count, unit string) (time.Time, error) {
	n, err := strconv.Atoi(count)
	if err != nil || n <= 0 {
		return time.Time{}, ErrUnrecognized
	}
	switch unit {
	case "h":
		return now.Add(time.Duration(n) * time.Hour), nil
	case "w":
		return now.AddDate(0, 0, 7*n), nil
	default:
		return now.AddDate(0, 0, n), nil
	}
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 0, 0, t.Location())
}

func parseWeekday(input string) (time.Weekday, bool) {
	switch strings.TrimPrefix(input, "next ") {
	case "sunday", "sun":
		return time.Sunday, true
	case "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	}
	return 0, false
}

// nextWeekday returns the next occurrence of target. Today's weekday means
// a week from now. With forceNext ("next monday") it skips this week's.
func nextWeekday(now time.Time, target time.Weekday, forceNext bool) time.Time {
	daysUntil := int(target - now.Weekday())
	sameDay := daysUntil == 0
	if daysUntil <= 0 {
		daysUntil += 7
	}
	if forceNext && !sameDay {
		daysUntil += 7
	}
	return now.AddDate(0, 0, daysUntil)
}

func endOfMonth(now time.Time) time.Time {
	year, month, _ := now.Date()
	return time.Date(year, month+1, 1, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -1)
}
