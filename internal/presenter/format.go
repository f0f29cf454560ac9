package presenter

import (
	"fmt"
	"time"
)

// FormatRelative formats t relative to now ("3 hours ago", "منذ ٣ ساعات").
// Times older than a week or in the future fall back to FormatDate.
func (l Locale) FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	if diff < 0 || diff >= 7*24*time.Hour {
		return l.FormatDate(t)
	}

	var n int
	var unit string
	switch {
	case diff < time.Minute:
		if l.arabic {
			return "الآن"
		}
		return "just now"
	case diff < time.Hour:
		n, unit = int(diff.Minutes()), "minute"
	case diff < 24*time.Hour:
		n, unit = int(diff.Hours()), "hour"
	default:
		n, unit = int(diff.Hours()/24), "day"
	}

	if l.arabic {
		return "منذ " + l.digits(fmt.Sprint(n)) + " " + arabicUnit(n, unit)
	}
	if n == 1 {
		if unit == "day" {
			return "yesterday"
		}
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatTimeLeft formats the time remaining until an auction ends.
func (l Locale) FormatTimeLeft(end, now time.Time) string {
	left := end.Sub(now)
	if left <= 0 {
		if l.arabic {
			return "انتهى"
		}
		return "ended"
	}
	days := int(left.Hours()) / 24
	hours := int(left.Hours()) % 24
	mins := int(left.Minutes()) % 60

	var s string
	switch {
	case days > 0:
		s = fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		s = fmt.Sprintf("%dh %dm", hours, mins)
	default:
		s = fmt.Sprintf("%dm", max(mins, 1))
	}
	if l.arabic {
		return "متبقي " + l.digits(s)
	}
	return s + " left"
}

// arabicUnit takes the plural for counts 3-10 and the singular otherwise.
func arabicUnit(n int, unit string) string {
	forms := map[string][2]string{
		"minute": {"دقيقة", "دقائق"},
		"hour":   {"ساعة", "ساعات"},
		"day":    {"يوم", "أيام"},
	}[unit]
	if n >= 3 && n <= 10 {
		return forms[1]
	}
	return forms[0]
}

var statusLabels = map[string][2]string{
	"pending":  {"Pending", "قيد المراجعة"},
	"active":   {"Active", "نشط"},
	"sold":     {"Sold", "مباع"},
	"expired":  {"Expired", "منتهي"},
	"rejected": {"Rejected", "مرفوض"},
	"sale":     {"Sale", "بيع"},
	"auction":  {"Auction", "مزاد"},
}

// Label translates a listing status or type. Unknown values are returned
// unchanged.
func (l Locale) Label(value string) string {
	forms, ok := statusLabels[value]
	if !ok {
		return value
	}
	if l.arabic {
		return forms[1]
	}
	return forms[0]
}
