// Package presenter formats numbers, prices, dates and labels for the
// user's language. Arabic output uses Arabic-Indic digits.
package presenter

import (
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale holds resolved formatting conventions for dates and numbers.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
	arabic  bool
}

// DetectLocale resolves the locale from the configured content language,
// then the environment. Falls back to en-US.
func DetectLocale(lang string) Locale {
	if lang != "" {
		return NewLocale(lang)
	}
	raw := os.Getenv("LC_ALL")
	if raw == "" {
		raw = os.Getenv("LC_NUMERIC")
	}
	if raw == "" {
		raw = os.Getenv("LANG")
	}
	return NewLocale(raw)
}

// NewLocale creates a Locale from a POSIX locale string (e.g. "ar_EG.UTF-8")
// or BCP 47 tag (e.g. "ar-EG"). Returns en-US for empty or unparseable input.
func NewLocale(raw string) Locale {
	if idx := strings.IndexByte(raw, '.'); idx != -1 {
		raw = raw[:idx]
	}
	raw = strings.ReplaceAll(raw, "_", "-")

	tag, _ := language.Parse(raw)
	if tag == language.Und {
		tag = language.AmericanEnglish
	}
	base, _ := tag.Base()

	return Locale{
		tag:     tag,
		printer: message.NewPrinter(tag),
		arabic:  base.String() == "ar",
	}
}

// Tag returns the resolved language tag.
func (l Locale) Tag() language.Tag {
	return l.tag
}

// Lang returns the two-letter content language, "ar" or "en".
func (l Locale) Lang() string {
	if l.arabic {
		return "ar"
	}
	return "en"
}

// IsRTL reports whether text in this locale reads right to left.
func (l Locale) IsRTL() bool {
	return l.arabic
}

// FormatNumber formats v with locale grouping and at most two decimals.
func (l Locale) FormatNumber(v float64) string {
	var s string
	if v == float64(int64(v)) {
		s = l.printer.Sprint(number.Decimal(int64(v)))
	} else {
		s = l.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
	}
	return l.digits(s)
}

// FormatPrice formats an amount with its ISO currency code. An empty
// currency formats the bare amount.
func (l Locale) FormatPrice(amount float64, currency string) string {
	s := l.printer.Sprint(number.Decimal(amount, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	s = l.digits(s)
	if currency == "" {
		return s
	}
	return s + " " + strings.ToUpper(currency)
}

// FormatQuantity formats a quantity with its unit.
func (l Locale) FormatQuantity(q float64, unit string) string {
	s := l.FormatNumber(q)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// FormatDate formats t as a locale-appropriate date.
func (l Locale) FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if l.arabic {
		return l.digits(t.Format("2") + " " + arabicMonths[t.Month()-1] + " " + t.Format("2006"))
	}
	return t.Format(l.dateLayout())
}

// digits converts ASCII digits to Arabic-Indic for Arabic locales. The
// printer does this for most Arabic regions already; Maghreb regions
// default to Latin digits in CLDR.
func (l Locale) digits(s string) string {
	if !l.arabic {
		return s
	}
	return arabicDigits.Replace(s)
}

var arabicDigits = strings.NewReplacer(
	"0", "٠", "1", "١", "2", "٢", "3", "٣", "4", "٤",
	"5", "٥", "6", "٦", "7", "٧", "8", "٨", "9", "٩",
)

var arabicMonths = [12]string{
	"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
	"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
}

func (l Locale) dateLayout() string {
	region, _ := l.tag.Region()
	if layout, ok := dateLayouts[region.String()]; ok {
		return layout
	}
	return layoutMDY
}

const (
	layoutMDY = "Jan 2, 2006"
	layoutDMY = "2 Jan 2006"
	layoutYMD = "2006-01-02"
)

// dateLayouts maps ISO 3166-1 regions to English date layouts.
var dateLayouts = map[string]string{
	"US": layoutMDY,
	"GB": layoutDMY,
	"AU": layoutDMY,
	"IE": layoutDMY,
	"IN": layoutDMY,
	"AE": layoutDMY,
	"SA": layoutDMY,
	"EG": layoutDMY,
	"QA": layoutDMY,
	"KW": layoutDMY,
	"CA": layoutYMD,
}
