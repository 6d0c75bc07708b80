package calendarutil

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// IsLongWeekend reports whether a holiday on d forms a long weekend: the
// date falls on Friday or Monday, or either adjacent day is Saturday or
// Sunday.
func IsLongWeekend(d time.Time) bool {
	switch d.Weekday() {
	case time.Friday, time.Monday:
		return true
	}
	prev := d.AddDate(0, 0, -1).Weekday()
	next := d.AddDate(0, 0, 1).Weekday()
	if prev == time.Saturday || prev == time.Sunday {
		return true
	}
	if next == time.Saturday || next == time.Sunday {
		return true
	}
	return false
}

var thaiMonths = [12]string{
	"มกราคม", "กุมภาพันธ์", "มีนาคม", "เมษายน",
	"พฤษภาคม", "มิถุนายน", "กรกฎาคม", "สิงหาคม",
	"กันยายน", "ตุลาคม", "พฤศจิกายน", "ธันวาคม",
}

var englishMonths = [12]string{
	"January", "February", "March", "April",
	"May", "June", "July", "August",
	"September", "October", "November", "December",
}

var supportedLangs = language.NewMatcher([]language.Tag{
	language.Thai, // default
	language.English,
})

// MonthName returns the localized month name for a 1-based month index.
// Thai is the default; English is served to en requests.
func MonthName(month int, lang language.Tag) string {
	if month < 1 || month > 12 {
		return ""
	}
	_, idx, _ := supportedLangs.Match(lang)
	if idx == 1 {
		return englishMonths[month-1]
	}
	return thaiMonths[month-1]
}

// MonthIndex maps a Thai or English month name to its 1-based index. Exact
// match first, then substring containment either way. Returns 0 when no
// month matches.
func MonthIndex(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}
	lower := strings.ToLower(name)
	for i := 0; i < 12; i++ {
		if name == thaiMonths[i] || lower == strings.ToLower(englishMonths[i]) {
			return i + 1
		}
	}
	for i := 0; i < 12; i++ {
		th := thaiMonths[i]
		en := strings.ToLower(englishMonths[i])
		if strings.Contains(name, th) || strings.Contains(th, name) {
			return i + 1
		}
		if strings.Contains(lower, en) || strings.Contains(en, lower) {
			return i + 1
		}
	}
	return 0
}

// SeededRand returns a deterministic pseudo-random value in [0, 1) derived
// from a 32-bit rolling hash of the seed string. Identical seeds yield
// identical values across runs and processes, which keeps fabricated
// fallback scores reproducible.
func SeededRand(seed string) float64 {
	var h int32
	for _, c := range seed {
		h = (h << 5) - h + int32(c)
	}
	// Take the absolute value in 64 bits: -h overflows when the hash lands
	// exactly on the minimum int32.
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return float64(v%1000000) / 1000000.0
}

// FormatLocalDate renders a date as "2 มกราคม 2026" style. Used for
// localized start dates in analysis results.
func FormatLocalDate(d time.Time, lang language.Tag) string {
	return fmt.Sprintf("%d %s %d", d.Day(), MonthName(int(d.Month()), lang), d.Year())
}
