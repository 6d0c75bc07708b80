// Package scoring holds the holiday and weather scoring functions shared by
// the ingestion pipeline and the score aggregator. Both emit values in
// [0, 100].
package scoring

import (
	"strings"
	"time"

	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/pkg/calendarutil"
)

// Holiday name markers, matched case-insensitively against both the English
// and Thai names of an entry.
var (
	majorFestivalMarkers = []string{
		"songkran", "สงกรานต์",
		"chinese new year", "ตรุษจีน",
		"new year", "ปีใหม่",
		"christmas", "คริสต์มาส",
	}
	importantHolidayMarkers = []string{
		"makha", "มาฆบูชา",
		"visakha", "วิสาขบูชา",
		"asanha", "อาสาฬหบูชา",
		"king's birthday", "เฉลิมพระชนมพรรษา",
		"mother's day", "วันแม่",
		"father's day", "วันพ่อ",
	}
)

func matchesAny(entry db.HolidayEntry, markers []string) bool {
	name := strings.ToLower(entry.Name)
	nameTH := entry.NameTH
	for _, m := range markers {
		if strings.Contains(name, m) || (nameTH != "" && strings.Contains(nameTH, m)) {
			return true
		}
	}
	return false
}

// HolidayScore computes the monthly holiday score for a set of entries.
// Starts at 50; each entry contributes by its classification, long-weekend
// entries add 5, and peak months (December, January, April) add 20 once.
func HolidayScore(entries []db.HolidayEntry) float64 {
	score := 50.0
	peakMonth := false

	for _, e := range entries {
		switch {
		case matchesAny(e, majorFestivalMarkers):
			score += 20 // Major Festival
		case matchesAny(e, importantHolidayMarkers):
			score += 10 // Important Public Holiday
		case strings.EqualFold(e.Category, "national"):
			score += 8
		default:
			score += 5 // Special Day / regional
		}

		if d, err := time.Parse("2006-01-02", e.Date); err == nil {
			if calendarutil.IsLongWeekend(d) {
				score += 5
			}
			switch d.Month() {
			case time.December, time.January, time.April:
				peakMonth = true
			}
		}
	}

	if peakMonth {
		score += 20
	}

	return clamp(score, 0, 100)
}

// WeatherScore computes the monthly weather score from aggregated values.
// hasHumidity distinguishes a real zero reading from a missing one.
func WeatherScore(avgTemp, totalRain float64, avgHumidity float64, hasHumidity bool) float64 {
	score := 50.0

	if avgTemp >= 20 && avgTemp <= 28 {
		score += 20
	} else if avgTemp < 20 || avgTemp > 32 {
		score -= 20
	}

	if totalRain < 50 {
		score += 15
	} else if totalRain > 200 {
		score -= 15
	}

	if hasHumidity {
		if avgHumidity >= 50 && avgHumidity <= 70 {
			score += 15
		} else if avgHumidity > 80 {
			score -= 15
		}
	}

	return clamp(score, 0, 100)
}

// DailyWeatherScore is the finer-grained variant applied to a single day
// during ingestion scoring. Temperature uses narrower bands and rain is a
// per-day amount rather than a monthly total.
func DailyWeatherScore(tempAvg, rainMM float64, humidity float64, hasHumidity bool) float64 {
	score := 50.0

	switch {
	case tempAvg >= 24 && tempAvg <= 30:
		score += 25
	case tempAvg >= 20 && tempAvg < 24, tempAvg > 30 && tempAvg <= 33:
		score += 10
	case tempAvg < 18 || tempAvg > 36:
		score -= 25
	default:
		score -= 10
	}

	switch {
	case rainMM == 0:
		score += 15
	case rainMM < 5:
		score += 8
	case rainMM > 30:
		score -= 20
	case rainMM > 10:
		score -= 10
	}

	if hasHumidity {
		if humidity >= 45 && humidity <= 70 {
			score += 10
		} else if humidity > 85 {
			score -= 10
		}
	}

	return clamp(score, 0, 100)
}

// EstimateHumidity fills in a missing humidity reading from temperature and
// precipitation: base 70, minus 1.5 per degree above 28C average, plus up
// to 15 for rain, clamped to [50, 90].
func EstimateHumidity(tempAvg, rainMM float64) float64 {
	h := 70.0
	h -= 1.5 * (tempAvg - 28)
	bonus := 3 * rainMM
	if bonus > 15 {
		bonus = 15
	}
	h += bonus
	return clamp(h, 50, 90)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
