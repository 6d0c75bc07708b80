// Package forecast trains per-(route, trip-type) gradient-boosted
// regression models over historical fare rows and produces single-date
// predictions, 30-day trends and mixed actual-plus-predicted price curves.
package forecast

import (
	"math"
	"time"
)

// listed Thai holidays as (month, day) pairs. Dates within 3 days of any of
// these get the proximity multiplier.
var listedHolidays = [][2]int{
	{1, 1},   // New Year's Day
	{2, 10},  // Chinese New Year (nominal)
	{4, 6},   // Chakri Memorial Day
	{4, 13},  // Songkran
	{4, 14},  // Songkran
	{4, 15},  // Songkran
	{5, 1},   // Labour Day
	{6, 3},   // Queen's Birthday
	{7, 28},  // King's Birthday
	{8, 12},  // Mother's Day
	{10, 13}, // Rama IX Memorial Day
	{10, 23}, // Chulalongkorn Day
	{12, 5},  // Father's Day
	{12, 10}, // Constitution Day
	{12, 25}, // Christmas
	{12, 31}, // New Year's Eve
}

func isListedHoliday(d time.Time) bool {
	m, day := int(d.Month()), d.Day()
	for _, h := range listedHolidays {
		if h[0] == m && h[1] == day {
			return true
		}
	}
	return false
}

func nearListedHoliday(d time.Time, days int) bool {
	for off := -days; off <= days; off++ {
		if isListedHoliday(d.AddDate(0, 0, off)) {
			return true
		}
	}
	return false
}

// HolidayMultiplier returns the per-date surge factor applied on top of the
// base prediction. Always at least 1.0.
func HolidayMultiplier(d time.Time) float64 {
	m, day := int(d.Month()), d.Day()

	switch {
	case m == 4 && day >= 11 && day <= 17: // Songkran window
		return 1.5
	case m == 12 && day >= 24: // Christmas through New Year's Eve
		return 1.5
	case m == 1 && day <= 3: // New Year window
		return 1.4
	case m == 2 && day >= 8 && day <= 12: // Chinese New Year window
		return 1.3
	case m == 5 || m == 10: // school break months
		return 1.2
	}

	if nearListedHoliday(d, 3) {
		return 1.2
	}
	return 1.0
}

// isHolidaySeason reports whether the month is one of the peak months
// (December, January, April).
func isHolidaySeason(d time.Time) bool {
	switch d.Month() {
	case time.December, time.January, time.April:
		return true
	}
	return false
}

const featureCount = 7

// Features computes the model input vector for a departure date:
// [dayOfWeek, month, daysUntilDeparture, isWeekend, isHolidaySeason,
// isHoliday, holidayMultiplier].
func Features(departure, today time.Time) []float64 {
	daysUntil := math.Floor(departure.Sub(today).Hours() / 24)
	if daysUntil < 0 {
		daysUntil = 0
	}

	weekend := 0.0
	switch departure.Weekday() {
	case time.Saturday, time.Sunday:
		weekend = 1.0
	}

	season := 0.0
	if isHolidaySeason(departure) {
		season = 1.0
	}

	holiday := 0.0
	if isListedHoliday(departure) {
		holiday = 1.0
	}

	return []float64{
		float64(departure.Weekday()),    // 0-6
		float64(int(departure.Month()) - 1), // 0-11
		daysUntil,
		weekend,
		season,
		holiday,
		HolidayMultiplier(departure),
	}
}
