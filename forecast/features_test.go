package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestHolidayMultiplierWindows(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		date time.Time
		want float64
	}{
		{"songkran", day(2026, 4, 13), 1.5},
		{"songkran window end", day(2026, 4, 17), 1.5},
		{"christmas through new year's eve", day(2026, 12, 28), 1.5},
		{"new year window", day(2026, 1, 2), 1.4},
		{"chinese new year window", day(2026, 2, 10), 1.3},
		{"may school break", day(2026, 5, 20), 1.2},
		{"october school break", day(2026, 10, 7), 1.2},
		{"near chakri day", day(2026, 4, 8), 1.2},
		{"plain midyear day", day(2026, 9, 16), 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HolidayMultiplier(tc.date))
		})
	}
}

func TestHolidayMultiplierNeverBelowOne(t *testing.T) {
	t.Parallel()

	d := day(2026, 1, 1)
	for i := 0; i < 730; i++ {
		m := HolidayMultiplier(d.AddDate(0, 0, i))
		assert.GreaterOrEqual(t, m, 1.0)
	}
}

func TestFeaturesVector(t *testing.T) {
	t.Parallel()

	today := day(2026, 3, 1)
	departure := day(2026, 4, 13) // Monday, Songkran

	x := Features(departure, today)
	assert.Len(t, x, featureCount)
	assert.Equal(t, float64(time.Monday), x[0])
	assert.Equal(t, 3.0, x[1]) // April, 0-based
	assert.Equal(t, 43.0, x[2])
	assert.Equal(t, 0.0, x[3]) // not a weekend
	assert.Equal(t, 1.0, x[4]) // April is holiday season
	assert.Equal(t, 1.0, x[5]) // listed holiday
	assert.Equal(t, 1.5, x[6])
}

func TestFeaturesPastDateClampsDaysUntil(t *testing.T) {
	t.Parallel()

	today := day(2026, 3, 1)
	x := Features(day(2026, 2, 1), today)
	assert.Equal(t, 0.0, x[2])
}
