package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siriwat/flight-season-api/db"
)

func fare(y int, m time.Month, d int, price float64) db.FlightPrice {
	return db.FlightPrice{
		DepartureDate: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Price:         price,
		AirlineName:   "Thai Smile",
		TripType:      db.TripRoundTrip,
		CabinClass:    db.CabinEconomy,
	}
}

func uniformScores(periods []string, price map[string]float64) Scores {
	s := Scores{
		Price:   map[string]float64{},
		Holiday: map[string]float64{},
		Weather: map[string]float64{},
	}
	for _, p := range periods {
		s.Price[p] = price[p]
		s.Holiday[p] = 50
		s.Weather[p] = 50
	}
	return s
}

func TestSeasonScoreWeights(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100.0, SeasonScore(100, 100, 100))
	assert.Equal(t, 60.0, SeasonScore(100, 0, 0))
	assert.Equal(t, 30.0, SeasonScore(0, 100, 0))
	assert.Equal(t, 10.0, SeasonScore(0, 0, 100))
}

func TestClassifyThreePeriodsOneEach(t *testing.T) {
	t.Parallel()

	rows := []db.FlightPrice{
		fare(2026, 1, 10, 1000),
		fare(2026, 2, 10, 2000),
		fare(2026, 3, 10, 3000),
	}
	scores := uniformScores([]string{"2026-01", "2026-02", "2026-03"},
		map[string]float64{"2026-01": 10, "2026-02": 50, "2026-03": 90})

	cls := Classify(rows, scores)

	assert.Equal(t, db.SeasonLow, cls.SeasonByMonth["2026-01"])
	assert.Equal(t, db.SeasonNormal, cls.SeasonByMonth["2026-02"])
	assert.Equal(t, db.SeasonHigh, cls.SeasonByMonth["2026-03"])
}

func TestClassifyAllEqualScoresAllNormal(t *testing.T) {
	t.Parallel()

	rows := []db.FlightPrice{
		fare(2026, 1, 10, 1500),
		fare(2026, 2, 10, 1500),
		fare(2026, 3, 10, 1500),
	}
	scores := uniformScores([]string{"2026-01", "2026-02", "2026-03"},
		map[string]float64{"2026-01": 50, "2026-02": 50, "2026-03": 50})

	cls := Classify(rows, scores)

	for period, season := range cls.SeasonByMonth {
		assert.Equal(t, db.SeasonNormal, season, "period %s", period)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	t.Parallel()

	rows := []db.FlightPrice{
		fare(2026, 1, 10, 1000),
		fare(2026, 2, 10, 2000),
		fare(2026, 4, 13, 5000),
		fare(2026, 4, 20, 4200),
	}
	scores := uniformScores([]string{"2026-01", "2026-02", "2026-04"},
		map[string]float64{"2026-01": 20, "2026-02": 55, "2026-04": 95})

	first := Classify(rows, scores)
	second := Classify(rows, scores)
	assert.Equal(t, first.SeasonByMonth, second.SeasonByMonth)
	assert.Equal(t, first.ScoreByMonth, second.ScoreByMonth)
}

func TestClassifyUnscoredMonthsSkipped(t *testing.T) {
	t.Parallel()

	rows := []db.FlightPrice{fare(2026, 1, 10, 1000)}
	scores := uniformScores([]string{"2026-01"}, map[string]float64{"2026-01": 50})

	cls := Classify(rows, scores)

	_, ok := cls.SeasonByMonth["2026-02"]
	assert.False(t, ok)
	assert.Len(t, cls.SeasonByMonth, 1)
}

func TestBucketPriceRangeAndBestDeal(t *testing.T) {
	t.Parallel()

	rows := []db.FlightPrice{
		fare(2026, 1, 5, 1200),
		fare(2026, 1, 20, 900),
		fare(2026, 2, 10, 2000),
		fare(2026, 3, 10, 3000),
	}
	scores := uniformScores([]string{"2026-01", "2026-02", "2026-03"},
		map[string]float64{"2026-01": 10, "2026-02": 50, "2026-03": 90})

	cls := Classify(rows, scores)

	low := cls.Buckets[0]
	require.Equal(t, db.SeasonLow, low.Season)
	assert.Equal(t, []string{"2026-01"}, low.Months)
	assert.Equal(t, 900.0, low.MinPrice)
	assert.Equal(t, 1200.0, low.MaxPrice)
	require.NotNil(t, low.BestDeal)
	assert.Equal(t, 900.0, low.BestDeal.Price)
}

func TestBucketEmptySeasonSentinel(t *testing.T) {
	t.Parallel()

	// Two periods: terciles make one Low and one High, leaving Normal empty.
	rows := []db.FlightPrice{
		fare(2026, 1, 10, 1000),
		fare(2026, 2, 10, 2000),
	}
	scores := uniformScores([]string{"2026-01", "2026-02"},
		map[string]float64{"2026-01": 10, "2026-02": 90})

	cls := Classify(rows, scores)

	normal := cls.Buckets[1]
	require.Equal(t, db.SeasonNormal, normal.Season)
	assert.Empty(t, normal.Months)
	assert.Equal(t, 0.0, normal.MinPrice)
	assert.Equal(t, 0.0, normal.MaxPrice)
	assert.Nil(t, normal.BestDeal)
}

func TestBucketBestDealAcrossYears(t *testing.T) {
	t.Parallel()

	// A season assigned a prior-year period still resolves its best deal
	// from that period's rows.
	rows := []db.FlightPrice{
		fare(2025, 4, 13, 4000),
		fare(2026, 1, 10, 1000),
		fare(2026, 2, 10, 2000),
	}
	scores := uniformScores([]string{"2025-04", "2026-01", "2026-02"},
		map[string]float64{"2025-04": 95, "2026-01": 10, "2026-02": 50})

	cls := Classify(rows, scores)

	high := cls.Buckets[2]
	require.Equal(t, db.SeasonHigh, high.Season)
	require.NotNil(t, high.BestDeal)
	assert.Equal(t, 4000.0, high.BestDeal.Price)
}

func TestPercentileIndexRule(t *testing.T) {
	t.Parallel()

	sorted := []float64{10, 20, 30}
	// index = ceil(p/100*n) - 1
	assert.Equal(t, 10.0, percentileValue(sorted, 33))
	assert.Equal(t, 20.0, percentileValue(sorted, 50))
	assert.Equal(t, 30.0, percentileValue(sorted, 67))
	assert.Equal(t, 30.0, percentileValue(sorted, 100))
	assert.Equal(t, 10.0, percentileValue(sorted, 0))
	assert.Equal(t, 0.0, percentileValue(nil, 50))
}
