package analysis

import (
	"math"
	"sort"

	"github.com/siriwat/flight-season-api/db"
)

// Season score weights. Price dominates; holiday and weather modulate.
const (
	priceWeight   = 0.60
	holidayWeight = 0.30
	weatherWeight = 0.10
)

// SeasonBucket is one classified season with its assigned months, raw price
// range and best deal.
type SeasonBucket struct {
	Season   db.Season
	Months   []string // periods, sorted ascending
	MinPrice float64  // raw stored prices; min=max=0 is the missing-data sentinel
	MaxPrice float64
	BestDeal *db.FlightPrice
}

// Classification is the classifier output: the three season buckets in
// [Low, Normal, High] order plus the month-to-season assignment.
type Classification struct {
	Buckets       [3]SeasonBucket
	SeasonByMonth map[string]db.Season
	ScoreByMonth  map[string]float64
}

// SeasonScore composes the weighted season score for one period.
func SeasonScore(price, holiday, weather float64) float64 {
	return priceWeight*price + holidayWeight*holiday + weatherWeight*weather
}

// percentileValue implements index = ceil(p/100*n) - 1, clamped to 0, over
// an ascending-sorted slice.
func percentileValue(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// Classify tercile-splits the months present in the rows into Low, Normal
// and High seasons. Months with no flight rows receive no score and are not
// classified. Ties between the tercile bounds fall into Normal.
func Classify(rows []db.FlightPrice, scores Scores) Classification {
	periods := periodsOf(rows)

	scoreByMonth := make(map[string]float64, len(periods))
	for _, p := range periods {
		scoreByMonth[p] = SeasonScore(scores.Price[p], scores.Holiday[p], scores.Weather[p])
	}

	sorted := make([]float64, 0, len(periods))
	for _, p := range periods {
		sorted = append(sorted, scoreByMonth[p])
	}
	sort.Float64s(sorted)

	t33 := percentileValue(sorted, 33)
	t67 := percentileValue(sorted, 67)

	seasonByMonth := make(map[string]db.Season, len(periods))
	for _, p := range periods {
		score := scoreByMonth[p]
		switch {
		case score <= t33 && score < t67:
			seasonByMonth[p] = db.SeasonLow
		case score >= t67 && score > t33:
			seasonByMonth[p] = db.SeasonHigh
		default:
			seasonByMonth[p] = db.SeasonNormal
		}
	}

	c := Classification{
		SeasonByMonth: seasonByMonth,
		ScoreByMonth:  scoreByMonth,
	}
	for i, season := range []db.Season{db.SeasonLow, db.SeasonNormal, db.SeasonHigh} {
		c.Buckets[i] = buildBucket(season, periods, seasonByMonth, rows)
	}
	return c
}

// buildBucket assembles one season's months, price range and best deal.
func buildBucket(season db.Season, periods []string, seasonByMonth map[string]db.Season, rows []db.FlightPrice) SeasonBucket {
	bucket := SeasonBucket{Season: season}

	monthSet := map[string]bool{}
	for _, p := range periods {
		if seasonByMonth[p] == season {
			bucket.Months = append(bucket.Months, p)
			monthSet[p] = true
		}
	}
	sort.Strings(bucket.Months)

	matched := rowsInPeriods(rows, monthSet)
	if len(matched) == 0 {
		// Same-month refilter: any year whose calendar month matches an
		// assigned month.
		months := map[int]bool{}
		for p := range monthSet {
			if len(p) == 7 {
				m := int(p[5]-'0')*10 + int(p[6]-'0')
				months[m] = true
			}
		}
		for i := range rows {
			if months[int(rows[i].DepartureDate.Month())] {
				matched = append(matched, &rows[i])
			}
		}
	}

	if len(matched) == 0 {
		// min=max=0 is the missing-data sentinel; a synthetic average would
		// collapse all three seasons to identical prices.
		return bucket
	}

	bucket.MinPrice = matched[0].Price
	bucket.MaxPrice = matched[0].Price
	bucket.BestDeal = matched[0]
	for _, fp := range matched[1:] {
		if fp.Price < bucket.MinPrice {
			bucket.MinPrice = fp.Price
		}
		if fp.Price > bucket.MaxPrice {
			bucket.MaxPrice = fp.Price
		}
		if fp.Price < bucket.BestDeal.Price {
			bucket.BestDeal = fp
		}
	}
	return bucket
}

func rowsInPeriods(rows []db.FlightPrice, periods map[string]bool) []*db.FlightPrice {
	var matched []*db.FlightPrice
	for i := range rows {
		if periods[db.Period(rows[i].DepartureDate)] {
			matched = append(matched, &rows[i])
		}
	}
	return matched
}
