package analysis

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/ingest"
	"github.com/siriwat/flight-season-api/pkg/calendarutil"
	"github.com/siriwat/flight-season-api/pkg/logger"
	"github.com/siriwat/flight-season-api/pkg/scoring"
)

// Scores holds the three per-period score maps, each 0-100, for the periods
// present in a query's flight rows. The price percentile reference set is
// the query window itself: re-running with a different window can shift
// percentiles.
type Scores struct {
	Price   map[string]float64
	Holiday map[string]float64
	Weather map[string]float64
}

// ScoreStore is the slice of storage the aggregator reads through.
type ScoreStore interface {
	GetRoutePriceStats(ctx context.Context, routeID int, periods []string) (map[string]float64, error)
	GetHolidayStats(ctx context.Context, periods []string) (map[string]db.HolidayStat, error)
	UpsertHolidayStat(ctx context.Context, stat db.HolidayStat) error
	GetMonthlyWeatherStats(ctx context.Context, province string, periods []string) (map[string]db.MonthlyWeatherStat, error)
	AggregateMonthlyWeather(ctx context.Context, province, period string) (*db.MonthlyWeatherAggregate, error)
}

// HolidaySource lets the read path backfill missing holiday stats when the
// upstream API is reachable. Optional.
type HolidaySource interface {
	Available() bool
	FetchYear(ctx context.Context, year int) ([]db.HolidayEntry, error)
}

// Aggregator materializes per-period scores for the classifier, using
// precomputed statistics when present, on-the-fly aggregation as a first
// fallback, and deterministic fabricated scores as the last resort. The
// read path never returns an upstream error: a missing signal degrades to a
// fabricated score.
type Aggregator struct {
	store      ScoreStore
	holidaySrc HolidaySource
	log        *logger.Logger
}

// NewAggregator creates a score aggregator. holidaySrc may be nil.
func NewAggregator(store ScoreStore, holidaySrc HolidaySource, log *logger.Logger) *Aggregator {
	return &Aggregator{store: store, holidaySrc: holidaySrc, log: log}
}

// periodsOf returns the sorted distinct departure periods of the rows.
func periodsOf(rows []db.FlightPrice) []string {
	seen := map[string]bool{}
	for _, r := range rows {
		seen[db.Period(r.DepartureDate)] = true
	}
	periods := make([]string, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	sort.Strings(periods)
	return periods
}

// avgPriceByPeriod computes each period's average stored price.
func avgPriceByPeriod(rows []db.FlightPrice) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, r := range rows {
		p := db.Period(r.DepartureDate)
		sums[p] += r.Price
		counts[p]++
	}
	avgs := make(map[string]float64, len(sums))
	for p, sum := range sums {
		avgs[p] = sum / float64(counts[p])
	}
	return avgs
}

// Materialize builds the three score maps for a route. destProvince is the
// weather province of the destination airport; hasProvince false means
// weather is neutral (50) for every period.
func (a *Aggregator) Materialize(ctx context.Context, routeID int, routeKey string, destProvince string, hasProvince bool, rows []db.FlightPrice) Scores {
	periods := periodsOf(rows)
	avgPrices := avgPriceByPeriod(rows)

	return Scores{
		Price:   a.priceScores(ctx, routeID, periods, avgPrices),
		Holiday: a.holidayScores(ctx, periods, avgPrices),
		Weather: a.weatherScores(ctx, routeKey, destProvince, hasProvince, periods, avgPrices),
	}
}

// priceScores prefers precomputed route percentiles, falling back to the
// cumulative percentile of each period's average price across the months in
// the query window.
func (a *Aggregator) priceScores(ctx context.Context, routeID int, periods []string, avgPrices map[string]float64) map[string]float64 {
	precomputed, err := a.store.GetRoutePriceStats(ctx, routeID, periods)
	if err != nil {
		a.log.Warn("route price stats unavailable, deriving percentiles", "route_id", routeID, "error", err)
		precomputed = map[string]float64{}
	}

	scores := make(map[string]float64, len(periods))
	for _, p := range periods {
		if pct, ok := precomputed[p]; ok {
			scores[p] = clampScore(pct)
			continue
		}
		scores[p] = cumulativePercentile(avgPrices, p)
	}
	return scores
}

// cumulativePercentile is the percent of months whose average price is at
// or below the given period's average.
func cumulativePercentile(avgPrices map[string]float64, period string) float64 {
	target, ok := avgPrices[period]
	if !ok || len(avgPrices) == 0 {
		return 50
	}
	atOrBelow := 0
	for _, avg := range avgPrices {
		if avg <= target {
			atOrBelow++
		}
	}
	return clampScore(100 * float64(atOrBelow) / float64(len(avgPrices)))
}

// holidayScores prefers stored holiday stats, then a live backfill from the
// upstream API, then a fabricated score seeded by the period alone so every
// route sees the same national curve.
func (a *Aggregator) holidayScores(ctx context.Context, periods []string, avgPrices map[string]float64) map[string]float64 {
	stats, err := a.store.GetHolidayStats(ctx, periods)
	if err != nil {
		a.log.Warn("holiday stats unavailable", "error", err)
		stats = map[string]db.HolidayStat{}
	}

	missingYears := map[int]bool{}
	for _, p := range periods {
		if _, ok := stats[p]; ok {
			continue
		}
		if t, err := time.Parse("2006-01", p); err == nil {
			missingYears[t.Year()] = true
		}
	}

	if len(missingYears) > 0 && a.holidaySrc != nil && a.holidaySrc.Available() {
		for year := range missingYears {
			entries, err := a.holidaySrc.FetchYear(ctx, year)
			if err != nil {
				a.log.Warn("holiday backfill failed", "year", year, "error", err)
				continue
			}
			for _, stat := range ingest.BuildStats(entries) {
				if err := a.store.UpsertHolidayStat(ctx, stat); err != nil {
					a.log.Warn("holiday backfill upsert failed", "period", stat.Period, "error", err)
					continue
				}
				stats[stat.Period] = stat
			}
		}
	}

	norms := normalizedPrices(avgPrices)
	scores := make(map[string]float64, len(periods))
	for _, p := range periods {
		if stat, ok := stats[p]; ok {
			scores[p] = clampScore(stat.HolidayScore)
			continue
		}
		// National signal: seed by period only, identical across routes.
		scores[p] = fabricatedScore(p, norms[p], 35, 95)
	}
	return scores
}

// weatherScores prefers stored monthly stats, then on-the-fly aggregation
// over daily rows, then a fabricated score seeded by period plus route so
// two routes yield different curves.
func (a *Aggregator) weatherScores(ctx context.Context, routeKey, destProvince string, hasProvince bool, periods []string, avgPrices map[string]float64) map[string]float64 {
	scores := make(map[string]float64, len(periods))
	if !hasProvince {
		for _, p := range periods {
			scores[p] = 50
		}
		return scores
	}

	stats, err := a.store.GetMonthlyWeatherStats(ctx, destProvince, periods)
	if err != nil {
		a.log.Warn("monthly weather stats unavailable", "province", destProvince, "error", err)
		stats = map[string]db.MonthlyWeatherStat{}
	}

	norms := normalizedPrices(avgPrices)
	for _, p := range periods {
		if stat, ok := stats[p]; ok {
			scores[p] = clampScore(stat.WeatherScore)
			continue
		}
		if score, ok := a.weatherScoreOnTheFly(ctx, destProvince, p); ok {
			scores[p] = score
			continue
		}
		scores[p] = fabricatedScore(p+":"+routeKey, norms[p], 30, 90)
	}
	return scores
}

func (a *Aggregator) weatherScoreOnTheFly(ctx context.Context, province, period string) (float64, bool) {
	agg, err := a.store.AggregateMonthlyWeather(ctx, province, period)
	if err != nil {
		a.log.Warn("on-the-fly weather aggregate failed", "province", province, "period", period, "error", err)
		return 0, false
	}
	if agg == nil {
		return 0, false
	}
	return scoring.WeatherScore(agg.AvgTemp, agg.TotalRain, agg.AvgHumidity.Float64, agg.AvgHumidity.Valid), true
}

// normalizedPrices maps each period's average price to [0, 1] across the
// window. A flat window normalizes to 0.5 everywhere.
func normalizedPrices(avgPrices map[string]float64) map[string]float64 {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range avgPrices {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	norms := make(map[string]float64, len(avgPrices))
	for p, v := range avgPrices {
		if max > min {
			norms[p] = (v - min) / (max - min)
		} else {
			norms[p] = 0.5
		}
	}
	return norms
}

// fabricatedScore maps a normalized price into [lo, hi] and adds seeded
// jitter of amplitude 20. Deterministic: the same seed yields the same
// score across runs and processes.
func fabricatedScore(seed string, norm, lo, hi float64) float64 {
	jitter := (calendarutil.SeededRand(seed) - 0.5) * 20
	return clampScore(lo + norm*(hi-lo) + jitter)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
