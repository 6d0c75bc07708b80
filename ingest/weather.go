// Package ingest implements the out-of-band ingestion pipeline: daily
// weather (historical archive plus short-range forecast) and the Thai
// holiday calendar. Both flows are idempotent and isolate per-item failures.
package ingest

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/siriwat/flight-season-api/config"
	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/pkg/logger"
	"github.com/siriwat/flight-season-api/pkg/scoring"
	"github.com/siriwat/flight-season-api/weather"
)

// WeatherStore is the slice of storage the weather flow writes through.
type WeatherStore interface {
	UpsertDailyWeather(ctx context.Context, entries []db.DailyWeather) (int, error)
	AggregateMonthlyWeather(ctx context.Context, province, period string) (*db.MonthlyWeatherAggregate, error)
	UpsertMonthlyWeatherStat(ctx context.Context, stat db.MonthlyWeatherStat) error
	ListDailyWeatherPeriods(ctx context.Context) ([]db.ProvincePeriod, error)
}

// HistoricalSource provides archived daily observations.
type HistoricalSource interface {
	FetchRange(ctx context.Context, coords weather.Coordinates, start, end time.Time) ([]weather.Day, error)
}

// ForecastSource provides short-range forecast days.
type ForecastSource interface {
	Available() bool
	Fetch(ctx context.Context, coords weather.Coordinates) ([]weather.Day, error)
}

// WeatherIngestor runs the weather flow for the configured provinces.
type WeatherIngestor struct {
	store      WeatherStore
	historical HistoricalSource
	forecast   ForecastSource
	cfg        config.IngestConfig
	log        *logger.Logger

	// sleep is swappable in tests
	sleep func(time.Duration)
	now   func() time.Time
}

// NewWeatherIngestor creates a weather ingestor.
func NewWeatherIngestor(store WeatherStore, historical HistoricalSource, forecast ForecastSource, cfg config.IngestConfig, log *logger.Logger) *WeatherIngestor {
	return &WeatherIngestor{
		store:      store,
		historical: historical,
		forecast:   forecast,
		cfg:        cfg,
		log:        log,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// round2 rounds stored numerics to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// normalizeDay converts a provider day into a canonical daily row. A missing
// humidity reading is estimated from temperature and precipitation.
func normalizeDay(province string, d weather.Day, source db.WeatherSource) db.DailyWeather {
	tempAvg := (d.TempMax + d.TempMin) / 2
	row := db.DailyWeather{
		Province:        province,
		Date:            d.Date,
		TempMax:         round2(d.TempMax),
		TempMin:         round2(d.TempMin),
		TempAvg:         round2(tempAvg),
		PrecipitationMM: round2(d.PrecipitationMM),
		Source:          source,
	}
	if d.HasHumidity {
		row.Humidity = sql.NullFloat64{Float64: round2(d.Humidity), Valid: true}
	} else {
		row.Humidity = sql.NullFloat64{Float64: round2(scoring.EstimateHumidity(tempAvg, d.PrecipitationMM)), Valid: true}
	}
	return row
}

// monthChunks splits [start, end] into per-calendar-month ranges.
func monthChunks(start, end time.Time) [][2]time.Time {
	var chunks [][2]time.Time
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) {
		chunkStart := cur
		if chunkStart.Before(start) {
			chunkStart = start
		}
		chunkEnd := cur.AddDate(0, 1, -1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, [2]time.Time{chunkStart, chunkEnd})
		cur = cur.AddDate(0, 1, 0)
	}
	return chunks
}

// RunHistorical ingests archived observations for all configured provinces
// within [start, end], chunked by calendar month with a pause between
// chunks. A failed (province, chunk) is logged and skipped; the run
// continues.
func (w *WeatherIngestor) RunHistorical(ctx context.Context, start, end time.Time) error {
	if end.After(w.cfg.HistoricalCutover) {
		end = w.cfg.HistoricalCutover
	}
	if start.After(end) {
		return nil
	}

	touched := map[db.ProvincePeriod]bool{}
	for _, province := range w.cfg.Provinces {
		coords, ok := weather.LookupProvince(province)
		if !ok {
			w.log.Warn("skipping province with no coordinates", "province", province)
			continue
		}

		for i, chunk := range monthChunks(start, end) {
			if i > 0 {
				w.sleep(w.cfg.ArchiveRateLimit)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			days, err := w.historical.FetchRange(ctx, coords, chunk[0], chunk[1])
			if err != nil {
				w.log.Error(err, "historical chunk failed", "province", province, "period", db.Period(chunk[0]))
				continue
			}

			rows := make([]db.DailyWeather, 0, len(days))
			for _, d := range days {
				if d.Date.After(w.cfg.HistoricalCutover) {
					continue
				}
				rows = append(rows, normalizeDay(province, d, db.SourceHistorical))
				touched[db.ProvincePeriod{Province: province, Period: db.Period(d.Date)}] = true
			}

			written, err := w.store.UpsertDailyWeather(ctx, rows)
			if err != nil {
				w.log.Error(err, "historical upsert failed", "province", province, "period", db.Period(chunk[0]))
				continue
			}
			w.log.Info("historical chunk ingested", "province", province, "period", db.Period(chunk[0]), "rows", written)
		}
	}

	return w.recomputeStats(ctx, touched)
}

// RunForecast ingests short-range forecast days for all configured
// provinces. Only dates strictly after the cutover and strictly after today
// are retained; historical rows always win on conflict.
func (w *WeatherIngestor) RunForecast(ctx context.Context) error {
	if !w.forecast.Available() {
		w.log.Warn("forecast API not configured, skipping forecast ingestion")
		return nil
	}

	today := w.now().UTC().Truncate(24 * time.Hour)
	touched := map[db.ProvincePeriod]bool{}

	for i, province := range w.cfg.Provinces {
		if i > 0 {
			w.sleep(w.cfg.ForecastRateLimit)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		coords, ok := weather.LookupProvince(province)
		if !ok {
			w.log.Warn("skipping province with no coordinates", "province", province)
			continue
		}

		days, err := w.forecast.Fetch(ctx, coords)
		if err != nil {
			w.log.Error(err, "forecast fetch failed", "province", province)
			continue
		}

		rows := make([]db.DailyWeather, 0, len(days))
		for _, d := range days {
			if !d.Date.After(w.cfg.HistoricalCutover) || !d.Date.After(today) {
				continue
			}
			rows = append(rows, normalizeDay(province, d, db.SourceForecast))
			touched[db.ProvincePeriod{Province: province, Period: db.Period(d.Date)}] = true
		}

		written, err := w.store.UpsertDailyWeather(ctx, rows)
		if err != nil {
			w.log.Error(err, "forecast upsert failed", "province", province)
			continue
		}
		w.log.Info("forecast ingested", "province", province, "rows", written)
	}

	return w.recomputeStats(ctx, touched)
}

// RefreshAllStats recomputes monthly aggregates for every (province, period)
// pair that has daily rows.
func (w *WeatherIngestor) RefreshAllStats(ctx context.Context) error {
	pairs, err := w.store.ListDailyWeatherPeriods(ctx)
	if err != nil {
		return err
	}
	touched := make(map[db.ProvincePeriod]bool, len(pairs))
	for _, p := range pairs {
		touched[p] = true
	}
	return w.recomputeStats(ctx, touched)
}

// recomputeStats rebuilds the monthly weather stat for each touched
// (province, period).
func (w *WeatherIngestor) recomputeStats(ctx context.Context, touched map[db.ProvincePeriod]bool) error {
	for pp := range touched {
		agg, err := w.store.AggregateMonthlyWeather(ctx, pp.Province, pp.Period)
		if err != nil {
			w.log.Error(err, "monthly aggregate failed", "province", pp.Province, "period", pp.Period)
			continue
		}
		if agg == nil {
			continue
		}

		stat := db.MonthlyWeatherStat{
			Province:    pp.Province,
			Period:      pp.Period,
			AvgTemp:     round2(agg.AvgTemp),
			AvgRain:     round2(agg.TotalRain),
			AvgHumidity: agg.AvgHumidity,
			DaysCount:   agg.DaysCount,
		}
		stat.WeatherScore = scoring.WeatherScore(agg.AvgTemp, agg.TotalRain, agg.AvgHumidity.Float64, agg.AvgHumidity.Valid)
		if agg.AvgHumidity.Valid {
			stat.AvgHumidity = sql.NullFloat64{Float64: round2(agg.AvgHumidity.Float64), Valid: true}
		}

		if err := w.store.UpsertMonthlyWeatherStat(ctx, stat); err != nil {
			w.log.Error(err, "monthly stat upsert failed", "province", pp.Province, "period", pp.Period)
		}
	}
	return nil
}
