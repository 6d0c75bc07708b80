package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/siriwat/flight-season-api/config"
	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/pkg/logger"
	"github.com/siriwat/flight-season-api/weather"
)

type mockWeatherStore struct {
	mock.Mock
}

func (m *mockWeatherStore) UpsertDailyWeather(ctx context.Context, entries []db.DailyWeather) (int, error) {
	args := m.Called(ctx, entries)
	return args.Int(0), args.Error(1)
}

func (m *mockWeatherStore) AggregateMonthlyWeather(ctx context.Context, province, period string) (*db.MonthlyWeatherAggregate, error) {
	args := m.Called(ctx, province, period)
	var agg *db.MonthlyWeatherAggregate
	if a := args.Get(0); a != nil {
		agg = a.(*db.MonthlyWeatherAggregate)
	}
	return agg, args.Error(1)
}

func (m *mockWeatherStore) UpsertMonthlyWeatherStat(ctx context.Context, stat db.MonthlyWeatherStat) error {
	return m.Called(ctx, stat).Error(0)
}

func (m *mockWeatherStore) ListDailyWeatherPeriods(ctx context.Context) ([]db.ProvincePeriod, error) {
	args := m.Called(ctx)
	var pairs []db.ProvincePeriod
	if p := args.Get(0); p != nil {
		pairs = p.([]db.ProvincePeriod)
	}
	return pairs, args.Error(1)
}

type fakeHistorical struct {
	days   map[string][]weather.Day
	errFor map[string]error
	calls  []string
}

func chunkKey(start time.Time) string { return start.Format("2006-01-02") }

func (f *fakeHistorical) FetchRange(ctx context.Context, coords weather.Coordinates, start, end time.Time) ([]weather.Day, error) {
	key := chunkKey(start)
	f.calls = append(f.calls, key)
	if err := f.errFor[key]; err != nil {
		return nil, err
	}
	return f.days[key], nil
}

type fakeForecast struct {
	available bool
	days      []weather.Day
	err       error
}

func (f *fakeForecast) Available() bool { return f.available }

func (f *fakeForecast) Fetch(ctx context.Context, coords weather.Coordinates) ([]weather.Day, error) {
	return f.days, f.err
}

func wday(y int, m time.Month, d int, tempMax, tempMin, rain float64) weather.Day {
	return weather.Day{
		Date:            time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		TempMax:         tempMax,
		TempMin:         tempMin,
		PrecipitationMM: rain,
	}
}

func newWeatherIngestor(store WeatherStore, hist HistoricalSource, fc ForecastSource, cfg config.IngestConfig, today time.Time) *WeatherIngestor {
	w := NewWeatherIngestor(store, hist, fc, cfg, logger.Default())
	w.sleep = func(time.Duration) {}
	w.now = func() time.Time { return today }
	return w
}

func TestNormalizeDay(t *testing.T) {
	t.Parallel()

	d := wday(2026, 3, 5, 34.567, 24.123, 2.345)
	d.Humidity = 80.456
	d.HasHumidity = true

	row := normalizeDay("Phuket", d, db.SourceForecast)
	assert.Equal(t, "Phuket", row.Province)
	assert.Equal(t, 34.57, row.TempMax)
	assert.Equal(t, 24.12, row.TempMin)
	assert.Equal(t, 29.35, row.TempAvg)
	assert.Equal(t, 2.35, row.PrecipitationMM)
	require.True(t, row.Humidity.Valid)
	assert.Equal(t, 80.46, row.Humidity.Float64)
	assert.Equal(t, db.SourceForecast, row.Source)
}

func TestNormalizeDayEstimatesMissingHumidity(t *testing.T) {
	t.Parallel()

	// avg 32C, no rain: 70 - 1.5*(32-28) = 64.
	row := normalizeDay("Phuket", wday(2026, 4, 1, 36, 28, 0), db.SourceHistorical)
	require.True(t, row.Humidity.Valid)
	assert.Equal(t, 64.0, row.Humidity.Float64)
	assert.Equal(t, db.SourceHistorical, row.Source)
}

func TestMonthChunks(t *testing.T) {
	t.Parallel()

	chunks := monthChunks(
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	)
	require.Len(t, chunks, 3)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), chunks[0][0])
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), chunks[0][1])
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), chunks[1][0])
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), chunks[1][1])
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), chunks[2][0])
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), chunks[2][1])
}

func TestMonthChunksSingleMonth(t *testing.T) {
	t.Parallel()

	chunks := monthChunks(
		time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
	)
	require.Len(t, chunks, 1)
	assert.Equal(t, time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC), chunks[0][0])
	assert.Equal(t, time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), chunks[0][1])
}

func TestRunForecastFiltersCutoverAndToday(t *testing.T) {
	t.Parallel()

	cutover := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	fc := &fakeForecast{
		available: true,
		days: []weather.Day{
			wday(2026, 2, 20, 33, 24, 0), // before cutover, dropped
			wday(2026, 3, 1, 33, 24, 0),  // today, dropped
			wday(2026, 3, 2, 33, 25, 0),
			wday(2026, 3, 3, 34, 25, 1.2),
		},
	}

	store := &mockWeatherStore{}
	var upserted []db.DailyWeather
	store.On("UpsertDailyWeather", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			upserted = args.Get(1).([]db.DailyWeather)
		}).
		Return(2, nil)
	store.On("AggregateMonthlyWeather", mock.Anything, "Phuket", "2026-03").
		Return(&db.MonthlyWeatherAggregate{
			Province: "Phuket", Period: "2026-03",
			AvgTemp: 29.1, TotalRain: 0.6, DaysCount: 2,
		}, nil)
	store.On("UpsertMonthlyWeatherStat", mock.Anything, mock.Anything).Return(nil)

	cfg := config.IngestConfig{Provinces: []string{"Phuket"}, HistoricalCutover: cutover}
	w := newWeatherIngestor(store, nil, fc, cfg, today)

	require.NoError(t, w.RunForecast(context.Background()))

	require.Len(t, upserted, 2)
	for _, row := range upserted {
		assert.Equal(t, db.SourceForecast, row.Source)
		assert.True(t, row.Date.After(today))
	}

	store.AssertCalled(t, "UpsertMonthlyWeatherStat", mock.Anything, mock.MatchedBy(func(s db.MonthlyWeatherStat) bool {
		// 50 + 15 for under 50mm of rain, temp 29.1 in the neutral band.
		return s.Period == "2026-03" && s.WeatherScore == 65.0 && s.DaysCount == 2
	}))
}

func TestRunForecastSkipsWhenUnavailable(t *testing.T) {
	t.Parallel()

	store := &mockWeatherStore{}
	cfg := config.IngestConfig{Provinces: []string{"Phuket"}}
	w := newWeatherIngestor(store, nil, &fakeForecast{available: false}, cfg, time.Now())

	require.NoError(t, w.RunForecast(context.Background()))
	store.AssertNotCalled(t, "UpsertDailyWeather", mock.Anything, mock.Anything)
}

func TestRunForecastUnknownProvince(t *testing.T) {
	t.Parallel()

	store := &mockWeatherStore{}
	fc := &fakeForecast{available: true, days: []weather.Day{wday(2099, 1, 2, 30, 22, 0)}}
	cfg := config.IngestConfig{Provinces: []string{"Gotham"}}
	w := newWeatherIngestor(store, nil, fc, cfg, time.Date(2098, 12, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, w.RunForecast(context.Background()))
	store.AssertNotCalled(t, "UpsertDailyWeather", mock.Anything, mock.Anything)
}

func TestRunHistoricalIsolatesChunkFailures(t *testing.T) {
	t.Parallel()

	cutover := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	hist := &fakeHistorical{
		days: map[string][]weather.Day{
			"2026-02-01": {wday(2026, 2, 10, 33, 24, 0), wday(2026, 2, 11, 34, 25, 3)},
		},
		errFor: map[string]error{
			"2026-01-01": errors.New("archive timeout"),
		},
	}

	store := &mockWeatherStore{}
	store.On("UpsertDailyWeather", mock.Anything, mock.Anything).Return(2, nil)
	store.On("AggregateMonthlyWeather", mock.Anything, "Phuket", "2026-02").
		Return(&db.MonthlyWeatherAggregate{
			Province: "Phuket", Period: "2026-02",
			AvgTemp: 29.0, TotalRain: 3, DaysCount: 2,
		}, nil)
	store.On("UpsertMonthlyWeatherStat", mock.Anything, mock.Anything).Return(nil)

	cfg := config.IngestConfig{Provinces: []string{"Phuket"}, HistoricalCutover: cutover}
	w := newWeatherIngestor(store, hist, nil, cfg, cutover)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	require.NoError(t, w.RunHistorical(context.Background(), start, end))

	// Both chunks were attempted; only February produced rows, so only its
	// monthly stat is recomputed.
	assert.Equal(t, []string{"2026-01-01", "2026-02-01"}, hist.calls)
	store.AssertNumberOfCalls(t, "UpsertDailyWeather", 1)
	store.AssertCalled(t, "AggregateMonthlyWeather", mock.Anything, "Phuket", "2026-02")
	store.AssertNotCalled(t, "AggregateMonthlyWeather", mock.Anything, "Phuket", "2026-01")
}

func TestRunHistoricalClampsToCutover(t *testing.T) {
	t.Parallel()

	cutover := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	hist := &fakeHistorical{days: map[string][]weather.Day{}}

	store := &mockWeatherStore{}
	store.On("UpsertDailyWeather", mock.Anything, mock.Anything).Return(0, nil)

	cfg := config.IngestConfig{Provinces: []string{"Phuket"}, HistoricalCutover: cutover}
	w := newWeatherIngestor(store, hist, nil, cfg, cutover)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, w.RunHistorical(context.Background(), start, end))

	// The window past the cutover is never requested.
	assert.Equal(t, []string{"2026-01-01"}, hist.calls)
}

func TestRunHistoricalEmptyWindow(t *testing.T) {
	t.Parallel()

	cutover := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	hist := &fakeHistorical{}
	store := &mockWeatherStore{}

	cfg := config.IngestConfig{Provinces: []string{"Phuket"}, HistoricalCutover: cutover}
	w := newWeatherIngestor(store, hist, nil, cfg, cutover)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, w.RunHistorical(context.Background(), start, start.AddDate(0, 1, 0)))
	assert.Empty(t, hist.calls)
}

func TestRefreshAllStats(t *testing.T) {
	t.Parallel()

	store := &mockWeatherStore{}
	store.On("ListDailyWeatherPeriods", mock.Anything).Return([]db.ProvincePeriod{
		{Province: "Phuket", Period: "2026-01"},
		{Province: "Chiang Mai", Period: "2026-01"},
	}, nil)
	store.On("AggregateMonthlyWeather", mock.Anything, mock.Anything, "2026-01").
		Return(&db.MonthlyWeatherAggregate{AvgTemp: 26, TotalRain: 10, DaysCount: 31}, nil)
	store.On("UpsertMonthlyWeatherStat", mock.Anything, mock.Anything).Return(nil)

	w := newWeatherIngestor(store, nil, nil, config.IngestConfig{}, time.Now())
	require.NoError(t, w.RefreshAllStats(context.Background()))

	store.AssertNumberOfCalls(t, "UpsertMonthlyWeatherStat", 2)
}

func TestRefreshAllStatsListFailure(t *testing.T) {
	t.Parallel()

	store := &mockWeatherStore{}
	store.On("ListDailyWeatherPeriods", mock.Anything).Return(nil, errors.New("db down"))

	w := newWeatherIngestor(store, nil, nil, config.IngestConfig{}, time.Now())
	assert.Error(t, w.RefreshAllStats(context.Background()))
}
