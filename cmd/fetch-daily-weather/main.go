// fetch-daily-weather pulls daily weather for the configured provinces:
// historical observations up to the cutover date and short-range forecasts
// beyond it. Optionally exports the stored window to CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/siriwat/flight-season-api/config"
	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/ingest"
	"github.com/siriwat/flight-season-api/pkg/csvio"
	"github.com/siriwat/flight-season-api/pkg/logger"
	"github.com/siriwat/flight-season-api/weather"
)

func main() {
	start := flag.String("start", "", "historical range start YYYY-MM-DD")
	end := flag.String("end", "", "historical range end YYYY-MM-DD")
	forecastOnly := flag.Bool("forecast", false, "fetch the short-range forecast only")
	csvOut := flag.String("csv", "", "export the stored window to this CSV file")
	flag.Parse()

	if err := run(*start, *end, *forecastOnly, *csvOut); err != nil {
		fmt.Fprintf(os.Stderr, "fetch-daily-weather: %v\n", err)
		os.Exit(1)
	}
}

func run(start, end string, forecastOnly bool, csvOut string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Default()

	store, err := db.NewPostgresDB(cfg.PostgresConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	historical := weather.NewHistoricalClient(cfg.UpstreamConfig.ArchiveAPIURL)
	forecast := weather.NewForecastClient(cfg.UpstreamConfig.OpenWeatherAPIURL, cfg.UpstreamConfig.OpenWeatherAPIKey)
	ingestor := ingest.NewWeatherIngestor(store, historical, forecast, cfg.IngestConfig, log)
	ctx := context.Background()

	startDate := time.Now().UTC().AddDate(0, -cfg.IngestConfig.WeatherMonthsBack, 0)
	endDate := cfg.IngestConfig.HistoricalCutover
	if start != "" {
		if startDate, err = time.Parse("2006-01-02", start); err != nil {
			return fmt.Errorf("bad -start: %w", err)
		}
	}
	if end != "" {
		if endDate, err = time.Parse("2006-01-02", end); err != nil {
			return fmt.Errorf("bad -end: %w", err)
		}
	}

	if !forecastOnly {
		if err := ingestor.RunHistorical(ctx, startDate, endDate); err != nil {
			return err
		}
	}
	if err := ingestor.RunForecast(ctx); err != nil {
		return err
	}
	if err := ingestor.RefreshAllStats(ctx); err != nil {
		return err
	}

	if csvOut != "" {
		return exportCSV(ctx, store, cfg.IngestConfig.Provinces, startDate, csvOut)
	}
	return nil
}

// exportCSV dumps every stored row from startDate onward for the given
// provinces.
func exportCSV(ctx context.Context, store *db.PostgresDB, provinces []string, startDate time.Time, path string) error {
	until := time.Now().UTC().AddDate(0, 0, 7)
	var all []db.DailyWeather
	for _, province := range provinces {
		rows, err := store.GetDailyWeather(ctx, province, startDate, until)
		if err != nil {
			return err
		}
		all = append(all, rows...)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return csvio.WriteDailyWeather(f, all)
}
