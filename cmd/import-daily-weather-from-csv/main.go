// import-daily-weather-from-csv loads daily weather rows from a CSV file,
// upserts them and recomputes the touched monthly stats.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/siriwat/flight-season-api/config"
	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/ingest"
	"github.com/siriwat/flight-season-api/pkg/csvio"
	"github.com/siriwat/flight-season-api/pkg/logger"
)

func main() {
	file := flag.String("file", "", "CSV file to import (required)")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "import-daily-weather-from-csv: -file is required")
		os.Exit(1)
	}
	if err := run(*file); err != nil {
		fmt.Fprintf(os.Stderr, "import-daily-weather-from-csv: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Default()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := csvio.ReadDailyWeather(f)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no weather rows in %s", path)
	}

	store, err := db.NewPostgresDB(cfg.PostgresConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	stored, err := store.UpsertDailyWeather(ctx, entries)
	if err != nil {
		return err
	}

	ingestor := ingest.NewWeatherIngestor(store, nil, nil, cfg.IngestConfig, log)
	if err := ingestor.RefreshAllStats(ctx); err != nil {
		return err
	}
	log.Info("daily weather imported", "rows", len(entries), "stored", stored)
	return nil
}
