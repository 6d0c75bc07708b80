// fetch-holidays pulls the Thai holiday calendar from the upstream API and
// stores the monthly aggregates. Optionally dumps the raw entries to CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/siriwat/flight-season-api/config"
	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/holidays"
	"github.com/siriwat/flight-season-api/ingest"
	"github.com/siriwat/flight-season-api/pkg/csvio"
	"github.com/siriwat/flight-season-api/pkg/logger"
)

func main() {
	year := flag.Int("year", 0, "calendar year to fetch (0 = configured range)")
	start := flag.String("start", "", "range start YYYY-MM-DD (overrides -year)")
	end := flag.String("end", "", "range end YYYY-MM-DD")
	csvOut := flag.String("csv", "", "also write fetched entries to this CSV file")
	flag.Parse()

	if err := run(*year, *start, *end, *csvOut); err != nil {
		fmt.Fprintf(os.Stderr, "fetch-holidays: %v\n", err)
		os.Exit(1)
	}
}

func run(year int, start, end, csvOut string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Default()

	client := holidays.New(cfg.UpstreamConfig.IAppAPIURL, cfg.UpstreamConfig.IAppAPIKey)
	if !client.Available() {
		return fmt.Errorf("IAPP_API_KEY is not set")
	}

	store, err := db.NewPostgresDB(cfg.PostgresConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	ingestor := ingest.NewHolidayIngestor(store, client, cfg.IngestConfig, log)
	ctx := context.Background()

	var entries []db.HolidayEntry
	switch {
	case start != "" && end != "":
		startDate, err := time.Parse("2006-01-02", start)
		if err != nil {
			return fmt.Errorf("bad -start: %w", err)
		}
		endDate, err := time.Parse("2006-01-02", end)
		if err != nil {
			return fmt.Errorf("bad -end: %w", err)
		}
		entries, err = client.FetchRange(ctx, startDate, endDate)
		if err != nil {
			return err
		}
	case year != 0:
		entries, err = client.FetchYear(ctx, year)
		if err != nil {
			return err
		}
	default:
		if err := ingestor.Run(ctx); err != nil {
			return err
		}
		log.Info("holiday range ingested")
		return nil
	}

	count, err := ingestor.IngestEntries(ctx, entries)
	if err != nil {
		return err
	}
	log.Info("holidays ingested", "entries", len(entries), "periods", count)

	if csvOut != "" {
		f, err := os.Create(csvOut)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := csvio.WriteHolidays(f, entries); err != nil {
			return err
		}
		log.Info("holiday CSV written", "path", csvOut)
	}
	return nil
}
