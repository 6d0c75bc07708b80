// import-holidays-from-csv loads holiday entries from a CSV file and stores
// the monthly aggregates.
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
		fmt.Fprintln(os.Stderr, "import-holidays-from-csv: -file is required")
		os.Exit(1)
	}
	if err := run(*file); err != nil {
		fmt.Fprintf(os.Stderr, "import-holidays-from-csv: %v\n", err)
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

	entries, err := csvio.ReadHolidays(f)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no holiday rows in %s", path)
	}

	store, err := db.NewPostgresDB(cfg.PostgresConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	ingestor := ingest.NewHolidayIngestor(store, nil, cfg.IngestConfig, log)
	count, err := ingestor.IngestEntries(context.Background(), entries)
	if err != nil {
		return err
	}
	log.Info("holidays imported", "entries", len(entries), "periods", count)
	return nil
}
