// import-flight-prices-from-csv loads fare rows from a CSV feed, resolves
// routes and airlines, upserts the prices and refreshes the per-route
// monthly price percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/siriwat/flight-season-api/config"
	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/pkg/csvio"
	"github.com/siriwat/flight-season-api/pkg/logger"
)

func main() {
	file := flag.String("file", "", "CSV file to import (required)")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "import-flight-prices-from-csv: -file is required")
		os.Exit(1)
	}
	if err := run(*file); err != nil {
		fmt.Fprintf(os.Stderr, "import-flight-prices-from-csv: %v\n", err)
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

	fares, err := csvio.ReadFares(f)
	if err != nil {
		return err
	}
	if len(fares) == 0 {
		return fmt.Errorf("no fare rows in %s", path)
	}

	store, err := db.NewPostgresDB(cfg.PostgresConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	routeIDs := map[string]int{}
	airlineIDs := map[string]int{}

	// routeID -> period -> price sum and count, for the percentile refresh.
	sums := map[int]map[string]float64{}
	counts := map[int]map[string]int{}

	for i, fare := range fares {
		routeKey := fare.Origin + "-" + fare.Destination
		routeID, ok := routeIDs[routeKey]
		if !ok {
			route, err := store.GetOrCreateRoute(ctx, fare.Origin, fare.Destination)
			if err != nil {
				return err
			}
			routeID = route.ID
			routeIDs[routeKey] = routeID
		}

		airlineID, ok := airlineIDs[fare.Price.AirlineCode]
		if !ok {
			airlineID, err = store.UpsertAirline(ctx, db.Airline{
				Code: fare.Price.AirlineCode,
				Name: fare.Price.AirlineName,
			})
			if err != nil {
				return err
			}
			airlineIDs[fare.Price.AirlineCode] = airlineID
		}

		fp := fare.Price
		fp.RouteID = routeID
		fp.AirlineID = airlineID
		if err := store.UpsertFlightPrice(ctx, fp); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}

		period := db.Period(fp.DepartureDate)
		if sums[routeID] == nil {
			sums[routeID] = map[string]float64{}
			counts[routeID] = map[string]int{}
		}
		sums[routeID][period] += fp.Price
		counts[routeID][period]++
	}

	statCount := 0
	for routeID, periodSums := range sums {
		for _, stat := range percentileStats(routeID, periodSums, counts[routeID]) {
			if err := store.UpsertRoutePriceStat(ctx, stat); err != nil {
				return err
			}
			statCount++
		}
	}

	log.Info("flight prices imported",
		"fares", len(fares), "routes", len(routeIDs),
		"airlines", len(airlineIDs), "price_stats", statCount)
	return nil
}

// percentileStats converts a route's per-period average prices into
// cumulative percentiles: the percent of imported months whose average is at
// or below the period's own.
func percentileStats(routeID int, sums map[string]float64, counts map[string]int) []db.RoutePriceStat {
	avgs := make(map[string]float64, len(sums))
	periods := make([]string, 0, len(sums))
	for period, sum := range sums {
		avgs[period] = sum / float64(counts[period])
		periods = append(periods, period)
	}
	sort.Strings(periods)

	stats := make([]db.RoutePriceStat, 0, len(periods))
	for _, period := range periods {
		atOrBelow := 0
		for _, avg := range avgs {
			if avg <= avgs[period] {
				atOrBelow++
			}
		}
		stats = append(stats, db.RoutePriceStat{
			RouteID:         routeID,
			Period:          period,
			PricePercentile: 100 * float64(atOrBelow) / float64(len(avgs)),
		})
	}
	return stats
}
