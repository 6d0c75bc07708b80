package db

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siriwat/flight-season-api/config"
)

// openIntegrationDB connects to the Postgres instance named by the
// environment and resets the tables this package owns. The upsert contracts
// live in SQL, so they can only be exercised against a real server.
func openIntegrationDB(t *testing.T) *PostgresDB {
	t.Helper()
	if os.Getenv("ENABLE_INTEGRATION_TESTS") != "1" {
		t.Skip("Skipping integration tests (set ENABLE_INTEGRATION_TESTS=1 to enable)")
	}

	_ = godotenv.Load()
	cfg := config.LoadTestConfig()

	store, err := NewPostgresDB(cfg.PostgresConfig)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.InitSchema())
	_, err = store.db.Exec(`
		TRUNCATE TABLE flight_prices, route_price_stats, routes, airlines,
			daily_weather, monthly_weather_stats, holiday_stats
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return store
}

func countRows(t *testing.T, store *PostgresDB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestUpsertFlightPriceIdempotentOneWay(t *testing.T) {
	store := openIntegrationDB(t)
	ctx := context.Background()

	route, err := store.GetOrCreateRoute(ctx, "DMK", "CNX")
	require.NoError(t, err)
	airlineID, err := store.UpsertAirline(ctx, Airline{Code: "FD", Name: "Thai AirAsia"})
	require.NoError(t, err)

	fare := FlightPrice{
		RouteID:       route.ID,
		AirlineID:     airlineID,
		DepartureDate: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		TripType:      TripOneWay,
		CabinClass:    CabinEconomy,
		Price:         990,
		BasePrice:     990,
		Season:        SeasonLow,
		FlightNumber:  "FD3437",
	}
	require.NoError(t, store.UpsertFlightPrice(ctx, fare))
	require.NoError(t, store.UpsertFlightPrice(ctx, fare))
	assert.Equal(t, 1, countRows(t, store, "flight_prices"))

	// A refreshed feed updates the row in place instead of duplicating it.
	fare.Price = 1090
	require.NoError(t, store.UpsertFlightPrice(ctx, fare))
	assert.Equal(t, 1, countRows(t, store, "flight_prices"))

	rows, err := store.GetFlightPrices(ctx, FlightPriceFilter{
		Origins:     []string{"DMK"},
		Destination: "CNX",
		StartDate:   fare.DepartureDate,
		EndDate:     fare.DepartureDate,
		TripType:    TripOneWay,
		CabinClass:  CabinEconomy,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1090.0, rows[0].Price)
	assert.False(t, rows[0].ReturnDate.Valid)
}

func TestUpsertFlightPriceKeyedByReturnDate(t *testing.T) {
	store := openIntegrationDB(t)
	ctx := context.Background()

	route, err := store.GetOrCreateRoute(ctx, "BKK", "HKT")
	require.NoError(t, err)
	airlineID, err := store.UpsertAirline(ctx, Airline{Code: "TG", Name: "Thai Airways"})
	require.NoError(t, err)

	fare := FlightPrice{
		RouteID:       route.ID,
		AirlineID:     airlineID,
		DepartureDate: time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC),
		ReturnDate:    nullDate(2026, 4, 20),
		TripType:      TripRoundTrip,
		CabinClass:    CabinEconomy,
		Price:         4850,
		BasePrice:     3200,
		Season:        SeasonHigh,
		FlightNumber:  "TG201",
	}
	require.NoError(t, store.UpsertFlightPrice(ctx, fare))
	require.NoError(t, store.UpsertFlightPrice(ctx, fare))
	assert.Equal(t, 1, countRows(t, store, "flight_prices"))

	// Same itinerary with a different return date is a distinct fare.
	fare.ReturnDate = nullDate(2026, 4, 27)
	require.NoError(t, store.UpsertFlightPrice(ctx, fare))
	assert.Equal(t, 2, countRows(t, store, "flight_prices"))
}

func nullDate(y int, m time.Month, d int) sql.NullTime {
	return sql.NullTime{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func TestUpsertDailyWeatherSourcePrecedence(t *testing.T) {
	store := openIntegrationDB(t)
	ctx := context.Background()

	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	forecast := DailyWeather{
		Province: "Phuket",
		Date:     day,
		TempMax:  33,
		TempMin:  25,
		TempAvg:  29,
		Source:   SourceForecast,
	}
	written, err := store.UpsertDailyWeather(ctx, []DailyWeather{forecast})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	// Historical observations displace the forecast row.
	historical := forecast
	historical.TempMax = 34.5
	historical.Source = SourceHistorical
	written, err = store.UpsertDailyWeather(ctx, []DailyWeather{historical})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	rows, err := store.GetDailyWeather(ctx, "Phuket", day, day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, SourceHistorical, rows[0].Source)
	assert.Equal(t, 34.5, rows[0].TempMax)

	// A later forecast never overwrites the historical row.
	forecast.TempMax = 31
	written, err = store.UpsertDailyWeather(ctx, []DailyWeather{forecast})
	require.NoError(t, err)
	assert.Equal(t, 0, written)

	rows, err = store.GetDailyWeather(ctx, "Phuket", day, day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, SourceHistorical, rows[0].Source)
	assert.Equal(t, 34.5, rows[0].TempMax)

	// Re-applying the same historical batch is a no-op in content.
	_, err = store.UpsertDailyWeather(ctx, []DailyWeather{historical})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, store, "daily_weather"))
}
