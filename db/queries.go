package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/siriwat/flight-season-api/pkg/apperr"
)

const (
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
)

// withRetry runs fn, retrying transient failures with exponential backoff.
// Permanent failures and context cancellation surface immediately.
// Transience is read from the driver error, or from the Transient flag when
// fn returns an already-wrapped storage error.
func withRetry(ctx context.Context, fn func() error) error {
	backoff := initialBackoff
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) && !apperr.IsTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return apperr.Timeout(ctx.Err(), "storage operation cancelled")
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return apperr.Storage(err, false, "storage operation failed after %d attempts", maxRetries)
}

// isTransient classifies connection-level and serialization failures as
// retryable.
func isTransient(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08": // connection exception
			return true
		case "40": // transaction rollback (serialization, deadlock)
			return true
		case "57": // operator intervention (shutdown in progress)
			return true
		}
	}
	return false
}

// GetOrCreateRoute looks up a route by (origin, destination), creating it on
// first use.
func (p *PostgresDB) GetOrCreateRoute(ctx context.Context, origin, destination string) (*Route, error) {
	route := &Route{}
	err := withRetry(ctx, func() error {
		return p.db.QueryRowContext(ctx, `
			INSERT INTO routes (origin, destination)
			VALUES ($1, $2)
			ON CONFLICT (origin, destination) DO UPDATE SET origin = EXCLUDED.origin
			RETURNING id, origin, destination, created_at`,
			origin, destination,
		).Scan(&route.ID, &route.Origin, &route.Destination, &route.CreatedAt)
	})
	if err != nil {
		return nil, apperr.Storage(err, isTransient(err), "get or create route %s-%s", origin, destination)
	}
	return route, nil
}

// GetAirlinesByCodes resolves airline rows for a set of IATA-like codes.
func (p *PostgresDB) GetAirlinesByCodes(ctx context.Context, codes []string) ([]Airline, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, code, name, name_th FROM airlines WHERE code = ANY($1)`,
		pq.Array(codes),
	)
	if err != nil {
		return nil, apperr.Storage(err, isTransient(err), "query airlines by codes")
	}
	defer rows.Close()
	return scanAirlines(rows)
}

func scanAirlines(rows *sql.Rows) ([]Airline, error) {
	var airlines []Airline
	for rows.Next() {
		var a Airline
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.NameTH); err != nil {
			return nil, apperr.Storage(err, false, "scan airline row")
		}
		airlines = append(airlines, a)
	}
	return airlines, rows.Err()
}

// UpsertAirline inserts or refreshes an airline row and returns its id.
func (p *PostgresDB) UpsertAirline(ctx context.Context, airline Airline) (int, error) {
	var id int
	err := withRetry(ctx, func() error {
		return p.db.QueryRowContext(ctx, `
			INSERT INTO airlines (code, name, name_th)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, name_th = EXCLUDED.name_th
			RETURNING id`,
			airline.Code, airline.Name, airline.NameTH,
		).Scan(&id)
	})
	if err != nil {
		return 0, apperr.Storage(err, isTransient(err), "upsert airline %s", airline.Code)
	}
	return id, nil
}

// GetFlightPrices returns fare rows matching the filter, joined with airline
// identity, ordered by departure date.
func (p *PostgresDB) GetFlightPrices(ctx context.Context, filter FlightPriceFilter) ([]FlightPrice, error) {
	query := `
		SELECT fp.id, fp.route_id, fp.airline_id, a.code, a.name,
		       fp.departure_date, fp.return_date, fp.trip_type, fp.cabin_class,
		       fp.price, fp.base_price, fp.season, fp.flight_number,
		       fp.departure_time, fp.arrival_time, fp.duration_minutes,
		       fp.airplane, fp.carbon_grams, fp.legroom, fp.often_delayed, fp.created_at
		FROM flight_prices fp
		JOIN routes r ON r.id = fp.route_id
		JOIN airlines a ON a.id = fp.airline_id
		WHERE r.origin = ANY($1)
		  AND r.destination = $2
		  AND fp.departure_date >= $3
		  AND fp.departure_date <= $4
		  AND fp.trip_type = $5
		  AND fp.cabin_class = $6`
	args := []interface{}{
		pq.Array(filter.Origins), filter.Destination,
		filter.StartDate, filter.EndDate,
		string(filter.TripType), string(filter.CabinClass),
	}
	if len(filter.AirlineIDs) > 0 {
		query += ` AND fp.airline_id = ANY($7)`
		args = append(args, pq.Array(filter.AirlineIDs))
	}
	query += ` ORDER BY fp.departure_date, fp.price`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage(err, isTransient(err), "query flight prices %v-%s", filter.Origins, filter.Destination)
	}
	defer rows.Close()

	var prices []FlightPrice
	for rows.Next() {
		var fp FlightPrice
		if err := rows.Scan(
			&fp.ID, &fp.RouteID, &fp.AirlineID, &fp.AirlineCode, &fp.AirlineName,
			&fp.DepartureDate, &fp.ReturnDate, &fp.TripType, &fp.CabinClass,
			&fp.Price, &fp.BasePrice, &fp.Season, &fp.FlightNumber,
			&fp.DepartureTime, &fp.ArrivalTime, &fp.DurationMinutes,
			&fp.Airplane, &fp.CarbonGrams, &fp.Legroom, &fp.OftenDelayed, &fp.CreatedAt,
		); err != nil {
			return nil, apperr.Storage(err, false, "scan flight price row")
		}
		prices = append(prices, fp)
	}
	return prices, rows.Err()
}

// CheapestFlightOnDate returns the cheapest fare departing on exactly the
// given date, or nil when no fare is stored for it.
func (p *PostgresDB) CheapestFlightOnDate(ctx context.Context, origins []string, destination string, date time.Time, tripType TripType, cabin CabinClass) (*FlightPrice, error) {
	prices, err := p.GetFlightPrices(ctx, FlightPriceFilter{
		Origins:     origins,
		Destination: destination,
		StartDate:   date,
		EndDate:     date,
		TripType:    tripType,
		CabinClass:  cabin,
	})
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, nil
	}
	cheapest := prices[0]
	for _, fp := range prices[1:] {
		if fp.Price < cheapest.Price {
			cheapest = fp
		}
	}
	return &cheapest, nil
}

// UpsertFlightPrice inserts or refreshes a fare row. Keyed by the full
// identity tuple so re-ingesting the same feed is a no-op. The conflict
// target goes through COALESCE so one-way fares (NULL return_date)
// collide too.
func (p *PostgresDB) UpsertFlightPrice(ctx context.Context, fp FlightPrice) error {
	err := withRetry(ctx, func() error {
		_, execErr := p.db.ExecContext(ctx, `
			INSERT INTO flight_prices (
				route_id, airline_id, departure_date, return_date, trip_type,
				cabin_class, price, base_price, season, flight_number,
				departure_time, arrival_time, duration_minutes, airplane,
				carbon_grams, legroom, often_delayed
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (route_id, airline_id, departure_date, COALESCE(return_date, '0001-01-01'::date), trip_type, cabin_class, flight_number)
			DO UPDATE SET price = EXCLUDED.price, base_price = EXCLUDED.base_price,
			              season = EXCLUDED.season, often_delayed = EXCLUDED.often_delayed`,
			fp.RouteID, fp.AirlineID, fp.DepartureDate, fp.ReturnDate, string(fp.TripType),
			string(fp.CabinClass), fp.Price, fp.BasePrice, string(fp.Season), fp.FlightNumber,
			fp.DepartureTime, fp.ArrivalTime, fp.DurationMinutes, fp.Airplane,
			fp.CarbonGrams, fp.Legroom, fp.OftenDelayed,
		)
		return execErr
	})
	if err != nil {
		return apperr.Storage(err, isTransient(err), "upsert flight price route=%d flight=%s", fp.RouteID, fp.FlightNumber)
	}
	return nil
}

// UpsertDailyWeather writes daily rows with the source-precedence rule:
// historical displaces forecast, forecast never displaces historical.
// Returns the number of rows written.
func (p *PostgresDB) UpsertDailyWeather(ctx context.Context, entries []DailyWeather) (int, error) {
	written := 0
	for _, w := range entries {
		err := withRetry(ctx, func() error {
			res, execErr := p.db.ExecContext(ctx, `
				INSERT INTO daily_weather (province, date, temp_max, temp_min, temp_avg, precipitation_mm, humidity, source)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
				ON CONFLICT (province, date) DO UPDATE SET
					temp_max = EXCLUDED.temp_max,
					temp_min = EXCLUDED.temp_min,
					temp_avg = EXCLUDED.temp_avg,
					precipitation_mm = EXCLUDED.precipitation_mm,
					humidity = EXCLUDED.humidity,
					source = EXCLUDED.source
				WHERE daily_weather.source = 'forecast' OR EXCLUDED.source = 'historical'`,
				w.Province, w.Date, w.TempMax, w.TempMin, w.TempAvg,
				w.PrecipitationMM, w.Humidity, string(w.Source),
			)
			if execErr != nil {
				return execErr
			}
			if n, _ := res.RowsAffected(); n > 0 {
				written++
			}
			return nil
		})
		if err != nil {
			return written, apperr.Storage(err, isTransient(err), "upsert daily weather %s %s", w.Province, w.Date.Format("2006-01-02"))
		}
	}
	return written, nil
}

// GetDailyWeather returns daily rows for a province within [start, end].
func (p *PostgresDB) GetDailyWeather(ctx context.Context, province string, start, end time.Time) ([]DailyWeather, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT province, date, temp_max, temp_min, temp_avg, precipitation_mm, humidity, source
		FROM daily_weather
		WHERE province = $1 AND date >= $2 AND date <= $3
		ORDER BY date`,
		province, start, end,
	)
	if err != nil {
		return nil, apperr.Storage(err, isTransient(err), "query daily weather %s", province)
	}
	defer rows.Close()

	var entries []DailyWeather
	for rows.Next() {
		var w DailyWeather
		if err := rows.Scan(&w.Province, &w.Date, &w.TempMax, &w.TempMin, &w.TempAvg, &w.PrecipitationMM, &w.Humidity, &w.Source); err != nil {
			return nil, apperr.Storage(err, false, "scan daily weather row")
		}
		entries = append(entries, w)
	}
	return entries, rows.Err()
}

// AggregateMonthlyWeather computes the raw monthly projection over daily
// rows for a (province, period).
func (p *PostgresDB) AggregateMonthlyWeather(ctx context.Context, province, period string) (*MonthlyWeatherAggregate, error) {
	agg := &MonthlyWeatherAggregate{Province: province, Period: period}
	var avgTemp, totalRain sql.NullFloat64
	err := p.db.QueryRowContext(ctx, `
		SELECT AVG(temp_avg), SUM(precipitation_mm), AVG(humidity), COUNT(*)
		FROM daily_weather
		WHERE province = $1 AND to_char(date, 'YYYY-MM') = $2`,
		province, period,
	).Scan(&avgTemp, &totalRain, &agg.AvgHumidity, &agg.DaysCount)
	if err != nil {
		return nil, apperr.Storage(err, isTransient(err), "aggregate monthly weather %s %s", province, period)
	}
	if agg.DaysCount == 0 {
		return nil, nil
	}
	agg.AvgTemp = avgTemp.Float64
	agg.TotalRain = totalRain.Float64
	return agg, nil
}

// ListDailyWeatherPeriods returns the distinct (province, period) pairs that
// have daily rows. Used by the statistics refresh.
func (p *PostgresDB) ListDailyWeatherPeriods(ctx context.Context) ([]ProvincePeriod, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT province, to_char(date, 'YYYY-MM')
		FROM daily_weather
		ORDER BY province, to_char(date, 'YYYY-MM')`,
	)
	if err != nil {
		return nil, apperr.Storage(err, isTransient(err), "list daily weather periods")
	}
	defer rows.Close()

	var pairs []ProvincePeriod
	for rows.Next() {
		var pp ProvincePeriod
		if err := rows.Scan(&pp.Province, &pp.Period); err != nil {
			return nil, apperr.Storage(err, false, "scan province period row")
		}
		pairs = append(pairs, pp)
	}
	return pairs, rows.Err()
}

// UpsertMonthlyWeatherStat writes a monthly aggregate keyed by (province, period).
func (p *PostgresDB) UpsertMonthlyWeatherStat(ctx context.Context, stat MonthlyWeatherStat) error {
	err := withRetry(ctx, func() error {
		_, execErr := p.db.ExecContext(ctx, `
			INSERT INTO monthly_weather_stats (province, period, avg_temp, avg_rain, avg_humidity, weather_score, days_count)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (province, period) DO UPDATE SET
				avg_temp = EXCLUDED.avg_temp,
				avg_rain = EXCLUDED.avg_rain,
				avg_humidity = EXCLUDED.avg_humidity,
				weather_score = EXCLUDED.weather_score,
				days_count = EXCLUDED.days_count`,
			stat.Province, stat.Period, stat.AvgTemp, stat.AvgRain,
			stat.AvgHumidity, stat.WeatherScore, stat.DaysCount,
		)
		return execErr
	})
	if err != nil {
		return apperr.Storage(err, isTransient(err), "upsert monthly weather stat %s %s", stat.Province, stat.Period)
	}
	return nil
}

// GetMonthlyWeatherStats returns monthly aggregates for a province, keyed by
// period. Missing periods are simply absent from the map.
func (p *PostgresDB) GetMonthlyWeatherStats(ctx context.Context, province string, periods []string) (map[string]MonthlyWeatherStat, error) {
	if len(periods) == 0 {
		return map[string]MonthlyWeatherStat{}, nil
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT province, period, avg_temp, avg_rain, avg_humidity, weather_score, days_count
		FROM monthly_weather_stats
		WHERE province = $1 AND period = ANY($2)`,
		province, pq.Array(periods),
	)
	if err != nil {
		return nil, apperr.Storage(err, isTransient(err), "query monthly weather stats %s", province)
	}
	defer rows.Close()

	stats := make(map[string]MonthlyWeatherStat, len(periods))
	for rows.Next() {
		var s MonthlyWeatherStat
		if err := rows.Scan(&s.Province, &s.Period, &s.AvgTemp, &s.AvgRain, &s.AvgHumidity, &s.WeatherScore, &s.DaysCount); err != nil {
			return nil, apperr.Storage(err, false, "scan monthly weather stat row")
		}
		stats[s.Period] = s
	}
	return stats, rows.Err()
}

// UpsertHolidayStat writes a holiday aggregate keyed by period.
func (p *PostgresDB) UpsertHolidayStat(ctx context.Context, stat HolidayStat) error {
	detail, err := stat.DetailJSON()
	if err != nil {
		return apperr.Storage(err, false, "marshal holiday detail %s", stat.Period)
	}
	err = withRetry(ctx, func() error {
		_, execErr := p.db.ExecContext(ctx, `
			INSERT INTO holiday_stats (period, holidays_count, long_weekends_count, holiday_score, holidays_detail)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (period) DO UPDATE SET
				holidays_count = EXCLUDED.holidays_count,
				long_weekends_count = EXCLUDED.long_weekends_count,
				holiday_score = EXCLUDED.holiday_score,
				holidays_detail = EXCLUDED.holidays_detail`,
			stat.Period, stat.HolidaysCount, stat.LongWeekendsCount, stat.HolidayScore, detail,
		)
		return execErr
	})
	if err != nil {
		return apperr.Storage(err, isTransient(err), "upsert holiday stat %s", stat.Period)
	}
	return nil
}

// GetHolidayStats returns holiday aggregates keyed by period. Missing
// periods are absent from the map.
func (p *PostgresDB) GetHolidayStats(ctx context.Context, periods []string) (map[string]HolidayStat, error) {
	if len(periods) == 0 {
		return map[string]HolidayStat{}, nil
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT period, holidays_count, long_weekends_count, holiday_score, holidays_detail
		FROM holiday_stats
		WHERE period = ANY($1)`,
		pq.Array(periods),
	)
	if err != nil {
		return nil, apperr.Storage(err, isTransient(err), "query holiday stats")
	}
	defer rows.Close()

	stats := make(map[string]HolidayStat, len(periods))
	for rows.Next() {
		var s HolidayStat
		var detail []byte
		if err := rows.Scan(&s.Period, &s.HolidaysCount, &s.LongWeekendsCount, &s.HolidayScore, &detail); err != nil {
			return nil, apperr.Storage(err, false, "scan holiday stat row")
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &s.HolidaysDetail); err != nil {
				return nil, apperr.Storage(err, false, "unmarshal holiday detail %s", s.Period)
			}
		}
		stats[s.Period] = s
	}
	return stats, rows.Err()
}

// GetRoutePriceStats returns precomputed price percentiles for a route,
// keyed by period.
func (p *PostgresDB) GetRoutePriceStats(ctx context.Context, routeID int, periods []string) (map[string]float64, error) {
	if len(periods) == 0 {
		return map[string]float64{}, nil
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT period, price_percentile
		FROM route_price_stats
		WHERE route_id = $1 AND period = ANY($2)`,
		routeID, pq.Array(periods),
	)
	if err != nil {
		return nil, apperr.Storage(err, isTransient(err), "query route price stats route=%d", routeID)
	}
	defer rows.Close()

	stats := make(map[string]float64, len(periods))
	for rows.Next() {
		var period string
		var pct float64
		if err := rows.Scan(&period, &pct); err != nil {
			return nil, apperr.Storage(err, false, "scan route price stat row")
		}
		stats[period] = pct
	}
	return stats, rows.Err()
}

// UpsertRoutePriceStat writes a precomputed percentile keyed by (route, period).
func (p *PostgresDB) UpsertRoutePriceStat(ctx context.Context, stat RoutePriceStat) error {
	err := withRetry(ctx, func() error {
		_, execErr := p.db.ExecContext(ctx, `
			INSERT INTO route_price_stats (route_id, period, price_percentile)
			VALUES ($1,$2,$3)
			ON CONFLICT (route_id, period) DO UPDATE SET price_percentile = EXCLUDED.price_percentile`,
			stat.RouteID, stat.Period, stat.PricePercentile,
		)
		return execErr
	})
	if err != nil {
		return apperr.Storage(err, isTransient(err), "upsert route price stat route=%d %s", stat.RouteID, stat.Period)
	}
	return nil
}
