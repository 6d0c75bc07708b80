package csvio

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siriwat/flight-season-api/db"
)

func TestDailyWeatherRoundTrip(t *testing.T) {
	t.Parallel()

	rows := []db.DailyWeather{
		{
			Province:        "Bangkok",
			Date:            time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC),
			TempMax:         36.5,
			TempMin:         27.2,
			TempAvg:         31.85,
			PrecipitationMM: 0,
			Humidity:        sql.NullFloat64{Float64: 64.2, Valid: true},
			Source:          db.SourceHistorical,
		},
		{
			Province:        "Chiang Mai",
			Date:            time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC),
			TempMax:         33,
			TempMin:         22,
			TempAvg:         27.5,
			PrecipitationMM: 12.4,
			Source:          db.SourceForecast,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDailyWeather(&buf, rows))

	parsed, err := ReadDailyWeather(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	assert.Equal(t, "Bangkok", parsed[0].Province)
	assert.Equal(t, rows[0].Date, parsed[0].Date)
	assert.Equal(t, 36.5, parsed[0].TempMax)
	assert.True(t, parsed[0].Humidity.Valid)
	assert.Equal(t, 64.2, parsed[0].Humidity.Float64)
	assert.Equal(t, db.SourceHistorical, parsed[0].Source)
	assert.False(t, parsed[1].Humidity.Valid)
	assert.Equal(t, db.SourceForecast, parsed[1].Source)
}

func TestHolidayRoundTripWithQuoting(t *testing.T) {
	t.Parallel()

	entries := []db.HolidayEntry{
		{Date: "2026-04-13", Name: `Songkran "Water" Festival, Day 1`, NameTH: "วันสงกรานต์", Category: "national"},
		{Date: "2026-01-01", Name: "New Year's Day", Category: "national"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHolidays(&buf, entries))

	// RFC 4180: embedded quotes doubled, comma field quoted.
	assert.Contains(t, buf.String(), `"Songkran ""Water"" Festival, Day 1"`)

	parsed, err := ReadHolidays(&buf)
	require.NoError(t, err)
	assert.Equal(t, entries, parsed)
}

func TestReadDailyWeatherRejectsBadRows(t *testing.T) {
	t.Parallel()

	badDate := "province,date,temp_max,temp_min,temp_avg,precipitation_mm,humidity,source\nBangkok,13/04/2026,30,25,27.5,0,,historical\n"
	_, err := ReadDailyWeather(strings.NewReader(badDate))
	assert.Error(t, err)

	badSource := "province,date,temp_max,temp_min,temp_avg,precipitation_mm,humidity,source\nBangkok,2026-04-13,30,25,27.5,0,,guesswork\n"
	_, err = ReadDailyWeather(strings.NewReader(badSource))
	assert.Error(t, err)
}

func TestReadHolidaysRejectsBadDate(t *testing.T) {
	t.Parallel()

	_, err := ReadHolidays(strings.NewReader("date,name,name_th,category\nnot-a-date,X,,national\n"))
	assert.Error(t, err)
}

func TestReadEmpty(t *testing.T) {
	t.Parallel()

	rows, err := ReadDailyWeather(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFareRoundTrip(t *testing.T) {
	t.Parallel()

	fares := []Fare{
		{
			Origin:      "BKK",
			Destination: "HKT",
			Price: db.FlightPrice{
				AirlineCode:   "TG",
				AirlineName:   "Thai Airways",
				DepartureDate: time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC),
				ReturnDate:    sql.NullTime{Time: time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC), Valid: true},
				TripType:      db.TripRoundTrip,
				CabinClass:    db.CabinEconomy,
				Price:         4850.50,
				BasePrice:     3200,
				Season:        db.SeasonHigh,
				FlightNumber:  "TG201",
			},
		},
		{
			Origin:      "DMK",
			Destination: "CNX",
			Price: db.FlightPrice{
				AirlineCode:   "FD",
				AirlineName:   "Thai AirAsia",
				DepartureDate: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
				TripType:      db.TripOneWay,
				CabinClass:    db.CabinEconomy,
				Price:         990,
				BasePrice:     990,
				Season:        db.SeasonLow,
				FlightNumber:  "FD3437",
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFares(&buf, fares))

	parsed, err := ReadFares(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	assert.Equal(t, "BKK", parsed[0].Origin)
	assert.Equal(t, "TG", parsed[0].Price.AirlineCode)
	assert.Equal(t, 4850.50, parsed[0].Price.Price)
	require.True(t, parsed[0].Price.ReturnDate.Valid)
	assert.Equal(t, fares[0].Price.ReturnDate.Time, parsed[0].Price.ReturnDate.Time)
	assert.Equal(t, db.SeasonHigh, parsed[0].Price.Season)

	// One-way rows carry no return date.
	assert.False(t, parsed[1].Price.ReturnDate.Valid)
	assert.Equal(t, db.TripOneWay, parsed[1].Price.TripType)
}

func TestReadFaresRejectsUnknownEnums(t *testing.T) {
	t.Parallel()

	header := "origin,destination,airline_code,airline_name,departure_date,return_date,trip_type,cabin_class,price,base_price,season,flight_number\n"

	badTrip := header + "BKK,HKT,TG,Thai Airways,2026-04-13,,multi-city,economy,1000,900,high,TG201\n"
	_, err := ReadFares(strings.NewReader(badTrip))
	assert.Error(t, err)

	badSeason := header + "BKK,HKT,TG,Thai Airways,2026-04-13,,round-trip,economy,1000,900,shoulder,TG201\n"
	_, err = ReadFares(strings.NewReader(badSeason))
	assert.Error(t, err)
}
