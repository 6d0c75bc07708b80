// Package csvio reads and writes the CSV interchange format used by the
// fetch/import CLI tools. RFC 4180 quoting, comma separators, LF rows.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/siriwat/flight-season-api/db"
)

var dailyWeatherHeader = []string{
	"province", "date", "temp_max", "temp_min", "temp_avg",
	"precipitation_mm", "humidity", "source",
}

var holidayHeader = []string{"date", "name", "name_th", "category"}

// WriteDailyWeather writes daily weather rows with a header line.
func WriteDailyWeather(w io.Writer, entries []db.DailyWeather) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dailyWeatherHeader); err != nil {
		return err
	}
	for _, e := range entries {
		humidity := ""
		if e.Humidity.Valid {
			humidity = strconv.FormatFloat(e.Humidity.Float64, 'f', 2, 64)
		}
		record := []string{
			e.Province,
			e.Date.Format("2006-01-02"),
			strconv.FormatFloat(e.TempMax, 'f', 2, 64),
			strconv.FormatFloat(e.TempMin, 'f', 2, 64),
			strconv.FormatFloat(e.TempAvg, 'f', 2, 64),
			strconv.FormatFloat(e.PrecipitationMM, 'f', 2, 64),
			humidity,
			string(e.Source),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadDailyWeather parses daily weather rows, validating enums and dates at
// ingress.
func ReadDailyWeather(r io.Reader) ([]db.DailyWeather, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var entries []db.DailyWeather
	for i, rec := range records {
		if i == 0 && rec[0] == "province" {
			continue
		}
		if len(rec) != len(dailyWeatherHeader) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", i+1, len(dailyWeatherHeader), len(rec))
		}
		date, err := time.Parse("2006-01-02", rec[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad date %q: %w", i+1, rec[1], err)
		}
		source, err := db.ParseWeatherSource(rec[7])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		entry := db.DailyWeather{Province: rec[0], Date: date, Source: source}
		if entry.TempMax, err = strconv.ParseFloat(rec[2], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad temp_max %q: %w", i+1, rec[2], err)
		}
		if entry.TempMin, err = strconv.ParseFloat(rec[3], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad temp_min %q: %w", i+1, rec[3], err)
		}
		if entry.TempAvg, err = strconv.ParseFloat(rec[4], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad temp_avg %q: %w", i+1, rec[4], err)
		}
		if entry.PrecipitationMM, err = strconv.ParseFloat(rec[5], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad precipitation %q: %w", i+1, rec[5], err)
		}
		if rec[6] != "" {
			h, err := strconv.ParseFloat(rec[6], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad humidity %q: %w", i+1, rec[6], err)
			}
			entry.Humidity.Float64 = h
			entry.Humidity.Valid = true
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// WriteHolidays writes holiday entries with a header line.
func WriteHolidays(w io.Writer, entries []db.HolidayEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(holidayHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Date, e.Name, e.NameTH, e.Category}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHolidays parses holiday entries.
func ReadHolidays(r io.Reader) ([]db.HolidayEntry, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var entries []db.HolidayEntry
	for i, rec := range records {
		if i == 0 && rec[0] == "date" {
			continue
		}
		if len(rec) != len(holidayHeader) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", i+1, len(holidayHeader), len(rec))
		}
		if _, err := time.Parse("2006-01-02", rec[0]); err != nil {
			return nil, fmt.Errorf("row %d: bad date %q: %w", i+1, rec[0], err)
		}
		entries = append(entries, db.HolidayEntry{
			Date:     rec[0],
			Name:     rec[1],
			NameTH:   rec[2],
			Category: rec[3],
		})
	}
	return entries, nil
}

var fareHeader = []string{
	"origin", "destination", "airline_code", "airline_name",
	"departure_date", "return_date", "trip_type", "cabin_class",
	"price", "base_price", "season", "flight_number",
}

// Fare is one flight-price interchange row. Route and airline travel by
// code; storage ids are resolved at import time.
type Fare struct {
	Origin      string
	Destination string
	Price       db.FlightPrice
}

// WriteFares writes fare rows with a header line.
func WriteFares(w io.Writer, fares []Fare) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fareHeader); err != nil {
		return err
	}
	for _, f := range fares {
		returnDate := ""
		if f.Price.ReturnDate.Valid {
			returnDate = f.Price.ReturnDate.Time.Format("2006-01-02")
		}
		record := []string{
			f.Origin,
			f.Destination,
			f.Price.AirlineCode,
			f.Price.AirlineName,
			f.Price.DepartureDate.Format("2006-01-02"),
			returnDate,
			string(f.Price.TripType),
			string(f.Price.CabinClass),
			strconv.FormatFloat(f.Price.Price, 'f', 2, 64),
			strconv.FormatFloat(f.Price.BasePrice, 'f', 2, 64),
			string(f.Price.Season),
			f.Price.FlightNumber,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFares parses fare rows, validating enums and dates at ingress.
func ReadFares(r io.Reader) ([]Fare, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var fares []Fare
	for i, rec := range records {
		if i == 0 && rec[0] == "origin" {
			continue
		}
		if len(rec) != len(fareHeader) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", i+1, len(fareHeader), len(rec))
		}

		fare := Fare{Origin: rec[0], Destination: rec[1]}
		fare.Price.AirlineCode = rec[2]
		fare.Price.AirlineName = rec[3]
		fare.Price.FlightNumber = rec[11]

		if fare.Price.DepartureDate, err = time.Parse("2006-01-02", rec[4]); err != nil {
			return nil, fmt.Errorf("row %d: bad departure_date %q: %w", i+1, rec[4], err)
		}
		if rec[5] != "" {
			t, err := time.Parse("2006-01-02", rec[5])
			if err != nil {
				return nil, fmt.Errorf("row %d: bad return_date %q: %w", i+1, rec[5], err)
			}
			fare.Price.ReturnDate.Time = t
			fare.Price.ReturnDate.Valid = true
		}
		if fare.Price.TripType, err = db.ParseTripType(rec[6]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if fare.Price.CabinClass, err = db.ParseCabinClass(rec[7]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if fare.Price.Price, err = strconv.ParseFloat(rec[8], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad price %q: %w", i+1, rec[8], err)
		}
		if fare.Price.BasePrice, err = strconv.ParseFloat(rec[9], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad base_price %q: %w", i+1, rec[9], err)
		}
		if fare.Price.Season, err = db.ParseSeason(rec[10]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		fares = append(fares, fare)
	}
	return fares, nil
}
