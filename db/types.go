package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TripType is the journey shape of a stored fare.
type TripType string

const (
	TripOneWay    TripType = "one-way"
	TripRoundTrip TripType = "round-trip"
)

// ParseTripType rejects unknown trip types at ingress. Underscore spellings
// from older clients are accepted.
func ParseTripType(s string) (TripType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "one-way", "one_way", "oneway":
		return TripOneWay, nil
	case "round-trip", "round_trip", "roundtrip", "":
		return TripRoundTrip, nil
	default:
		return "", fmt.Errorf("unknown trip type %q", s)
	}
}

// CabinClass is the booking class of a stored fare. Storage rows are
// class-specific, so queries filter by cabin rather than multiplying prices.
type CabinClass string

const (
	CabinEconomy  CabinClass = "economy"
	CabinBusiness CabinClass = "business"
	CabinFirst    CabinClass = "first"
)

// ParseCabinClass rejects unknown cabin classes at ingress.
func ParseCabinClass(s string) (CabinClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "economy", "":
		return CabinEconomy, nil
	case "business":
		return CabinBusiness, nil
	case "first":
		return CabinFirst, nil
	default:
		return "", fmt.Errorf("unknown cabin class %q", s)
	}
}

// Season is the categorical label assigned to a calendar month on a route.
type Season string

const (
	SeasonLow    Season = "low"
	SeasonNormal Season = "normal"
	SeasonHigh   Season = "high"
)

// ParseSeason rejects unknown season labels at ingress.
func ParseSeason(s string) (Season, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeasonLow, nil
	case "normal", "":
		return SeasonNormal, nil
	case "high":
		return SeasonHigh, nil
	default:
		return "", fmt.Errorf("unknown season %q", s)
	}
}

// WeatherSource identifies which upstream owns a daily weather row.
// Historical rows own the past through the cutover date and are never
// displaced by forecast rows.
type WeatherSource string

const (
	SourceHistorical WeatherSource = "historical"
	SourceForecast   WeatherSource = "forecast"
)

// ParseWeatherSource rejects unknown sources at ingress.
func ParseWeatherSource(s string) (WeatherSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "historical":
		return SourceHistorical, nil
	case "forecast":
		return SourceForecast, nil
	default:
		return "", fmt.Errorf("unknown weather source %q", s)
	}
}

// Period formats a time as the canonical YYYY-MM month key.
func Period(t time.Time) string {
	return t.Format("2006-01")
}

// Route represents a (origin, destination) airport pair. Created lazily by
// the first query that mentions it.
type Route struct {
	ID          int
	Origin      string
	Destination string
	CreatedAt   time.Time
}

// Airline represents an airline row
type Airline struct {
	ID     int
	Code   string
	Name   string
	NameTH sql.NullString
}

// FlightPrice represents a stored fare row. The stored price already
// incorporates seasonal, holiday and variation multipliers; downstream
// components must never re-apply them.
type FlightPrice struct {
	ID              int
	RouteID         int
	AirlineID       int
	AirlineCode     string
	AirlineName     string
	DepartureDate   time.Time
	ReturnDate      sql.NullTime
	TripType        TripType
	CabinClass      CabinClass
	Price           float64
	BasePrice       float64
	Season          Season
	FlightNumber    string
	DepartureTime   sql.NullString
	ArrivalTime     sql.NullString
	DurationMinutes sql.NullInt32
	Airplane        sql.NullString
	CarbonGrams     sql.NullInt64
	Legroom         sql.NullString
	OftenDelayed    bool
	CreatedAt       time.Time
}

// DailyWeather represents one observed or forecast day for a province.
type DailyWeather struct {
	Province        string
	Date            time.Time
	TempMax         float64
	TempMin         float64
	TempAvg         float64
	PrecipitationMM float64
	Humidity        sql.NullFloat64
	Source          WeatherSource
}

// MonthlyWeatherStat is the per-(province, period) aggregate derived from
// daily weather rows.
type MonthlyWeatherStat struct {
	Province     string
	Period       string
	AvgTemp      float64
	AvgRain      float64
	AvgHumidity  sql.NullFloat64
	WeatherScore float64
	DaysCount    int
}

// HolidayEntry is one canonical holiday record, stored as JSON detail on
// the monthly stat row.
type HolidayEntry struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Name     string `json:"name"`
	NameTH   string `json:"name_th,omitempty"`
	Category string `json:"category"` // national or regional
}

// HolidayStat is the per-month holiday aggregate.
type HolidayStat struct {
	Period            string
	HolidaysCount     int
	LongWeekendsCount int
	HolidayScore      float64
	HolidaysDetail    []HolidayEntry
}

// DetailJSON serializes the holiday detail for storage.
func (h HolidayStat) DetailJSON() ([]byte, error) {
	if h.HolidaysDetail == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.HolidaysDetail)
}

// RoutePriceStat is a precomputed per-(route, period) price percentile.
type RoutePriceStat struct {
	RouteID         int
	Period          string
	PricePercentile float64
}

// MonthlyWeatherAggregate is the raw AVG/SUM projection over daily rows,
// before scoring.
type MonthlyWeatherAggregate struct {
	Province    string
	Period      string
	AvgTemp     float64
	TotalRain   float64
	AvgHumidity sql.NullFloat64
	DaysCount   int
}

// ProvincePeriod identifies a (province, period) pair that has daily rows.
type ProvincePeriod struct {
	Province string
	Period   string
}

// FlightPriceFilter narrows a flight-price query. Origins may be a set for
// multi-airport cities.
type FlightPriceFilter struct {
	Origins     []string
	Destination string
	StartDate   time.Time
	EndDate     time.Time
	TripType    TripType
	CabinClass  CabinClass
	AirlineIDs  []int
}
