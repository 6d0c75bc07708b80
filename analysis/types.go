package analysis

import (
	"time"

	"golang.org/x/text/language"

	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/forecast"
	"github.com/siriwat/flight-season-api/pkg/pricing"
)

// DurationRange is the trip length the traveller is considering, in days.
type DurationRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Avg returns the midpoint of the range.
func (d DurationRange) Avg() float64 {
	return float64(d.Min+d.Max) / 2
}

// Request is one analysis query.
type Request struct {
	Origin           string             `json:"origin"`
	Destination      string             `json:"destination"`
	TripType         db.TripType        `json:"tripType"`
	Cabin            db.CabinClass      `json:"cabin"`
	DurationRange    DurationRange      `json:"durationRange"`
	SelectedAirlines []string           `json:"selectedAirlines"`
	StartDate        *time.Time         `json:"startDate,omitempty"`
	EndDate          *time.Time         `json:"endDate,omitempty"`
	Passengers       pricing.Passengers `json:"passengers"`
	Lang             language.Tag       `json:"-"`
}

// RecommendedPeriod is the system's suggested travel window.
type RecommendedPeriod struct {
	StartDate  string    `json:"startDate"` // localized
	EndDate    string    `json:"endDate"`
	ReturnDate string    `json:"returnDate"` // YYYY-MM-DD
	Price      int       `json:"price"`
	Airline    string    `json:"airline"`
	Season     db.Season `json:"season"`
	Savings    int       `json:"savings"`
}

// PriceRange is the raw stored price span of a season. Min=max=0 is the
// missing-data sentinel.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// BestDeal is the cheapest fare of a season after pricing rules.
type BestDeal struct {
	Dates   string `json:"dates"` // localized departure date
	Price   int    `json:"price"`
	Airline string `json:"airline"`
}

// SeasonSummary is one season entry of the result, ordered Low, Normal,
// High.
type SeasonSummary struct {
	Type        db.Season  `json:"type"`
	Months      []string   `json:"months"` // localized month names
	PriceRange  PriceRange `json:"priceRange"`
	BestDeal    *BestDeal  `json:"bestDeal,omitempty"`
	Description string     `json:"description"`
}

// ComparisonPoint is one side of the before/after comparison.
type ComparisonPoint struct {
	Date       string  `json:"date"` // YYYY-MM-DD
	Price      int     `json:"price"`
	Difference int     `json:"difference"`
	Percentage float64 `json:"percentage"`
}

// PriceComparison contrasts the anchor date with one week either side.
type PriceComparison struct {
	BasePrice   *int            `json:"basePrice,omitempty"`
	BaseAirline *string         `json:"baseAirline,omitempty"`
	IfGoBefore  ComparisonPoint `json:"ifGoBefore"`
	IfGoAfter   ComparisonPoint `json:"ifGoAfter"`
}

// ChartEntry is one day of the anchor month's price chart. Price 0 with
// HasData false means no fare was stored for that day.
type ChartEntry struct {
	StartDate  string    `json:"startDate"` // YYYY-MM-DD
	ReturnDate string    `json:"returnDate,omitempty"`
	Price      int       `json:"price"`
	Season     db.Season `json:"season"`
	Duration   *int      `json:"duration,omitempty"`
	HasData    bool      `json:"hasData"`
}

// FlightPriceView is a catalog row with pricing rules applied and carbon
// converted from grams to kilograms with one decimal.
type FlightPriceView struct {
	AirlineCode     string   `json:"airlineCode"`
	AirlineName     string   `json:"airlineName"`
	DepartureDate   string   `json:"departureDate"` // YYYY-MM-DD
	ReturnDate      string   `json:"returnDate,omitempty"`
	TripType        string   `json:"tripType"`
	CabinClass      string   `json:"cabinClass"`
	Price           int      `json:"price"`
	Season          string   `json:"season"`
	FlightNumber    string   `json:"flightNumber"`
	DepartureTime   string   `json:"departureTime,omitempty"`
	ArrivalTime     string   `json:"arrivalTime,omitempty"`
	DurationMinutes int      `json:"durationMinutes,omitempty"`
	Airplane        string   `json:"airplane,omitempty"`
	CarbonKg        *float64 `json:"carbonEmissionsKg,omitempty"`
	Legroom         string   `json:"legroom,omitempty"`
	OftenDelayed    bool     `json:"oftenDelayed"`
}

// Result is the full analysis payload. PricePrediction and PriceTrend are
// omitted when the forecaster has no usable model.
type Result struct {
	RecommendedPeriod RecommendedPeriod     `json:"recommendedPeriod"`
	Seasons           []SeasonSummary       `json:"seasons"`
	PriceComparison   PriceComparison       `json:"priceComparison"`
	PriceChartData    []ChartEntry          `json:"priceChartData"`
	PricePrediction   *forecast.Prediction  `json:"pricePrediction,omitempty"`
	PriceTrend        *forecast.Trend       `json:"priceTrend,omitempty"`
	PriceGraphData    []forecast.GraphPoint `json:"priceGraphData,omitempty"`
	FlightPrices      []FlightPriceView     `json:"flightPrices"`
}
