package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/siriwat/flight-season-api/analysis"
	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/pkg/apperr"
	"github.com/siriwat/flight-season-api/pkg/cache"
	"github.com/siriwat/flight-season-api/pkg/logger"
	"github.com/siriwat/flight-season-api/pkg/pricing"
)

// Analyzer is the analysis entry point the handlers call.
type Analyzer interface {
	AnalyzeFlightPrices(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// AnalyzeRequest is the JSON body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Origin      string   `json:"origin" binding:"required"`
	Destination string   `json:"destination" binding:"required"`
	TripType    string   `json:"trip_type" binding:"omitempty,oneof=one-way one_way round-trip round_trip"`
	Cabin       string   `json:"cabin" binding:"omitempty,oneof=economy business first"`
	DurationMin int      `json:"duration_min" binding:"min=0"`
	DurationMax int      `json:"duration_max" binding:"min=0"`
	Airlines    []string `json:"airlines"`
	StartDate   string   `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate     string   `json:"end_date,omitempty"`
	Adults      int      `json:"adults" binding:"min=0"`
	Children    int      `json:"children" binding:"min=0"`
	Infants     int      `json:"infants" binding:"min=0"`
	Currency    string   `json:"currency" binding:"omitempty,len=3"`
	Lang        string   `json:"lang" binding:"omitempty,oneof=th en"`
}

// AnalyzeFlightPrices handles POST /api/v1/analyze. Results are cached per
// normalized request.
func AnalyzeFlightPrices(analyzer Analyzer, cacheManager *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body AnalyzeRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		if body.Currency != "" {
			if _, err := currency.ParseISO(body.Currency); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid currency code: " + body.Currency})
				return
			}
		}

		req, err := toAnalysisRequest(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		key := cacheKey(body)
		if cacheManager != nil {
			var cached analysis.Result
			if err := cacheManager.GetJSON(c.Request.Context(), key, &cached); err == nil {
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		result, err := analyzer.AnalyzeFlightPrices(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		if cacheManager != nil {
			if err := cacheManager.SetJSON(c.Request.Context(), key, result, cache.AnalysisTTL); err != nil {
				logger.Warn("analysis cache write failed", "key", key, "error", err)
			}
		}
		c.JSON(http.StatusOK, result)
	}
}

// toAnalysisRequest validates and converts the wire request.
func toAnalysisRequest(body AnalyzeRequest) (analysis.Request, error) {
	tripType, err := db.ParseTripType(body.TripType)
	if err != nil {
		return analysis.Request{}, err
	}
	cabin, err := db.ParseCabinClass(body.Cabin)
	if err != nil {
		return analysis.Request{}, err
	}

	req := analysis.Request{
		Origin:           body.Origin,
		Destination:      body.Destination,
		TripType:         tripType,
		Cabin:            cabin,
		DurationRange:    analysis.DurationRange{Min: body.DurationMin, Max: body.DurationMax},
		SelectedAirlines: body.Airlines,
		Passengers: pricing.Passengers{
			Adults:   body.Adults,
			Children: body.Children,
			Infants:  body.Infants,
		},
		Lang: language.Thai,
	}
	if body.Lang == "en" {
		req.Lang = language.English
	}

	if body.StartDate != "" {
		t, err := time.Parse("2006-01-02", body.StartDate)
		if err != nil {
			return analysis.Request{}, apperr.Input("malformed start_date %q", body.StartDate)
		}
		req.StartDate = &t
	}
	if body.EndDate != "" {
		t, err := time.Parse("2006-01-02", body.EndDate)
		if err != nil {
			return analysis.Request{}, apperr.Input("malformed end_date %q", body.EndDate)
		}
		req.EndDate = &t
	}
	return req, nil
}

func cacheKey(body AnalyzeRequest) string {
	return cache.AnalysisKey(
		body.Origin, body.Destination, body.TripType, body.Cabin,
		body.StartDate, body.EndDate,
		body.Adults, body.Children, body.Infants, body.Airlines,
	)
}

// respondError maps the error taxonomy onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindInput:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.KindTimeout:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Analysis timed out"})
	default:
		logger.Error(err, "analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed"})
	}
}

// GetAirports handles GET /api/v1/airports. The catalog changes only with
// deployments, so responses are cached for a day.
func GetAirports(cacheManager *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := cache.AirportsKey()
		if cacheManager != nil {
			var cached []analysis.Airport
			if err := cacheManager.GetJSON(c.Request.Context(), key, &cached); err == nil {
				c.JSON(http.StatusOK, gin.H{"airports": cached})
				return
			}
		}

		airports := analysis.Airports()
		if cacheManager != nil {
			if err := cacheManager.SetJSON(c.Request.Context(), key, airports, cache.AirportsTTL); err != nil {
				logger.Warn("airports cache write failed", "key", key, "error", err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"airports": airports})
	}
}
