// Package analysis is the per-query engine: it resolves locations, expands
// the date window, classifies months into seasons and assembles the
// recommendation, comparison, chart and forecast payload.
package analysis

import (
	"context"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/forecast"
	"github.com/siriwat/flight-season-api/pkg/apperr"
	"github.com/siriwat/flight-season-api/pkg/calendarutil"
	"github.com/siriwat/flight-season-api/pkg/logger"
	"github.com/siriwat/flight-season-api/pkg/pricing"
)

// Store is the slice of storage the orchestrator reads through.
type Store interface {
	ScoreStore
	GetOrCreateRoute(ctx context.Context, origin, destination string) (*db.Route, error)
	GetAirlinesByCodes(ctx context.Context, codes []string) ([]db.Airline, error)
	GetFlightPrices(ctx context.Context, filter db.FlightPriceFilter) ([]db.FlightPrice, error)
	CheapestFlightOnDate(ctx context.Context, origins []string, destination string, date time.Time, tripType db.TripType, cabin db.CabinClass) (*db.FlightPrice, error)
}

// Forecaster supplies the optional forward-looking fields. All three calls
// may fail without failing the analysis.
type Forecaster interface {
	Predict(ctx context.Context, origins []string, destination string, tripType db.TripType, date time.Time) (*forecast.Prediction, error)
	Trend(ctx context.Context, origins []string, destination string, tripType db.TripType) (*forecast.Trend, error)
	Graph(ctx context.Context, origins []string, destination string, tripType db.TripType, days int) ([]forecast.GraphPoint, error)
}

// Analyzer is the per-query entry point. Stateless per request; safe for
// concurrent use.
type Analyzer struct {
	store      Store
	agg        *Aggregator
	forecaster Forecaster
	log        *logger.Logger
	now        func() time.Time
}

// NewAnalyzer creates the orchestrator. forecaster may be nil, in which case
// the forecast fields are always absent.
func NewAnalyzer(store Store, agg *Aggregator, forecaster Forecaster, log *logger.Logger) *Analyzer {
	return &Analyzer{store: store, agg: agg, forecaster: forecaster, log: log, now: time.Now}
}

// AnalyzeFlightPrices runs the full analysis for one request. It surfaces
// input errors, permanent storage errors and timeouts; everything else
// degrades to fallback scores or absent optional fields.
func (a *Analyzer) AnalyzeFlightPrices(ctx context.Context, req Request) (*Result, error) {
	origins, err := ResolveLocation(req.Origin)
	if err != nil {
		return nil, err
	}
	destCodes, err := ResolveLocation(req.Destination)
	if err != nil {
		return nil, err
	}
	dest := destCodes[0]

	if req.TripType == "" {
		req.TripType = db.TripRoundTrip
	}
	if req.Cabin == "" {
		req.Cabin = db.CabinEconomy
	}
	lang := req.Lang
	if lang == language.Und {
		lang = language.Thai
	}

	route, err := a.store.GetOrCreateRoute(ctx, origins[0], dest)
	if err != nil {
		return nil, err
	}

	airlineIDs, err := a.resolveAirlines(ctx, req.SelectedAirlines)
	if err != nil {
		return nil, err
	}

	window := ExpandWindow(req.StartDate, req.EndDate, a.now())
	rows, err := a.store.GetFlightPrices(ctx, db.FlightPriceFilter{
		Origins:     origins,
		Destination: dest,
		StartDate:   window.Start,
		EndDate:     window.End,
		TripType:    req.TripType,
		CabinClass:  req.Cabin,
		AirlineIDs:  airlineIDs,
	})
	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, apperr.Timeout(ctxErr, "analysis deadline exceeded")
	}

	province, hasProvince := ProvinceForAirport(dest)
	routeKey := strings.Join(origins, "+") + "-" + dest
	scores := a.agg.Materialize(ctx, route.ID, routeKey, province, hasProvince, rows)
	cls := Classify(rows, scores)

	rules := pricing.NewRules(req.Passengers, req.TripType)

	bestBucket := cheapestBucket(cls)
	recStart := a.recommendedStart(bestBucket, req.StartDate)
	avgDuration := int(math.Round(req.DurationRange.Avg()))
	recEnd := recStart.AddDate(0, 0, avgDuration)

	recSeason := db.SeasonNormal
	if bestBucket != nil {
		recSeason = bestBucket.Season
	}
	if req.StartDate != nil {
		if s, ok := cls.SeasonByMonth[db.Period(*req.StartDate)]; ok {
			recSeason = s
		}
	}

	recPrice := 0
	recAirline := ""
	if bestBucket != nil && bestBucket.BestDeal != nil {
		recPrice = rules.Display(bestBucket.BestDeal.Price)
		recAirline = bestBucket.BestDeal.AirlineName
	}

	anchor := ResolveAnchor(req.StartDate, recStart)
	comparison, anchorPrice := a.buildComparison(ctx, origins, dest, anchor, req.TripType, req.Cabin, rules)
	chart := buildChart(anchor, rows, cls, rules)
	savings := computeSavings(req.StartDate != nil, anchorPrice, recPrice, cls, rules)

	result := &Result{
		RecommendedPeriod: RecommendedPeriod{
			StartDate:  calendarutil.FormatLocalDate(recStart, lang),
			EndDate:    calendarutil.FormatLocalDate(recEnd, lang),
			ReturnDate: recEnd.Format("2006-01-02"),
			Price:      recPrice,
			Airline:    recAirline,
			Season:     recSeason,
			Savings:    savings,
		},
		Seasons:         buildSeasons(cls, rules, lang),
		PriceComparison: comparison,
		PriceChartData:  chart,
		FlightPrices:    buildViews(rows, rules),
	}

	a.attachForecast(ctx, result, origins, dest, req.TripType, anchor)
	return result, nil
}

// resolveAirlines narrows user-supplied airline codes to storage ids.
func (a *Analyzer) resolveAirlines(ctx context.Context, codes []string) ([]int, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	airlines, err := a.store.GetAirlinesByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(airlines))
	for _, al := range airlines {
		ids = append(ids, al.ID)
	}
	return ids, nil
}

// cheapestBucket returns the season bucket holding the cheapest best deal,
// or nil when no bucket has one.
func cheapestBucket(cls Classification) *SeasonBucket {
	var best *SeasonBucket
	for i := range cls.Buckets {
		b := &cls.Buckets[i]
		if b.BestDeal == nil {
			continue
		}
		if best == nil || b.BestDeal.Price < best.BestDeal.Price {
			best = b
		}
	}
	return best
}

// recommendedStart resolves the recommendation's literal departure date from
// the best-deal row, falling back to the user's start date and finally to
// today.
func (a *Analyzer) recommendedStart(bucket *SeasonBucket, userStart *time.Time) time.Time {
	if bucket != nil && bucket.BestDeal != nil && !bucket.BestDeal.DepartureDate.IsZero() {
		return midnightUTC(bucket.BestDeal.DepartureDate)
	}
	if userStart != nil {
		return midnightUTC(*userStart)
	}
	return midnightUTC(a.now())
}

// buildComparison looks up the cheapest fare on the anchor date and one week
// either side. With an anchor price the neighbors report their delta against
// it; without one but with both neighbors priced, their mean is the
// reference. Returns the displayed anchor price for the savings computation.
func (a *Analyzer) buildComparison(ctx context.Context, origins []string, dest string, anchor time.Time, tripType db.TripType, cabin db.CabinClass, rules pricing.Rules) (PriceComparison, int) {
	lookup := func(date time.Time) (int, float64, string) {
		fp, err := a.store.CheapestFlightOnDate(ctx, origins, dest, date, tripType, cabin)
		if err != nil {
			a.log.Warn("comparison lookup failed", "date", date.Format("2006-01-02"), "error", err)
			return 0, 0, ""
		}
		if fp == nil {
			return 0, 0, ""
		}
		return rules.Display(fp.Price), rules.DisplayFloat(fp.Price), fp.AirlineName
	}

	basePrice, baseExact, baseAirline := lookup(anchor)
	beforeDate := anchor.AddDate(0, 0, -7)
	afterDate := anchor.AddDate(0, 0, 7)
	beforePrice, beforeExact, _ := lookup(beforeDate)
	afterPrice, afterExact, _ := lookup(afterDate)

	reference := basePrice
	refExact := baseExact
	if reference == 0 && beforePrice > 0 && afterPrice > 0 {
		reference = (beforePrice + afterPrice) / 2
		refExact = (beforeExact + afterExact) / 2
	}

	// Differences are in displayed units; percentages come from the
	// unrounded totals.
	point := func(date time.Time, price int, exact float64) ComparisonPoint {
		p := ComparisonPoint{Date: date.Format("2006-01-02"), Price: price}
		if price > 0 && reference > 0 {
			p.Difference = price - reference
			p.Percentage = math.Round(10000*(exact-refExact)/refExact) / 100
		}
		return p
	}

	cmp := PriceComparison{
		IfGoBefore: point(beforeDate, beforePrice, beforeExact),
		IfGoAfter:  point(afterDate, afterPrice, afterExact),
	}
	if basePrice > 0 {
		cmp.BasePrice = &basePrice
		cmp.BaseAirline = &baseAirline
	}
	return cmp, basePrice
}

// buildChart emits one entry per day of the anchor's calendar month, each
// carrying the cheapest fare of that date or the price-0 sentinel. The
// anchor day is always present even without data.
func buildChart(anchor time.Time, rows []db.FlightPrice, cls Classification, rules pricing.Rules) []ChartEntry {
	cheapest := map[string]*db.FlightPrice{}
	for i := range rows {
		key := rows[i].DepartureDate.Format("2006-01-02")
		if cur, ok := cheapest[key]; !ok || rows[i].Price < cur.Price {
			cheapest[key] = &rows[i]
		}
	}

	season := db.SeasonNormal
	if s, ok := cls.SeasonByMonth[db.Period(anchor)]; ok {
		season = s
	}

	first := startOfMonth(anchor)
	days := endOfMonth(anchor).Day()
	entries := make([]ChartEntry, 0, days)
	for d := 0; d < days; d++ {
		date := first.AddDate(0, 0, d)
		entry := ChartEntry{StartDate: date.Format("2006-01-02"), Season: season}
		if fp, ok := cheapest[entry.StartDate]; ok {
			entry.Price = rules.Display(fp.Price)
			entry.HasData = true
			if fp.ReturnDate.Valid {
				entry.ReturnDate = fp.ReturnDate.Time.Format("2006-01-02")
			}
			if fp.DurationMinutes.Valid {
				dur := int(fp.DurationMinutes.Int32)
				entry.Duration = &dur
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// computeSavings applies the two savings rules: against the anchor price
// when the user picked a date, against the high-season best deal otherwise.
// Zero when either side is missing.
func computeSavings(userPicked bool, anchorPrice, recPrice int, cls Classification, rules pricing.Rules) int {
	if recPrice == 0 {
		return 0
	}
	reference := 0
	if userPicked {
		reference = anchorPrice
	} else {
		for i := range cls.Buckets {
			b := &cls.Buckets[i]
			if b.Season == db.SeasonHigh && b.BestDeal != nil {
				reference = rules.Display(b.BestDeal.Price)
			}
		}
	}
	if reference == 0 {
		return 0
	}
	savings := reference - recPrice
	if savings < 0 {
		return 0
	}
	return savings
}

var seasonDescriptions = map[db.Season][2]string{
	db.SeasonLow:    {"ช่วงราคาถูก เหมาะสำหรับการประหยัด", "Cheapest months to fly"},
	db.SeasonNormal: {"ช่วงราคาปกติ", "Average prices"},
	db.SeasonHigh:   {"ช่วงราคาแพง ควรจองล่วงหน้า", "Peak months, book early"},
}

// buildSeasons converts the classifier buckets into result entries with
// localized month names and priced best deals.
func buildSeasons(cls Classification, rules pricing.Rules, lang language.Tag) []SeasonSummary {
	_, langIdx, _ := language.NewMatcher([]language.Tag{language.Thai, language.English}).Match(lang)

	out := make([]SeasonSummary, 0, len(cls.Buckets))
	for i := range cls.Buckets {
		b := &cls.Buckets[i]
		s := SeasonSummary{
			Type:        b.Season,
			PriceRange:  PriceRange{Min: b.MinPrice, Max: b.MaxPrice},
			Description: seasonDescriptions[b.Season][langIdx],
		}
		for _, period := range b.Months {
			if t, err := time.Parse("2006-01", period); err == nil {
				s.Months = append(s.Months, calendarutil.MonthName(int(t.Month()), lang))
			}
		}
		if b.BestDeal != nil {
			s.BestDeal = &BestDeal{
				Dates:   calendarutil.FormatLocalDate(b.BestDeal.DepartureDate, lang),
				Price:   rules.Display(b.BestDeal.Price),
				Airline: b.BestDeal.AirlineName,
			}
		}
		out = append(out, s)
	}
	return out
}

// buildViews converts the loaded catalog rows into the response shape with
// pricing applied and carbon converted to kilograms.
func buildViews(rows []db.FlightPrice, rules pricing.Rules) []FlightPriceView {
	views := make([]FlightPriceView, 0, len(rows))
	for _, fp := range rows {
		v := FlightPriceView{
			AirlineCode:   fp.AirlineCode,
			AirlineName:   fp.AirlineName,
			DepartureDate: fp.DepartureDate.Format("2006-01-02"),
			TripType:      string(fp.TripType),
			CabinClass:    string(fp.CabinClass),
			Price:         rules.Display(fp.Price),
			Season:        string(fp.Season),
			FlightNumber:  fp.FlightNumber,
			OftenDelayed:  fp.OftenDelayed,
		}
		if fp.ReturnDate.Valid {
			v.ReturnDate = fp.ReturnDate.Time.Format("2006-01-02")
		}
		if fp.DepartureTime.Valid {
			v.DepartureTime = fp.DepartureTime.String
		}
		if fp.ArrivalTime.Valid {
			v.ArrivalTime = fp.ArrivalTime.String
		}
		if fp.DurationMinutes.Valid {
			v.DurationMinutes = int(fp.DurationMinutes.Int32)
		}
		if fp.Airplane.Valid {
			v.Airplane = fp.Airplane.String
		}
		if fp.Legroom.Valid {
			v.Legroom = fp.Legroom.String
		}
		if fp.CarbonGrams.Valid {
			kg := math.Round(float64(fp.CarbonGrams.Int64)/100) / 10
			v.CarbonKg = &kg
		}
		views = append(views, v)
	}
	return views
}

// attachForecast fills the optional forecast fields. Every failure is
// swallowed; the analysis never fails because the model does.
func (a *Analyzer) attachForecast(ctx context.Context, result *Result, origins []string, dest string, tripType db.TripType, anchor time.Time) {
	if a.forecaster == nil {
		return
	}

	if graph, err := a.forecaster.Graph(ctx, origins, dest, tripType, forecast.DefaultGraphDays); err == nil {
		result.PriceGraphData = graph
	} else {
		a.log.Debug("price graph unavailable", "destination", dest, "error", err)
	}

	if pred, err := a.forecaster.Predict(ctx, origins, dest, tripType, anchor); err == nil {
		result.PricePrediction = pred
	} else {
		a.log.Debug("price prediction unavailable", "destination", dest, "error", err)
	}

	if trend, err := a.forecaster.Trend(ctx, origins, dest, tripType); err == nil {
		result.PriceTrend = trend
	} else {
		a.log.Debug("price trend unavailable", "destination", dest, "error", err)
	}
}
