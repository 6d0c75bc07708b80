package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/pkg/apperr"
	"github.com/siriwat/flight-season-api/pkg/calendarutil"
	"github.com/siriwat/flight-season-api/pkg/logger"
)

const (
	trainLookbackDays  = 180
	trainLookaheadDays = 60
	minTrainingRows    = 5
	cvFolds            = 5

	// DefaultGraphDays is the default length of the predicted curve.
	DefaultGraphDays = 350

	actualWindowDays = 30
)

// PriceReader is the slice of storage the forecaster reads through.
type PriceReader interface {
	GetFlightPrices(ctx context.Context, filter db.FlightPriceFilter) ([]db.FlightPrice, error)
}

// Prediction is a single-date price prediction with confidence bands.
type Prediction struct {
	PredictedPrice float64 `json:"predictedPrice"`
	Confidence     string  `json:"confidence"` // high, medium, low
	RSquared       float64 `json:"rSquared"`
	MinPrice       float64 `json:"minPrice"`
	MaxPrice       float64 `json:"maxPrice"`
}

// Trend summarizes the expected 30-day price movement.
type Trend struct {
	Trend           string  `json:"trend"` // increasing, decreasing, stable
	ChangePercent   float64 `json:"changePercent"`
	CurrentAvgPrice float64 `json:"currentAvgPrice"`
	FutureAvgPrice  float64 `json:"futureAvgPrice"`
}

// GraphPoint is one day of the mixed actual-plus-predicted price curve.
type GraphPoint struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Low      float64 `json:"low"`
	Typical  float64 `json:"typical"`
	High     float64 `json:"high"`
	IsActual bool    `json:"isActual"`
}

// model is one trained (route, trip-type) entry of the cache. insufficient
// means the ensemble was fit on fewer rows than the cross-validation floor:
// good enough for the graph curve, too thin for a single-date prediction.
type model struct {
	gbdt         *GBDT
	avgPrice     float64
	rmse         float64
	mae          float64
	rSquared     float64
	unavailable  bool
	insufficient bool
	trainedAt    time.Time
}

// Engine lazily trains and caches one model per (route, trip-type). One
// training is in flight per engine instance; re-entry while a key is
// training is a no-op that reports the model unavailable.
type Engine struct {
	store PriceReader
	log   *logger.Logger
	now   func() time.Time

	mu       sync.Mutex
	models   map[string]*model
	training map[string]bool
}

// NewEngine creates a forecasting engine.
func NewEngine(store PriceReader, log *logger.Logger) *Engine {
	return &Engine{
		store:    store,
		log:      log,
		now:      time.Now,
		models:   map[string]*model{},
		training: map[string]bool{},
	}
}

func modelKey(origins []string, destination string, tripType db.TripType) string {
	return fmt.Sprintf("%s-%s-%s", strings.Join(origins, "+"), destination, tripType)
}

// getModel returns the cached model for the key, training it on first use.
func (e *Engine) getModel(ctx context.Context, origins []string, destination string, tripType db.TripType) (*model, error) {
	key := modelKey(origins, destination, tripType)

	e.mu.Lock()
	if m, ok := e.models[key]; ok {
		e.mu.Unlock()
		if m.unavailable {
			return nil, apperr.New(apperr.KindModelUnavailable, "no usable training data for %s", key)
		}
		return m, nil
	}
	if e.training[key] {
		e.mu.Unlock()
		return nil, apperr.New(apperr.KindModelUnavailable, "model %s is training", key)
	}
	e.training[key] = true
	e.mu.Unlock()

	m := e.train(ctx, origins, destination, tripType)

	e.mu.Lock()
	e.models[key] = m
	delete(e.training, key)
	e.mu.Unlock()

	if m.unavailable {
		return nil, apperr.New(apperr.KindModelUnavailable, "no usable training data for %s", key)
	}
	return m, nil
}

// train loads the training window and fits the ensemble with sequential
// 5-fold cross-validation, keeping the fold with the lowest test RMSE.
func (e *Engine) train(ctx context.Context, origins []string, destination string, tripType db.TripType) *model {
	today := e.now().UTC()
	rows, err := e.store.GetFlightPrices(ctx, db.FlightPriceFilter{
		Origins:     origins,
		Destination: destination,
		StartDate:   today.AddDate(0, 0, -trainLookbackDays),
		EndDate:     today.AddDate(0, 0, trainLookaheadDays),
		TripType:    tripType,
		CabinClass:  db.CabinEconomy,
	})
	if err != nil {
		e.log.Error(err, "forecast training query failed", "destination", destination)
		return &model{unavailable: true, trainedAt: today}
	}
	if len(rows) == 0 {
		return &model{unavailable: true, trainedAt: today}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].DepartureDate.Before(rows[j].DepartureDate) })

	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		X[i] = Features(r.DepartureDate, today)
		y[i] = r.Price
	}

	m := &model{avgPrice: mean(y), trainedAt: today}

	if len(rows) < minTrainingRows {
		gbdt, err := TrainGBDT(X, y, defaultRounds, defaultDepth, defaultShrinkage)
		if err != nil {
			return &model{unavailable: true, trainedAt: today}
		}
		m.gbdt = gbdt
		m.insufficient = true
		m.rSquared = rSquared(gbdt, X, y)
		return m
	}

	var best *GBDT
	bestRMSE := math.Inf(1)
	var rmseSum, maeSum float64
	folds := 0

	foldSize := len(rows) / cvFolds
	if foldSize == 0 {
		foldSize = 1
	}
	for f := 0; f < cvFolds; f++ {
		testStart := f * foldSize
		testEnd := testStart + foldSize
		if f == cvFolds-1 {
			testEnd = len(rows)
		}
		if testStart >= len(rows) || testStart >= testEnd {
			break
		}

		trainX, trainY := withoutRange(X, y, testStart, testEnd)
		if len(trainX) == 0 {
			continue
		}
		gbdt, err := TrainGBDT(trainX, trainY, defaultRounds, defaultDepth, defaultShrinkage)
		if err != nil {
			continue
		}

		var sse, sae float64
		n := 0
		for i := testStart; i < testEnd; i++ {
			diff := gbdt.Predict(X[i]) - y[i]
			sse += diff * diff
			sae += math.Abs(diff)
			n++
		}
		if n == 0 {
			continue
		}
		foldRMSE := math.Sqrt(sse / float64(n))
		rmseSum += foldRMSE
		maeSum += sae / float64(n)
		folds++

		if foldRMSE < bestRMSE {
			bestRMSE = foldRMSE
			best = gbdt
		}
	}

	if best == nil {
		gbdt, err := TrainGBDT(X, y, defaultRounds, defaultDepth, defaultShrinkage)
		if err != nil {
			return &model{unavailable: true, trainedAt: today}
		}
		best = gbdt
	}

	m.gbdt = best
	if folds > 0 {
		m.rmse = rmseSum / float64(folds)
		m.mae = maeSum / float64(folds)
	}
	m.rSquared = rSquared(best, X, y)
	return m
}

func withoutRange(X [][]float64, y []float64, start, end int) ([][]float64, []float64) {
	outX := make([][]float64, 0, len(X)-(end-start))
	outY := make([]float64, 0, len(y)-(end-start))
	for i := range X {
		if i >= start && i < end {
			continue
		}
		outX = append(outX, X[i])
		outY = append(outY, y[i])
	}
	return outX, outY
}

func rSquared(m *GBDT, X [][]float64, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	yMean := mean(y)
	var ssRes, ssTot float64
	for i := range y {
		d := y[i] - m.Predict(X[i])
		ssRes += d * d
		t := y[i] - yMean
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0
	}
	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		return 0
	}
	return r2
}

// Predict produces a single-date prediction. Confidence narrows with
// proximity: high within 30 days, medium within 60, low beyond.
func (e *Engine) Predict(ctx context.Context, origins []string, destination string, tripType db.TripType, date time.Time) (*Prediction, error) {
	m, err := e.getModel(ctx, origins, destination, tripType)
	if err != nil {
		return nil, err
	}
	if m.insufficient {
		return nil, apperr.New(apperr.KindModelUnavailable, "too few rows for %s-%s prediction", destination, tripType)
	}

	today := e.now().UTC()
	x := Features(date, today)
	raw := m.gbdt.Predict(x)
	if raw < 0 {
		raw = 0
	}
	price := math.Round(raw) * HolidayMultiplier(date)

	daysOut := int(math.Floor(date.Sub(today).Hours() / 24))
	confidence := "low"
	band := 0.25
	switch {
	case daysOut <= 30:
		confidence = "high"
		band = 0.15
	case daysOut <= 60:
		confidence = "medium"
		band = 0.20
	}

	return &Prediction{
		PredictedPrice: price,
		Confidence:     confidence,
		RSquared:       m.rSquared,
		MinPrice:       math.Round(price * (1 - band)),
		MaxPrice:       math.Round(price * (1 + band)),
	}, nil
}

// Trend compares the trailing 30-day average of stored prices with the
// predicted average over the next 30 days.
func (e *Engine) Trend(ctx context.Context, origins []string, destination string, tripType db.TripType) (*Trend, error) {
	m, err := e.getModel(ctx, origins, destination, tripType)
	if err != nil {
		return nil, err
	}
	if m.insufficient {
		return nil, apperr.New(apperr.KindModelUnavailable, "too few rows for %s-%s trend", destination, tripType)
	}

	today := e.now().UTC()
	rows, err := e.store.GetFlightPrices(ctx, db.FlightPriceFilter{
		Origins:     origins,
		Destination: destination,
		StartDate:   today.AddDate(0, 0, -actualWindowDays),
		EndDate:     today,
		TripType:    tripType,
		CabinClass:  db.CabinEconomy,
	})
	if err != nil {
		return nil, err
	}

	currentAvg := m.avgPrice
	if len(rows) > 0 {
		sum := 0.0
		for _, r := range rows {
			sum += r.Price
		}
		currentAvg = sum / float64(len(rows))
	}

	futureSum := 0.0
	for d := 1; d <= 30; d++ {
		date := today.AddDate(0, 0, d)
		raw := m.gbdt.Predict(Features(date, today))
		if raw < 0 {
			raw = 0
		}
		futureSum += math.Round(raw) * HolidayMultiplier(date)
	}
	futureAvg := futureSum / 30

	change := 0.0
	if currentAvg > 0 {
		change = 100 * (futureAvg - currentAvg) / currentAvg
	}
	trend := "stable"
	if change > 5 {
		trend = "increasing"
	} else if change < -5 {
		trend = "decreasing"
	}

	return &Trend{
		Trend:           trend,
		ChangePercent:   math.Round(change*100) / 100,
		CurrentAvgPrice: math.Round(currentAvg),
		FutureAvgPrice:  math.Round(futureAvg),
	}, nil
}

// Graph emits the mixed curve: actual points for [today-30, today+30] from
// stored prices, then predicted points from tomorrow for the requested
// number of days, skipping dates already covered by actuals. When the model
// is unavailable, each predicted day falls back to the historical average
// scaled by holiday, weekend and deterministic jitter factors.
func (e *Engine) Graph(ctx context.Context, origins []string, destination string, tripType db.TripType, days int) ([]GraphPoint, error) {
	if days <= 0 {
		days = DefaultGraphDays
	}
	today := e.now().UTC()

	rows, err := e.store.GetFlightPrices(ctx, db.FlightPriceFilter{
		Origins:     origins,
		Destination: destination,
		StartDate:   today.AddDate(0, 0, -actualWindowDays),
		EndDate:     today.AddDate(0, 0, actualWindowDays),
		TripType:    tripType,
		CabinClass:  db.CabinEconomy,
	})
	if err != nil {
		return nil, err
	}

	cheapestByDate := map[string]float64{}
	histSum, histN := 0.0, 0
	for _, r := range rows {
		date := r.DepartureDate.Format("2006-01-02")
		if cur, ok := cheapestByDate[date]; !ok || r.Price < cur {
			cheapestByDate[date] = r.Price
		}
		histSum += r.Price
		histN++
	}
	histAvg := 0.0
	if histN > 0 {
		histAvg = histSum / float64(histN)
	}

	var points []GraphPoint
	for date, price := range cheapestByDate {
		points = append(points, GraphPoint{
			Date:     date,
			Low:      math.Round(price * 0.85),
			Typical:  math.Round(price),
			High:     math.Round(price * 1.30),
			IsActual: true,
		})
	}

	m, modelErr := e.getModel(ctx, origins, destination, tripType)

	for d := 1; d <= days; d++ {
		date := today.AddDate(0, 0, d)
		dateStr := date.Format("2006-01-02")
		if _, ok := cheapestByDate[dateStr]; ok {
			continue
		}

		var typical float64
		if modelErr == nil {
			raw := m.gbdt.Predict(Features(date, today))
			if raw < 0 {
				raw = 0
			}
			typical = math.Round(raw) * HolidayMultiplier(date)
		} else {
			typical = fallbackPrice(histAvg, date)
		}

		points = append(points, GraphPoint{
			Date:     dateStr,
			Low:      math.Round(typical * 0.85),
			Typical:  math.Round(typical),
			High:     math.Round(typical * 1.30),
			IsActual: false,
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

// fallbackPrice estimates a day's price without a model: historical average
// scaled by the holiday multiplier, a weekend factor and deterministic
// jitter in [0.92, 1.08].
func fallbackPrice(histAvg float64, date time.Time) float64 {
	price := histAvg * HolidayMultiplier(date)
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		price *= 1.05
	}
	jitter := 0.92 + 0.16*calendarutil.SeededRand(date.Format("2006-01-02"))
	price *= jitter
	if price < 0 {
		price = 0
	}
	return math.Round(price)
}

// Diagnostics exposes the cross-validation metrics of a trained model.
func (e *Engine) Diagnostics(origins []string, destination string, tripType db.TripType) (rmse, mae float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, found := e.models[modelKey(origins, destination, tripType)]
	if !found || m.unavailable {
		return 0, 0, false
	}
	return m.rmse, m.mae, true
}
