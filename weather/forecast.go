package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/siriwat/flight-season-api/pkg/apperr"
)

// ForecastClient pulls the short-range forecast. The provider returns
// three-hour slots covering at most about five days; Fetch aggregates them
// into daily values.
type ForecastClient struct {
	baseURL string
	apiKey  string
	client  httpClient
}

// NewForecastClient creates a client for the forecast API.
func NewForecastClient(baseURL, apiKey string) *ForecastClient {
	return &ForecastClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  newClient(),
	}
}

// Available reports whether the client has credentials to call upstream.
func (c *ForecastClient) Available() bool {
	return c.apiKey != ""
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			TempMax  float64 `json:"temp_max"`
			TempMin  float64 `json:"temp_min"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Rain struct {
			ThreeHour float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}

// Fetch returns the forecast days for the given coordinates, sorted by date.
func (c *ForecastClient) Fetch(ctx context.Context, coords Coordinates) ([]Day, error) {
	if !c.Available() {
		return nil, apperr.Upstream(nil, "forecast API key not configured")
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.4f", coords.Latitude))
	q.Set("lon", fmt.Sprintf("%.4f", coords.Longitude))
	q.Set("cnt", "40")
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperr.Upstream(err, "build forecast request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream(err, "forecast request %.4f,%.4f", coords.Latitude, coords.Longitude)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Upstream(fmt.Errorf("status %d: %s", resp.StatusCode, body), "forecast request failed")
	}

	var parsed forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Upstream(err, "decode forecast response")
	}

	type bucket struct {
		tempMax     float64
		tempMin     float64
		rain        float64
		humiditySum float64
		slots       int
	}
	buckets := map[string]*bucket{}
	for _, slot := range parsed.List {
		date := time.Unix(slot.Dt, 0).UTC().Format("2006-01-02")
		b, ok := buckets[date]
		if !ok {
			b = &bucket{tempMax: slot.Main.TempMax, tempMin: slot.Main.TempMin}
			buckets[date] = b
		}
		if slot.Main.TempMax > b.tempMax {
			b.tempMax = slot.Main.TempMax
		}
		if slot.Main.TempMin < b.tempMin {
			b.tempMin = slot.Main.TempMin
		}
		b.rain += slot.Rain.ThreeHour
		b.humiditySum += slot.Main.Humidity
		b.slots++
	}

	days := make([]Day, 0, len(buckets))
	for dateStr, b := range buckets {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		day := Day{
			Date:            date,
			TempMax:         b.tempMax,
			TempMin:         b.tempMin,
			PrecipitationMM: b.rain,
		}
		if b.slots > 0 {
			day.Humidity = b.humiditySum / float64(b.slots)
			day.HasHumidity = true
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}
