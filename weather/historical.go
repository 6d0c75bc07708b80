package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/siriwat/flight-season-api/pkg/apperr"
)

// HistoricalClient pulls archived daily observations, one request per
// (province, calendar-month) chunk.
type HistoricalClient struct {
	baseURL string
	client  httpClient
}

// NewHistoricalClient creates a client for the archive API.
func NewHistoricalClient(baseURL string) *HistoricalClient {
	return &HistoricalClient{
		baseURL: baseURL,
		client:  newClient(),
	}
}

type archiveResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// FetchRange returns one Day per date in [start, end] for the given
// coordinates. The archive provides no humidity.
func (c *HistoricalClient) FetchRange(ctx context.Context, coords Coordinates, start, end time.Time) ([]Day, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", coords.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", coords.Longitude))
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	q.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum")
	q.Set("timezone", "Asia/Bangkok")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperr.Upstream(err, "build archive request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream(err, "archive request %.4f,%.4f %s", coords.Latitude, coords.Longitude, start.Format("2006-01"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Upstream(fmt.Errorf("status %d: %s", resp.StatusCode, body), "archive request failed")
	}

	var parsed archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Upstream(err, "decode archive response")
	}

	days := make([]Day, 0, len(parsed.Daily.Time))
	for i, ts := range parsed.Daily.Time {
		date, err := time.Parse("2006-01-02", ts)
		if err != nil {
			continue
		}
		day := Day{Date: date}
		if i < len(parsed.Daily.TemperatureMax) {
			day.TempMax = parsed.Daily.TemperatureMax[i]
		}
		if i < len(parsed.Daily.TemperatureMin) {
			day.TempMin = parsed.Daily.TemperatureMin[i]
		}
		if i < len(parsed.Daily.PrecipitationSum) {
			day.PrecipitationMM = parsed.Daily.PrecipitationSum[i]
		}
		days = append(days, day)
	}
	return days, nil
}
