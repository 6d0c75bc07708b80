// Package weather is a client library for the upstream weather providers:
// the bulk historical archive API and the short-range forecast API.
package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type httpClient interface {
	Do(req *retryablehttp.Request) (*http.Response, error)
}

// retryPolicy retries 5xx and 429 responses; other 4xx responses are
// permanent for the item and surface immediately.
func retryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return false, ctx.Err()
			}
		}
		if resp != nil {
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return true, fmt.Errorf("retryable status code: %d", resp.StatusCode)
			}
			if resp.StatusCode >= 400 {
				return false, nil
			}
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
}

func newClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	client.CheckRetry = retryPolicy()
	client.RetryWaitMin = 500 * time.Millisecond
	client.HTTPClient.Timeout = 30 * time.Second
	return client
}

// Coordinates is a latitude/longitude pair for a province.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// provinceCoordinates maps the supported Thai provinces to the coordinates
// passed to both weather providers.
var provinceCoordinates = map[string]Coordinates{
	"Bangkok":             {13.7563, 100.5018},
	"Phuket":              {7.8804, 98.3923},
	"Chiang Mai":          {18.7883, 98.9853},
	"Chiang Rai":          {19.9105, 99.8406},
	"Krabi":               {8.0863, 98.9063},
	"Surat Thani":         {9.1382, 99.3215},
	"Songkhla":            {7.1756, 100.6142},
	"Udon Thani":          {17.4138, 102.7872},
	"Ubon Ratchathani":    {15.2448, 104.8473},
	"Nakhon Si Thammarat": {8.4304, 99.9631},
}

// LookupProvince returns the coordinates for a province, or false when the
// province is not supported.
func LookupProvince(name string) (Coordinates, bool) {
	c, ok := provinceCoordinates[name]
	return c, ok
}

// Day is one normalized daily observation returned by either provider.
type Day struct {
	Date            time.Time
	TempMax         float64
	TempMin         float64
	PrecipitationMM float64
	Humidity        float64
	HasHumidity     bool
}
