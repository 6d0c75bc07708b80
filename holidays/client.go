// Package holidays is a client library for the Thai public-holiday API.
package holidays

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/pkg/apperr"
	"github.com/siriwat/flight-season-api/pkg/logger"
)

type httpClient interface {
	Do(req *retryablehttp.Request) (*http.Response, error)
}

// Client calls the upstream holiday calendar with an API key header.
type Client struct {
	baseURL string
	apiKey  string
	client  httpClient
}

// New creates a holiday API client.
func New(baseURL, apiKey string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
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

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  rc,
	}
}

// Available reports whether the client has credentials to call upstream.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

type upstreamHoliday struct {
	Date        string `json:"date"`
	Name        string `json:"name"`
	NameTH      string `json:"name_th"`
	HolidayType string `json:"holiday_type"`
}

type holidayResponse struct {
	Holidays []upstreamHoliday `json:"holidays"`
}

// mapCategory normalizes the upstream type vocabulary: "public" holidays
// are national, "financial" holidays are regional. Both participate in
// long-weekend detection downstream.
func mapCategory(holidayType string) string {
	switch strings.ToLower(strings.TrimSpace(holidayType)) {
	case "public":
		return "national"
	case "financial":
		return "regional"
	default:
		return "national"
	}
}

func (c *Client) fetch(ctx context.Context, query url.Values) ([]db.HolidayEntry, error) {
	if !c.Available() {
		return nil, apperr.Upstream(nil, "holiday API key not configured")
	}
	query.Set("holiday_type", "both")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, apperr.Upstream(err, "build holiday request")
	}
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream(err, "holiday request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Upstream(fmt.Errorf("status %d: %s", resp.StatusCode, body), "holiday request failed")
	}

	var parsed holidayResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Upstream(err, "decode holiday response")
	}

	entries := make([]db.HolidayEntry, 0, len(parsed.Holidays))
	for _, h := range parsed.Holidays {
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			continue
		}
		entries = append(entries, db.HolidayEntry{
			Date:     h.Date,
			Name:     h.Name,
			NameTH:   h.NameTH,
			Category: mapCategory(h.HolidayType),
		})
	}
	return entries, nil
}

// FetchYear returns the canonical holiday entries for a calendar year.
func (c *Client) FetchYear(ctx context.Context, year int) ([]db.HolidayEntry, error) {
	q := url.Values{}
	q.Set("year", fmt.Sprintf("%d", year))
	return c.fetch(ctx, q)
}

// FetchRange returns the entries within [start, end]. When the date-range
// endpoint fails, it falls back to year-by-year calls and filters locally.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time) ([]db.HolidayEntry, error) {
	q := url.Values{}
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))

	entries, err := c.fetch(ctx, q)
	if err == nil {
		return entries, nil
	}
	logger.Warn("holiday date-range request failed, falling back to year-by-year", "error", err)

	var all []db.HolidayEntry
	for year := start.Year(); year <= end.Year(); year++ {
		yearEntries, yearErr := c.FetchYear(ctx, year)
		if yearErr != nil {
			return nil, yearErr
		}
		for _, e := range yearEntries {
			d, parseErr := time.Parse("2006-01-02", e.Date)
			if parseErr != nil {
				continue
			}
			if d.Before(start) || d.After(end) {
				continue
			}
			all = append(all, e)
		}
	}
	return all, nil
}
