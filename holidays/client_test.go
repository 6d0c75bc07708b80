package holidays

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siriwat/flight-season-api/pkg/apperr"
)

func TestAvailable(t *testing.T) {
	t.Parallel()

	assert.True(t, New("http://unused", "key").Available())
	assert.False(t, New("http://unused", "").Available())
}

func TestFetchYear(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sekrit", r.Header.Get("apikey"))
		q := r.URL.Query()
		assert.Equal(t, "2026", q.Get("year"))
		assert.Equal(t, "both", q.Get("holiday_type"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"holidays": [
			{"date": "2026-04-13", "name": "Songkran Festival", "name_th": "วันสงกรานต์", "holiday_type": "public"},
			{"date": "2026-04-14", "name": "Bank Holiday", "holiday_type": "financial"},
			{"date": "2026-04-15", "name": "Songkran Festival", "holiday_type": "observance"},
			{"date": "April 16", "name": "Broken Row", "holiday_type": "public"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "sekrit")
	entries, err := c.FetchYear(context.Background(), 2026)
	require.NoError(t, err)

	// The malformed date is dropped; types map onto the category vocabulary.
	require.Len(t, entries, 3)
	assert.Equal(t, "national", entries[0].Category)
	assert.Equal(t, "วันสงกรานต์", entries[0].NameTH)
	assert.Equal(t, "regional", entries[1].Category)
	assert.Equal(t, "national", entries[2].Category)
}

func TestFetchYearWithoutKey(t *testing.T) {
	t.Parallel()

	c := New("http://unused", "")
	_, err := c.FetchYear(context.Background(), 2026)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestFetchYearClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unknown year", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "sekrit")
	_, err := c.FetchYear(context.Background(), 1800)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchRangeFallsBackToYears(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start_date") != "" {
			http.Error(w, "range endpoint disabled", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch q.Get("year") {
		case "2026":
			w.Write([]byte(`{"holidays": [
				{"date": "2026-01-01", "name": "New Year's Day", "holiday_type": "public"},
				{"date": "2026-12-31", "name": "New Year's Eve", "holiday_type": "public"}
			]}`))
		case "2027":
			w.Write([]byte(`{"holidays": [
				{"date": "2027-01-01", "name": "New Year's Day", "holiday_type": "public"},
				{"date": "2027-04-13", "name": "Songkran Festival", "holiday_type": "public"}
			]}`))
		default:
			w.Write([]byte(`{"holidays": []}`))
		}
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "sekrit")
	entries, err := c.FetchRange(context.Background(),
		time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Year-by-year results filtered to the window.
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-12-31", entries[0].Date)
	assert.Equal(t, "2027-01-01", entries[1].Date)
}

func TestFetchRangeUsesRangeEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2026-04-01", q.Get("start_date"))
		assert.Equal(t, "2026-04-30", q.Get("end_date"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"holidays": [{"date": "2026-04-13", "name": "Songkran Festival", "holiday_type": "public"}]}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "sekrit")
	entries, err := c.FetchRange(context.Background(),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Songkran Festival", entries[0].Name)
}
