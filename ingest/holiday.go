package ingest

import (
	"context"
	"sort"
	"time"

	"github.com/siriwat/flight-season-api/config"
	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/pkg/calendarutil"
	"github.com/siriwat/flight-season-api/pkg/logger"
	"github.com/siriwat/flight-season-api/pkg/scoring"
)

// HolidayStore is the slice of storage the holiday flow writes through.
type HolidayStore interface {
	UpsertHolidayStat(ctx context.Context, stat db.HolidayStat) error
}

// HolidaySource provides canonical holiday entries.
type HolidaySource interface {
	Available() bool
	FetchYear(ctx context.Context, year int) ([]db.HolidayEntry, error)
}

// HolidayIngestor refreshes the per-month holiday statistics.
type HolidayIngestor struct {
	store  HolidayStore
	source HolidaySource
	cfg    config.IngestConfig
	log    *logger.Logger

	sleep func(time.Duration)
	now   func() time.Time
}

// NewHolidayIngestor creates a holiday ingestor.
func NewHolidayIngestor(store HolidayStore, source HolidaySource, cfg config.IngestConfig, log *logger.Logger) *HolidayIngestor {
	return &HolidayIngestor{
		store:  store,
		source: source,
		cfg:    cfg,
		log:    log,
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// BuildStats groups holiday entries by calendar month and computes each
// month's counts and score.
func BuildStats(entries []db.HolidayEntry) []db.HolidayStat {
	byPeriod := map[string][]db.HolidayEntry{}
	for _, e := range entries {
		d, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			continue
		}
		period := db.Period(d)
		byPeriod[period] = append(byPeriod[period], e)
	}

	periods := make([]string, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	stats := make([]db.HolidayStat, 0, len(periods))
	for _, period := range periods {
		monthEntries := byPeriod[period]
		sort.Slice(monthEntries, func(i, j int) bool { return monthEntries[i].Date < monthEntries[j].Date })

		longWeekends := 0
		for _, e := range monthEntries {
			if d, err := time.Parse("2006-01-02", e.Date); err == nil && calendarutil.IsLongWeekend(d) {
				longWeekends++
			}
		}

		stats = append(stats, db.HolidayStat{
			Period:            period,
			HolidaysCount:     len(monthEntries),
			LongWeekendsCount: longWeekends,
			HolidayScore:      scoring.HolidayScore(monthEntries),
			HolidaysDetail:    monthEntries,
		})
	}
	return stats
}

// Run refreshes holiday statistics for the configured range of calendar
// years around now. Per-year failures are isolated and reported; the flow
// continues with the next year.
func (h *HolidayIngestor) Run(ctx context.Context) error {
	if !h.source.Available() {
		h.log.Warn("holiday API not configured, skipping holiday ingestion")
		return nil
	}

	year := h.now().Year()
	from := year - h.cfg.HolidayYearsBack
	to := year + h.cfg.HolidayYearsAhead

	for y := from; y <= to; y++ {
		if y > from {
			h.sleep(h.cfg.HolidayRateLimit)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := h.IngestYear(ctx, y); err != nil {
			h.log.Error(err, "holiday year ingestion failed", "year", y)
		}
	}
	return nil
}

// IngestYear pulls one calendar year and upserts its monthly stats.
func (h *HolidayIngestor) IngestYear(ctx context.Context, year int) error {
	entries, err := h.source.FetchYear(ctx, year)
	if err != nil {
		return err
	}

	stats := BuildStats(entries)
	for _, stat := range stats {
		if err := h.store.UpsertHolidayStat(ctx, stat); err != nil {
			h.log.Error(err, "holiday stat upsert failed", "period", stat.Period)
			continue
		}
	}
	h.log.Info("holiday year ingested", "year", year, "entries", len(entries), "periods", len(stats))
	return nil
}

// IngestEntries upserts stats built from already-fetched entries. Used by
// the CSV import tool.
func (h *HolidayIngestor) IngestEntries(ctx context.Context, entries []db.HolidayEntry) (int, error) {
	stats := BuildStats(entries)
	for _, stat := range stats {
		if err := h.store.UpsertHolidayStat(ctx, stat); err != nil {
			return 0, err
		}
	}
	return len(stats), nil
}
