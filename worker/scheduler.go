// Package worker runs the out-of-band ingestion jobs on a cron schedule:
// nightly weather forecast refresh and stat recomputation, yearly holiday
// calendar refresh.
package worker

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/siriwat/flight-season-api/config"
	"github.com/siriwat/flight-season-api/ingest"
	"github.com/siriwat/flight-season-api/pkg/logger"
)

// Scheduler owns the cron runner and the ingestion jobs it triggers.
type Scheduler struct {
	weather  *ingest.WeatherIngestor
	holidays *ingest.HolidayIngestor
	cfg      config.WorkerConfig
	log      *logger.Logger
	cron     *cron.Cron
}

// NewScheduler creates the worker scheduler. Either ingestor may be nil;
// its jobs are then skipped.
func NewScheduler(weather *ingest.WeatherIngestor, holidays *ingest.HolidayIngestor, cfg config.WorkerConfig, log *logger.Logger) *Scheduler {
	return &Scheduler{
		weather:  weather,
		holidays: holidays,
		cfg:      cfg,
		log:      log,
		cron:     cron.New(),
	}
}

// Start registers the cron entries and starts the runner.
func (s *Scheduler) Start() error {
	if s.weather != nil {
		if _, err := s.cron.AddFunc(s.cfg.ForecastCron, s.runWeatherRefresh); err != nil {
			return err
		}
		s.log.Info("scheduled weather refresh", "cron", s.cfg.ForecastCron)
	}
	if s.holidays != nil {
		if _, err := s.cron.AddFunc(s.cfg.HolidayCron, s.runHolidayRefresh); err != nil {
			return err
		}
		s.log.Info("scheduled holiday refresh", "cron", s.cfg.HolidayCron)
	}
	s.cron.Start()
	s.log.Info("worker scheduler started")
	return nil
}

// Stop halts the cron runner, waiting for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("worker scheduler stopped")
}

func (s *Scheduler) runWeatherRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	s.log.Info("weather refresh started")
	if err := s.weather.RunForecast(ctx); err != nil {
		s.log.Error(err, "forecast weather refresh failed")
	}
	if err := s.weather.RefreshAllStats(ctx); err != nil {
		s.log.Error(err, "weather stat refresh failed")
	}
	s.log.Info("weather refresh finished")
}

func (s *Scheduler) runHolidayRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	s.log.Info("holiday refresh started")
	if err := s.holidays.Run(ctx); err != nil {
		s.log.Error(err, "holiday refresh failed")
	}
	s.log.Info("holiday refresh finished")
}

// RunOnce triggers both refreshes immediately. Used at startup when the
// store is empty.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.holidays != nil {
		if err := s.holidays.Run(ctx); err != nil {
			s.log.Error(err, "initial holiday ingest failed")
		}
	}
	if s.weather != nil {
		if err := s.weather.RunForecast(ctx); err != nil {
			s.log.Error(err, "initial forecast ingest failed")
		}
		if err := s.weather.RefreshAllStats(ctx); err != nil {
			s.log.Error(err, "initial stat refresh failed")
		}
	}
}
