package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/siriwat/flight-season-api/analysis"
	"github.com/siriwat/flight-season-api/api"
	"github.com/siriwat/flight-season-api/config"
	"github.com/siriwat/flight-season-api/db"
	"github.com/siriwat/flight-season-api/forecast"
	"github.com/siriwat/flight-season-api/holidays"
	"github.com/siriwat/flight-season-api/ingest"
	"github.com/siriwat/flight-season-api/pkg/cache"
	"github.com/siriwat/flight-season-api/pkg/logger"
	"github.com/siriwat/flight-season-api/weather"
	"github.com/siriwat/flight-season-api/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err, "Failed to load configuration")
	}

	logger.Init(logger.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
	})
	log := logger.Default()

	postgresDB, err := db.NewPostgresDB(cfg.PostgresConfig)
	if err != nil {
		log.Fatal(err, "Failed to connect to PostgreSQL")
	}
	defer postgresDB.Close()

	if cfg.InitSchema {
		if err := postgresDB.InitSchema(); err != nil {
			log.Fatal(err, "Failed to initialize schema")
		}
	}

	// Redis is optional: without it the API serves uncached.
	var cacheManager *cache.Manager
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Host + ":" + cfg.RedisConfig.Port,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, result caching disabled", "error", err)
	} else {
		cacheManager = cache.NewManager(cache.NewRedisCache(redisClient, "flight-season"))
	}
	cancelPing()

	holidayClient := holidays.New(cfg.UpstreamConfig.IAppAPIURL, cfg.UpstreamConfig.IAppAPIKey)
	forecastClient := weather.NewForecastClient(cfg.UpstreamConfig.OpenWeatherAPIURL, cfg.UpstreamConfig.OpenWeatherAPIKey)
	historicalClient := weather.NewHistoricalClient(cfg.UpstreamConfig.ArchiveAPIURL)

	weatherIngestor := ingest.NewWeatherIngestor(postgresDB, historicalClient, forecastClient, cfg.IngestConfig, log)
	holidayIngestor := ingest.NewHolidayIngestor(postgresDB, holidayClient, cfg.IngestConfig, log)

	aggregator := analysis.NewAggregator(postgresDB, holidayClient, log)
	engine := forecast.NewEngine(postgresDB, log)
	analyzer := analysis.NewAnalyzer(postgresDB, aggregator, engine, log)

	var scheduler *worker.Scheduler
	if cfg.WorkerEnabled {
		scheduler = worker.NewScheduler(weatherIngestor, holidayIngestor, cfg.WorkerConfig, log)
		if err := scheduler.Start(); err != nil {
			log.Fatal(err, "Failed to start worker scheduler")
		}
		defer scheduler.Stop()
	}

	if !cfg.APIEnabled {
		log.Info("API disabled, running worker only")
		waitForSignal()
		return
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	api.RegisterRoutes(router, analyzer, cacheManager)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "Failed to start server")
		}
	}()

	waitForSignal()
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.WorkerConfig.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "Server forced to shut down")
	}
	log.Info("Server exited")
}

func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
