package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port           string
	Environment    string
	LoggingConfig  LoggingConfig
	PostgresConfig PostgresConfig
	RedisConfig    RedisConfig
	UpstreamConfig UpstreamConfig
	IngestConfig   IngestConfig
	WorkerConfig   WorkerConfig
	APIEnabled     bool
	WorkerEnabled  bool
	InitSchema     bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// UpstreamConfig holds credentials and endpoints for upstream data providers.
type UpstreamConfig struct {
	IAppAPIKey        string // Thai holiday calendar API
	IAppAPIURL        string
	OpenWeatherAPIKey string // short-range weather forecast API
	OpenWeatherAPIURL string
	ArchiveAPIURL     string // historical weather archive API (no key required)
}

// IngestConfig holds ingestion pipeline configuration
type IngestConfig struct {
	Provinces          []string      // provinces to pull daily weather for
	HistoricalCutover  time.Time     // last date owned by the historical source
	HolidayRateLimit   time.Duration // pause between holiday API calls
	ForecastRateLimit  time.Duration // pause between provinces on the forecast API
	ArchiveRateLimit   time.Duration // pause between month chunks on the archive API
	HolidayYearsBack   int
	HolidayYearsAhead  int
	WeatherMonthsBack  int
}

// WorkerConfig holds scheduled-refresh configuration
type WorkerConfig struct {
	ForecastCron    string
	HolidayCron     string
	JobTimeout      time.Duration
	ShutdownTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	port := getEnv("PORT", "8080")
	environment := getEnv("ENVIRONMENT", "development")
	apiEnabled, _ := strconv.ParseBool(getEnv("API_ENABLED", "true"))
	workerEnabled, _ := strconv.ParseBool(getEnv("WORKER_ENABLED", "true"))
	initSchema, _ := strconv.ParseBool(getEnv("INIT_SCHEMA", "true"))

	loggingConfig := LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	postgresConfig := PostgresConfig{
		Host:     getEnv("DB_HOST", "postgres"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "flights"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "flight_seasons"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisConfig := RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	upstreamConfig := UpstreamConfig{
		IAppAPIKey:        getEnv("IAPP_API_KEY", ""),
		IAppAPIURL:        getEnv("IAPP_API_URL", "https://api.iapp.co.th/thai-holiday"),
		OpenWeatherAPIKey: getEnv("OPENWEATHERMAP_API_KEY", ""),
		OpenWeatherAPIURL: getEnv("OPENWEATHERMAP_API_URL", "https://api.openweathermap.org/data/2.5/forecast"),
		ArchiveAPIURL:     getEnv("WEATHER_ARCHIVE_API_URL", "https://archive-api.open-meteo.com/v1/archive"),
	}

	provinces := []string{}
	for _, p := range strings.Split(getEnv("WEATHER_PROVINCES", "Bangkok,Phuket,Chiang Mai,Krabi,Surat Thani"), ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			provinces = append(provinces, p)
		}
	}

	cutover, err := time.Parse("2006-01-02", getEnv("WEATHER_HISTORICAL_CUTOVER", "2025-06-30"))
	if err != nil {
		cutover = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	}

	holidayRate, _ := time.ParseDuration(getEnv("HOLIDAY_RATE_LIMIT", "200ms"))
	forecastRate, _ := time.ParseDuration(getEnv("FORECAST_RATE_LIMIT", "1s"))
	archiveRate, _ := time.ParseDuration(getEnv("ARCHIVE_RATE_LIMIT", "200ms"))
	yearsBack, _ := strconv.Atoi(getEnv("HOLIDAY_YEARS_BACK", "1"))
	yearsAhead, _ := strconv.Atoi(getEnv("HOLIDAY_YEARS_AHEAD", "1"))
	monthsBack, _ := strconv.Atoi(getEnv("WEATHER_MONTHS_BACK", "12"))

	ingestConfig := IngestConfig{
		Provinces:         provinces,
		HistoricalCutover: cutover,
		HolidayRateLimit:  holidayRate,
		ForecastRateLimit: forecastRate,
		ArchiveRateLimit:  archiveRate,
		HolidayYearsBack:  yearsBack,
		HolidayYearsAhead: yearsAhead,
		WeatherMonthsBack: monthsBack,
	}

	shutdownTimeout, _ := time.ParseDuration(getEnv("WORKER_SHUTDOWN_TIMEOUT", "30s"))
	jobTimeout, err := time.ParseDuration(getEnv("WORKER_JOB_TIMEOUT", "30m"))
	if err != nil {
		jobTimeout = 30 * time.Minute
	}

	workerConfig := WorkerConfig{
		ForecastCron:    getEnv("FORECAST_REFRESH_CRON", "0 3 * * *"),
		HolidayCron:     getEnv("HOLIDAY_REFRESH_CRON", "0 4 1 1 *"),
		JobTimeout:      jobTimeout,
		ShutdownTimeout: shutdownTimeout,
	}

	return &Config{
		Port:           port,
		Environment:    environment,
		LoggingConfig:  loggingConfig,
		PostgresConfig: postgresConfig,
		RedisConfig:    redisConfig,
		UpstreamConfig: upstreamConfig,
		IngestConfig:   ingestConfig,
		WorkerConfig:   workerConfig,
		APIEnabled:     apiEnabled,
		WorkerEnabled:  workerEnabled,
		InitSchema:     initSchema,
	}, nil
}

// LoadTestConfig loads test configuration
func LoadTestConfig() *Config {
	return &Config{
		PostgresConfig: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "flights"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME_TEST", "flight_seasons_test"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisConfig: RedisConfig{
			Host: getEnv("REDIS_HOST", "localhost"),
			Port: getEnv("REDIS_PORT", "6379"),
		},
		IngestConfig: IngestConfig{
			Provinces:         []string{"Bangkok", "Phuket"},
			HistoricalCutover: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		},
		Environment:   "test",
		WorkerEnabled: false,
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if len(strings.TrimSpace(value)) == 0 {
		return defaultValue
	}
	return strings.TrimSpace(value)
}
