package db

import (
	"fmt"

	"database/sql"

	"github.com/siriwat/flight-season-api/config"
	_ "github.com/lib/pq"
)

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgresDB{db: db}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// GetDB returns the underlying database connection
func (p *PostgresDB) GetDB() *sql.DB {
	return p.db
}

// InitSchema initializes the database schema
func (p *PostgresDB) InitSchema() error {
	_, err := p.db.Exec(`
		-- Routes table: (origin, destination) pairs, created lazily
		CREATE TABLE IF NOT EXISTS routes (
			id SERIAL PRIMARY KEY,
			origin VARCHAR(3) NOT NULL,
			destination VARCHAR(3) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (origin, destination)
		);

		-- Airlines table
		CREATE TABLE IF NOT EXISTS airlines (
			id SERIAL PRIMARY KEY,
			code VARCHAR(3) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			name_th VARCHAR(255)
		);

		-- Flight prices table. Stored prices already incorporate seasonal,
		-- holiday and variation multipliers.
		CREATE TABLE IF NOT EXISTS flight_prices (
			id SERIAL PRIMARY KEY,
			route_id INT NOT NULL REFERENCES routes(id),
			airline_id INT NOT NULL REFERENCES airlines(id),
			departure_date DATE NOT NULL,
			return_date DATE,
			trip_type VARCHAR(20) NOT NULL,
			cabin_class VARCHAR(20) NOT NULL,
			price DECIMAL(10, 2) NOT NULL,
			base_price DECIMAL(10, 2) NOT NULL,
			season VARCHAR(10) NOT NULL DEFAULT 'normal',
			flight_number VARCHAR(10) NOT NULL,
			departure_time VARCHAR(8),
			arrival_time VARCHAR(8),
			duration_minutes INT,
			airplane VARCHAR(100),
			carbon_grams BIGINT,
			legroom VARCHAR(50),
			often_delayed BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		-- One-way fares store a NULL return_date. A plain UNIQUE constraint
		-- treats NULLs as distinct, so uniqueness goes through COALESCE to
		-- keep re-ingested one-way rows colliding.
		CREATE UNIQUE INDEX IF NOT EXISTS uq_flight_prices_identity
			ON flight_prices (route_id, airline_id, departure_date,
			                  COALESCE(return_date, '0001-01-01'::date),
			                  trip_type, cabin_class, flight_number);
		CREATE INDEX IF NOT EXISTS idx_flight_prices_route_date
			ON flight_prices (route_id, departure_date);

		-- Daily weather: historical rows own dates up to the cutover,
		-- forecast rows own dates after it.
		CREATE TABLE IF NOT EXISTS daily_weather (
			id SERIAL PRIMARY KEY,
			province VARCHAR(100) NOT NULL,
			date DATE NOT NULL,
			temp_max DECIMAL(5, 2) NOT NULL,
			temp_min DECIMAL(5, 2) NOT NULL,
			temp_avg DECIMAL(5, 2) NOT NULL,
			precipitation_mm DECIMAL(7, 2) NOT NULL DEFAULT 0,
			humidity DECIMAL(5, 2),
			source VARCHAR(20) NOT NULL,
			UNIQUE (province, date)
		);

		-- Monthly weather aggregates
		CREATE TABLE IF NOT EXISTS monthly_weather_stats (
			id SERIAL PRIMARY KEY,
			province VARCHAR(100) NOT NULL,
			period CHAR(7) NOT NULL,
			avg_temp DECIMAL(5, 2) NOT NULL,
			avg_rain DECIMAL(7, 2) NOT NULL,
			avg_humidity DECIMAL(5, 2),
			weather_score DECIMAL(5, 2) NOT NULL,
			days_count INT NOT NULL,
			UNIQUE (province, period)
		);

		-- Monthly holiday aggregates
		CREATE TABLE IF NOT EXISTS holiday_stats (
			id SERIAL PRIMARY KEY,
			period CHAR(7) NOT NULL UNIQUE,
			holidays_count INT NOT NULL,
			long_weekends_count INT NOT NULL,
			holiday_score DECIMAL(5, 2) NOT NULL,
			holidays_detail JSONB NOT NULL DEFAULT '[]'
		);

		-- Precomputed per-route monthly price percentiles
		CREATE TABLE IF NOT EXISTS route_price_stats (
			id SERIAL PRIMARY KEY,
			route_id INT NOT NULL REFERENCES routes(id),
			period CHAR(7) NOT NULL,
			price_percentile DECIMAL(5, 2) NOT NULL,
			UNIQUE (route_id, period)
		);
	`)

	return err
}
