// Package history persists published aggregated readings to Postgres.
//
// The engine itself keeps no history; this sink subscribes to the monitor
// and appends one row per published reading.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/i474232898/weather-monitor/internal/weather"
)

const table = "aggregated_readings"

// Schema creates the readings table when it does not exist yet.
const Schema = `CREATE TABLE IF NOT EXISTS aggregated_readings (
    id           BIGSERIAL PRIMARY KEY,
    observed_at  TIMESTAMPTZ NOT NULL,
    source       TEXT NOT NULL,
    origin       TEXT NOT NULL,
    temperature  DOUBLE PRECISION NOT NULL,
    humidity     DOUBLE PRECISION NOT NULL,
    wind_speed   DOUBLE PRECISION NOT NULL,
    description  TEXT NOT NULL,
    reliability  INTEGER NOT NULL,
    payload      JSONB NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// saveTimeout bounds a single insert.
const saveTimeout = 5 * time.Second

// PostgresRepository stores aggregated readings.
type PostgresRepository struct {
	db     *sql.DB
	logger logrus.FieldLogger
	psql   sq.StatementBuilderType
}

// Open connects to Postgres and ensures the schema exists.
func Open(ctx context.Context, dsn string, logger logrus.FieldLogger) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return NewPostgresRepository(db, logger), nil
}

// NewPostgresRepository wires an existing sql.DB.
func NewPostgresRepository(db *sql.DB, logger logrus.FieldLogger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger.WithField("component", "history"),
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Save appends one reading.
func (r *PostgresRepository) Save(ctx context.Context, reading weather.AggregatedReading) error {
	query, args, err := r.insertQuery(reading)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// Subscriber adapts Save to the monitor's subscription callback. Failures
// are logged; a broken database never affects the engine.
func (r *PostgresRepository) Subscriber() func(weather.AggregatedReading) {
	return func(reading weather.AggregatedReading) {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := r.Save(ctx, reading); err != nil {
			r.logger.WithError(err).Warn("failed to persist aggregated reading")
		}
	}
}

// Close releases the database handle.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) insertQuery(reading weather.AggregatedReading) (string, []interface{}, error) {
	payload, err := json.Marshal(reading)
	if err != nil {
		return "", nil, fmt.Errorf("encode reading: %w", err)
	}

	query, args, err := r.psql.
		Insert(table).
		Columns("observed_at", "source", "origin", "temperature", "humidity",
			"wind_speed", "description", "reliability", "payload").
		Values(reading.Timestamp, reading.Source, string(reading.Origin),
			reading.Current.Temperature, reading.Current.Humidity, reading.Current.WindSpeed,
			string(reading.Current.Description), reading.Reliability, string(payload)).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert: %w", err)
	}
	return query, args, nil
}
