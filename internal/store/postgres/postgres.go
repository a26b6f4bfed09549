// Package postgres persists working-hour rules, settings, bookings, and the
// rate-limit request log. The partial unique index on live bookings'
// start_at_utc is the engine's sole concurrency-control mechanism; this is
// the one place that requires a strong consistency guarantee from the
// backend.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"psybooking-service/internal/engine"
)

// Store implements the engine's RuleStore, BookingStore, and RateLimitStore
// against a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects a pgx pool and verifies it with a ping.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		key        text PRIMARY KEY,
		value      text NOT NULL,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS working_hours (
		day_of_week int PRIMARY KEY CHECK (day_of_week BETWEEN 0 AND 6),
		start_time  text NOT NULL,
		end_time    text NOT NULL,
		is_active   boolean NOT NULL DEFAULT true
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                uuid PRIMARY KEY,
		client_id         bigint NOT NULL,
		client_username   text NOT NULL DEFAULT '',
		client_first_name text NOT NULL DEFAULT '',
		client_last_name  text NOT NULL DEFAULT '',
		start_at_utc      timestamptz NOT NULL,
		end_at_utc        timestamptz NOT NULL,
		status            text NOT NULL DEFAULT 'pending',
		google_event_id   text NOT NULL DEFAULT '',
		event_link        text NOT NULL DEFAULT '',
		created_at        timestamptz NOT NULL DEFAULT now(),
		updated_at        timestamptz NOT NULL DEFAULT now()
	)`,
	// At most one live booking per start instant. Cancelled rows free the
	// slot for rebooking.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_live_start
		ON bookings (start_at_utc) WHERE status <> 'cancelled'`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_client ON bookings (client_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_time ON bookings (start_at_utc)`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
		user_id    bigint NOT NULL,
		request_at timestamptz NOT NULL,
		PRIMARY KEY (user_id, request_at)
	)`,
}

// Init creates the schema and seeds defaults: the settings snapshot and the
// Mon-Fri 10:00-19:00 working week (weekend rows present but inactive).
// Existing rows are left untouched.
func (s *Store) Init(ctx context.Context, defaults engine.Settings) error {
	for _, q := range schema {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	seedSettings := map[string]string{
		"primary_tz":                     defaults.TimezoneName,
		"min_hours_before_booking":       fmt.Sprint(defaults.MinLeadHours),
		"session_duration_minutes":       fmt.Sprint(defaults.SessionMinutes),
		"max_active_bookings_per_client": fmt.Sprint(defaults.MaxActiveBookings),
		"rate_limit_per_minute":          fmt.Sprint(defaults.RateLimitPerMinute),
		"days_ahead_to_show":             fmt.Sprint(defaults.DaysAheadToShow),
		"calendar_id":                    defaults.CalendarID,
	}
	for key, value := range seedSettings {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
			key, value)
		if err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}

	type seed struct {
		day        int
		start, end string
		active     bool
	}
	week := []seed{
		{0, "10:00", "14:00", false}, // Sunday
		{1, "10:00", "19:00", true},
		{2, "10:00", "19:00", true},
		{3, "10:00", "19:00", true},
		{4, "10:00", "19:00", true},
		{5, "10:00", "19:00", true},
		{6, "10:00", "14:00", false}, // Saturday
	}
	for _, w := range week {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO working_hours (day_of_week, start_time, end_time, is_active)
			 VALUES ($1, $2, $3, $4) ON CONFLICT (day_of_week) DO NOTHING`,
			w.day, w.start, w.end, w.active)
		if err != nil {
			return fmt.Errorf("seed working hours day %d: %w", w.day, err)
		}
	}
	return nil
}
