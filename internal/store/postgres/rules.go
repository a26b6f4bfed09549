package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"psybooking-service/internal/engine"
)

func (s *Store) RuleForDay(ctx context.Context, day time.Weekday) (engine.WorkingHourRule, bool, error) {
	var r engine.WorkingHourRule
	var dow int
	err := s.pool.QueryRow(ctx,
		`SELECT day_of_week, start_time, end_time, is_active
		 FROM working_hours WHERE day_of_week = $1`, int(day)).
		Scan(&dow, &r.StartTime, &r.EndTime, &r.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.WorkingHourRule{}, false, nil
	}
	if err != nil {
		return engine.WorkingHourRule{}, false, err
	}
	r.DayOfWeek = time.Weekday(dow)
	return r, true, nil
}

func (s *Store) Rules(ctx context.Context) ([]engine.WorkingHourRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT day_of_week, start_time, end_time, is_active
		 FROM working_hours ORDER BY day_of_week`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.WorkingHourRule
	for rows.Next() {
		var r engine.WorkingHourRule
		var dow int
		if err := rows.Scan(&dow, &r.StartTime, &r.EndTime, &r.IsActive); err != nil {
			return nil, err
		}
		r.DayOfWeek = time.Weekday(dow)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertRule writes a working-hour rule; one row per day of week. Used only
// by the administrative surface.
func (s *Store) UpsertRule(ctx context.Context, r engine.WorkingHourRule) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO working_hours (day_of_week, start_time, end_time, is_active)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (day_of_week)
		 DO UPDATE SET start_time = $2, end_time = $3, is_active = $4`,
		int(r.DayOfWeek), r.StartTime, r.EndTime, r.IsActive)
	if err != nil {
		return fmt.Errorf("upsert working hours for day %d: %w", int(r.DayOfWeek), err)
	}
	return nil
}

// LoadSettings assembles the settings snapshot from the key/value table,
// falling back to defaults for absent keys. Called per operation, never
// cached.
func (s *Store) LoadSettings(ctx context.Context) (engine.Settings, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return engine.Settings{}, err
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return engine.Settings{}, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return engine.Settings{}, err
	}

	st := engine.DefaultSettings()
	if v, ok := values["primary_tz"]; ok {
		st.TimezoneName = v
	}
	if v, ok := values["calendar_id"]; ok {
		st.CalendarID = v
	}
	intSettings := map[string]*int{
		"min_hours_before_booking":       &st.MinLeadHours,
		"session_duration_minutes":       &st.SessionMinutes,
		"max_active_bookings_per_client": &st.MaxActiveBookings,
		"rate_limit_per_minute":          &st.RateLimitPerMinute,
		"days_ahead_to_show":             &st.DaysAheadToShow,
	}
	for key, dst := range intSettings {
		v, ok := values[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return engine.Settings{}, fmt.Errorf("setting %s: %w", key, err)
		}
		*dst = n
	}
	return st, nil
}

// SetSetting writes one scalar setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
