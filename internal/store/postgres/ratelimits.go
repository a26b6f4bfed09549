package postgres

import (
	"context"
	"time"
)

func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM rate_limits WHERE request_at < $1`, cutoff.UTC())
	return err
}

func (s *Store) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM rate_limits WHERE user_id = $1 AND request_at >= $2`,
		userID, since.UTC()).Scan(&n)
	return n, err
}

func (s *Store) Record(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rate_limits (user_id, request_at) VALUES ($1, $2)
		 ON CONFLICT (user_id, request_at) DO NOTHING`,
		userID, at.UTC())
	return err
}
