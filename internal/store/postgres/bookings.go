package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"psybooking-service/internal/engine"
)

const uniqueViolation = "23505"

const bookingColumns = `id, client_id, client_username, client_first_name, client_last_name,
	start_at_utc, end_at_utc, status, google_event_id, event_link, created_at, updated_at`

// Reserve inserts a pending booking in a single statement. The partial
// unique index on live start_at_utc makes the insert and the availability
// check indivisible: under concurrent callers targeting the same instant
// exactly one insert commits and the rest surface ErrSlotTaken.
func (s *Store) Reserve(ctx context.Context, p engine.ReserveParams) (engine.Booking, error) {
	b := engine.Booking{
		ID:         uuid.NewString(),
		Client:     p.Client,
		StartAtUTC: p.StartAtUTC.UTC(),
		EndAtUTC:   p.EndAtUTC.UTC(),
		Status:     engine.StatusPending,
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO bookings
			(id, client_id, client_username, client_first_name, client_last_name,
			 start_at_utc, end_at_utc, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		 RETURNING created_at, updated_at`,
		b.ID, b.Client.ID, b.Client.Username, b.Client.FirstName, b.Client.LastName,
		b.StartAtUTC, b.EndAtUTC,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return engine.Booking{}, engine.ErrSlotTaken
		}
		return engine.Booking{}, fmt.Errorf("reserve slot: %w", err)
	}
	return b, nil
}

// Confirm moves a pending booking to confirmed, attaching the external event
// reference. Repeating the call with the same reference is a no-op success;
// a different reference on an already-confirmed booking is rejected.
func (s *Store) Confirm(ctx context.Context, id, eventID, eventLink string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookings
		 SET status = 'confirmed', google_event_id = $2, event_link = $3, updated_at = now()
		 WHERE id = $1
		   AND (status = 'pending' OR (status = 'confirmed' AND google_event_id = $2))`,
		id, eventID, eventLink)
	if err != nil {
		return fmt.Errorf("confirm booking: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	switch b.Status {
	case engine.StatusCancelled:
		return engine.ErrAlreadyCancelled
	default:
		return fmt.Errorf("booking %s already confirmed with event %s", id, b.GoogleEventID)
	}
}

// Cancel moves any live booking to cancelled.
func (s *Store) Cancel(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookings SET status = 'cancelled', updated_at = now()
		 WHERE id = $1 AND status <> 'cancelled'`, id)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if b.Status == engine.StatusCancelled {
		return engine.ErrAlreadyCancelled
	}
	return fmt.Errorf("cancel booking %s: no rows updated", id)
}

func (s *Store) Get(ctx context.Context, id string) (engine.Booking, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.Booking{}, engine.ErrNotFound
	}
	return b, err
}

// Overlapping returns non-cancelled bookings intersecting [from, to),
// ascending by start.
func (s *Store) Overlapping(ctx context.Context, from, to time.Time) ([]engine.Booking, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE status <> 'cancelled' AND start_at_utc < $2 AND end_at_utc > $1
		 ORDER BY start_at_utc`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ActiveFor returns the client's non-cancelled future bookings, ascending.
func (s *Store) ActiveFor(ctx context.Context, clientID int64) ([]engine.Booking, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE client_id = $1 AND status <> 'cancelled' AND start_at_utc >= now()
		 ORDER BY start_at_utc`,
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// FutureBookings returns every live future booking; used by the admin CLI.
func (s *Store) FutureBookings(ctx context.Context) ([]engine.Booking, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE status <> 'cancelled' AND start_at_utc >= now()
		 ORDER BY start_at_utc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func scanBooking(row pgx.Row) (engine.Booking, error) {
	var b engine.Booking
	err := row.Scan(&b.ID, &b.Client.ID, &b.Client.Username, &b.Client.FirstName, &b.Client.LastName,
		&b.StartAtUTC, &b.EndAtUTC, &b.Status, &b.GoogleEventID, &b.EventLink, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func scanBookings(rows pgx.Rows) ([]engine.Booking, error) {
	var out []engine.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
