// Package engine implements the availability and booking core: slot
// derivation from weekly working-hour rules, busy-interval reconciliation
// against the external calendar and existing reservations, and the booking
// orchestration around the store's atomic reserve primitive.
package engine

import (
	"context"
	"log/slog"
	"time"

	"psybooking-service/internal/timeslot"
)

// externalCallTimeout bounds every call to the external calendar. On
// expiry the call is treated as unavailable, never as busy.
const externalCallTimeout = 10 * time.Second

// RuleStore reads working-hour rules and the settings snapshot. Rules are
// written only by the administrative surface; the engine is a reader.
type RuleStore interface {
	RuleForDay(ctx context.Context, day time.Weekday) (WorkingHourRule, bool, error)
	Rules(ctx context.Context) ([]WorkingHourRule, error)
	LoadSettings(ctx context.Context) (Settings, error)
}

// ReserveParams carries everything needed to create a pending booking.
type ReserveParams struct {
	Client     Client
	StartAtUTC time.Time
	EndAtUTC   time.Time
}

// BookingStore is the single source of truth for reservations. Reserve must
// be atomic: the insert and the live-row uniqueness check on StartAtUTC are
// indivisible, so concurrent reserves for one instant yield exactly one
// success and ErrSlotTaken for the rest.
type BookingStore interface {
	Reserve(ctx context.Context, p ReserveParams) (Booking, error)
	Confirm(ctx context.Context, id, eventID, eventLink string) error
	Cancel(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Booking, error)
	Overlapping(ctx context.Context, from, to time.Time) ([]Booking, error)
	ActiveFor(ctx context.Context, clientID int64) ([]Booking, error)
}

// RateLimitStore persists the per-user request log backing the sliding
// window.
type RateLimitStore interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) error
	CountSince(ctx context.Context, userID int64, since time.Time) (int, error)
	Record(ctx context.Context, userID int64, at time.Time) error
}

// ExternalEvent is the reference returned by external event creation.
type ExternalEvent struct {
	ID   string
	Link string
}

// Calendar is the external calendar collaborator. Every method is a fallible
// remote call; the engine absorbs failures and degrades rather than aborting.
type Calendar interface {
	Authenticated() bool
	FetchBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]timeslot.Interval, error)
	CreateEvent(ctx context.Context, calendarID, summary, description string, start, end time.Time) (ExternalEvent, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Engine ties the stores and the calendar collaborator together. It holds no
// mutable state of its own; cross-request coordination is delegated entirely
// to the booking store's uniqueness constraint.
type Engine struct {
	rules    RuleStore
	bookings BookingStore
	limiter  *RateLimiter
	cal      Calendar
	log      *slog.Logger
	now      func() time.Time
}

// New wires an Engine. cal may be nil when the external calendar is not
// configured. now defaults to time.Now.
func New(rules RuleStore, bookings BookingStore, rates RateLimitStore, cal Calendar, log *slog.Logger, now func() time.Time) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		rules:    rules,
		bookings: bookings,
		limiter:  NewRateLimiter(rates, now),
		cal:      cal,
		log:      log,
		now:      now,
	}
}

func (e *Engine) calendarReady() bool {
	return e.cal != nil && e.cal.Authenticated()
}
