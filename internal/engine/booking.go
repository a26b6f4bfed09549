package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BookResult is the outcome of a successful reservation. ExternalSynced is
// false when the booking was committed but the external calendar event could
// not be created; the booking then stays pending and the sync is retryable
// out-of-band.
type BookResult struct {
	Booking        Booking `json:"booking"`
	EventLink      string  `json:"event_link,omitempty"`
	ExternalSynced bool    `json:"external_synced"`
}

// Book validates caller-level constraints and commits a reservation for the
// chosen start instant. The reservation is authoritative once Reserve
// succeeds; external event creation is advisory and its failure degrades the
// result instead of rolling back.
func (e *Engine) Book(ctx context.Context, client Client, startUTC time.Time) (BookResult, error) {
	st, err := e.rules.LoadSettings(ctx)
	if err != nil {
		return BookResult{}, err
	}

	admitted, err := e.limiter.Admit(ctx, client.ID, st.RateLimitPerMinute, time.Minute)
	if err != nil {
		return BookResult{}, err
	}
	if !admitted {
		return BookResult{}, ErrRateLimited
	}

	active, err := e.bookings.ActiveFor(ctx, client.ID)
	if err != nil {
		return BookResult{}, err
	}
	if len(active) >= st.MaxActiveBookings {
		return BookResult{}, fmt.Errorf("%w (%d active)", ErrCapExceeded, len(active))
	}

	startUTC = startUTC.UTC()
	if startUTC.Before(e.now().UTC().Add(st.Lead())) {
		return BookResult{}, ErrLeadTimeViolation
	}

	booking, err := e.bookings.Reserve(ctx, ReserveParams{
		Client:     client,
		StartAtUTC: startUTC,
		EndAtUTC:   startUTC.Add(st.Session()),
	})
	if err != nil {
		return BookResult{}, err
	}

	return e.syncExternal(ctx, st, booking), nil
}

// syncExternal creates the external calendar event for a freshly reserved
// booking. When the calendar is not configured the sync is skipped and the
// booking is confirmed without a reference; when the call fails the booking
// stays pending.
func (e *Engine) syncExternal(ctx context.Context, st Settings, booking Booking) BookResult {
	res := BookResult{Booking: booking}

	if !e.calendarReady() {
		if err := e.bookings.Confirm(ctx, booking.ID, "", ""); err != nil {
			e.log.Warn("confirm without external sync failed", "booking_id", booking.ID, "err", err)
			return res
		}
		res.Booking.Status = StatusConfirmed
		e.log.Info("booking confirmed without external calendar", "booking_id", booking.ID)
		return res
	}

	summary := fmt.Sprintf("Session: %s", booking.Client.DisplayName())
	description := fmt.Sprintf("Booked via PsyBooking. Client ID %d", booking.Client.ID)
	if booking.Client.Username != "" {
		description += " (@" + booking.Client.Username + ")"
	}

	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	ev, err := e.cal.CreateEvent(callCtx, st.CalendarID, summary, description, booking.StartAtUTC, booking.EndAtUTC)
	if err != nil {
		e.log.Warn("external event creation failed, booking held as pending",
			"booking_id", booking.ID, "err", err)
		return res
	}

	if err := e.bookings.Confirm(ctx, booking.ID, ev.ID, ev.Link); err != nil {
		e.log.Warn("confirm after external sync failed", "booking_id", booking.ID, "err", err)
		res.EventLink = ev.Link
		return res
	}

	res.Booking.Status = StatusConfirmed
	res.Booking.GoogleEventID = ev.ID
	res.Booking.EventLink = ev.Link
	res.EventLink = ev.Link
	res.ExternalSynced = true
	return res
}

// CancelBooking cancels a live booking and best-effort deletes its external
// event. Cancelling an already-cancelled booking reports
// ErrAlreadyCancelled without failing anything else.
func (e *Engine) CancelBooking(ctx context.Context, id string) error {
	booking, err := e.bookings.Get(ctx, id)
	if err != nil {
		return err
	}
	if booking.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if err := e.bookings.Cancel(ctx, id); err != nil {
		if errors.Is(err, ErrAlreadyCancelled) {
			return err
		}
		return fmt.Errorf("cancel booking %s: %w", id, err)
	}

	if booking.GoogleEventID != "" && e.calendarReady() {
		st, err := e.rules.LoadSettings(ctx)
		if err != nil {
			e.log.Warn("settings load failed during cancel, external event kept", "booking_id", id, "err", err)
			return nil
		}
		callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
		defer cancel()
		if err := e.cal.DeleteEvent(callCtx, st.CalendarID, booking.GoogleEventID); err != nil {
			e.log.Warn("external event deletion failed", "booking_id", id,
				"event_id", booking.GoogleEventID, "err", err)
		}
	}
	return nil
}

// ClientBookings lists the client's non-cancelled future bookings in
// ascending start order.
func (e *Engine) ClientBookings(ctx context.Context, clientID int64) ([]Booking, error) {
	return e.bookings.ActiveFor(ctx, clientID)
}

// PurgeRateLimits drops rate-limit rows older than the retention horizon.
// Run periodically; it reclaims storage and is not correctness-relevant.
func (e *Engine) PurgeRateLimits(ctx context.Context, retention time.Duration) error {
	return e.limiter.PurgeOlderThan(ctx, retention)
}
