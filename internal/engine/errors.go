package engine

import "errors"

// Sentinel errors for the booking flow. Handlers match them with errors.Is
// and translate each into an actionable response; none of them is retried
// automatically.
var (
	// ErrSlotTaken means a live booking already occupies the requested start
	// instant. The caller must re-query availability and pick again.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrLeadTimeViolation means the requested start no longer satisfies the
	// minimum lead time.
	ErrLeadTimeViolation = errors.New("slot no longer satisfies minimum lead time")

	// ErrCapExceeded means the client already holds the maximum number of
	// active bookings.
	ErrCapExceeded = errors.New("active booking limit reached")

	// ErrRateLimited means the caller exceeded the per-user request ceiling.
	ErrRateLimited = errors.New("too many requests")

	// ErrExternalUnavailable means the external calendar could not be
	// reached. It degrades results and never fails a committed reservation.
	ErrExternalUnavailable = errors.New("external calendar unavailable")

	// ErrInvalidRule marks a malformed working-hour rule.
	ErrInvalidRule = errors.New("invalid working hours rule")

	ErrNotFound         = errors.New("booking not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
)
