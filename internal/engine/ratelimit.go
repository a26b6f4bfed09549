package engine

import (
	"context"
	"time"
)

// RateLimiter is a sliding-window counter over a persisted per-user request
// log. Windows are independently keyed by user, so no cross-user
// coordination is needed.
type RateLimiter struct {
	store RateLimitStore
	now   func() time.Time
}

func NewRateLimiter(store RateLimitStore, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{store: store, now: now}
}

// Admit reports whether the user may make another request. Entries older
// than the window are purged first; if the remaining count for the user has
// reached limit the request is rejected without being recorded, otherwise a
// new timestamp is recorded and the request admitted.
func (rl *RateLimiter) Admit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	now := rl.now().UTC()
	cutoff := now.Add(-window)

	if err := rl.store.PurgeBefore(ctx, cutoff); err != nil {
		return false, err
	}
	count, err := rl.store.CountSince(ctx, userID, cutoff)
	if err != nil {
		return false, err
	}
	if count >= limit {
		return false, nil
	}
	if err := rl.store.Record(ctx, userID, now); err != nil {
		return false, err
	}
	return true, nil
}

// PurgeOlderThan reclaims entries beyond the retention horizon for all users.
func (rl *RateLimiter) PurgeOlderThan(ctx context.Context, retention time.Duration) error {
	return rl.store.PurgeBefore(ctx, rl.now().UTC().Add(-retention))
}
