package engine_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"psybooking-service/internal/engine"
	"psybooking-service/internal/timeslot"
)

type fakeRules struct {
	rules    map[time.Weekday]engine.WorkingHourRule
	settings engine.Settings
}

func (f *fakeRules) RuleForDay(_ context.Context, day time.Weekday) (engine.WorkingHourRule, bool, error) {
	r, ok := f.rules[day]
	return r, ok, nil
}

func (f *fakeRules) Rules(_ context.Context) ([]engine.WorkingHourRule, error) {
	out := make([]engine.WorkingHourRule, 0, len(f.rules))
	for _, r := range f.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (f *fakeRules) LoadSettings(_ context.Context) (engine.Settings, error) {
	return f.settings, nil
}

// fakeBookings honors the reserve contract: the live-row uniqueness check
// and the insert happen under one lock, so concurrent reserves for the same
// instant see exactly one winner.
type fakeBookings struct {
	mu   sync.Mutex
	byID map[string]engine.Booking
	seq  int
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{byID: map[string]engine.Booking{}}
}

func (f *fakeBookings) Reserve(_ context.Context, p engine.ReserveParams) (engine.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.byID {
		if b.Status != engine.StatusCancelled && b.StartAtUTC.Equal(p.StartAtUTC) {
			return engine.Booking{}, engine.ErrSlotTaken
		}
	}
	f.seq++
	b := engine.Booking{
		ID:         fmt.Sprintf("bk-%03d", f.seq),
		Client:     p.Client,
		StartAtUTC: p.StartAtUTC,
		EndAtUTC:   p.EndAtUTC,
		Status:     engine.StatusPending,
	}
	f.byID[b.ID] = b
	return b, nil
}

func (f *fakeBookings) Confirm(_ context.Context, id, eventID, eventLink string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return engine.ErrNotFound
	}
	switch b.Status {
	case engine.StatusCancelled:
		return engine.ErrAlreadyCancelled
	case engine.StatusConfirmed:
		if b.GoogleEventID != eventID {
			return fmt.Errorf("booking %s already confirmed with event %s", id, b.GoogleEventID)
		}
		return nil
	}
	b.Status = engine.StatusConfirmed
	b.GoogleEventID = eventID
	b.EventLink = eventLink
	f.byID[id] = b
	return nil
}

func (f *fakeBookings) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return engine.ErrNotFound
	}
	if b.Status == engine.StatusCancelled {
		return engine.ErrAlreadyCancelled
	}
	b.Status = engine.StatusCancelled
	f.byID[id] = b
	return nil
}

func (f *fakeBookings) Get(_ context.Context, id string) (engine.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return engine.Booking{}, engine.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookings) Overlapping(_ context.Context, from, to time.Time) ([]engine.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []engine.Booking
	for _, b := range f.byID {
		if b.Status != engine.StatusCancelled && b.StartAtUTC.Before(to) && b.EndAtUTC.After(from) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAtUTC.Before(out[j].StartAtUTC) })
	return out, nil
}

func (f *fakeBookings) ActiveFor(_ context.Context, clientID int64) ([]engine.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []engine.Booking
	for _, b := range f.byID {
		if b.Status != engine.StatusCancelled && b.Client.ID == clientID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAtUTC.Before(out[j].StartAtUTC) })
	return out, nil
}

type fakeRates struct {
	mu      sync.Mutex
	entries map[int64][]time.Time
}

func newFakeRates() *fakeRates {
	return &fakeRates{entries: map[int64][]time.Time{}}
}

func (f *fakeRates) PurgeBefore(_ context.Context, cutoff time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ts := range f.entries {
		var kept []time.Time
		for _, t := range ts {
			if !t.Before(cutoff) {
				kept = append(kept, t)
			}
		}
		f.entries[id] = kept
	}
	return nil
}

func (f *fakeRates) CountSince(_ context.Context, userID int64, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.entries[userID] {
		if !t.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRates) Record(_ context.Context, userID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[userID] = append(f.entries[userID], at)
	return nil
}

type fakeCalendar struct {
	authenticated bool
	busy          []timeslot.Interval
	busyErr       error
	createErr     error
	createdCount  int
	deleted       []string
}

func (f *fakeCalendar) Authenticated() bool { return f.authenticated }

func (f *fakeCalendar) FetchBusy(_ context.Context, _ string, _, _ time.Time) ([]timeslot.Interval, error) {
	if f.busyErr != nil {
		return nil, f.busyErr
	}
	return f.busy, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _, _, _ string, _, _ time.Time) (engine.ExternalEvent, error) {
	if f.createErr != nil {
		return engine.ExternalEvent{}, f.createErr
	}
	f.createdCount++
	id := fmt.Sprintf("evt-%d", f.createdCount)
	return engine.ExternalEvent{ID: id, Link: "https://calendar.example/" + id}, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, _, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return nil
}

func testSettings() engine.Settings {
	st := engine.DefaultSettings()
	st.TimezoneName = "UTC"
	return st
}

// weekdayRules activates Monday through Friday 10:00-19:00 and leaves the
// weekend present but inactive, mirroring the seeded defaults.
func weekdayRules() map[time.Weekday]engine.WorkingHourRule {
	rules := map[time.Weekday]engine.WorkingHourRule{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		r := engine.WorkingHourRule{DayOfWeek: d, StartTime: "10:00", EndTime: "19:00", IsActive: true}
		if d == time.Sunday || d == time.Saturday {
			r.StartTime, r.EndTime, r.IsActive = "10:00", "14:00", false
		}
		rules[d] = r
	}
	return rules
}
