package engine

import (
	"context"
	"fmt"
	"time"

	"psybooking-service/internal/timeslot"
)

// AvailableSlots returns the open slots for the given calendar date, in
// ascending start order. Only the year/month/day of date are used; they are
// interpreted in the configured zone. A missing, inactive, or malformed rule
// for the day yields empty availability.
func (e *Engine) AvailableSlots(ctx context.Context, date time.Time) ([]Slot, error) {
	st, err := e.rules.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := st.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", st.TimezoneName, err)
	}

	year, month, day := date.Date()
	localMidnight := time.Date(year, month, day, 0, 0, 0, 0, loc)

	rule, ok, err := e.rules.RuleForDay(ctx, localMidnight.Weekday())
	if err != nil {
		return nil, err
	}
	if !ok || !rule.IsActive {
		return nil, nil
	}

	workStart, workEnd, err := ruleWindow(rule, localMidnight)
	if err != nil {
		// Malformed configuration disables this day only.
		e.log.Warn("skipping day with invalid working hours rule",
			"day_of_week", int(rule.DayOfWeek), "err", err)
		return nil, nil
	}

	earliest := e.now().UTC().Add(st.Lead())
	if workEnd.Before(earliest) {
		return nil, nil
	}
	if workStart.Before(earliest) {
		workStart = earliest
	}

	candidates := timeslot.Partition(workStart, workEnd, st.Session())
	if len(candidates) == 0 {
		return nil, nil
	}

	busy := e.fetchBusy(ctx, st.CalendarID, workStart, workEnd)

	booked, err := e.bookings.Overlapping(ctx, workStart, workEnd)
	if err != nil {
		return nil, err
	}
	for _, b := range booked {
		busy = append(busy, timeslot.Interval{Start: b.StartAtUTC, End: b.EndAtUTC})
	}

	free := timeslot.Subtract(candidates, busy)
	slots := make([]Slot, 0, len(free))
	for _, iv := range free {
		slots = append(slots, renderSlot(iv, loc))
	}
	return slots, nil
}

// AvailableDates returns the next horizonDays local dates (today inclusive)
// whose weekday rule is active, as local midnights. Busy intervals are not
// consulted; this is the cheap pre-filter.
func (e *Engine) AvailableDates(ctx context.Context, horizonDays int) ([]time.Time, error) {
	st, err := e.rules.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := st.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", st.TimezoneName, err)
	}
	if horizonDays <= 0 {
		horizonDays = st.DaysAheadToShow
	}

	rules, err := e.rules.Rules(ctx)
	if err != nil {
		return nil, err
	}
	active := make(map[time.Weekday]bool, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active[r.DayOfWeek] = true
		}
	}

	now := e.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	var dates []time.Time
	for i := 0; i < horizonDays; i++ {
		d := today.AddDate(0, 0, i)
		if active[d.Weekday()] {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// NextAvailableSlots flattens AvailableSlots across AvailableDates in order
// until limit slots are collected. Each date costs a busy-interval fetch, so
// iteration stops as soon as the limit is reached.
func (e *Engine) NextAvailableSlots(ctx context.Context, limit int) ([]DaySlot, error) {
	if limit <= 0 {
		limit = 10
	}
	dates, err := e.AvailableDates(ctx, 0)
	if err != nil {
		return nil, err
	}

	var out []DaySlot
	for _, d := range dates {
		slots, err := e.AvailableSlots(ctx, d)
		if err != nil {
			return nil, err
		}
		for _, s := range slots {
			out = append(out, DaySlot{Date: d.Format("2006-01-02"), Slot: s})
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// fetchBusy queries the external calendar for occupied intervals. An
// unconfigured or failing calendar contributes nothing: slots are never
// hidden because of an external outage.
func (e *Engine) fetchBusy(ctx context.Context, calendarID string, from, to time.Time) []timeslot.Interval {
	if !e.calendarReady() {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	busy, err := e.cal.FetchBusy(callCtx, calendarID, from, to)
	if err != nil {
		e.log.Warn("busy interval fetch failed, treating calendar as free",
			"calendar_id", calendarID, "err", err)
		return nil
	}
	return busy
}

// ruleWindow localizes a rule's wall-clock window onto a concrete date and
// converts it to UTC instants.
func ruleWindow(rule WorkingHourRule, localMidnight time.Time) (start, end time.Time, err error) {
	sh, sm, err := timeslot.ParseClock(rule.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	eh, em, err := timeslot.ParseClock(rule.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	loc := localMidnight.Location()
	year, month, day := localMidnight.Date()
	start = time.Date(year, month, day, sh, sm, 0, 0, loc).UTC()
	end = time.Date(year, month, day, eh, em, 0, 0, loc).UTC()
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q not after start %q", ErrInvalidRule, rule.EndTime, rule.StartTime)
	}
	return start, end, nil
}

func renderSlot(iv timeslot.Interval, loc *time.Location) Slot {
	startLocal := iv.Start.In(loc)
	endLocal := iv.End.In(loc)
	return Slot{
		StartUTC:       iv.Start,
		EndUTC:         iv.End,
		StartLocal:     startLocal.Format("15:04"),
		EndLocal:       endLocal.Format("15:04"),
		StartLocalFull: startLocal.Format("02.01.2006 15:04"),
	}
}
