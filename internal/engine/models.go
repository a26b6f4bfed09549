package engine

import (
	"strings"
	"time"
)

// WorkingHourRule describes the bookable window for one day of the week.
// DayOfWeek uses the canonical time.Weekday encoding (0=Sunday..6=Saturday)
// everywhere inside the engine; conversion from any other convention happens
// at the system boundary.
type WorkingHourRule struct {
	DayOfWeek time.Weekday `json:"day_of_week"`
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
	IsActive  bool         `json:"is_active"`
}

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// Client identifies the person booking a slot. Everything besides ID is
// display metadata, opaque to scheduling logic.
type Client struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (c Client) DisplayName() string {
	parts := make([]string, 0, 2)
	if c.FirstName != "" {
		parts = append(parts, c.FirstName)
	}
	if c.LastName != "" {
		parts = append(parts, c.LastName)
	}
	if len(parts) == 0 && c.Username != "" {
		return "@" + c.Username
	}
	if len(parts) == 0 {
		return "client"
	}
	return strings.Join(parts, " ")
}

type Booking struct {
	ID            string        `json:"id"`
	Client        Client        `json:"client"`
	StartAtUTC    time.Time     `json:"start_at_utc"`
	EndAtUTC      time.Time     `json:"end_at_utc"`
	Status        BookingStatus `json:"status"`
	GoogleEventID string        `json:"google_event_id,omitempty"`
	EventLink     string        `json:"event_link,omitempty"`
	CreatedAt     time.Time     `json:"created_at,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at,omitempty"`
}

// Slot is a candidate reservable interval. Slots are produced fresh on every
// query and never persisted.
type Slot struct {
	StartUTC       time.Time `json:"start_utc"`
	EndUTC         time.Time `json:"end_utc"`
	StartLocal     string    `json:"start_local"`
	EndLocal       string    `json:"end_local"`
	StartLocalFull string    `json:"start_local_full"`
}

// DaySlot pairs a slot with the local calendar date it belongs to, for the
// merged next-N view across days.
type DaySlot struct {
	Date string `json:"date"`
	Slot
}

// Settings is the scalar configuration snapshot the engine re-reads per
// operation. Values live in the settings table; absent keys fall back to the
// defaults below.
type Settings struct {
	TimezoneName       string `json:"primary_tz"`
	MinLeadHours       int    `json:"min_hours_before_booking"`
	SessionMinutes     int    `json:"session_duration_minutes"`
	MaxActiveBookings  int    `json:"max_active_bookings_per_client"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
	DaysAheadToShow    int    `json:"days_ahead_to_show"`
	CalendarID         string `json:"calendar_id"`
}

func DefaultSettings() Settings {
	return Settings{
		TimezoneName:       "Europe/Minsk",
		MinLeadHours:       3,
		SessionMinutes:     60,
		MaxActiveBookings:  3,
		RateLimitPerMinute: 10,
		DaysAheadToShow:    14,
		CalendarID:         "primary",
	}
}

func (s Settings) Session() time.Duration {
	return time.Duration(s.SessionMinutes) * time.Minute
}

func (s Settings) Lead() time.Duration {
	return time.Duration(s.MinLeadHours) * time.Hour
}

func (s Settings) Location() (*time.Location, error) {
	return time.LoadLocation(s.TimezoneName)
}
