// Package calendar wraps the Google Calendar API as the engine's external
// collaborator: free/busy queries and best-effort event creation/deletion.
// The client is constructed explicitly and injected; there is no package
// global.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"psybooking-service/internal/engine"
	"psybooking-service/internal/timeslot"
)

// Config carries the OAuth2 material for the calendar client. The token is
// read from TokenJSON, or from TokenFile when TokenJSON is empty.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenJSON    string
	TokenFile    string
	Timezone     string
}

// Client talks to Google Calendar. An unauthenticated client is valid: every
// method degrades and Authenticated reports false, so the engine proceeds
// without external interference.
type Client struct {
	svc      *gcal.Service
	timezone string
	log      *slog.Logger
}

// NewClient builds the calendar client. Missing credentials or token yield
// an unauthenticated client rather than an error; the engine treats that as
// "no external calendar".
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{timezone: cfg.Timezone, log: log}
	if c.timezone == "" {
		c.timezone = "UTC"
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		log.Warn("google calendar credentials not configured, continuing without it")
		return c
	}

	token, err := loadToken(cfg)
	if err != nil {
		log.Warn("google calendar token unavailable, continuing without it", "err", err)
		return c
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gcal.CalendarScope},
		Endpoint:     google.Endpoint,
	}

	httpClient := oauthCfg.Client(ctx, token)
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		log.Warn("google calendar service init failed, continuing without it", "err", err)
		return c
	}
	c.svc = svc
	return c
}

func loadToken(cfg Config) (*oauth2.Token, error) {
	raw := []byte(cfg.TokenJSON)
	if len(raw) == 0 {
		if cfg.TokenFile == "" {
			return nil, fmt.Errorf("no token configured")
		}
		b, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
		raw = b
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &token, nil
}

func (c *Client) Authenticated() bool {
	return c != nil && c.svc != nil
}

// FetchBusy queries free/busy for the calendar over [timeMin, timeMax) and
// returns the occupied intervals in UTC.
func (c *Client) FetchBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]timeslot.Interval, error) {
	if !c.Authenticated() {
		return nil, engine.ErrExternalUnavailable
	}

	req := &gcal.FreeBusyRequest{
		TimeMin:  timeMin.UTC().Format(time.RFC3339),
		TimeMax:  timeMax.UTC().Format(time.RFC3339),
		TimeZone: "UTC",
		Items:    []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}
	resp, err := c.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: freebusy query: %v", engine.ErrExternalUnavailable, err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, nil
	}
	var busy []timeslot.Interval
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end %q: %w", p.End, err)
		}
		busy = append(busy, timeslot.Interval{Start: start.UTC(), End: end.UTC()})
	}
	return busy, nil
}

// CreateEvent inserts an event with popup reminders 60 and 30 minutes ahead.
// The event body carries the configured local zone so the operator's
// calendar renders wall-clock times.
func (c *Client) CreateEvent(ctx context.Context, calendarID, summary, description string, start, end time.Time) (engine.ExternalEvent, error) {
	if !c.Authenticated() {
		return engine.ExternalEvent{}, engine.ErrExternalUnavailable
	}

	loc, err := time.LoadLocation(c.timezone)
	if err != nil {
		loc = time.UTC
	}

	event := &gcal.Event{
		Summary:     summary,
		Description: description,
		Start: &gcal.EventDateTime{
			DateTime: start.In(loc).Format(time.RFC3339),
			TimeZone: c.timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: end.In(loc).Format(time.RFC3339),
			TimeZone: c.timezone,
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "popup", Minutes: 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return engine.ExternalEvent{}, fmt.Errorf("%w: event insert: %v", engine.ErrExternalUnavailable, err)
	}
	return engine.ExternalEvent{ID: created.Id, Link: created.HtmlLink}, nil
}

// DeleteEvent removes an event; used when a booking is cancelled.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if !c.Authenticated() {
		return engine.ErrExternalUnavailable
	}
	if err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: event delete: %v", engine.ErrExternalUnavailable, err)
	}
	return nil
}
