package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"psybooking-service/internal/app"
	"psybooking-service/internal/engine"
)

type stubRules struct{ settings engine.Settings }

func (s *stubRules) RuleForDay(_ context.Context, day time.Weekday) (engine.WorkingHourRule, bool, error) {
	if day == time.Saturday || day == time.Sunday {
		return engine.WorkingHourRule{}, false, nil
	}
	return engine.WorkingHourRule{DayOfWeek: day, StartTime: "10:00", EndTime: "19:00", IsActive: true}, true, nil
}

func (s *stubRules) Rules(ctx context.Context) ([]engine.WorkingHourRule, error) {
	var out []engine.WorkingHourRule
	for d := time.Sunday; d <= time.Saturday; d++ {
		if r, ok, _ := s.RuleForDay(ctx, d); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRules) LoadSettings(_ context.Context) (engine.Settings, error) {
	return s.settings, nil
}

func (s *stubRules) UpsertRule(_ context.Context, _ engine.WorkingHourRule) error { return nil }
func (s *stubRules) SetSetting(_ context.Context, _, _ string) error              { return nil }

type stubBookings struct {
	reserveErr error
	active     []engine.Booking
}

func (s *stubBookings) Reserve(_ context.Context, p engine.ReserveParams) (engine.Booking, error) {
	if s.reserveErr != nil {
		return engine.Booking{}, s.reserveErr
	}
	return engine.Booking{
		ID: "bk-1", Client: p.Client, StartAtUTC: p.StartAtUTC, EndAtUTC: p.EndAtUTC,
		Status: engine.StatusPending,
	}, nil
}

func (s *stubBookings) Confirm(_ context.Context, _, _, _ string) error { return nil }
func (s *stubBookings) Cancel(_ context.Context, _ string) error        { return nil }

func (s *stubBookings) Get(_ context.Context, _ string) (engine.Booking, error) {
	return engine.Booking{}, engine.ErrNotFound
}

func (s *stubBookings) Overlapping(_ context.Context, _, _ time.Time) ([]engine.Booking, error) {
	return nil, nil
}

func (s *stubBookings) ActiveFor(_ context.Context, _ int64) ([]engine.Booking, error) {
	return s.active, nil
}

type stubRates struct{}

func (stubRates) PurgeBefore(_ context.Context, _ time.Time) error { return nil }
func (stubRates) CountSince(_ context.Context, _ int64, _ time.Time) (int, error) {
	return 0, nil
}
func (stubRates) Record(_ context.Context, _ int64, _ time.Time) error { return nil }

func testRouter(t *testing.T, bookings *stubBookings) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	settings := engine.DefaultSettings()
	settings.TimezoneName = "UTC"
	rules := &stubRules{settings: settings}
	eng := engine.New(rules, bookings, stubRates{}, nil, nil, nil)

	router := gin.New()
	h := &app.Handlers{Engine: eng, Admin: rules}
	h.Register(router, nil)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetSlotsRequiresDate(t *testing.T) {
	router := testRouter(t, &stubBookings{})
	w := doJSON(t, router, http.MethodGet, "/api/slots", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestGetSlotsReturnsWorkingDay(t *testing.T) {
	router := testRouter(t, &stubBookings{})
	// 2030-01-07 is a Monday far enough out that the lead clamp does not
	// bite.
	w := doJSON(t, router, http.MethodGet, "/api/slots?date=2030-01-07", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Slots []engine.Slot `json:"slots"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Slots) != 9 {
		t.Fatalf("expected 9 slots, got %d", len(resp.Slots))
	}
}

func TestCreateBookingSlotTaken(t *testing.T) {
	router := testRouter(t, &stubBookings{reserveErr: engine.ErrSlotTaken})
	body := `{"client_id": 7, "start_at_utc": "2030-01-07T14:00:00Z"}`
	w := doJSON(t, router, http.MethodPost, "/api/bookings", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["reason"] != "slot_taken" {
		t.Fatalf("reason %q, want slot_taken", resp["reason"])
	}
}

func TestCreateBookingLeadTimeRejected(t *testing.T) {
	router := testRouter(t, &stubBookings{})
	body := `{"client_id": 7, "start_at_utc": "2020-01-06T14:00:00Z"}`
	w := doJSON(t, router, http.MethodPost, "/api/bookings", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422: %s", w.Code, w.Body.String())
	}
}

func TestPutWorkingHoursValidates(t *testing.T) {
	router := testRouter(t, &stubBookings{})
	body := `[{"day_of_week": 1, "start_time": "19:00", "end_time": "10:00", "is_active": true}]`
	w := doJSON(t, router, http.MethodPut, "/api/admin/working-hours", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422: %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/ping", app.AuthMiddleware([]string{"secret-token"}, ""), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: status %d, want 200", w.Code)
	}
}
