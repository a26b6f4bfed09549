// Package app exposes the booking engine over HTTP: slot queries, booking
// creation and cancellation, and rule administration.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"psybooking-service/internal/engine"
	"psybooking-service/internal/timeslot"
)

// AdminStore covers the rule and settings writes the administrative routes
// need; satisfied by the postgres store.
type AdminStore interface {
	Rules(ctx context.Context) ([]engine.WorkingHourRule, error)
	UpsertRule(ctx context.Context, r engine.WorkingHourRule) error
	LoadSettings(ctx context.Context) (engine.Settings, error)
	SetSetting(ctx context.Context, key, value string) error
}

type Handlers struct {
	Engine *engine.Engine
	Admin  AdminStore
	Log    *slog.Logger
}

// Register mounts all routes. Everything under /api sits behind auth;
// /healthz does not.
func (h *Handlers) Register(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	if auth != nil {
		api.Use(auth)
	}
	{
		api.GET("/slots", h.GetSlots)
		api.GET("/slots/next", h.GetNextSlots)
		api.GET("/dates", h.GetDates)
		api.POST("/bookings", h.CreateBooking)
		api.DELETE("/bookings/:id", h.CancelBooking)
		api.GET("/clients/:id/bookings", h.ListClientBookings)

		admin := api.Group("/admin")
		{
			admin.GET("/working-hours", h.ListWorkingHours)
			admin.PUT("/working-hours", h.PutWorkingHours)
			admin.GET("/settings", h.GetSettings)
			admin.PUT("/settings", h.PutSettings)
		}
	}
}

// GET /api/slots?date=2006-01-02
func (h *Handlers) GetSlots(c *gin.Context) {
	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}
	slots, err := h.Engine.AvailableSlots(c.Request.Context(), date)
	if err != nil {
		h.serverError(c, err)
		return
	}
	if slots == nil {
		slots = []engine.Slot{}
	}
	c.JSON(http.StatusOK, gin.H{"date": dateStr, "slots": slots})
}

// GET /api/dates?days=N
func (h *Handlers) GetDates(c *gin.Context) {
	days := 0
	if s := c.Query("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = n
	}
	dates, err := h.Engine.AvailableDates(c.Request.Context(), days)
	if err != nil {
		h.serverError(c, err)
		return
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format("2006-01-02"))
	}
	c.JSON(http.StatusOK, gin.H{"dates": out})
}

// GET /api/slots/next?limit=N
func (h *Handlers) GetNextSlots(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	slots, err := h.Engine.NextAvailableSlots(c.Request.Context(), limit)
	if err != nil {
		h.serverError(c, err)
		return
	}
	if slots == nil {
		slots = []engine.DaySlot{}
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

type createBookingReq struct {
	ClientID   int64  `json:"client_id" binding:"required"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	StartAtUTC string `json:"start_at_utc" binding:"required"` // RFC3339
}

// POST /api/bookings
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req createBookingReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartAtUTC)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_at_utc"})
		return
	}

	client := engine.Client{
		ID:        req.ClientID,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	res, err := h.Engine.Book(c.Request.Context(), client, start)
	if err != nil {
		h.bookingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// DELETE /api/bookings/:id
func (h *Handlers) CancelBooking(c *gin.Context) {
	err := h.Engine.CancelBooking(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, engine.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": "booking already cancelled"})
	default:
		h.serverError(c, err)
	}
}

// GET /api/clients/:id/bookings
func (h *Handlers) ListClientBookings(c *gin.Context) {
	clientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
		return
	}
	bookings, err := h.Engine.ClientBookings(c.Request.Context(), clientID)
	if err != nil {
		h.serverError(c, err)
		return
	}
	if bookings == nil {
		bookings = []engine.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GET /api/admin/working-hours
func (h *Handlers) ListWorkingHours(c *gin.Context) {
	rules, err := h.Admin.Rules(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// PUT /api/admin/working-hours
func (h *Handlers) PutWorkingHours(c *gin.Context) {
	var rules []engine.WorkingHourRule
	if err := c.BindJSON(&rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, r := range rules {
		if err := validateRule(r); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}
	for _, r := range rules {
		if err := h.Admin.UpsertRule(c.Request.Context(), r); err != nil {
			h.serverError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, rules)
}

// GET /api/admin/settings
func (h *Handlers) GetSettings(c *gin.Context) {
	st, err := h.Admin.LoadSettings(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

var settableKeys = map[string]bool{
	"primary_tz":                     true,
	"min_hours_before_booking":       true,
	"session_duration_minutes":       true,
	"max_active_bookings_per_client": true,
	"rate_limit_per_minute":          true,
	"days_ahead_to_show":             true,
	"calendar_id":                    true,
}

// PUT /api/admin/settings
func (h *Handlers) PutSettings(c *gin.Context) {
	var values map[string]string
	if err := c.BindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for key := range values {
		if !settableKeys[key] {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown setting " + key})
			return
		}
	}
	for key, value := range values {
		if err := h.Admin.SetSetting(c.Request.Context(), key, value); err != nil {
			h.serverError(c, err)
			return
		}
	}
	st, err := h.Admin.LoadSettings(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// bookingError maps the engine's failure taxonomy onto HTTP statuses, each
// with a machine-readable reason the caller can render.
func (h *Handlers) bookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrSlotTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reason": "slot_taken"})
	case errors.Is(err, engine.ErrLeadTimeViolation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "reason": "lead_time"})
	case errors.Is(err, engine.ErrCapExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reason": "cap_exceeded"})
	case errors.Is(err, engine.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "reason": "rate_limited"})
	default:
		h.serverError(c, err)
	}
}

func (h *Handlers) serverError(c *gin.Context, err error) {
	if h.Log != nil {
		h.Log.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func validateRule(r engine.WorkingHourRule) error {
	if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
		return engine.ErrInvalidRule
	}
	sh, sm, err := timeslot.ParseClock(r.StartTime)
	if err != nil {
		return engine.ErrInvalidRule
	}
	eh, em, err := timeslot.ParseClock(r.EndTime)
	if err != nil {
		return engine.ErrInvalidRule
	}
	if eh*60+em <= sh*60+sm {
		return engine.ErrInvalidRule
	}
	return nil
}
