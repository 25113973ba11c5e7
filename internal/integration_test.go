package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-core-backend/config"
	"booking-core-backend/internal/api"
	"booking-core-backend/internal/availability"
	"booking-core-backend/internal/db"
	"booking-core-backend/internal/model"
	"booking-core-backend/internal/reaper"
	"booking-core-backend/internal/store"
)

const (
	admin = "admin@studio.example"
	guest = "guest@example.com"
)

type client struct {
	t      *testing.T
	router http.Handler
}

func (c client) do(method, path, identity string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set("X-Requester-Identity", identity)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

// with binds the client to a subtest so failed assertions stop the right goroutine.
func (c client) with(t *testing.T) client {
	c.t = t
	return c
}

func (c client) openStarts(resourceID string) []time.Time {
	c.t.Helper()
	var resp struct {
		Slots []availability.Slot `json:"slots"`
	}
	code := c.do(http.MethodGet, "/api/resources/"+resourceID+"/availability?from=2025-03-04&to=2025-03-04", "", nil, &resp)
	require.Equal(c.t, http.StatusOK, code)
	starts := make([]time.Time, len(resp.Slots))
	for i, s := range resp.Slots {
		starts[i] = s.Start.UTC()
	}
	return starts
}

// TestBookingLifecycle drives a resource from creation through hold, confirm,
// reschedule, cancel and hold expiry over HTTP against an in-memory database.
func TestBookingLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// --- Test Setup ---
	cfg := &config.Config{
		Server: config.ServerConfig{AdminIdentities: []string{admin}},
		Database: config.DatabaseConfig{
			Driver:   "sqlite",
			DSN:      "file:" + uuid.NewString() + "?mode=memory&cache=shared",
			LogLevel: "silent",
		},
	}
	config.ApplyDefaults(cfg)
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Server.HoldRateLimit.Requests = 100

	gormDB, err := db.Init(&cfg.Database)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	appStore := store.NewGormStore(gormDB, store.WithHoldTTL(cfg.Booking.HoldTTL))
	c := client{t: t, router: api.NewRouter(appStore, cfg, nil)}

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at := func(hour, minute int) time.Time { return time.Date(2025, 3, 4, hour, minute, 0, 0, loc) }

	var resource model.Resource
	code := c.do(http.MethodPost, "/api/resources", admin, map[string]any{
		"title":        "Remote Studio Visit",
		"kind":         "person",
		"capacity":     1,
		"is_bookable":  true,
		"timezone":     "America/New_York",
		"slot_minutes": 30,
		"windows": []map[string]any{
			{"host_identifier": "studio", "days_of_week": "TU,WE,TH", "start_time": "12:00", "end_time": "16:00"},
		},
	}, &resource)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, resource.ID)

	// --- Availability on an empty calendar ---
	t.Run("Tuesday offers eight slots", func(t *testing.T) {
		c := c.with(t)
		starts := c.openStarts(resource.ID)
		require.Len(t, starts, 8)
		assert.Equal(t, at(12, 0).UTC(), starts[0])
		assert.Equal(t, at(15, 30).UTC(), starts[7])
	})

	// --- Hold, confirm and reschedule ---
	var hold struct {
		Reservation model.Reservation `json:"reservation"`
		Tokens      struct {
			Reschedule string `json:"reschedule"`
			Cancel     string `json:"cancel"`
		} `json:"tokens"`
	}
	t.Run("Hold closes the slot", func(t *testing.T) {
		c := c.with(t)
		code := c.do(http.MethodPost, "/api/resources/"+resource.ID+"/holds", guest, map[string]any{
			"start": at(12, 0), "end": at(12, 30),
		}, &hold)
		require.Equal(t, http.StatusCreated, code)
		assert.Equal(t, model.StatusHeld, hold.Reservation.Status)
		assert.Equal(t, "studio", hold.Reservation.HostIdentifier)
		require.NotEmpty(t, hold.Tokens.Reschedule)

		starts := c.openStarts(resource.ID)
		assert.Len(t, starts, 7)
		assert.NotContains(t, starts, at(12, 0).UTC())

		code = c.do(http.MethodPost, "/api/resources/"+resource.ID+"/holds", "other@example.com", map[string]any{
			"start": at(12, 0), "end": at(12, 30),
		}, nil)
		assert.Equal(t, http.StatusConflict, code)
	})

	t.Run("Confirm and reschedule in place", func(t *testing.T) {
		c := c.with(t)
		var confirmed model.Reservation
		require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/reservations/"+hold.Reservation.ID+"/confirm", guest, nil, &confirmed))
		assert.Equal(t, model.StatusConfirmed, confirmed.Status)

		var moved model.Reservation
		code := c.do(http.MethodPost, "/api/reservations/"+hold.Reservation.ID+"/reschedule", "", map[string]any{
			"start": at(13, 0), "end": at(13, 30), "token": hold.Tokens.Reschedule,
		}, &moved)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, hold.Reservation.ID, moved.ID)
		assert.Equal(t, at(13, 0).UTC(), moved.StartTime.UTC())
		assert.Equal(t, 1, moved.Sequence)

		starts := c.openStarts(resource.ID)
		assert.Contains(t, starts, at(12, 0).UTC())
		assert.NotContains(t, starts, at(13, 0).UTC())

		code = c.do(http.MethodPost, "/api/reservations/"+hold.Reservation.ID+"/reschedule", "", map[string]any{
			"start": at(14, 0), "end": at(14, 30), "token": hold.Tokens.Reschedule,
		}, nil)
		assert.Equal(t, http.StatusForbidden, code, "a reschedule token is single use")
	})

	t.Run("Cancel with token releases the slot", func(t *testing.T) {
		c := c.with(t)
		var cancelled model.Reservation
		code := c.do(http.MethodPost, "/api/reservations/"+hold.Reservation.ID+"/cancel", "", map[string]any{
			"token": hold.Tokens.Cancel,
		}, &cancelled)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, model.StatusCancelled, cancelled.Status)
		assert.Len(t, c.openStarts(resource.ID), 8)

		code = c.do(http.MethodPost, "/api/reservations/"+hold.Reservation.ID+"/cancel", "", map[string]any{
			"token": hold.Tokens.Cancel,
		}, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	// --- Hold expiry through the reaper ---
	t.Run("Reaper releases an unconfirmed hold", func(t *testing.T) {
		c := c.with(t)
		var lapsed struct {
			Reservation model.Reservation `json:"reservation"`
		}
		code := c.do(http.MethodPost, "/api/resources/"+resource.ID+"/holds", guest, map[string]any{
			"start": at(15, 0), "end": at(15, 30),
		}, &lapsed)
		require.Equal(t, http.StatusCreated, code)
		assert.NotContains(t, c.openStarts(resource.ID), at(15, 0).UTC())

		svc, err := reaper.New(appStore, "@every 1m")
		require.NoError(t, err)
		svc.SweepOnce(context.Background(), time.Now().Add(cfg.Booking.HoldTTL+time.Minute))

		assert.Contains(t, c.openStarts(resource.ID), at(15, 0).UTC())

		var after model.Reservation
		require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/reservations/"+lapsed.Reservation.ID, guest, nil, &after))
		assert.Equal(t, model.StatusCancelled, after.Status)
		assert.Equal(t, store.ReasonHoldExpired, after.CancelReason)
	})
}
