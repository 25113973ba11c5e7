package api

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"booking-core-backend/internal/availability"
	"booking-core-backend/internal/parse"
	"booking-core-backend/internal/store"
)

type availabilityResponse struct {
	ResourceID string              `json:"resource_id"`
	From       time.Time           `json:"from"`
	To         time.Time           `json:"to"`
	Slots      []availability.Slot `json:"slots"`
}

// GetAvailability handles GET /api/resources/:id/availability.
// from and to accept whole dates in the resource time zone or RFC 3339 instants.
func (h *Handler) GetAvailability(c *gin.Context) {
	ctx := c.Request.Context()
	res, err := h.store.GetResource(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	loc, err := time.LoadLocation(res.Timezone)
	if err != nil {
		writeError(c, fmt.Errorf("failed to load zone of resource %s: %w", res.ID, err))
		return
	}

	from, to, err := parse.ParseRange(c.Query("from"), c.Query("to"), loc)
	if err != nil {
		badRequest(c, err)
		return
	}
	q := store.AvailabilityQuery{
		ResourceID:    res.ID,
		From:          from,
		To:            to,
		PreferredHost: c.Query("host"),
	}
	if raw := c.Query("duration"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, fmt.Errorf("duration must be a number of minutes"))
			return
		}
		q.Duration = time.Duration(minutes) * time.Minute
	}
	if raw := c.Query("capacity"); raw != "" {
		q.Capacity, err = strconv.Atoi(raw)
		if err != nil {
			badRequest(c, fmt.Errorf("capacity must be an integer"))
			return
		}
	}

	seq, err := h.store.Availability(ctx, q)
	if err != nil {
		writeError(c, err)
		return
	}
	slots := slices.Collect(seq)
	if slots == nil {
		slots = []availability.Slot{}
	}
	c.JSON(http.StatusOK, availabilityResponse{
		ResourceID: res.ID,
		From:       from.UTC(),
		To:         to.UTC(),
		Slots:      slots,
	})
}
