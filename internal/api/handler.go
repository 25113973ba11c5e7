package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"booking-core-backend/internal/model"
	"booking-core-backend/internal/mw"
	"booking-core-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	webpush  *webpush.Options
	tokenTTL time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, webpushOptions *webpush.Options, tokenTTL time.Duration) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = 72 * time.Hour
	}
	return &Handler{
		store:    s,
		webpush:  webpushOptions,
		tokenTTL: tokenTTL,
	}
}

// loadOwnReservation fetches the reservation in :id and checks that the caller is its
// requester or an administrator. It writes the error response itself.
func (h *Handler) loadOwnReservation(c *gin.Context) (*model.Reservation, bool) {
	r, err := h.store.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if !mw.IsAdmin(c) && r.RequesterIdentity != mw.RequesterIdentity(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "reservation belongs to another requester", "code": "FORBIDDEN"})
		return nil, false
	}
	return r, true
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
}
