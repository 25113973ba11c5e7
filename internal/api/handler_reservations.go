package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"booking-core-backend/internal/model"
	"booking-core-backend/internal/mw"
	"booking-core-backend/internal/store"
)

type holdRequest struct {
	Start    time.Time            `json:"start" binding:"required"`
	End      time.Time            `json:"end" binding:"required"`
	Capacity int                  `json:"capacity"`
	Host     string               `json:"host"`
	Meeting  model.MeetingDetails `json:"meeting"`
}

type issuedTokens struct {
	Reschedule string    `json:"reschedule,omitempty"`
	Cancel     string    `json:"cancel,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type holdResponse struct {
	Reservation *model.Reservation `json:"reservation"`
	Tokens      *issuedTokens      `json:"tokens,omitempty"`
}

// CreateHold handles POST /api/resources/:id/holds.
// The response carries the reschedule and cancel tokens; they are not retrievable later.
func (h *Handler) CreateHold(c *gin.Context) {
	var req holdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r, err := h.store.CreateHold(c.Request.Context(), store.HoldRequest{
		ResourceID:    c.Param("id"),
		Requester:     mw.RequesterIdentity(c),
		Start:         req.Start,
		End:           req.End,
		Capacity:      req.Capacity,
		PreferredHost: req.Host,
		Meeting:       req.Meeting,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := holdResponse{Reservation: r}
	if tokens, err := h.issueLifecycleTokens(c, r.ID); err != nil {
		log.Printf("Error issuing tokens for reservation %s: %v", r.ID, err)
	} else {
		resp.Tokens = tokens
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) issueLifecycleTokens(c *gin.Context, reservationID string) (*issuedTokens, error) {
	ctx := c.Request.Context()
	subject := store.ReservationSubject(reservationID)
	reschedule, expires, err := h.store.IssueToken(ctx, subject, model.PurposeReschedule, h.tokenTTL)
	if err != nil {
		return nil, err
	}
	cancel, _, err := h.store.IssueToken(ctx, subject, model.PurposeCancel, h.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &issuedTokens{Reschedule: reschedule, Cancel: cancel, ExpiresAt: expires}, nil
}

// GetReservation handles GET /api/reservations/:id.
func (h *Handler) GetReservation(c *gin.Context) {
	r, ok := h.loadOwnReservation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r)
}

// ConfirmReservation handles POST /api/reservations/:id/confirm.
func (h *Handler) ConfirmReservation(c *gin.Context) {
	if _, ok := h.loadOwnReservation(c); !ok {
		return
	}
	r, err := h.store.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type rescheduleRequest struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
	Token string    `json:"token"`
}

// RescheduleReservation handles POST /api/reservations/:id/reschedule.
// The reschedule token is the capability; administrators may omit it.
func (h *Handler) RescheduleReservation(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.store.Reschedule(c.Request.Context(), store.RescheduleRequest{
		ReservationID: c.Param("id"),
		Start:         req.Start,
		End:           req.End,
		Token:         req.Token,
		Actor:         mw.RequesterIdentity(c),
		Admin:         mw.IsAdmin(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type cancelRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

// CancelReservation handles POST /api/reservations/:id/cancel.
func (h *Handler) CancelReservation(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	r, err := h.store.Cancel(c.Request.Context(), store.CancelRequest{
		ReservationID: c.Param("id"),
		Token:         req.Token,
		Reason:        req.Reason,
		Admin:         mw.IsAdmin(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
