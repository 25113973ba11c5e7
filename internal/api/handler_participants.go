package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-core-backend/internal/mw"
)

// ListParticipants handles GET /api/reservations/:id/participants.
func (h *Handler) ListParticipants(c *gin.Context) {
	r, ok := h.loadOwnReservation(c)
	if !ok {
		return
	}
	participants, err := h.store.ListParticipants(c.Request.Context(), r.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, participants)
}

type attachRequest struct {
	Identity string `json:"identity"`
}

// AttachParticipant handles POST /api/reservations/:id/participants.
// Callers register themselves; the booking's requester and administrators may register anyone.
func (h *Handler) AttachParticipant(c *gin.Context) {
	var req attachRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	caller := mw.RequesterIdentity(c)
	identity := req.Identity
	if identity == "" {
		identity = caller
	}
	if identity != caller {
		if _, ok := h.loadOwnReservation(c); !ok {
			return
		}
	}

	p, err := h.store.AttachParticipant(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// DetachParticipant handles DELETE /api/reservations/:id/participants/:identity.
func (h *Handler) DetachParticipant(c *gin.Context) {
	identity := c.Param("identity")
	if identity != mw.RequesterIdentity(c) {
		if _, ok := h.loadOwnReservation(c); !ok {
			return
		}
	}

	result, err := h.store.DetachParticipant(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
