package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"booking-core-backend/internal/model"
	"booking-core-backend/internal/mw"
	"booking-core-backend/internal/store"
)

type tokenRequest struct {
	Purpose model.TokenPurpose `json:"purpose" binding:"required,oneof=reschedule cancel"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueReservationToken handles POST /api/reservations/:id/tokens, re-issuing a
// reschedule or cancel link for the requester or an administrator.
func (h *Handler) IssueReservationToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, ok := h.loadOwnReservation(c)
	if !ok {
		return
	}
	raw, expires, err := h.store.IssueToken(c.Request.Context(), store.ReservationSubject(r.ID), req.Purpose, h.tokenTTL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tokenResponse{Token: raw, Purpose: string(req.Purpose), ExpiresAt: expires})
}

// identitySubject is the token subject of a magic link sent to identity.
func identitySubject(identity string) string {
	return "identity/" + identity
}

type magicLinkRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// IssueMagicLink handles POST /api/magic_links. Administrators mint a sign-in token for
// an identity; delivering it is up to the caller.
func (h *Handler) IssueMagicLink(c *gin.Context) {
	var req magicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	raw, expires, err := h.store.IssueToken(c.Request.Context(), identitySubject(req.Identity), model.PurposeMagicLink, h.tokenTTL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tokenResponse{Token: raw, Purpose: string(model.PurposeMagicLink), ExpiresAt: expires})
}

type redeemRequest struct {
	Identity string `json:"identity" binding:"required"`
	Token    string `json:"token" binding:"required"`
}

// RedeemMagicLink handles POST /api/magic_links/redeem. The token is spent on success.
func (h *Handler) RedeemMagicLink(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if caller := mw.RequesterIdentity(c); caller != "" && caller != req.Identity {
		writeError(c, fmt.Errorf("%w: signed in as another identity", store.ErrInvalidToken))
		return
	}
	if err := h.store.ConsumeToken(c.Request.Context(), req.Token, model.PurposeMagicLink, identitySubject(req.Identity)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": req.Identity})
}
