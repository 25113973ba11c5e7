package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-core-backend/internal/model"
	"booking-core-backend/internal/mw"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutSubscription handles the creation or replacement of a subscription for the caller.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
		Identity: mw.RequesterIdentity(c),
	}
	if err := h.store.SaveSubscription(c.Request.Context(), &subscription); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of one of the caller's subscriptions.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if _, ok := h.ownSubscription(c, req.Endpoint); !ok {
		return
	}
	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription handles the retrieval of a subscription. Without an endpoint it lists all of the caller's.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		subs, err := h.store.ListSubscriptions(c.Request.Context(), mw.RequesterIdentity(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, subs)
		return
	}

	sub, ok := h.ownSubscription(c, endpoint)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) ownSubscription(c *gin.Context, endpoint string) (*model.PushSubscription, bool) {
	sub, err := h.store.GetSubscription(c.Request.Context(), endpoint)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if sub.Identity != mw.RequesterIdentity(c) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "subscription not found", "code": "NOT_FOUND"})
		return nil, false
	}
	return sub, true
}

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
