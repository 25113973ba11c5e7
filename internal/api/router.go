package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"booking-core-backend/config"
	"booking-core-backend/internal/mw"
	"booking-core-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, cfg *config.Config, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, webpushOptions, cfg.Booking.TokenTTL)

	// Initialize middleware
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	holdLimiter := mw.HoldRateLimit(mw.NewFixedWindowLimiter(cfg.Server.HoldRateLimit.Requests, cfg.Server.HoldRateLimit.Window))

	// The catalog cache is emptied by any successful write under /api.
	catalog := mw.NewCatalogCache(cfg.Server.CacheTTL)
	caching := catalog.Middleware()

	authed := mw.RequireIdentity()
	admin := mw.RequireAdmin()

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter, mw.Identity(cfg.Server.RequestIdentityHeader, cfg.Server.AdminIdentities), catalog.FlushOnWrite())
	{
		// Resource catalog
		api.GET("/resources", caching, handler.ListResources)
		api.GET("/resources/:id", caching, handler.GetResource)
		api.POST("/resources", authed, admin, handler.CreateResource)
		api.PUT("/resources/:id", authed, admin, handler.UpdateResource)

		api.GET("/resources/:id/availability", handler.GetAvailability)
		api.POST("/resources/:id/holds", authed, holdLimiter, handler.CreateHold)

		// Reservation lifecycle. Reschedule and cancel are authorized by their tokens.
		api.GET("/reservations/:id", authed, handler.GetReservation)
		api.POST("/reservations/:id/confirm", authed, handler.ConfirmReservation)
		api.POST("/reservations/:id/reschedule", handler.RescheduleReservation)
		api.POST("/reservations/:id/cancel", handler.CancelReservation)
		api.POST("/reservations/:id/tokens", authed, handler.IssueReservationToken)

		// Participant roster
		api.GET("/reservations/:id/participants", authed, handler.ListParticipants)
		api.POST("/reservations/:id/participants", authed, handler.AttachParticipant)
		api.DELETE("/reservations/:id/participants/:identity", authed, handler.DetachParticipant)

		api.POST("/magic_links", authed, admin, handler.IssueMagicLink)
		api.POST("/magic_links/redeem", handler.RedeemMagicLink)

		api.GET("/subscriptions", authed, handler.GetSubscription)
		api.PUT("/subscriptions", authed, handler.PutSubscription)
		api.DELETE("/subscriptions", authed, handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
