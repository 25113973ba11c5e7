package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	identityKey = "requester_identity"
	adminKey    = "requester_admin"
)

// Identity reads the requester identity set by the upstream auth proxy.
// Identities listed in admins are flagged as administrators.
func Identity(header string, admins []string) gin.HandlerFunc {
	adminSet := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		adminSet[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}
	return func(c *gin.Context) {
		identity := strings.TrimSpace(c.GetHeader(header))
		if identity != "" {
			c.Set(identityKey, identity)
			_, admin := adminSet[strings.ToLower(identity)]
			c.Set(adminKey, admin)
		}
		c.Next()
	}
}

// RequesterIdentity returns the identity of the caller, or "" when anonymous.
func RequesterIdentity(c *gin.Context) string {
	return c.GetString(identityKey)
}

// IsAdmin reports whether the caller is a configured administrator.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(adminKey)
}

// RequireIdentity rejects anonymous callers.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if RequesterIdentity(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "requester identity is required", "code": "UNAUTHENTICATED"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects callers that are not administrators.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "administrator access is required", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}
