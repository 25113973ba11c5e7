package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-core-backend/internal/store"
)

// writeError maps store errors onto HTTP statuses. NotFound is checked first because
// an unknown resource is both a validation error and a missing record.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, store.ErrSlotUnavailable):
		status, code = http.StatusConflict, "SLOT_UNAVAILABLE"
	case errors.Is(err, store.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, store.ErrInvalidToken):
		status, code = http.StatusForbidden, "INVALID_TOKEN"
	case errors.Is(err, store.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION"
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("Internal error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
