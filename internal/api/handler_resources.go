package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"booking-core-backend/internal/model"
	"booking-core-backend/internal/parse"
)

type blackoutRequest struct {
	HostIdentifier string `json:"host_identifier"`
	// Start and End are RFC 3339 instants or whole dates in the resource zone; a date End is inclusive.
	Start string `json:"start" binding:"required"`
	End   string `json:"end"`
}

type resourceRequest struct {
	model.Resource
	Blackouts []blackoutRequest `json:"blackouts"`
}

func (req *resourceRequest) toModel() (*model.Resource, error) {
	res := req.Resource
	loc, err := time.LoadLocation(res.Timezone)
	if err != nil || res.Timezone == "" {
		return nil, fmt.Errorf("unknown timezone %q", res.Timezone)
	}
	res.Blackouts = make([]model.Blackout, 0, len(req.Blackouts))
	for i, b := range req.Blackouts {
		start, end, err := parse.ParseRange(b.Start, b.End, loc)
		if err != nil {
			return nil, fmt.Errorf("blackout %d: %w", i, err)
		}
		res.Blackouts = append(res.Blackouts, model.Blackout{
			HostIdentifier: b.HostIdentifier,
			StartsAt:       start,
			EndsAt:         end,
		})
	}
	return &res, nil
}

// ListResources handles GET /api/resources.
func (h *Handler) ListResources(c *gin.Context) {
	resources, err := h.store.ListResources(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resources)
}

// GetResource handles GET /api/resources/:id.
func (h *Handler) GetResource(c *gin.Context) {
	res, err := h.store.GetResource(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateResource handles POST /api/resources.
func (h *Handler) CreateResource(c *gin.Context) {
	var req resourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := req.toModel()
	if err != nil {
		badRequest(c, err)
		return
	}
	res.ID = ""
	if err := h.store.CreateResource(c.Request.Context(), res); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// UpdateResource handles PUT /api/resources/:id and replaces the whole rules document.
func (h *Handler) UpdateResource(c *gin.Context) {
	var req resourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := req.toModel()
	if err != nil {
		badRequest(c, err)
		return
	}
	res.ID = c.Param("id")
	if err := h.store.UpdateResource(c.Request.Context(), res); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
