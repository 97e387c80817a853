package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lithium-apps/exam-timetabling-api/internal/dto"
	"github.com/lithium-apps/exam-timetabling-api/internal/service"
	appErrors "github.com/lithium-apps/exam-timetabling-api/pkg/errors"
	"github.com/lithium-apps/exam-timetabling-api/pkg/response"
)

// VenueHandler exposes the venue catalogue endpoints.
type VenueHandler struct {
	venues *service.VenueService
}

// NewVenueHandler constructs a venue handler.
func NewVenueHandler(venues *service.VenueService) *VenueHandler {
	return &VenueHandler{venues: venues}
}

// List returns every venue.
func (h *VenueHandler) List(c *gin.Context) {
	venues, err := h.venues.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, venues)
}

// Get returns one venue by name.
func (h *VenueHandler) Get(c *gin.Context) {
	venue, err := h.venues.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, venue)
}

// Save creates or updates a venue and binds any matching placeholder slots.
func (h *VenueHandler) Save(c *gin.Context) {
	var req dto.VenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	venue, created, err := h.venues.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, venue)
		return
	}
	response.JSON(c, http.StatusOK, venue)
}
