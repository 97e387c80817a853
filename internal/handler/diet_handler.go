package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lithium-apps/exam-timetabling-api/internal/service"
	"github.com/lithium-apps/exam-timetabling-api/pkg/response"
)

// DietHandler exposes the exam diet listing.
type DietHandler struct {
	diets *service.DietService
}

// NewDietHandler constructs a diet handler.
func NewDietHandler(diets *service.DietService) *DietHandler {
	return &DietHandler{diets: diets}
}

// List returns every stored diet.
func (h *DietHandler) List(c *gin.Context) {
	diets, err := h.diets.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diets)
}
