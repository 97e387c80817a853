package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lithium-apps/exam-timetabling-api/internal/service"
	appErrors "github.com/lithium-apps/exam-timetabling-api/pkg/errors"
	"github.com/lithium-apps/exam-timetabling-api/pkg/response"
)

// ExamHandler exposes the exam read model: listings, per-exam slots, and the
// allocation view with CSV export.
type ExamHandler struct {
	exams *service.ExamService
	stats *service.VenueService
}

// NewExamHandler constructs an exam handler.
func NewExamHandler(exams *service.ExamService, stats *service.VenueService) *ExamHandler {
	return &ExamHandler{exams: exams, stats: stats}
}

func examID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam id")
	}
	return id, nil
}

// List returns every exam.
func (h *ExamHandler) List(c *gin.Context) {
	exams, err := h.exams.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams)
}

// Get returns one exam.
func (h *ExamHandler) Get(c *gin.Context) {
	id, err := examID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	exam, err := h.exams.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam)
}

// Slots returns every exam-venue slot for one exam.
func (h *ExamHandler) Slots(c *gin.Context) {
	id, err := examID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	slots, err := h.exams.Slots(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots)
}

// Allocations returns the flattened allocation view for one exam.
func (h *ExamHandler) Allocations(c *gin.Context) {
	id, err := examID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.exams.Allocations(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// ExportAllocations streams the allocation view for one exam as CSV.
func (h *ExamHandler) ExportAllocations(c *gin.Context) {
	id, err := examID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, fileName, err := h.exams.ExportAllocationsCSV(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
}

// Stats returns the headcount breakdown for one exam.
func (h *ExamHandler) Stats(c *gin.Context) {
	id, err := examID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.stats.ExamStats(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}
