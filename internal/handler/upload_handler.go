package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lithium-apps/exam-timetabling-api/internal/dto"
	"github.com/lithium-apps/exam-timetabling-api/internal/service"
	appErrors "github.com/lithium-apps/exam-timetabling-api/pkg/errors"
	"github.com/lithium-apps/exam-timetabling-api/pkg/response"
)

// UploadHandler exposes the ingestion endpoints for parsed spreadsheet
// uploads.
type UploadHandler struct {
	ingest *service.IngestService
	diets  *service.DietService
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(ingest *service.IngestService, diets *service.DietService) *UploadHandler {
	return &UploadHandler{ingest: ingest, diets: diets}
}

// Ingest accepts one parsed upload result and persists it. Exam uploads also
// report the spanned date range and a diet suggestion.
func (h *UploadHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	summary, err := h.ingest.IngestUploadResult(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if req.Result.Type == service.UploadTypeExam {
		if dateRange := service.ComputeExamDateRange(req.Result.Rows); dateRange != nil {
			suggestion, err := h.diets.SuggestForRange(c.Request.Context(), dateRange.MinDate, dateRange.MaxDate)
			if err != nil {
				response.Error(c, err)
				return
			}
			meta = map[string]interface{}{
				"upload_exam_date_range": dateRange,
				"diet_suggestion":        suggestion,
			}
		}
	}
	response.JSON(c, http.StatusOK, summary, meta)
}

// Reallocate re-runs venue allocation for every stored provision.
func (h *UploadHandler) Reallocate(c *gin.Context) {
	summary, err := h.ingest.RerunProvisionAllocation(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Logs returns the ingestion history.
func (h *UploadHandler) Logs(c *gin.Context) {
	logs, err := h.ingest.UploadLogs(c.Request.Context(), parseLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs)
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		return 50
	}
	return limit
}
