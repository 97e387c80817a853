package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func buildRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Payload validation rejects these requests before any service is touched.
	uploadHandler := NewUploadHandler(nil, nil)
	venueHandler := NewVenueHandler(nil)
	examHandler := NewExamHandler(nil, nil)
	router.POST("/uploads", uploadHandler.Ingest)
	router.POST("/venues", venueHandler.Save)
	router.GET("/exams/:id", examHandler.Get)
	return router
}

func TestIngestRejectsMalformedPayload(t *testing.T) {
	router := buildRouter()

	req, _ := http.NewRequest(http.MethodPost, "/uploads", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), `"error"`)
}

func TestSaveVenueRequiresName(t *testing.T) {
	router := buildRouter()

	req, _ := http.NewRequest(http.MethodPost, "/venues", bytes.NewBufferString(`{"capacity":10}`))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestExamRoutesRejectNonNumericID(t *testing.T) {
	router := buildRouter()

	req, _ := http.NewRequest(http.MethodGet, "/exams/abc", nil)
	resp := performRequest(router, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}
