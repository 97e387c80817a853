package dto

import "time"

// UploadResult is the normalized output of the spreadsheet-parsing layer.
// Exam and Provisions files carry Rows; Venue files carry Days.
type UploadResult struct {
	Status string           `json:"status" binding:"required"`
	Type   string           `json:"type"`
	File   string           `json:"file"`
	Rows   []map[string]any `json:"rows"`
	Days   []VenueDayBlock  `json:"days"`
}

// VenueDayBlock groups the rooms available on a single day of a venue upload.
type VenueDayBlock struct {
	Day   string      `json:"day"`
	Date  string      `json:"date"`
	Rooms []VenueRoom `json:"rooms"`
}

// VenueRoom is one room entry within a venue day block.
type VenueRoom struct {
	Name           string   `json:"name"`
	Capacity       any      `json:"capacity"`
	VenueType      string   `json:"venuetype"`
	Accessible     *bool    `json:"accessible"`
	Qualifications []string `json:"qualifications"`
}

// IngestSummary reports the outcome of one ingestion call.
type IngestSummary struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Skipped   int      `json:"skipped"`
	TotalRows int      `json:"total_rows"`
	Errors    []string `json:"errors"`
	Handled   bool     `json:"handled"`
	Type      string   `json:"type"`
	Message   string   `json:"message,omitempty"`
}

// IngestRequest wraps an upload result with its originating file metadata.
type IngestRequest struct {
	FileName   string       `json:"file_name"`
	UploadedBy string       `json:"uploaded_by"`
	Result     UploadResult `json:"result" binding:"required"`
}

// ExamDateRange spans the dates seen across one exam upload.
type ExamDateRange struct {
	MinDate  time.Time `json:"min_date"`
	MaxDate  time.Time `json:"max_date"`
	RowCount int       `json:"row_count"`
}

// DietDates is an ISO date pair used in diet suggestions.
type DietDates struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// SuggestedDiet describes a diet the caller could create to cover an upload.
type SuggestedDiet struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// DietSuggestion tells the caller how the uploaded exam dates relate to the
// stored diets: create a new one, adjust an overlapping one, or do nothing.
type DietSuggestion struct {
	Status    string         `json:"status"`
	Action    string         `json:"action,omitempty"`
	Message   string         `json:"message,omitempty"`
	DietID    int64          `json:"diet_id,omitempty"`
	DietCode  string         `json:"diet_code,omitempty"`
	DietName  string         `json:"diet_name,omitempty"`
	Current   *DietDates     `json:"current,omitempty"`
	Uploaded  *DietDates     `json:"uploaded,omitempty"`
	Options   []string       `json:"options,omitempty"`
	Suggested *SuggestedDiet `json:"suggested,omitempty"`
}
