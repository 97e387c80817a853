package dto

import "time"

// RefreshSummary reports the outcome of a bulk re-allocation run.
type RefreshSummary struct {
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	TotalRows int `json:"total_rows"`
}

// VenueStats summarises per-exam seat distribution.
type VenueStats struct {
	ExamID            int64         `json:"exam_id"`
	CoreSize          int           `json:"core_size"`
	ExamVenueStudents map[int64]int `json:"exam_venue_students"`
	GeneratedAt       time.Time     `json:"generated_at"`
}
