package models

import (
	"time"

	"github.com/lib/pq"
)

// AllocationRecord is the flattened view of one student's resolved slot,
// produced by the allocation listing join and consumed by the CSV export.
type AllocationRecord struct {
	StudentID      string         `db:"student_id" json:"student_id"`
	StudentName    string         `db:"student_name" json:"student_name"`
	CourseCode     string         `db:"course_code" json:"course_code"`
	ExamName       string         `db:"exam_name" json:"exam_name"`
	VenueName      *string        `db:"venue_name" json:"venue_name"`
	StartTime      *time.Time     `db:"start_time" json:"start_time"`
	ExamLength     *int           `db:"exam_length" json:"exam_length"`
	Capabilities   pq.StringArray `db:"capabilities" json:"capabilities"`
	ManualOverride bool           `db:"manual_allocation_override" json:"manual_allocation_override"`
}
