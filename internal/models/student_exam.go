package models

// StudentExam resolves one student to one exam-venue slot for one exam.
// Unique per (student, exam). ManualAllocationOverride pins the row so bulk
// re-allocation never moves it.
type StudentExam struct {
	ID                       string `db:"id" json:"id"`
	StudentID                string `db:"student_id" json:"student_id"`
	ExamID                   int64  `db:"exam_id" json:"exam_id"`
	ExamVenueID              *int64 `db:"exam_venue_id" json:"exam_venue_id"`
	ManualAllocationOverride bool   `db:"manual_allocation_override" json:"manual_allocation_override"`
}
