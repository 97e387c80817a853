package models

// Exam represents one examination sitting imported from the exams spreadsheet.
type Exam struct {
	ID            int64  `db:"exam_id" json:"exam_id"`
	Name          string `db:"exam_name" json:"exam_name"`
	CourseCode    string `db:"course_code" json:"course_code"`
	ExamType      string `db:"exam_type" json:"exam_type"`
	NoStudents    int    `db:"no_students" json:"no_students"`
	School        string `db:"exam_school" json:"exam_school"`
	SchoolContact string `db:"school_contact" json:"school_contact"`
}
