package models

// Student is a minimal registry record resolved from provision uploads.
type Student struct {
	ID   string `db:"student_id" json:"student_id"`
	Name string `db:"student_name" json:"student_name"`
}
