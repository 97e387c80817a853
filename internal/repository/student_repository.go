package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

// StudentRepository manages persistence for the minimal student registry.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert inserts the student or refreshes the stored name. A blank incoming
// name never overwrites a known one.
func (r *StudentRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	const query = `
INSERT INTO students (student_id, student_name)
VALUES ($1, $2)
ON CONFLICT (student_id) DO UPDATE
SET student_name = CASE WHEN EXCLUDED.student_name <> '' THEN EXCLUDED.student_name ELSE students.student_name END`
	if _, err := r.exec(exec).ExecContext(ctx, query, student.ID, student.Name); err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

// FindByID fetches a student by identifier.
func (r *StudentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	const query = `SELECT student_id, student_name FROM students WHERE student_id = $1`
	var student models.Student
	if err := sqlx.GetContext(ctx, r.exec(exec), &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}
