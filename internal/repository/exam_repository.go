package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

// ExamRepository manages persistence for exam records.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

func (r *ExamRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const examColumns = "exam_id, exam_name, course_code, exam_type, no_students, exam_school, school_contact"

// ListByCourseCode returns all exams registered under the course code,
// lowest identifier first. Course codes are expected to be unique; the
// ordering makes duplicate handling deterministic.
func (r *ExamRepository) ListByCourseCode(ctx context.Context, exec sqlx.ExtContext, code string) ([]models.Exam, error) {
	query := fmt.Sprintf("SELECT %s FROM exams WHERE course_code = $1 ORDER BY exam_id", examColumns)
	var exams []models.Exam
	if err := sqlx.SelectContext(ctx, r.exec(exec), &exams, query, code); err != nil {
		return nil, fmt.Errorf("list exams by course code: %w", err)
	}
	return exams, nil
}

// FindByID fetches a single exam by its identifier.
func (r *ExamRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Exam, error) {
	query := fmt.Sprintf("SELECT %s FROM exams WHERE exam_id = $1", examColumns)
	var exam models.Exam
	if err := sqlx.GetContext(ctx, r.exec(exec), &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// List returns every exam ordered by identifier.
func (r *ExamRepository) List(ctx context.Context) ([]models.Exam, error) {
	query := fmt.Sprintf("SELECT %s FROM exams ORDER BY exam_id", examColumns)
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// Create inserts an exam and assigns its generated identifier.
func (r *ExamRepository) Create(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	const query = `
INSERT INTO exams (exam_name, course_code, exam_type, no_students, exam_school, school_contact)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING exam_id`
	target := r.exec(exec)
	if err := sqlx.GetContext(ctx, target, &exam.ID, query,
		exam.Name, exam.CourseCode, exam.ExamType, exam.NoStudents, exam.School, exam.SchoolContact); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

// Update rewrites an existing exam row.
func (r *ExamRepository) Update(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	const query = `
UPDATE exams
SET exam_name = $2, course_code = $3, exam_type = $4, no_students = $5, exam_school = $6, school_contact = $7
WHERE exam_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		exam.ID, exam.Name, exam.CourseCode, exam.ExamType, exam.NoStudents, exam.School, exam.SchoolContact); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}
