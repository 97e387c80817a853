package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

// StudentExamRepository manages the student-to-slot resolution records.
type StudentExamRepository struct {
	db *sqlx.DB
}

// NewStudentExamRepository constructs a StudentExamRepository.
func NewStudentExamRepository(db *sqlx.DB) *StudentExamRepository {
	return &StudentExamRepository{db: db}
}

func (r *StudentExamRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const studentExamColumns = "id, student_id, exam_id, exam_venue_id, manual_allocation_override"

// FindByStudentExam fetches the resolution row for one (student, exam) pair.
func (r *StudentExamRepository) FindByStudentExam(ctx context.Context, exec sqlx.ExtContext, studentID string, examID int64) (*models.StudentExam, error) {
	query := fmt.Sprintf("SELECT %s FROM student_exams WHERE student_id = $1 AND exam_id = $2", studentExamColumns)
	var se models.StudentExam
	if err := sqlx.GetContext(ctx, r.exec(exec), &se, query, studentID, examID); err != nil {
		return nil, err
	}
	return &se, nil
}

// GetOrCreate loads the resolution row for the pair, inserting an unallocated
// one when missing. Reports whether a row was created.
func (r *StudentExamRepository) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, studentID string, examID int64) (*models.StudentExam, bool, error) {
	existing, err := r.FindByStudentExam(ctx, exec, studentID, examID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("find student exam: %w", err)
	}
	se := &models.StudentExam{
		ID:        uuid.NewString(),
		StudentID: studentID,
		ExamID:    examID,
	}
	const query = `
INSERT INTO student_exams (id, student_id, exam_id, exam_venue_id, manual_allocation_override)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		se.ID, se.StudentID, se.ExamID, se.ExamVenueID, se.ManualAllocationOverride); err != nil {
		return nil, false, fmt.Errorf("insert student exam: %w", err)
	}
	return se, true, nil
}

// UpdateExamVenue points the resolution row at a new slot.
func (r *StudentExamRepository) UpdateExamVenue(ctx context.Context, exec sqlx.ExtContext, id string, examVenueID *int64) error {
	const query = `UPDATE student_exams SET exam_venue_id = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, examVenueID); err != nil {
		return fmt.Errorf("update student exam venue: %w", err)
	}
	return nil
}

// SetManualOverride pins or unpins a resolution row against bulk re-allocation.
func (r *StudentExamRepository) SetManualOverride(ctx context.Context, exec sqlx.ExtContext, id string, override bool) error {
	const query = `UPDATE student_exams SET manual_allocation_override = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, override); err != nil {
		return fmt.Errorf("set manual override: %w", err)
	}
	return nil
}

// ReassignExamVenue moves every resolution row from one slot to another.
// Used when a placeholder collapses into an existing bound slot.
func (r *StudentExamRepository) ReassignExamVenue(ctx context.Context, exec sqlx.ExtContext, fromID, toID int64) error {
	const query = `UPDATE student_exams SET exam_venue_id = $2 WHERE exam_venue_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, fromID, toID); err != nil {
		return fmt.Errorf("reassign student exams: %w", err)
	}
	return nil
}

// CountByExamVenue counts resolution rows pointing at the slot, optionally
// excluding one row. Drives room-exclusivity and shared-room checks.
func (r *StudentExamRepository) CountByExamVenue(ctx context.Context, exec sqlx.ExtContext, examVenueID int64, excludeID string) (int, error) {
	query := "SELECT COUNT(*) FROM student_exams WHERE exam_venue_id = $1"
	args := []interface{}{examVenueID}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, args...); err != nil {
		return 0, fmt.Errorf("count student exams: %w", err)
	}
	return count, nil
}

// ListAllocationsByExam returns the flattened allocation view for one exam,
// joining student, exam and slot data.
func (r *StudentExamRepository) ListAllocationsByExam(ctx context.Context, examID int64) ([]models.AllocationRecord, error) {
	const query = `
SELECT s.student_id, s.student_name, e.course_code, e.exam_name,
       ev.venue_name, ev.start_time, ev.exam_length,
       COALESCE(ev.capabilities, '{}') AS capabilities,
       se.manual_allocation_override
FROM student_exams se
JOIN students s ON s.student_id = se.student_id
JOIN exams e ON e.exam_id = se.exam_id
LEFT JOIN exam_venues ev ON ev.exam_venue_id = se.exam_venue_id
WHERE se.exam_id = $1
ORDER BY s.student_id`
	var records []models.AllocationRecord
	if err := r.db.SelectContext(ctx, &records, query, examID); err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return records, nil
}

// CountByExamVenues returns the number of resolution rows per slot for one
// exam. Slots with no students are absent from the map.
func (r *StudentExamRepository) CountByExamVenues(ctx context.Context, examID int64) (map[int64]int, error) {
	const query = `
SELECT exam_venue_id, COUNT(*) AS n
FROM student_exams
WHERE exam_id = $1 AND exam_venue_id IS NOT NULL
GROUP BY exam_venue_id`
	rows, err := r.db.QueryxContext(ctx, query, examID)
	if err != nil {
		return nil, fmt.Errorf("count student exams by venue: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var venueID int64
		var n int
		if err := rows.Scan(&venueID, &n); err != nil {
			return nil, fmt.Errorf("scan venue count: %w", err)
		}
		counts[venueID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate venue counts: %w", err)
	}
	return counts, nil
}
