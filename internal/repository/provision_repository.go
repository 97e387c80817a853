package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

// ProvisionRepository manages persistence for student provision records.
type ProvisionRepository struct {
	db *sqlx.DB
}

// NewProvisionRepository constructs a ProvisionRepository.
func NewProvisionRepository(db *sqlx.DB) *ProvisionRepository {
	return &ProvisionRepository{db: db}
}

func (r *ProvisionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const provisionColumns = "provision_id, exam_id, student_id, codes, notes"

// FindByStudentExam fetches the provision for one (student, exam) pair.
func (r *ProvisionRepository) FindByStudentExam(ctx context.Context, exec sqlx.ExtContext, studentID string, examID int64) (*models.Provision, error) {
	query := fmt.Sprintf("SELECT %s FROM provisions WHERE student_id = $1 AND exam_id = $2", provisionColumns)
	var p models.Provision
	if err := sqlx.GetContext(ctx, r.exec(exec), &p, query, studentID, examID); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every provision ordered by identifier. Bulk re-allocation
// walks this set.
func (r *ProvisionRepository) List(ctx context.Context, exec sqlx.ExtContext) ([]models.Provision, error) {
	query := fmt.Sprintf("SELECT %s FROM provisions ORDER BY provision_id", provisionColumns)
	var provisions []models.Provision
	if err := sqlx.SelectContext(ctx, r.exec(exec), &provisions, query); err != nil {
		return nil, fmt.Errorf("list provisions: %w", err)
	}
	return provisions, nil
}

// Create inserts a provision and assigns its generated identifier.
func (r *ProvisionRepository) Create(ctx context.Context, exec sqlx.ExtContext, p *models.Provision) error {
	const query = `
INSERT INTO provisions (exam_id, student_id, codes, notes)
VALUES ($1, $2, $3, $4)
RETURNING provision_id`
	if err := sqlx.GetContext(ctx, r.exec(exec), &p.ID, query,
		p.ExamID, p.StudentID, p.Codes, p.Notes); err != nil {
		return fmt.Errorf("insert provision: %w", err)
	}
	return nil
}

// Update rewrites the codes and notes of an existing provision.
func (r *ProvisionRepository) Update(ctx context.Context, exec sqlx.ExtContext, p *models.Provision) error {
	const query = `UPDATE provisions SET codes = $2, notes = $3 WHERE provision_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, p.ID, p.Codes, p.Notes); err != nil {
		return fmt.Errorf("update provision: %w", err)
	}
	return nil
}
