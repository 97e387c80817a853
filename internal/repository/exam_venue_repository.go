package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

// ExamVenueRepository manages persistence for exam-venue slots, including
// placeholder rows that carry timing and capability requirements without a
// bound venue.
type ExamVenueRepository struct {
	db *sqlx.DB
}

// NewExamVenueRepository constructs an ExamVenueRepository.
func NewExamVenueRepository(db *sqlx.DB) *ExamVenueRepository {
	return &ExamVenueRepository{db: db}
}

func (r *ExamVenueRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const examVenueColumns = "exam_venue_id, exam_id, venue_name, start_time, exam_length, core, capabilities"

// FindByID fetches a single slot by its identifier.
func (r *ExamVenueRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ExamVenue, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_venues WHERE exam_venue_id = $1", examVenueColumns)
	var ev models.ExamVenue
	if err := sqlx.GetContext(ctx, r.exec(exec), &ev, query, id); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListByExam returns every slot (placeholders included) for the exam,
// oldest first.
func (r *ExamVenueRepository) ListByExam(ctx context.Context, exec sqlx.ExtContext, examID int64) ([]models.ExamVenue, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_venues WHERE exam_id = $1 ORDER BY exam_venue_id", examVenueColumns)
	var evs []models.ExamVenue
	if err := sqlx.SelectContext(ctx, r.exec(exec), &evs, query, examID); err != nil {
		return nil, fmt.Errorf("list exam venues by exam: %w", err)
	}
	return evs, nil
}

// ListByVenue returns every slot bound to the named venue, across all exams.
// Timing-conflict checks scan this set.
func (r *ExamVenueRepository) ListByVenue(ctx context.Context, exec sqlx.ExtContext, venueName string) ([]models.ExamVenue, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_venues WHERE venue_name = $1 ORDER BY exam_venue_id", examVenueColumns)
	var evs []models.ExamVenue
	if err := sqlx.SelectContext(ctx, r.exec(exec), &evs, query, venueName); err != nil {
		return nil, fmt.Errorf("list exam venues by venue: %w", err)
	}
	return evs, nil
}

// ListPlaceholders returns every slot that still has no bound venue.
func (r *ExamVenueRepository) ListPlaceholders(ctx context.Context, exec sqlx.ExtContext) ([]models.ExamVenue, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_venues WHERE venue_name IS NULL ORDER BY exam_venue_id", examVenueColumns)
	var evs []models.ExamVenue
	if err := sqlx.SelectContext(ctx, r.exec(exec), &evs, query); err != nil {
		return nil, fmt.Errorf("list placeholder exam venues: %w", err)
	}
	return evs, nil
}

// FindByExamAndVenue fetches the oldest slot binding the exam to the venue.
func (r *ExamVenueRepository) FindByExamAndVenue(ctx context.Context, exec sqlx.ExtContext, examID int64, venueName string) (*models.ExamVenue, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_venues WHERE exam_id = $1 AND venue_name = $2 ORDER BY exam_venue_id LIMIT 1", examVenueColumns)
	var ev models.ExamVenue
	if err := sqlx.GetContext(ctx, r.exec(exec), &ev, query, examID, venueName); err != nil {
		return nil, err
	}
	return &ev, nil
}

// FindExact fetches the oldest slot matching exam, venue and timing exactly.
// Nil timing fields match NULL columns.
func (r *ExamVenueRepository) FindExact(ctx context.Context, exec sqlx.ExtContext, examID int64, venueName string, start *time.Time, length *int) (*models.ExamVenue, error) {
	query := fmt.Sprintf(`SELECT %s FROM exam_venues
WHERE exam_id = $1 AND venue_name = $2
  AND start_time IS NOT DISTINCT FROM $3
  AND exam_length IS NOT DISTINCT FROM $4
ORDER BY exam_venue_id LIMIT 1`, examVenueColumns)
	var ev models.ExamVenue
	if err := sqlx.GetContext(ctx, r.exec(exec), &ev, query, examID, venueName, start, length); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Create inserts a slot and assigns its generated identifier.
func (r *ExamVenueRepository) Create(ctx context.Context, exec sqlx.ExtContext, ev *models.ExamVenue) error {
	const query = `
INSERT INTO exam_venues (exam_id, venue_name, start_time, exam_length, core, capabilities)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING exam_venue_id`
	if err := sqlx.GetContext(ctx, r.exec(exec), &ev.ID, query,
		ev.ExamID, ev.VenueName, ev.StartTime, ev.ExamLength, ev.Core, ev.Capabilities); err != nil {
		return fmt.Errorf("insert exam venue: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns of a slot.
func (r *ExamVenueRepository) Update(ctx context.Context, exec sqlx.ExtContext, ev *models.ExamVenue) error {
	const query = `
UPDATE exam_venues
SET venue_name = $2, start_time = $3, exam_length = $4, core = $5, capabilities = $6
WHERE exam_venue_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		ev.ID, ev.VenueName, ev.StartTime, ev.ExamLength, ev.Core, ev.Capabilities); err != nil {
		return fmt.Errorf("update exam venue: %w", err)
	}
	return nil
}

// Delete removes a slot.
func (r *ExamVenueRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	const query = `DELETE FROM exam_venues WHERE exam_venue_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete exam venue: %w", err)
	}
	return nil
}
