package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

// UploadLogRepository persists the ingestion history.
type UploadLogRepository struct {
	db *sqlx.DB
}

// NewUploadLogRepository constructs an UploadLogRepository.
func NewUploadLogRepository(db *sqlx.DB) *UploadLogRepository {
	return &UploadLogRepository{db: db}
}

func (r *UploadLogRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create records one handled ingestion call.
func (r *UploadLogRepository) Create(ctx context.Context, exec sqlx.ExtContext, log *models.UploadLog) error {
	if log.UploadedAt.IsZero() {
		log.UploadedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO upload_logs (file_name, uploaded_by, uploaded_at, records_created, records_updated)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	if err := sqlx.GetContext(ctx, r.exec(exec), &log.ID, query,
		log.FileName, log.UploadedBy, log.UploadedAt, log.RecordsCreated, log.RecordsUpdated); err != nil {
		return fmt.Errorf("insert upload log: %w", err)
	}
	return nil
}

// List returns the ingestion history, newest first.
func (r *UploadLogRepository) List(ctx context.Context, limit int) ([]models.UploadLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `
SELECT id, file_name, uploaded_by, uploaded_at, records_created, records_updated
FROM upload_logs ORDER BY uploaded_at DESC, id DESC LIMIT $1`
	var logs []models.UploadLog
	if err := r.db.SelectContext(ctx, &logs, query, limit); err != nil {
		return nil, fmt.Errorf("list upload logs: %w", err)
	}
	return logs, nil
}
