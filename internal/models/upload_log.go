package models

import "time"

// UploadLog records one ingestion call for the upload-history view.
type UploadLog struct {
	ID             int64     `db:"id" json:"id"`
	FileName       string    `db:"file_name" json:"file_name"`
	UploadedBy     *string   `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt     time.Time `db:"uploaded_at" json:"uploaded_at"`
	RecordsCreated int       `db:"records_created" json:"records_created"`
	RecordsUpdated int       `db:"records_updated" json:"records_updated"`
}
