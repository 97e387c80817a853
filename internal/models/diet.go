package models

import "time"

// Diet is an administrative exam period (e.g. December sitting).
type Diet struct {
	ID                int64      `db:"id" json:"id"`
	Code              string     `db:"code" json:"code"`
	Name              string     `db:"name" json:"name"`
	StartDate         *time.Time `db:"start_date" json:"start_date"`
	EndDate           *time.Time `db:"end_date" json:"end_date"`
	RestrictionCutoff *time.Time `db:"restriction_cutoff" json:"restriction_cutoff"`
	IsActive          bool       `db:"is_active" json:"is_active"`
}
