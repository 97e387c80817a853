package models

import (
	"time"

	"github.com/lib/pq"
)

// ExamVenue binds an exam to a venue and timing slot. A nil VenueName marks
// the row as a placeholder: the timing and capability requirements are known
// but no physical room satisfies them yet.
type ExamVenue struct {
	ID           int64          `db:"exam_venue_id" json:"exam_venue_id"`
	ExamID       int64          `db:"exam_id" json:"exam_id"`
	VenueName    *string        `db:"venue_name" json:"venue_name"`
	StartTime    *time.Time     `db:"start_time" json:"start_time"`
	ExamLength   *int           `db:"exam_length" json:"exam_length"`
	Core         bool           `db:"core" json:"core"`
	Capabilities pq.StringArray `db:"capabilities" json:"capabilities"`
}

// IsPlaceholder reports whether no physical venue has been bound yet.
func (ev *ExamVenue) IsPlaceholder() bool {
	return ev.VenueName == nil
}

// EndTime returns the slot end, or false when timing is unknown.
func (ev *ExamVenue) EndTime() (time.Time, bool) {
	if ev.StartTime == nil || ev.ExamLength == nil {
		return time.Time{}, false
	}
	return ev.StartTime.Add(time.Duration(*ev.ExamLength) * time.Minute), true
}

// HasCapability reports whether the slot was allocated to satisfy the tag.
func (ev *ExamVenue) HasCapability(cap string) bool {
	for _, c := range ev.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}
