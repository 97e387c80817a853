package service

import (
	"time"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

// VenueSupportsCaps reports whether the venue satisfies every required
// capability tag.
func VenueSupportsCaps(venue *models.Venue, requiredCaps []string) bool {
	for _, cap := range requiredCaps {
		if !venue.HasCapability(cap) {
			return false
		}
	}
	return true
}

// VenueIsAvailable reports whether the venue may be used on the date of the
// supplied start. An empty availability list means no restriction, and an
// unknown start cannot be restricted either.
func VenueIsAvailable(venue *models.Venue, start *time.Time) bool {
	if len(venue.Availability) == 0 || start == nil {
		return true
	}
	day := start.Format("2006-01-02")
	for _, d := range venue.Availability {
		if d == day {
			return true
		}
	}
	return false
}

// VenueHasTimingConflict reports whether any of the venue's existing slots
// overlaps the supplied one. Slots of the exam identified by ignoreExamID are
// skipped entirely when allowSameExamOverlap is set, and an exact same-slot
// match for that exam is always treated as a reuse rather than a conflict.
// Slots with unknown timing never conflict.
func VenueHasTimingConflict(existing []models.ExamVenue, start *time.Time, lengthMinutes *int, ignoreExamID int64, allowSameExamOverlap bool) bool {
	if start == nil || lengthMinutes == nil {
		return false
	}
	targetEnd := start.Add(time.Duration(*lengthMinutes) * time.Minute)
	for i := range existing {
		ev := &existing[i]
		if ignoreExamID != 0 && ev.ExamID == ignoreExamID {
			if allowSameExamOverlap {
				continue
			}
			if ev.StartTime != nil && ev.StartTime.Equal(*start) &&
				ev.ExamLength != nil && *ev.ExamLength == *lengthMinutes {
				continue
			}
		}
		end, ok := ev.EndTime()
		if !ok {
			continue
		}
		if start.Before(end) && ev.StartTime.Before(targetEnd) {
			return true
		}
	}
	return false
}
