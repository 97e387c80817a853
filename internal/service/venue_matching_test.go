package service

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

func TestVenueSupportsCaps(t *testing.T) {
	venue := &models.Venue{
		Name:         "Library G04",
		Capabilities: pq.StringArray{models.CapUseComputer, models.CapAccessibleHall},
	}

	assert.True(t, VenueSupportsCaps(venue, nil))
	assert.True(t, VenueSupportsCaps(venue, []string{models.CapUseComputer}))
	assert.False(t, VenueSupportsCaps(venue, []string{models.CapSeparateRoomOnOwn}))
}

func TestVenueIsAvailable(t *testing.T) {
	start := time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC)

	open := &models.Venue{Name: "Hall A"}
	assert.True(t, VenueIsAvailable(open, &start))

	restricted := &models.Venue{Name: "Hall B", Availability: pq.StringArray{"2026-05-11", "2026-05-12"}}
	assert.True(t, VenueIsAvailable(restricted, &start))

	closed := &models.Venue{Name: "Hall C", Availability: pq.StringArray{"2026-05-13"}}
	assert.False(t, VenueIsAvailable(closed, &start))
	assert.True(t, VenueIsAvailable(closed, nil))
}

func TestVenueHasTimingConflict(t *testing.T) {
	start := time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC)
	existing := []models.ExamVenue{
		{ID: 1, ExamID: 7, StartTime: timePtr(start), ExamLength: intPtr(120)},
	}

	overlapping := start.Add(60 * time.Minute)
	assert.True(t, VenueHasTimingConflict(existing, &overlapping, intPtr(60), 0, false))

	adjacent := start.Add(120 * time.Minute)
	assert.False(t, VenueHasTimingConflict(existing, &adjacent, intPtr(60), 0, false))

	// Same exam sharing the hall is fine when overlap is allowed.
	assert.False(t, VenueHasTimingConflict(existing, &overlapping, intPtr(60), 7, true))
	assert.True(t, VenueHasTimingConflict(existing, &overlapping, intPtr(60), 7, false))

	// An identical slot for the same exam reads as reuse, not conflict.
	assert.False(t, VenueHasTimingConflict(existing, &start, intPtr(120), 7, false))

	// Unknown timing on either side never conflicts.
	assert.False(t, VenueHasTimingConflict(existing, nil, intPtr(60), 0, false))
	unknown := []models.ExamVenue{{ID: 2, ExamID: 9}}
	assert.False(t, VenueHasTimingConflict(unknown, &start, intPtr(60), 0, false))
}
