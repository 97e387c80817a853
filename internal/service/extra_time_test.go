package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func TestExtraTimeMinutes(t *testing.T) {
	tests := []struct {
		name       string
		provisions []string
		base       *int
		want       int
	}{
		{"no extra time codes", []string{models.ProvisionUseScribe}, intPtr(120), 0},
		{"100 percent doubles", []string{models.ProvisionExtraTime100}, intPtr(120), 120},
		{"30 per hour", []string{models.ProvisionExtraTime30PerHour}, intPtr(120), 60},
		{"20 per hour rounds up", []string{models.ProvisionExtraTime20PerHour}, intPtr(100), 34},
		{"15 per hour", []string{models.ProvisionExtraTime15PerHour}, intPtr(60), 15},
		{"bare code is a quarter", []string{models.ProvisionExtraTime}, intPtr(90), 23},
		{"most generous rule wins", []string{models.ProvisionExtraTime15PerHour, models.ProvisionExtraTime100}, intPtr(120), 120},
		{"nil base yields nothing", []string{models.ProvisionExtraTime100}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtraTimeMinutes(tt.provisions, tt.base))
		})
	}
}

func TestApplyExtraTimeShiftsStartEarlier(t *testing.T) {
	start := time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC)

	newStart, newLength := ApplyExtraTime(&start, intPtr(120), 30, 9)

	require.NotNil(t, newStart)
	require.NotNil(t, newLength)
	assert.Equal(t, time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC), *newStart)
	assert.Equal(t, 150, *newLength)
}

func TestApplyExtraTimeNeverShiftsBeforeEarliestHour(t *testing.T) {
	start := time.Date(2026, 5, 12, 9, 15, 0, 0, time.UTC)

	newStart, newLength := ApplyExtraTime(&start, intPtr(120), 60, 9)

	require.NotNil(t, newStart)
	assert.Equal(t, time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC), *newStart)
	// The full allowance lands in the duration even when the shift is clipped.
	assert.Equal(t, 180, *newLength)
}

func TestApplyExtraTimeAtEarliestHourKeepsStart(t *testing.T) {
	start := time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)

	newStart, newLength := ApplyExtraTime(&start, intPtr(60), 30, 9)

	require.NotNil(t, newStart)
	assert.Equal(t, start, *newStart)
	assert.Equal(t, 90, *newLength)
}

func TestApplyExtraTimeWithoutAllowance(t *testing.T) {
	start := time.Date(2026, 5, 12, 14, 0, 0, 0, time.UTC)

	newStart, newLength := ApplyExtraTime(&start, intPtr(60), 0, 9)

	assert.Equal(t, &start, newStart)
	assert.Equal(t, 60, *newLength)
}

func TestApplyExtraTimeNilBaseLength(t *testing.T) {
	newStart, newLength := ApplyExtraTime(nil, nil, 45, 9)

	assert.Nil(t, newStart)
	require.NotNil(t, newLength)
	assert.Equal(t, 45, *newLength)
}

func TestHasSmallExtraTime(t *testing.T) {
	assert.True(t, HasSmallExtraTime(30, intPtr(120), 15))
	assert.False(t, HasSmallExtraTime(31, intPtr(120), 15))
	assert.False(t, HasSmallExtraTime(0, intPtr(120), 15))
	assert.False(t, HasSmallExtraTime(30, nil, 15))
	assert.False(t, HasSmallExtraTime(30, intPtr(0), 15))
}
