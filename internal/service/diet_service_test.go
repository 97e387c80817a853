package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

type stubDietStore struct {
	diets []models.Diet
}

func (s *stubDietStore) List(_ context.Context) ([]models.Diet, error) {
	return s.diets, nil
}

func date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestSuggestForRangeProposesNewDiet(t *testing.T) {
	svc := NewDietService(&stubDietStore{}, nil)

	suggestion, err := svc.SuggestForRange(context.Background(),
		*date(2025, time.December, 1), *date(2025, time.December, 19))

	require.NoError(t, err)
	assert.Equal(t, "ok", suggestion.Status)
	assert.Equal(t, "create_new", suggestion.Action)
	require.NotNil(t, suggestion.Suggested)
	assert.Equal(t, "DEC_25", suggestion.Suggested.Code)
	assert.Equal(t, "December 2025", suggestion.Suggested.Name)
}

func TestSuggestForRangeSpanningTwoMonths(t *testing.T) {
	svc := NewDietService(&stubDietStore{}, nil)

	suggestion, err := svc.SuggestForRange(context.Background(),
		*date(2026, time.April, 20), *date(2026, time.May, 15))

	require.NoError(t, err)
	require.NotNil(t, suggestion.Suggested)
	assert.Equal(t, "APR_MAY_26", suggestion.Suggested.Code)
	assert.Equal(t, "April/May 2026", suggestion.Suggested.Name)
}

func TestSuggestForRangeOffersAdjustments(t *testing.T) {
	store := &stubDietStore{diets: []models.Diet{{
		ID:        1,
		Code:      "MAY_26",
		Name:      "May 2026",
		StartDate: date(2026, time.May, 4),
		EndDate:   date(2026, time.May, 22),
	}}}
	svc := NewDietService(store, nil)

	suggestion, err := svc.SuggestForRange(context.Background(),
		*date(2026, time.May, 1), *date(2026, time.May, 20))

	require.NoError(t, err)
	assert.Equal(t, "ok", suggestion.Status)
	assert.Equal(t, "adjust_existing", suggestion.Action)
	assert.Equal(t, int64(1), suggestion.DietID)
	assert.Equal(t, []string{"extend_start", "contract_end"}, suggestion.Options)
}

func TestSuggestForRangeExactMatchNeedsNoAction(t *testing.T) {
	store := &stubDietStore{diets: []models.Diet{{
		ID:        1,
		Code:      "MAY_26",
		StartDate: date(2026, time.May, 4),
		EndDate:   date(2026, time.May, 22),
	}}}
	svc := NewDietService(store, nil)

	suggestion, err := svc.SuggestForRange(context.Background(),
		*date(2026, time.May, 4), *date(2026, time.May, 22))

	require.NoError(t, err)
	assert.Equal(t, "none", suggestion.Action)
	assert.Empty(t, suggestion.Options)
}

func TestSuggestForRangeAmbiguousOverlap(t *testing.T) {
	store := &stubDietStore{diets: []models.Diet{
		{ID: 1, Code: "MAY_26", StartDate: date(2026, time.May, 1), EndDate: date(2026, time.May, 15)},
		{ID: 2, Code: "MAY_JUN_26", StartDate: date(2026, time.May, 10), EndDate: date(2026, time.June, 5)},
	}}
	svc := NewDietService(store, nil)

	suggestion, err := svc.SuggestForRange(context.Background(),
		*date(2026, time.May, 12), *date(2026, time.May, 14))

	require.NoError(t, err)
	assert.Equal(t, "error", suggestion.Status)
	assert.Contains(t, suggestion.Message, "Multiple diets overlap")
}

func TestSuggestForRangeIgnoresDietsWithoutDates(t *testing.T) {
	store := &stubDietStore{diets: []models.Diet{
		{ID: 1, Code: "TBC", StartDate: nil, EndDate: nil},
	}}
	svc := NewDietService(store, nil)

	suggestion, err := svc.SuggestForRange(context.Background(),
		*date(2026, time.May, 1), *date(2026, time.May, 10))

	require.NoError(t, err)
	assert.Equal(t, "create_new", suggestion.Action)
}
