package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lithium-apps/exam-timetabling-api/internal/dto"
	"github.com/lithium-apps/exam-timetabling-api/internal/models"
	appErrors "github.com/lithium-apps/exam-timetabling-api/pkg/errors"
)

type dietStore interface {
	List(ctx context.Context) ([]models.Diet, error)
}

// DietService relates uploaded exam date ranges to the stored exam diets.
type DietService struct {
	diets  dietStore
	logger *zap.Logger
}

// NewDietService constructs the service.
func NewDietService(diets dietStore, logger *zap.Logger) *DietService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DietService{diets: diets, logger: logger}
}

// List returns every stored diet.
func (s *DietService) List(ctx context.Context) ([]models.Diet, error) {
	diets, err := s.diets.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list diets")
	}
	return diets, nil
}

// SuggestForRange tells the caller how the uploaded exam dates relate to the
// stored diets: exactly one overlapping diet yields adjustment options, none
// yields a proposed new diet, several is ambiguous.
func (s *DietService) SuggestForRange(ctx context.Context, minDate, maxDate time.Time) (*dto.DietSuggestion, error) {
	diets, err := s.diets.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list diets")
	}

	var overlaps []models.Diet
	for _, diet := range diets {
		if diet.StartDate == nil || diet.EndDate == nil {
			continue
		}
		if !diet.StartDate.After(maxDate) && !diet.EndDate.Before(minDate) {
			overlaps = append(overlaps, diet)
		}
	}

	if len(overlaps) > 1 {
		return &dto.DietSuggestion{
			Status:  "error",
			Message: "Multiple diets overlap the uploaded exam date range.",
		}, nil
	}

	if len(overlaps) == 0 {
		return &dto.DietSuggestion{
			Status: "ok",
			Action: "create_new",
			Suggested: &dto.SuggestedDiet{
				Code:      dietCodeForRange(minDate, maxDate),
				Name:      dietNameForRange(minDate, maxDate),
				StartDate: minDate.Format("2006-01-02"),
				EndDate:   maxDate.Format("2006-01-02"),
			},
		}, nil
	}

	diet := overlaps[0]
	var options []string
	if minDate.Before(*diet.StartDate) {
		options = append(options, "extend_start")
	} else if minDate.After(*diet.StartDate) {
		options = append(options, "contract_start")
	}
	if maxDate.After(*diet.EndDate) {
		options = append(options, "extend_end")
	} else if maxDate.Before(*diet.EndDate) {
		options = append(options, "contract_end")
	}

	action := "none"
	if len(options) > 0 {
		action = "adjust_existing"
	}
	return &dto.DietSuggestion{
		Status:   "ok",
		Action:   action,
		DietID:   diet.ID,
		DietCode: diet.Code,
		DietName: diet.Name,
		Current: &dto.DietDates{
			StartDate: diet.StartDate.Format("2006-01-02"),
			EndDate:   diet.EndDate.Format("2006-01-02"),
		},
		Uploaded: &dto.DietDates{
			StartDate: minDate.Format("2006-01-02"),
			EndDate:   maxDate.Format("2006-01-02"),
		},
		Options: options,
	}, nil
}

// dietCodeForRange derives a short diet code like DEC_25 or APR_MAY_26.
func dietCodeForRange(start, end time.Time) string {
	startAbbr := upperMonthAbbr(start)
	endAbbr := upperMonthAbbr(end)
	endYear := end.Format("06")
	if start.Month() == end.Month() && start.Year() == end.Year() {
		return fmt.Sprintf("%s_%s", startAbbr, endYear)
	}
	return fmt.Sprintf("%s_%s_%s", startAbbr, endAbbr, endYear)
}

// dietNameForRange derives a display name like "December 2025" or
// "April/May 2026".
func dietNameForRange(start, end time.Time) string {
	if start.Month() == end.Month() && start.Year() == end.Year() {
		return fmt.Sprintf("%s %d", start.Month().String(), end.Year())
	}
	return fmt.Sprintf("%s/%s %d", start.Month().String(), end.Month().String(), end.Year())
}

func upperMonthAbbr(t time.Time) string {
	return strings.ToUpper(t.Format("Jan"))
}
