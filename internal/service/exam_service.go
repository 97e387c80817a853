package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
	appErrors "github.com/lithium-apps/exam-timetabling-api/pkg/errors"
	"github.com/lithium-apps/exam-timetabling-api/pkg/export"
)

type examStore interface {
	List(ctx context.Context) ([]models.Exam, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Exam, error)
}

type allocationReader interface {
	ListAllocationsByExam(ctx context.Context, examID int64) ([]models.AllocationRecord, error)
}

type examSlotReader interface {
	ListByExam(ctx context.Context, exec sqlx.ExtContext, examID int64) ([]models.ExamVenue, error)
}

// ExamService serves the exam read model: listings, per-exam slots, and the
// flattened allocation view with CSV export.
type ExamService struct {
	exams       examStore
	allocations allocationReader
	slots       examSlotReader
	exporter    *export.CSVExporter
	logger      *zap.Logger
}

// NewExamService constructs the service.
func NewExamService(exams examStore, allocations allocationReader, slots examSlotReader, exporter *export.CSVExporter, logger *zap.Logger) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{
		exams:       exams,
		allocations: allocations,
		slots:       slots,
		exporter:    exporter,
		logger:      logger,
	}
}

// List returns every exam.
func (s *ExamService) List(ctx context.Context) ([]models.Exam, error) {
	exams, err := s.exams.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// Get returns one exam by identifier.
func (s *ExamService) Get(ctx context.Context, id int64) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("exam %d not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// Slots returns every exam-venue slot for one exam, placeholders included.
func (s *ExamService) Slots(ctx context.Context, examID int64) ([]models.ExamVenue, error) {
	if _, err := s.Get(ctx, examID); err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByExam(ctx, nil, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam slots")
	}
	return slots, nil
}

// Allocations returns the flattened allocation view for one exam.
func (s *ExamService) Allocations(ctx context.Context, examID int64) ([]models.AllocationRecord, error) {
	if _, err := s.Get(ctx, examID); err != nil {
		return nil, err
	}
	records, err := s.allocations.ListAllocationsByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list allocations")
	}
	return records, nil
}

// ExportAllocationsCSV renders the allocation view for one exam as CSV.
func (s *ExamService) ExportAllocationsCSV(ctx context.Context, examID int64) ([]byte, string, error) {
	records, err := s.Allocations(ctx, examID)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{
			"student_id", "student_name", "course_code", "exam_name",
			"venue", "start_time", "exam_length", "capabilities", "manual_override",
		},
		Rows: make([]map[string]string, 0, len(records)),
	}
	for _, rec := range records {
		row := map[string]string{
			"student_id":      rec.StudentID,
			"student_name":    rec.StudentName,
			"course_code":     rec.CourseCode,
			"exam_name":       rec.ExamName,
			"capabilities":    strings.Join(rec.Capabilities, ";"),
			"manual_override": strconv.FormatBool(rec.ManualOverride),
		}
		if rec.VenueName != nil {
			row["venue"] = *rec.VenueName
		}
		if rec.StartTime != nil {
			row["start_time"] = rec.StartTime.Format("2006-01-02 15:04")
		}
		if rec.ExamLength != nil {
			row["exam_length"] = strconv.Itoa(*rec.ExamLength)
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	payload, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	fileName := fmt.Sprintf("exam_%d_allocations.csv", examID)
	return payload, fileName, nil
}
