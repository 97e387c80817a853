package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lithium-apps/exam-timetabling-api/internal/dto"
	"github.com/lithium-apps/exam-timetabling-api/internal/models"
	"github.com/lithium-apps/exam-timetabling-api/pkg/config"
	appErrors "github.com/lithium-apps/exam-timetabling-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type ingestExamStore interface {
	ListByCourseCode(ctx context.Context, exec sqlx.ExtContext, code string) ([]models.Exam, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Exam, error)
	Create(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error
	Update(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error
}

type ingestVenueStore interface {
	GetOrCreate(ctx context.Context, exec sqlx.ExtContext, venue *models.Venue) (bool, error)
	Update(ctx context.Context, exec sqlx.ExtContext, venue *models.Venue) error
}

type ingestSlotStore interface {
	FindByExamAndVenue(ctx context.Context, exec sqlx.ExtContext, examID int64, venueName string) (*models.ExamVenue, error)
	Create(ctx context.Context, exec sqlx.ExtContext, ev *models.ExamVenue) error
	Update(ctx context.Context, exec sqlx.ExtContext, ev *models.ExamVenue) error
}

type ingestStudentStore interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
}

type ingestProvisionStore interface {
	FindByStudentExam(ctx context.Context, exec sqlx.ExtContext, studentID string, examID int64) (*models.Provision, error)
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Provision, error)
	Create(ctx context.Context, exec sqlx.ExtContext, p *models.Provision) error
	Update(ctx context.Context, exec sqlx.ExtContext, p *models.Provision) error
}

type ingestAssignmentStore interface {
	GetOrCreate(ctx context.Context, exec sqlx.ExtContext, studentID string, examID int64) (*models.StudentExam, bool, error)
}

type uploadLogStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, log *models.UploadLog) error
	List(ctx context.Context, limit int) ([]models.UploadLog, error)
}

type slotResolver interface {
	Resolve(ctx context.Context, exec sqlx.ExtContext, studentExam *models.StudentExam, exam *models.Exam, provisions []string) (bool, error)
}

type placeholderPromoter interface {
	AttachPlaceholders(ctx context.Context, exec sqlx.ExtContext, venue *models.Venue) error
}

// Upload file types the importer understands.
const (
	UploadTypeExam       = "Exam"
	UploadTypeProvisions = "Provisions"
	UploadTypeVenue      = "Venue"
)

// IngestService persists parsed spreadsheet uploads into the relational
// model and drives venue allocation for provision rows.
type IngestService struct {
	tx          txProvider
	exams       ingestExamStore
	venues      ingestVenueStore
	slots       ingestSlotStore
	students    ingestStudentStore
	provisions  ingestProvisionStore
	assignments ingestAssignmentStore
	uploadLogs  uploadLogStore
	allocator   slotResolver
	promoter    placeholderPromoter
	logger      *zap.Logger
	metrics     *MetricsService

	maxRows       int
	maxNoteLength int
	maxErrorsKept int
}

// NewIngestService constructs the service.
func NewIngestService(
	tx txProvider,
	exams ingestExamStore,
	venues ingestVenueStore,
	slots ingestSlotStore,
	students ingestStudentStore,
	provisions ingestProvisionStore,
	assignments ingestAssignmentStore,
	uploadLogs uploadLogStore,
	allocator slotResolver,
	promoter placeholderPromoter,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg config.IngestConfig,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 20000
	}
	maxNote := cfg.MaxNoteLength
	if maxNote <= 0 {
		maxNote = 200
	}
	maxErrors := cfg.MaxErrorsKept
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &IngestService{
		tx:            tx,
		exams:         exams,
		venues:        venues,
		slots:         slots,
		students:      students,
		provisions:    provisions,
		assignments:   assignments,
		uploadLogs:    uploadLogs,
		allocator:     allocator,
		promoter:      promoter,
		logger:        logger,
		metrics:       metrics,
		maxRows:       maxRows,
		maxNoteLength: maxNote,
		maxErrorsKept: maxErrors,
	}
}

func newSummary(totalRows int) *dto.IngestSummary {
	return &dto.IngestSummary{TotalRows: totalRows, Errors: []string{}}
}

func (s *IngestService) addError(summary *dto.IngestSummary, format string, args ...any) {
	if len(summary.Errors) >= s.maxErrorsKept {
		return
	}
	summary.Errors = append(summary.Errors, fmt.Sprintf(format, args...))
}

// IngestUploadResult persists one parsed upload. Supported file types run in
// a single transaction and produce a handled summary plus an upload-log row;
// unsupported types return a handled=false summary so callers can show a
// helpful message without treating the upload as an error.
func (s *IngestService) IngestUploadResult(ctx context.Context, req dto.IngestRequest) (*dto.IngestSummary, error) {
	result := req.Result
	if result.Status != "ok" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "upload result status is not ok")
	}
	if len(result.Rows) > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("upload exceeds the %d row limit", s.maxRows))
	}

	var summary *dto.IngestSummary
	switch result.Type {
	case UploadTypeExam:
		var err error
		summary, err = s.runImport(ctx, func(tx *sqlx.Tx) (*dto.IngestSummary, error) {
			return s.importExamRows(ctx, tx, result.Rows)
		})
		if err != nil {
			return nil, err
		}
	case UploadTypeProvisions:
		var err error
		summary, err = s.runImport(ctx, func(tx *sqlx.Tx) (*dto.IngestSummary, error) {
			return s.importProvisionRows(ctx, tx, result.Rows)
		})
		if err != nil {
			return nil, err
		}
	case UploadTypeVenue:
		var err error
		summary, err = s.runImport(ctx, func(tx *sqlx.Tx) (*dto.IngestSummary, error) {
			return s.importVenueDays(ctx, tx, result.Days)
		})
		if err != nil {
			return nil, err
		}
	default:
		kind := result.Type
		if kind == "" {
			kind = "unknown"
		}
		summary = newSummary(0)
		summary.Handled = false
		summary.Type = result.Type
		summary.Message = fmt.Sprintf("No persistence configured for %s uploads.", kind)
		return summary, nil
	}

	summary.Handled = true
	summary.Type = result.Type

	fileName := req.FileName
	if fileName == "" {
		fileName = result.File
	}
	if fileName == "" {
		fileName = "uploaded_file"
	}
	log := &models.UploadLog{
		FileName:       fileName,
		RecordsCreated: summary.Created,
		RecordsUpdated: summary.Updated,
	}
	if req.UploadedBy != "" {
		log.UploadedBy = &req.UploadedBy
	}
	if err := s.uploadLogs.Create(ctx, nil, log); err != nil {
		s.logger.Warn("failed to record upload log", zap.Error(err))
	}
	return summary, nil
}

// runImport wraps one import in a transaction.
func (s *IngestService) runImport(ctx context.Context, fn func(tx *sqlx.Tx) (*dto.IngestSummary, error)) (summary *dto.IngestSummary, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	summary, err = fn(tx)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit import transaction")
	}
	return summary, nil
}

// ComputeExamDateRange extracts the min/max exam date across the rows of an
// exam upload, or nil when no row carries a parseable date.
func ComputeExamDateRange(rows []map[string]any) *dto.ExamDateRange {
	var out *dto.ExamDateRange
	for _, row := range rows {
		examDate := CoerceDate(row["exam_date"])
		if examDate == nil {
			continue
		}
		if out == nil {
			out = &dto.ExamDateRange{MinDate: *examDate, MaxDate: *examDate}
		} else {
			if examDate.Before(out.MinDate) {
				out.MinDate = *examDate
			}
			if examDate.After(out.MaxDate) {
				out.MaxDate = *examDate
			}
		}
		out.RowCount++
	}
	return out
}

func (s *IngestService) importExamRows(ctx context.Context, exec sqlx.ExtContext, rows []map[string]any) (*dto.IngestSummary, error) {
	summary := newSummary(len(rows))

	for idx, raw := range rows {
		rowNum := idx + 1
		courseCode := CleanString(firstCell(raw, "course_code", "exam_code"), 30)
		if courseCode == "" {
			summary.Skipped++
			s.addError(summary, "Row %d: missing exam_code / course_code.", rowNum)
			s.metrics.RecordIngestRow(UploadTypeExam, "skipped")
			continue
		}

		start := CombineStartDatetime(raw["exam_start"], raw["exam_date"])
		duration := DurationInMinutes(raw["exam_length"], raw["exam_end"], start)
		var examLength *int
		if duration > 0 {
			examLength = &duration
		}

		incoming := models.Exam{
			CourseCode:    courseCode,
			Name:          defaultString(CleanString(raw["exam_name"], 30), courseCode),
			ExamType:      defaultString(CleanString(raw["exam_type"], 30), "Exam"),
			NoStudents:    intOrZero(CoerceInt(raw["no_students"])),
			School:        defaultString(CleanString(raw["school"], 30), "Unassigned"),
			SchoolContact: CleanString(raw["school_contact"], 100),
		}

		existing, err := s.exams.ListByCourseCode(ctx, exec, courseCode)
		if err != nil {
			return nil, err
		}

		var exam *models.Exam
		created := false
		if len(existing) == 0 {
			exam = &incoming
			if err := s.exams.Create(ctx, exec, exam); err != nil {
				return nil, err
			}
			created = true
		} else {
			exam = &existing[0]
			if len(existing) > 1 {
				s.addError(summary, "Row %d: multiple exams found for course_code '%s'; updating exam_id=%d.",
					rowNum, courseCode, exam.ID)
			}
			incoming.ID = exam.ID
			if incoming != *exam {
				*exam = incoming
				if err := s.exams.Update(ctx, exec, exam); err != nil {
					return nil, err
				}
			}
		}
		if created {
			summary.Created++
			s.metrics.RecordIngestRow(UploadTypeExam, "created")
		} else {
			summary.Updated++
			s.metrics.RecordIngestRow(UploadTypeExam, "updated")
		}

		if err := s.createExamVenueLinks(ctx, exec, exam, raw, start, examLength); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// createExamVenueLinks makes sure a venue row exists for each venue named in
// the exam upload, and binds the exam to it with a core slot carrying the
// upload's timing.
func (s *IngestService) createExamVenueLinks(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam, raw map[string]any, start *time.Time, examLength *int) error {
	names := ExtractVenueNames(raw)
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		venue := &models.Venue{
			Name:         name,
			VenueType:    models.VenueTypeCoreExamVenue,
			IsAccessible: true,
		}
		if _, err := s.venues.GetOrCreate(ctx, exec, venue); err != nil {
			return err
		}

		ev, err := s.slots.FindByExamAndVenue(ctx, exec, exam.ID, name)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			ev = &models.ExamVenue{
				ExamID:     exam.ID,
				VenueName:  &venue.Name,
				StartTime:  start,
				ExamLength: examLength,
				Core:       true,
			}
			if err := s.slots.Create(ctx, exec, ev); err != nil {
				return err
			}
			continue
		}

		dirty := false
		if start != nil && !timePtrEqual(ev.StartTime, start) {
			ev.StartTime = start
			dirty = true
		}
		if examLength != nil && (ev.ExamLength == nil || *ev.ExamLength != *examLength) {
			ev.ExamLength = examLength
			dirty = true
		}
		if dirty {
			if err := s.slots.Update(ctx, exec, ev); err != nil {
				return err
			}
		}
	}
	return nil
}

var venueSplitRe = regexp.MustCompile(`[;,/|]`)

// ExtractVenueNames pulls the venue names out of one exam upload row,
// folding online and digital markers into the shared "Online / Digital"
// pseudo-venue. When the venue cell is empty an online-flavoured exam type
// still yields the pseudo-venue.
func ExtractVenueNames(raw map[string]any) []string {
	value := CleanString(firstCell(raw, "main_venue", "venue"), 0)
	if value == "" {
		if examType := CleanString(firstCell(raw, "exam_type", "assessment_type"), 0); isOnlineMarker(examType) {
			return []string{"Online / Digital"}
		}
		return nil
	}
	var names []string
	for _, token := range venueSplitRe.Split(value, -1) {
		name := CleanString(token, 255)
		if name == "" {
			continue
		}
		if isOnlineMarker(name) {
			name = "Online / Digital"
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		if examType := CleanString(firstCell(raw, "exam_type", "assessment_type"), 0); isOnlineMarker(examType) {
			names = append(names, "Online / Digital")
		}
	}
	return names
}

func isOnlineMarker(value string) bool {
	lowered := strings.ToLower(strings.TrimSpace(value))
	if lowered == "" {
		return false
	}
	return strings.Contains(lowered, "online") || strings.Contains(lowered, "digital")
}

func (s *IngestService) importProvisionRows(ctx context.Context, exec sqlx.ExtContext, rows []map[string]any) (*dto.IngestSummary, error) {
	summary := newSummary(len(rows))

	for idx, raw := range rows {
		rowNum := idx + 1
		studentID := CleanString(firstCell(raw, "student_id", "mock_ids", "id"), 255)
		if studentID == "" {
			summary.Skipped++
			s.addError(summary, "Row %d: missing student_id.", rowNum)
			s.metrics.RecordIngestRow(UploadTypeProvisions, "skipped")
			continue
		}

		examCode := CleanString(firstCell(raw, "exam_code", "course_code"), 30)
		if examCode == "" {
			summary.Skipped++
			s.addError(summary, "Row %d: missing exam_code.", rowNum)
			s.metrics.RecordIngestRow(UploadTypeProvisions, "skipped")
			continue
		}

		exams, err := s.exams.ListByCourseCode(ctx, exec, examCode)
		if err != nil {
			return nil, err
		}
		if len(exams) == 0 {
			summary.Skipped++
			s.addError(summary, "Row %d: exam with code '%s' not found.", rowNum, examCode)
			s.metrics.RecordIngestRow(UploadTypeProvisions, "skipped")
			continue
		}
		exam := &exams[0]

		student := &models.Student{
			ID:   studentID,
			Name: defaultString(CleanString(raw["student_name"], 255), studentID),
		}
		if err := s.students.Upsert(ctx, exec, student); err != nil {
			return nil, err
		}

		var unknown []string
		provisions := NormalizeProvisions(provisionCell(raw["provisions"]), &unknown)
		notes := CleanString(firstCell(raw, "additional_info", "notes"), s.maxNoteLength)
		if len(unknown) > 0 {
			suffix := "Unrecognized provisions: " + strings.Join(unknown, ", ")
			if notes != "" {
				notes = notes + "; " + suffix
			} else {
				notes = suffix
			}
			notes = CleanString(notes, s.maxNoteLength)
		}

		created, err := s.upsertProvision(ctx, exec, student.ID, exam.ID, provisions, notes)
		if err != nil {
			return nil, err
		}

		studentExam, _, err := s.assignments.GetOrCreate(ctx, exec, student.ID, exam.ID)
		if err != nil {
			return nil, err
		}
		if _, err := s.allocator.Resolve(ctx, exec, studentExam, exam, provisions); err != nil {
			return nil, fmt.Errorf("row %d: allocate venue for student %s: %w", rowNum, student.ID, err)
		}

		if created {
			summary.Created++
			s.metrics.RecordIngestRow(UploadTypeProvisions, "created")
		} else {
			summary.Updated++
			s.metrics.RecordIngestRow(UploadTypeProvisions, "updated")
		}
	}
	return summary, nil
}

func (s *IngestService) upsertProvision(ctx context.Context, exec sqlx.ExtContext, studentID string, examID int64, codes []string, notes string) (bool, error) {
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	existing, err := s.provisions.FindByStudentExam(ctx, exec, studentID, examID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
		p := &models.Provision{
			ExamID:    examID,
			StudentID: studentID,
			Codes:     codes,
			Notes:     notesPtr,
		}
		return true, s.provisions.Create(ctx, exec, p)
	}
	existing.Codes = codes
	existing.Notes = notesPtr
	return false, s.provisions.Update(ctx, exec, existing)
}

// provisionCell folds a raw provisions cell into one splittable string; list
// cells arrive from the parser as []any.
func provisionCell(value any) string {
	if items, ok := value.([]any); ok {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if text := CleanString(item, 0); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ";")
	}
	return CleanString(value, 0)
}

func (s *IngestService) importVenueDays(ctx context.Context, exec sqlx.ExtContext, days []dto.VenueDayBlock) (*dto.IngestSummary, error) {
	type flatRoom struct {
		room    dto.VenueRoom
		dayDate *time.Time
	}
	var rooms []flatRoom
	for _, day := range days {
		dayDate := CoerceDate(day.Date)
		for _, room := range day.Rooms {
			rooms = append(rooms, flatRoom{room: room, dayDate: dayDate})
		}
	}

	summary := newSummary(len(rooms))

	for idx, entry := range rooms {
		rowNum := idx + 1
		name := CleanString(entry.room.Name, 255)
		if name == "" {
			summary.Skipped++
			s.addError(summary, "Room %d: missing name.", rowNum)
			s.metrics.RecordIngestRow(UploadTypeVenue, "skipped")
			continue
		}

		capVal := CoerceInt(entry.room.Capacity)
		venueType := defaultString(entry.room.VenueType, models.VenueTypeSchoolToSort)
		var availability []string
		if entry.dayDate != nil {
			availability = []string{entry.dayDate.Format("2006-01-02")}
		}

		venue := &models.Venue{
			Name:         name,
			Capacity:     intOrZero(capVal),
			VenueType:    venueType,
			IsAccessible: entry.room.Accessible == nil || *entry.room.Accessible,
			Capabilities: entry.room.Qualifications,
			Availability: availability,
		}
		created, err := s.venues.GetOrCreate(ctx, exec, venue)
		if err != nil {
			return nil, err
		}

		if !created {
			dirty := false
			if venue.VenueType != venueType {
				venue.VenueType = venueType
				dirty = true
			}
			if !stringSlicesEqual(venue.Capabilities, entry.room.Qualifications) {
				venue.Capabilities = entry.room.Qualifications
				dirty = true
			}
			if entry.room.Accessible != nil {
				merged := venue.IsAccessible && *entry.room.Accessible
				if venue.IsAccessible != merged {
					venue.IsAccessible = merged
					dirty = true
				}
			}
			if capVal != nil && venue.Capacity != *capVal {
				venue.Capacity = *capVal
				dirty = true
			}
			if len(availability) > 0 {
				if merged, changed := mergeCaps(venue.Availability, availability); changed {
					venue.Availability = merged
					dirty = true
				}
			}
			if dirty {
				if err := s.venues.Update(ctx, exec, venue); err != nil {
					return nil, err
				}
			}
		}

		if err := s.promoter.AttachPlaceholders(ctx, exec, venue); err != nil {
			return nil, err
		}

		if created {
			summary.Created++
			s.metrics.RecordIngestRow(UploadTypeVenue, "created")
		} else {
			summary.Updated++
			s.metrics.RecordIngestRow(UploadTypeVenue, "updated")
		}
	}
	return summary, nil
}

// RerunProvisionAllocation re-resolves every stored provision, skipping rows
// pinned by a manual override.
func (s *IngestService) RerunProvisionAllocation(ctx context.Context) (*dto.RefreshSummary, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	provisions, err := s.provisions.List(ctx, tx)
	if err != nil {
		return nil, err
	}
	summary := &dto.RefreshSummary{TotalRows: len(provisions)}

	for i := range provisions {
		provision := &provisions[i]
		exam, err := s.exams.FindByID(ctx, tx, provision.ExamID)
		if err != nil {
			return nil, fmt.Errorf("load exam %d: %w", provision.ExamID, err)
		}
		studentExam, _, err := s.assignments.GetOrCreate(ctx, tx, provision.StudentID, provision.ExamID)
		if err != nil {
			return nil, err
		}
		if studentExam.ManualAllocationOverride {
			summary.Skipped++
			continue
		}
		changed, err := s.allocator.Resolve(ctx, tx, studentExam, exam, provision.Codes)
		if err != nil {
			return nil, fmt.Errorf("re-allocate student %s exam %d: %w", provision.StudentID, provision.ExamID, err)
		}
		if changed {
			summary.Updated++
		} else {
			summary.Unchanged++
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit re-allocation")
	}
	return summary, nil
}

// UploadLogs returns the ingestion history, newest first.
func (s *IngestService) UploadLogs(ctx context.Context, limit int) ([]models.UploadLog, error) {
	logs, err := s.uploadLogs.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upload logs")
	}
	return logs, nil
}

func firstCell(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := raw[key]; ok && CleanString(value, 0) != "" {
			return value
		}
	}
	return nil
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func intOrZero(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
