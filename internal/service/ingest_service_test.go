package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lithium-apps/exam-timetabling-api/internal/dto"
	"github.com/lithium-apps/exam-timetabling-api/internal/models"
	"github.com/lithium-apps/exam-timetabling-api/pkg/config"
	appErrors "github.com/lithium-apps/exam-timetabling-api/pkg/errors"
)

type txProviderStub struct {
	db *sqlx.DB
}

func (p *txProviderStub) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

// newTxProvider backs the transaction boundary with sqlmock; the stub stores
// ignore the handle so only begin/commit need expectations.
func newTxProvider(t *testing.T, transactions int) *txProviderStub {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for i := 0; i < transactions; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	return &txProviderStub{db: sqlx.NewDb(db, "sqlmock")}
}

type stubExamStore struct {
	exams  []models.Exam
	nextID int64
}

func (s *stubExamStore) List(_ context.Context) ([]models.Exam, error) {
	return s.exams, nil
}

func (s *stubExamStore) ListByCourseCode(_ context.Context, _ sqlx.ExtContext, code string) ([]models.Exam, error) {
	var out []models.Exam
	for _, exam := range s.exams {
		if exam.CourseCode == code {
			out = append(out, exam)
		}
	}
	return out, nil
}

func (s *stubExamStore) FindByID(_ context.Context, _ sqlx.ExtContext, id int64) (*models.Exam, error) {
	for i := range s.exams {
		if s.exams[i].ID == id {
			copied := s.exams[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubExamStore) Create(_ context.Context, _ sqlx.ExtContext, exam *models.Exam) error {
	s.nextID++
	exam.ID = s.nextID
	s.exams = append(s.exams, *exam)
	return nil
}

func (s *stubExamStore) Update(_ context.Context, _ sqlx.ExtContext, exam *models.Exam) error {
	for i := range s.exams {
		if s.exams[i].ID == exam.ID {
			s.exams[i] = *exam
			return nil
		}
	}
	return sql.ErrNoRows
}

type stubIngestVenueStore struct {
	venues  map[string]models.Venue
	updates int
}

func newStubIngestVenueStore() *stubIngestVenueStore {
	return &stubIngestVenueStore{venues: make(map[string]models.Venue)}
}

func (s *stubIngestVenueStore) GetOrCreate(_ context.Context, _ sqlx.ExtContext, venue *models.Venue) (bool, error) {
	if existing, ok := s.venues[venue.Name]; ok {
		*venue = existing
		return false, nil
	}
	s.venues[venue.Name] = *venue
	return true, nil
}

func (s *stubIngestVenueStore) Update(_ context.Context, _ sqlx.ExtContext, venue *models.Venue) error {
	s.venues[venue.Name] = *venue
	s.updates++
	return nil
}

func (s *stubSlotStore) FindByExamAndVenue(_ context.Context, _ sqlx.ExtContext, examID int64, venueName string) (*models.ExamVenue, error) {
	for i := range s.slots {
		ev := &s.slots[i]
		if ev.ExamID == examID && ev.VenueName != nil && *ev.VenueName == venueName {
			copied := *ev
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

type stubStudentStore struct {
	students map[string]models.Student
}

func newStubStudentStore() *stubStudentStore {
	return &stubStudentStore{students: make(map[string]models.Student)}
}

func (s *stubStudentStore) Upsert(_ context.Context, _ sqlx.ExtContext, student *models.Student) error {
	if existing, ok := s.students[student.ID]; ok && student.Name == "" {
		student.Name = existing.Name
	}
	s.students[student.ID] = *student
	return nil
}

type stubProvisionStore struct {
	provisions []models.Provision
	nextID     int64
}

func (s *stubProvisionStore) FindByStudentExam(_ context.Context, _ sqlx.ExtContext, studentID string, examID int64) (*models.Provision, error) {
	for i := range s.provisions {
		p := &s.provisions[i]
		if p.StudentID == studentID && p.ExamID == examID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubProvisionStore) List(_ context.Context, _ sqlx.ExtContext) ([]models.Provision, error) {
	return s.provisions, nil
}

func (s *stubProvisionStore) Create(_ context.Context, _ sqlx.ExtContext, p *models.Provision) error {
	s.nextID++
	p.ID = s.nextID
	s.provisions = append(s.provisions, *p)
	return nil
}

func (s *stubProvisionStore) Update(_ context.Context, _ sqlx.ExtContext, p *models.Provision) error {
	for i := range s.provisions {
		if s.provisions[i].ID == p.ID {
			s.provisions[i] = *p
			return nil
		}
	}
	return sql.ErrNoRows
}

type stubStudentExamStore struct {
	records map[string]*models.StudentExam
}

func newStubStudentExamStore() *stubStudentExamStore {
	return &stubStudentExamStore{records: make(map[string]*models.StudentExam)}
}

func (s *stubStudentExamStore) GetOrCreate(_ context.Context, _ sqlx.ExtContext, studentID string, examID int64) (*models.StudentExam, bool, error) {
	key := fmt.Sprintf("%s/%d", studentID, examID)
	if existing, ok := s.records[key]; ok {
		return existing, false, nil
	}
	record := &models.StudentExam{ID: key, StudentID: studentID, ExamID: examID}
	s.records[key] = record
	return record, true, nil
}

type stubUploadLogStore struct {
	logs []models.UploadLog
}

func (s *stubUploadLogStore) Create(_ context.Context, _ sqlx.ExtContext, log *models.UploadLog) error {
	log.ID = int64(len(s.logs) + 1)
	s.logs = append(s.logs, *log)
	return nil
}

func (s *stubUploadLogStore) List(_ context.Context, _ int) ([]models.UploadLog, error) {
	return s.logs, nil
}

type stubResolver struct {
	calls   int
	changed bool
	err     error
}

func (s *stubResolver) Resolve(_ context.Context, _ sqlx.ExtContext, studentExam *models.StudentExam, _ *models.Exam, _ []string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.changed, nil
}

type stubPromoter struct {
	attached []string
}

func (s *stubPromoter) AttachPlaceholders(_ context.Context, _ sqlx.ExtContext, venue *models.Venue) error {
	s.attached = append(s.attached, venue.Name)
	return nil
}

type ingestFixture struct {
	svc         *IngestService
	exams       *stubExamStore
	venues      *stubIngestVenueStore
	slots       *stubSlotStore
	students    *stubStudentStore
	provisions  *stubProvisionStore
	assignments *stubStudentExamStore
	logs        *stubUploadLogStore
	resolver    *stubResolver
	promoter    *stubPromoter
}

func newIngestFixture(t *testing.T, transactions int) *ingestFixture {
	f := &ingestFixture{
		exams:       &stubExamStore{},
		venues:      newStubIngestVenueStore(),
		slots:       &stubSlotStore{},
		students:    newStubStudentStore(),
		provisions:  &stubProvisionStore{},
		assignments: newStubStudentExamStore(),
		logs:        &stubUploadLogStore{},
		resolver:    &stubResolver{changed: true},
		promoter:    &stubPromoter{},
	}
	f.svc = NewIngestService(
		newTxProvider(t, transactions),
		f.exams, f.venues, f.slots, f.students, f.provisions, f.assignments,
		f.logs, f.resolver, f.promoter, nil, nil, config.IngestConfig{},
	)
	return f
}

func examUpload(rows []map[string]any) dto.IngestRequest {
	return dto.IngestRequest{
		FileName: "exams.xlsx",
		Result:   dto.UploadResult{Status: "ok", Type: UploadTypeExam, Rows: rows},
	}
}

func TestIngestExamUploadCreatesExamsAndCoreSlots(t *testing.T) {
	f := newIngestFixture(t, 1)

	summary, err := f.svc.IngestUploadResult(context.Background(), examUpload([]map[string]any{
		{
			"course_code": "CS2010",
			"exam_name":   "Algorithms",
			"exam_date":   "2026-05-12",
			"exam_start":  "09:30",
			"exam_length": "120",
			"no_students": 180,
			"main_venue":  "Main Hall; Sports Hall",
		},
	}))

	require.NoError(t, err)
	assert.True(t, summary.Handled)
	assert.Equal(t, 1, summary.Created)
	assert.Empty(t, summary.Errors)

	require.Len(t, f.exams.exams, 1)
	exam := f.exams.exams[0]
	assert.Equal(t, "CS2010", exam.CourseCode)
	assert.Equal(t, "Algorithms", exam.Name)
	assert.Equal(t, 180, exam.NoStudents)

	// Both named venues exist and carry a core slot with the upload's timing.
	assert.Len(t, f.venues.venues, 2)
	require.Len(t, f.slots.slots, 2)
	for _, ev := range f.slots.slots {
		assert.True(t, ev.Core)
		require.NotNil(t, ev.StartTime)
		assert.Equal(t, time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC), *ev.StartTime)
		require.NotNil(t, ev.ExamLength)
		assert.Equal(t, 120, *ev.ExamLength)
	}

	require.Len(t, f.logs.logs, 1)
	assert.Equal(t, "exams.xlsx", f.logs.logs[0].FileName)
}

func TestIngestExamUploadUpdatesByCourseCode(t *testing.T) {
	f := newIngestFixture(t, 1)
	f.exams.exams = []models.Exam{{
		ID: 1, CourseCode: "CS2010", Name: "Old Name", ExamType: "Exam", School: "Unassigned",
	}}
	f.exams.nextID = 1

	summary, err := f.svc.IngestUploadResult(context.Background(), examUpload([]map[string]any{
		{"course_code": "CS2010", "exam_name": "Algorithms"},
	}))

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, "Algorithms", f.exams.exams[0].Name)
}

func TestIngestExamUploadReportsDuplicateCourseCodes(t *testing.T) {
	f := newIngestFixture(t, 1)
	f.exams.exams = []models.Exam{
		{ID: 1, CourseCode: "CS2010", Name: "First", ExamType: "Exam", School: "Unassigned"},
		{ID: 2, CourseCode: "CS2010", Name: "Second", ExamType: "Exam", School: "Unassigned"},
	}
	f.exams.nextID = 2

	summary, err := f.svc.IngestUploadResult(context.Background(), examUpload([]map[string]any{
		{"course_code": "CS2010", "exam_name": "Algorithms"},
	}))

	require.NoError(t, err)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "multiple exams found for course_code 'CS2010'")
	assert.Contains(t, summary.Errors[0], "exam_id=1")
}

func TestIngestExamUploadFoldsOnlineVenues(t *testing.T) {
	f := newIngestFixture(t, 1)

	_, err := f.svc.IngestUploadResult(context.Background(), examUpload([]map[string]any{
		{"course_code": "CS2010", "main_venue": "Online exam"},
	}))

	require.NoError(t, err)
	_, ok := f.venues.venues["Online / Digital"]
	assert.True(t, ok)
}

func TestIngestRejectsFailedParseAndOversizedUploads(t *testing.T) {
	f := newIngestFixture(t, 0)

	_, err := f.svc.IngestUploadResult(context.Background(), dto.IngestRequest{
		Result: dto.UploadResult{Status: "error", Type: UploadTypeExam},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	rows := make([]map[string]any, 20001)
	_, err = f.svc.IngestUploadResult(context.Background(), examUpload(rows))
	require.Error(t, err)
	appErr = appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestIngestUnsupportedTypeIsNotHandled(t *testing.T) {
	f := newIngestFixture(t, 0)

	summary, err := f.svc.IngestUploadResult(context.Background(), dto.IngestRequest{
		Result: dto.UploadResult{Status: "ok", Type: "Timetable"},
	})

	require.NoError(t, err)
	assert.False(t, summary.Handled)
	assert.Equal(t, "No persistence configured for Timetable uploads.", summary.Message)
	assert.Empty(t, f.logs.logs)
}

func provisionUpload(rows []map[string]any) dto.IngestRequest {
	return dto.IngestRequest{
		FileName: "provisions.xlsx",
		Result:   dto.UploadResult{Status: "ok", Type: UploadTypeProvisions, Rows: rows},
	}
}

func TestIngestProvisionUploadCreatesAndAllocates(t *testing.T) {
	f := newIngestFixture(t, 1)
	f.exams.exams = []models.Exam{{ID: 1, CourseCode: "CS2010", Name: "Algorithms"}}
	f.exams.nextID = 1

	summary, err := f.svc.IngestUploadResult(context.Background(), provisionUpload([]map[string]any{
		{
			"student_id":   "S100",
			"student_name": "Jordan Lee",
			"exam_code":    "CS2010",
			"provisions":   "Use of a computer; Extra time 15 minutes every hour",
		},
	}))

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, f.resolver.calls)

	require.Len(t, f.provisions.provisions, 1)
	stored := f.provisions.provisions[0]
	assert.Equal(t, "S100", stored.StudentID)
	assert.Equal(t, []string{models.ProvisionUseComputer, models.ProvisionExtraTime15PerHour}, []string(stored.Codes))
	assert.Nil(t, stored.Notes)

	student, ok := f.students.students["S100"]
	require.True(t, ok)
	assert.Equal(t, "Jordan Lee", student.Name)
}

func TestIngestProvisionUploadSkipsBadRows(t *testing.T) {
	f := newIngestFixture(t, 1)
	f.exams.exams = []models.Exam{{ID: 1, CourseCode: "CS2010", Name: "Algorithms"}}
	f.exams.nextID = 1

	summary, err := f.svc.IngestUploadResult(context.Background(), provisionUpload([]map[string]any{
		{"exam_code": "CS2010", "provisions": "scribe"},
		{"student_id": "S100", "provisions": "scribe"},
		{"student_id": "S100", "exam_code": "XX9999", "provisions": "scribe"},
		{"student_id": "S100", "exam_code": "CS2010", "provisions": "scribe"},
	}))

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 1, summary.Created)
	require.Len(t, summary.Errors, 3)
	assert.Contains(t, summary.Errors[0], "missing student_id")
	assert.Contains(t, summary.Errors[1], "missing exam_code")
	assert.Contains(t, summary.Errors[2], "exam with code 'XX9999' not found")
}

func TestIngestProvisionUploadRecordsUnknownTokens(t *testing.T) {
	f := newIngestFixture(t, 1)
	f.exams.exams = []models.Exam{{ID: 1, CourseCode: "CS2010", Name: "Algorithms"}}
	f.exams.nextID = 1

	_, err := f.svc.IngestUploadResult(context.Background(), provisionUpload([]map[string]any{
		{
			"student_id":      "S100",
			"exam_code":       "CS2010",
			"provisions":      "scribe; standing desk",
			"additional_info": "front row seat",
		},
	}))

	require.NoError(t, err)
	require.Len(t, f.provisions.provisions, 1)
	notes := f.provisions.provisions[0].Notes
	require.NotNil(t, notes)
	assert.Equal(t, "front row seat; Unrecognized provisions: standing desk", *notes)
}

func TestIngestProvisionUploadTruncatesLongNotes(t *testing.T) {
	f := newIngestFixture(t, 1)
	f.exams.exams = []models.Exam{{ID: 1, CourseCode: "CS2010", Name: "Algorithms"}}
	f.exams.nextID = 1

	_, err := f.svc.IngestUploadResult(context.Background(), provisionUpload([]map[string]any{
		{
			"student_id":      "S100",
			"exam_code":       "CS2010",
			"provisions":      "scribe; " + strings.Repeat("mystery need, ", 30),
			"additional_info": strings.Repeat("long note ", 30),
		},
	}))

	require.NoError(t, err)
	notes := f.provisions.provisions[0].Notes
	require.NotNil(t, notes)
	assert.LessOrEqual(t, len(*notes), 200)
}

func venueUpload(days []dto.VenueDayBlock) dto.IngestRequest {
	return dto.IngestRequest{
		FileName: "venues.xlsx",
		Result:   dto.UploadResult{Status: "ok", Type: UploadTypeVenue, Days: days},
	}
}

func TestIngestVenueDaysCreatesAndMergesAvailability(t *testing.T) {
	f := newIngestFixture(t, 2)

	first, err := f.svc.IngestUploadResult(context.Background(), venueUpload([]dto.VenueDayBlock{
		{
			Day: "Tuesday", Date: "2026-05-12",
			Rooms: []dto.VenueRoom{{
				Name: "Room 1", Capacity: 20, VenueType: models.VenueTypeSeparateRoom,
				Qualifications: []string{models.CapSeparateRoomOnOwn},
			}},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := f.svc.IngestUploadResult(context.Background(), venueUpload([]dto.VenueDayBlock{
		{
			Day: "Wednesday", Date: "2026-05-13",
			Rooms: []dto.VenueRoom{{
				Name: "Room 1", Capacity: 20, VenueType: models.VenueTypeSeparateRoom,
				Qualifications: []string{models.CapSeparateRoomOnOwn},
			}},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Updated)

	venue := f.venues.venues["Room 1"]
	assert.Equal(t, []string{"2026-05-12", "2026-05-13"}, []string(venue.Availability))
	// Placeholder promotion runs after every upsert.
	assert.Equal(t, []string{"Room 1", "Room 1"}, f.promoter.attached)
}

func TestIngestVenueDaysDefaultsTypeAndMergesAccessibility(t *testing.T) {
	f := newIngestFixture(t, 2)
	no := false

	_, err := f.svc.IngestUploadResult(context.Background(), venueUpload([]dto.VenueDayBlock{
		{Date: "2026-05-12", Rooms: []dto.VenueRoom{{Name: "Room 1", Capacity: 20}}},
	}))
	require.NoError(t, err)
	assert.Equal(t, models.VenueTypeSchoolToSort, f.venues.venues["Room 1"].VenueType)
	assert.True(t, f.venues.venues["Room 1"].IsAccessible)

	// A later day flagging the room inaccessible wins.
	_, err = f.svc.IngestUploadResult(context.Background(), venueUpload([]dto.VenueDayBlock{
		{Date: "2026-05-13", Rooms: []dto.VenueRoom{{Name: "Room 1", Capacity: 20, Accessible: &no}}},
	}))
	require.NoError(t, err)
	assert.False(t, f.venues.venues["Room 1"].IsAccessible)
}

func TestRerunProvisionAllocationSkipsManualOverrides(t *testing.T) {
	f := newIngestFixture(t, 1)
	f.exams.exams = []models.Exam{{ID: 1, CourseCode: "CS2010", Name: "Algorithms"}}
	f.exams.nextID = 1
	f.provisions.provisions = []models.Provision{
		{ID: 1, ExamID: 1, StudentID: "S100", Codes: []string{models.ProvisionUseScribe}},
		{ID: 2, ExamID: 1, StudentID: "S200", Codes: []string{models.ProvisionUseScribe}},
	}
	pinned, _, err := f.assignments.GetOrCreate(context.Background(), nil, "S200", 1)
	require.NoError(t, err)
	pinned.ManualAllocationOverride = true

	summary, err := f.svc.RerunProvisionAllocation(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalRows)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, f.resolver.calls)
}
