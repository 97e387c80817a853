package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentExamRepositoryGetOrCreateExisting(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentExamRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "exam_id", "exam_venue_id", "manual_allocation_override"}).
		AddRow("se-1", "2550001", int64(7), int64(3), false)
	mock.ExpectQuery("SELECT .+ FROM student_exams WHERE student_id = .+ AND exam_id = .+").
		WithArgs("2550001", int64(7)).
		WillReturnRows(rows)

	se, created, err := repo.GetOrCreate(context.Background(), nil, "2550001", 7)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, se.ExamVenueID)
	assert.Equal(t, int64(3), *se.ExamVenueID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentExamRepositoryGetOrCreateInserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentExamRepository(db)

	mock.ExpectQuery("SELECT .+ FROM student_exams WHERE student_id = .+ AND exam_id = .+").
		WithArgs("2550002", int64(7)).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_exams")).
		WithArgs(sqlmock.AnyArg(), "2550002", int64(7), nil, false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	se, created, err := repo.GetOrCreate(context.Background(), nil, "2550002", 7)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, se.ID)
	assert.Nil(t, se.ExamVenueID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentExamRepositoryCountByExamVenueExcludes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentExamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_exams WHERE exam_venue_id = $1 AND id <> $2")).
		WithArgs(int64(3), "se-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountByExamVenue(context.Background(), nil, 3, "se-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentExamRepositoryReassignExamVenue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentExamRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_exams SET exam_venue_id = $2 WHERE exam_venue_id = $1")).
		WithArgs(int64(9), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.ReassignExamVenue(context.Background(), nil, 9, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
