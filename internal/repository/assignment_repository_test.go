package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/drivematch-api/internal/models"
)

func newAssignmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAssignmentRepositoryCreateBatch(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	runID := "run-1"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_instructor_assignments")).
		WithArgs(sqlmock.AnyArg(), "s-1", "i-1", "run-1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_instructor_assignments")).
		WithArgs(sqlmock.AnyArg(), "s-2", "i-2", "run-1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignments := []models.StudentInstructorAssignment{
		{StudentID: "s-1", InstructorID: "i-1", MatchingRunID: &runID, IsActive: true},
		{StudentID: "s-2", InstructorID: "i-2", MatchingRunID: &runID, IsActive: true},
	}
	require.NoError(t, repo.CreateBatch(context.Background(), nil, assignments))
	assert.NotEmpty(t, assignments[0].ID)
	assert.False(t, assignments[1].AssignedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryActiveStudentIDs(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM student_instructor_assignments WHERE student_id = ANY($1) AND is_active = true")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "instructor_id", "matching_run_id", "is_active", "assigned_at", "ended_at"}).
			AddRow("a-1", "s-2", "i-1", nil, true, time.Now(), nil))

	active, err := repo.ActiveStudentIDs(context.Background(), nil, []string{"s-1", "s-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"s-2": {}}, active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryActiveStudentIDsSkipsEmptyInput(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	active, err := repo.ActiveStudentIDs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryLockStudents(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE id = ANY($1) ORDER BY id FOR UPDATE")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1").AddRow("s-2"))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.LockStudents(context.Background(), tx, []string{"s-2", "s-1"}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.NoError(t, repo.LockStudents(context.Background(), nil, nil))
}
