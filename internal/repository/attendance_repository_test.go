package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostelhub/residence-api/internal/models"
)

func TestAttendanceRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_records").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance_records").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	records := []models.AttendanceRecord{
		{HostelID: "hostel-1", StudentID: "stu-1", Date: time.Now(), Status: models.AttendancePresent, MarkedBy: "user-1"},
		{HostelID: "hostel-1", StudentID: "stu-2", Date: time.Now(), Status: models.AttendanceAbsent, MarkedBy: "user-1"},
	}
	err := repo.BulkUpsert(context.Background(), records)
	require.NoError(t, err)
	assert.NotEmpty(t, records[0].ID)
	assert.NotEmpty(t, records[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	require.NoError(t, repo.BulkUpsert(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "hostel_id", "student_id", "date", "status", "note", "marked_by", "created_at", "updated_at"}).
		AddRow("att-1", "hostel-1", "stu-1", now, "PRESENT", nil, "user-1", now, now)
	mock.ExpectQuery("SELECT id, hostel_id, student_id, date, status, note, marked_by, created_at, updated_at").
		WithArgs("hostel-1", "stu-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM attendance_records").
		WithArgs("hostel-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{HostelID: "hostel-1", StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.AttendancePresent, records[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
