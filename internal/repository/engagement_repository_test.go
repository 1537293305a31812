package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostelhub/residence-api/internal/models"
)

func TestEngagementRepositoryUpsertReadReceipt(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEngagementRepository(db)

	mock.ExpectQuery("INSERT INTO read_receipts").
		WillReturnRows(sqlmock.NewRows([]string{"created"}).AddRow(true))

	receipt := &models.ReadReceipt{
		AnnouncementID: "ann-1",
		StudentID:      "stu-1",
	}
	created, err := repo.UpsertReadReceipt(context.Background(), receipt)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, receipt.ID, "missing IDs get assigned before insert")
	assert.False(t, receipt.ReadAt.IsZero(), "read_at defaults to now")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementRepositoryUpsertReportsReplay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEngagementRepository(db)
	seconds := 42

	// xmax = 0 holds only for freshly inserted rows, so a conflicting
	// receipt comes back created=false.
	mock.ExpectQuery("ON CONFLICT \\(announcement_id, student_id\\) DO UPDATE SET").
		WillReturnRows(sqlmock.NewRows([]string{"created"}).AddRow(false))

	receipt := &models.ReadReceipt{
		ID:                 "rcp-1",
		AnnouncementID:     "ann-1",
		StudentID:          "stu-1",
		ReadingTimeSeconds: &seconds,
	}
	created, err := repo.UpsertReadReceipt(context.Background(), receipt)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "rcp-1", receipt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
