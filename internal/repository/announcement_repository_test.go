package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostelhub/residence-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func announcementRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "hostel_id", "title", "content", "category", "priority", "status",
		"is_urgent", "is_pinned", "requires_approval", "requires_acknowledgment",
		"acknowledgment_deadline", "attachments", "published_at", "expires_at",
		"unpublish_reason", "created_by", "created_at", "updated_at",
	}).AddRow(
		"ann-1", "hostel-1", "Water outage", "Supply cut on Saturday morning.",
		"MAINTENANCE", "NORMAL", "PUBLISHED",
		false, false, false, false,
		nil, "{}", now, nil,
		nil, "user-1", now, now,
	)
}

func TestAnnouncementRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery("FROM announcements WHERE 1=1 AND hostel_id = \\$1 AND status = ANY\\(\\$2\\)").
		WithArgs("hostel-1", sqlmock.AnyArg()).
		WillReturnRows(announcementRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM announcements WHERE 1=1 AND hostel_id = \\$1 AND status = ANY\\(\\$2\\)").
		WithArgs("hostel-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	filter := models.AnnouncementFilter{HostelID: "hostel-1", Status: []models.AnnouncementStatus{models.AnnouncementStatusPublished}}
	announcements, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, announcements, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Water outage", announcements[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec("INSERT INTO announcements").
		WillReturnResult(sqlmock.NewResult(1, 1))

	announcement := &models.Announcement{
		HostelID:  "hostel-1",
		Title:     "Water outage",
		Content:   "Supply cut on Saturday morning.",
		Category:  models.AnnouncementCategoryMaintenance,
		Priority:  models.AnnouncementPriorityNormal,
		Status:    models.AnnouncementStatusDraft,
		CreatedBy: "user-1",
	}
	err := repo.Create(context.Background(), announcement)
	require.NoError(t, err)
	assert.NotEmpty(t, announcement.ID)
	assert.False(t, announcement.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec("UPDATE announcements").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "ann-1",
		[]models.AnnouncementStatus{models.AnnouncementStatusDraft}, models.AnnouncementStatusPublished, nil, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryBulkDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM announcements WHERE id = ANY\\(\\$1\\)").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	deleted, err := repo.BulkDelete(context.Background(), []string{"ann-1", "ann-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryStats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	rows := sqlmock.NewRows([]string{"status", "category", "priority", "is_urgent", "is_pinned", "cnt"}).
		AddRow("PUBLISHED", "GENERAL", "NORMAL", false, true, 3).
		AddRow("DRAFT", "MAINTENANCE", "HIGH", true, false, 2)
	mock.ExpectQuery("SELECT status, category, priority, is_urgent, is_pinned, COUNT\\(\\*\\) AS cnt").
		WithArgs("hostel-1").
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background(), "hostel-1")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.ByStatus["PUBLISHED"])
	assert.Equal(t, 2, stats.UrgentCount)
	assert.Equal(t, 3, stats.PinnedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
