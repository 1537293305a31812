package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostelhub/residence-api/internal/models"
)

func TestApprovalRepositoryRecordDecision(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	decidedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE approval_requests").
		WithArgs(models.ApprovalStatusApproved, "user-1", decidedAt, nil, false, "apr-1", models.ApprovalStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordDecision(context.Background(), DecisionParams{
		ID:        "apr-1",
		Status:    models.ApprovalStatusApproved,
		DecidedBy: "user-1",
		DecidedAt: decidedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryRecordDecisionLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	reason := "duplicate announcement"

	// The pending guard in the WHERE clause matches nothing once another
	// reviewer has already decided.
	mock.ExpectExec("UPDATE approval_requests").
		WithArgs(models.ApprovalStatusRejected, "user-2", sqlmock.AnyArg(), &reason, true, "apr-1", models.ApprovalStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordDecision(context.Background(), DecisionParams{
		ID:                "apr-1",
		Status:            models.ApprovalStatusRejected,
		DecidedBy:         "user-2",
		DecidedAt:         time.Now().UTC(),
		RejectionReason:   &reason,
		AllowResubmission: true,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
