package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostelhub/residence-api/internal/models"
)

func TestDeliveryRepositoryApplyChannelDeltas(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDeliveryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE delivery_channel_stats").
		WithArgs(3, 2, 1, 0, "del-1", models.ChannelEmail).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE delivery_channel_stats").
		WithArgs(5, 5, 0, 0, "del-1", models.ChannelPush).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyChannelDeltas(context.Background(), "del-1", []ChannelDelta{
		{Channel: models.ChannelEmail, Sent: 3, Delivered: 2, Failed: 1},
		{Channel: models.ChannelPush, Sent: 5, Delivered: 5},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryRepositoryApplyChannelDeltasRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDeliveryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE delivery_channel_stats").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.ApplyChannelDeltas(context.Background(), "del-1", []ChannelDelta{
		{Channel: models.ChannelSMS, Sent: 1},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
