package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfdrepairs/repair-ops/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func jobRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "reference", "tracking_token", "onboarding_token",
		"customer_name", "customer_phone", "customer_email",
		"device_make", "device_model", "issue", "issue_description", "additional_issues",
		"quoted_price", "total_price", "parts_required", "deposit_required", "deposit_amount", "deposit_received",
		"status", "onboarding_completed", "terms_accepted", "device_password", "password_not_applicable",
		"post_collection_sms_scheduled_at", "post_collection_sms_sent_at",
		"post_collection_sms_delivery_status", "post_collection_sms_body",
		"created_at", "updated_at",
	}).AddRow(
		"01JOB1", "NFD-20260302-001", "track-1", "onboard-1",
		"Sam", "+447700900123", nil,
		"Apple", "iPhone 12", "Cracked screen", nil, nil,
		nil, 89.00, true, true, 20.00, false,
		"AWAITING_DEPOSIT", true, true, nil, false,
		nil, nil,
		nil, nil,
		now, now,
	)
}

func TestJobsGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobsRepository(db)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM jobs WHERE id = \? LIMIT 1`).
			WithArgs("01JOB1").
			WillReturnRows(jobRow())

		job, err := repo.GetByID(context.Background(), "01JOB1")
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, "NFD-20260302-001", job.Reference)
		assert.Equal(t, model.StatusAwaitingDeposit, job.Status)
		require.NotNil(t, job.DepositAmount)
		assert.Equal(t, 20.00, *job.DepositAmount)
	})

	t.Run("missing is nil not error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM jobs WHERE id = \? LIMIT 1`).
			WithArgs("01NOSUCH").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		job, err := repo.GetByID(context.Background(), "01NOSUCH")
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsInsert_OwnTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO jobs`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	amount := model.DepositGBP
	err := repo.Insert(context.Background(), nil, model.Job{
		ID:              "01JOB1",
		Reference:       "NFD-20260302-001",
		CustomerName:    "Sam",
		CustomerPhone:   "+447700900123",
		DeviceMake:      "Apple",
		DeviceModel:     "iPhone 12",
		Issue:           "Cracked screen",
		PartsRequired:   true,
		DepositRequired: true,
		DepositAmount:   &amount,
		Status:          model.StatusAwaitingDeposit,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsUpdateStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE jobs SET status = ?, updated_at = NOW() WHERE id = ?`)).
		WithArgs("IN_REPAIR", "01JOB1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "01JOB1", model.StatusInRepair))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsMarkDepositReceived_FlipsBothFields(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE jobs SET deposit_received = 1, status = ?, updated_at = NOW() WHERE id = ?`)).
		WithArgs("PARTS_ORDERED", "01JOB1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkDepositReceived(context.Background(), "01JOB1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsSchedulePostCollectionSMS_GuardsSentRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobsRepository(db)

	at := time.Now().Add(3 * time.Hour)
	// the WHERE clause must refuse to reschedule an already-sent SMS
	mock.ExpectExec(`UPDATE jobs(.+)WHERE id = \? AND post_collection_sms_sent_at IS NULL`).
		WithArgs(at, "", "01JOB1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SchedulePostCollectionSMS(context.Background(), "01JOB1", at, ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsCountCreatedOn(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobsRepository(db)

	day := time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM jobs WHERE DATE(created_at) = ?`)).
		WithArgs("2026-03-02").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.CountCreatedOn(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsListDuePostCollectionSMS(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobsRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM jobs\s+WHERE post_collection_sms_scheduled_at IS NOT NULL`).
		WillReturnRows(jobRow())

	due, err := repo.ListDuePostCollectionSMS(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "01JOB1", due[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobsLatestByPhone_NoRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobsRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM jobs WHERE customer_phone = \?`).
		WithArgs("+447700900123", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	job, err := repo.LatestByPhone(context.Background(), "+447700900123", time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Nil(t, job)
	require.NoError(t, mock.ExpectationsWereMet())
}
