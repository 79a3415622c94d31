package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nfdrepairs/repair-ops/internal/model"
)

// JobsRepository defines persistence for the jobs table.
type JobsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, j model.Job) error
	GetByID(ctx context.Context, id string) (*model.Job, error)
	GetByReference(ctx context.Context, ref string) (*model.Job, error)
	GetByTrackingToken(ctx context.Context, token string) (*model.Job, error)
	GetByOnboardingToken(ctx context.Context, token string) (*model.Job, error)
	List(ctx context.Context, status model.JobStatus, limit, offset int) ([]model.Job, error)
	CountCreatedOn(ctx context.Context, day time.Time) (int, error)
	LatestByPhone(ctx context.Context, phone string, since time.Time) (*model.Job, error)

	UpdateStatus(ctx context.Context, id string, status model.JobStatus) error
	MarkDepositReceived(ctx context.Context, id string) error
	CompleteOnboarding(ctx context.Context, id string, devicePassword *string, passwordNA, termsAccepted bool) error

	SchedulePostCollectionSMS(ctx context.Context, id string, at time.Time, body string) error
	MarkPostCollectionSMSSent(ctx context.Context, id string, at time.Time, deliveryStatus string) error
	ListDuePostCollectionSMS(ctx context.Context, now time.Time) ([]model.Job, error)
}

type JobsRepositoryImpl struct {
	db *sqlx.DB
}

func NewJobsRepository(db *sqlx.DB) *JobsRepositoryImpl {
	return &JobsRepositoryImpl{db: db}
}

var _ JobsRepository = (*JobsRepositoryImpl)(nil)

const jobColumns = `
	id, reference, tracking_token, onboarding_token,
	customer_name, customer_phone, customer_email,
	device_make, device_model, issue, issue_description, additional_issues,
	quoted_price, total_price, parts_required, deposit_required, deposit_amount, deposit_received,
	status, onboarding_completed, terms_accepted, device_password, password_not_applicable,
	post_collection_sms_scheduled_at, post_collection_sms_sent_at,
	post_collection_sms_delivery_status, post_collection_sms_body,
	created_at, updated_at`

func (r *JobsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *JobsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, j model.Job) error {
	const q = `
		INSERT INTO jobs (
			id, reference, tracking_token, onboarding_token,
			customer_name, customer_phone, customer_email,
			device_make, device_model, issue, issue_description, additional_issues,
			quoted_price, total_price, parts_required, deposit_required, deposit_amount, deposit_received,
			status, onboarding_completed, terms_accepted, device_password, password_not_applicable,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			j.ID, j.Reference, j.TrackingToken, j.OnboardingToken,
			j.CustomerName, j.CustomerPhone, j.CustomerEmail,
			j.DeviceMake, j.DeviceModel, j.Issue, j.IssueDescription, j.AdditionalIssues,
			j.QuotedPrice, j.TotalPrice, j.PartsRequired, j.DepositRequired, j.DepositAmount, j.DepositReceived,
			j.Status.String(), j.OnboardingCompleted, j.TermsAccepted, j.DevicePassword, j.PasswordNotApplicable,
		)
		return err
	})
}

func (r *JobsRepositoryImpl) getOne(ctx context.Context, where string, arg any) (*model.Job, error) {
	var j model.Job
	err := r.db.GetContext(ctx, &j, `SELECT `+jobColumns+` FROM jobs WHERE `+where+` LIMIT 1`, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Job, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *JobsRepositoryImpl) GetByReference(ctx context.Context, ref string) (*model.Job, error) {
	return r.getOne(ctx, `reference = ?`, ref)
}

func (r *JobsRepositoryImpl) GetByTrackingToken(ctx context.Context, token string) (*model.Job, error) {
	return r.getOne(ctx, `tracking_token = ?`, token)
}

func (r *JobsRepositoryImpl) GetByOnboardingToken(ctx context.Context, token string) (*model.Job, error) {
	return r.getOne(ctx, `onboarding_token = ?`, token)
}

func (r *JobsRepositoryImpl) List(ctx context.Context, status model.JobStatus, limit, offset int) ([]model.Job, error) {
	jobs := []model.Job{}
	if status != "" {
		err := r.db.SelectContext(ctx, &jobs,
			`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
			status.String(), limit, offset)
		return jobs, err
	}
	err := r.db.SelectContext(ctx, &jobs,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	return jobs, err
}

// CountCreatedOn counts jobs created on the given calendar day (used for
// the daily reference sequence).
func (r *JobsRepositoryImpl) CountCreatedOn(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM jobs WHERE DATE(created_at) = ?`, day.Format("2006-01-02"))
	return n, err
}

// LatestByPhone returns the most recent job for a phone number created at or
// after `since`, or nil.
func (r *JobsRepositoryImpl) LatestByPhone(ctx context.Context, phone string, since time.Time) (*model.Job, error) {
	var j model.Job
	err := r.db.GetContext(ctx, &j,
		`SELECT `+jobColumns+` FROM jobs WHERE customer_phone = ? AND created_at >= ? ORDER BY created_at DESC LIMIT 1`,
		phone, since)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobsRepositoryImpl) UpdateStatus(ctx context.Context, id string, status model.JobStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = NOW() WHERE id = ?`, status.String(), id)
	return err
}

// MarkDepositReceived flips deposit_received and moves the job to
// PARTS_ORDERED in the same statement.
func (r *JobsRepositoryImpl) MarkDepositReceived(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET deposit_received = 1, status = ?, updated_at = NOW() WHERE id = ?`,
		model.StatusPartsOrdered.String(), id)
	return err
}

func (r *JobsRepositoryImpl) CompleteOnboarding(ctx context.Context, id string, devicePassword *string, passwordNA, termsAccepted bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		   SET onboarding_completed = 1,
		       device_password = ?,
		       password_not_applicable = ?,
		       terms_accepted = ?,
		       updated_at = NOW()
		 WHERE id = ?`,
		devicePassword, passwordNA, termsAccepted, id)
	return err
}

func (r *JobsRepositoryImpl) SchedulePostCollectionSMS(ctx context.Context, id string, at time.Time, body string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		   SET post_collection_sms_scheduled_at = ?,
		       post_collection_sms_body = ?,
		       updated_at = NOW()
		 WHERE id = ? AND post_collection_sms_sent_at IS NULL`,
		at, body, id)
	return err
}

func (r *JobsRepositoryImpl) MarkPostCollectionSMSSent(ctx context.Context, id string, at time.Time, deliveryStatus string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		   SET post_collection_sms_sent_at = ?,
		       post_collection_sms_delivery_status = ?,
		       updated_at = NOW()
		 WHERE id = ?`,
		at, deliveryStatus, id)
	return err
}

// ListDuePostCollectionSMS returns jobs whose scheduled review SMS is due
// and has not been sent yet.
func (r *JobsRepositoryImpl) ListDuePostCollectionSMS(ctx context.Context, now time.Time) ([]model.Job, error) {
	jobs := []model.Job{}
	err := r.db.SelectContext(ctx, &jobs, `
		SELECT `+jobColumns+`
		  FROM jobs
		 WHERE post_collection_sms_scheduled_at IS NOT NULL
		   AND post_collection_sms_scheduled_at <= ?
		   AND post_collection_sms_sent_at IS NULL
		 ORDER BY post_collection_sms_scheduled_at ASC`,
		now)
	return jobs, err
}
