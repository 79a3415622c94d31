package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nfdrepairs/repair-ops/internal/model"
)

// SMSRepository covers staff-editable SMS templates and the per-attempt
// delivery log.
type SMSRepository interface {
	GetActiveTemplate(ctx context.Context, key string) (*model.SMSTemplate, error)
	UpsertTemplate(ctx context.Context, t model.SMSTemplate) error

	InsertLog(ctx context.Context, tx *sqlx.Tx, l model.SMSLog) error
	GetLog(ctx context.Context, id string) (*model.SMSLog, error)
	MarkLogResult(ctx context.Context, id string, status model.SMSStatus, errMsg *string) error
	ListLogsByJobReference(ctx context.Context, ref string) ([]model.SMSLog, error)
}

type SMSRepositoryImpl struct {
	db *sqlx.DB
}

func NewSMSRepository(db *sqlx.DB) *SMSRepositoryImpl {
	return &SMSRepositoryImpl{db: db}
}

var _ SMSRepository = (*SMSRepositoryImpl)(nil)

func (r *SMSRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

// GetActiveTemplate returns nil when no active template exists for the key.
// Callers treat that as a silent no-op, not an error.
func (r *SMSRepositoryImpl) GetActiveTemplate(ctx context.Context, key string) (*model.SMSTemplate, error) {
	var t model.SMSTemplate
	err := r.db.GetContext(ctx, &t, `
		SELECT id, template_key, body, is_active, created_at, updated_at
		  FROM sms_templates
		 WHERE template_key = ? AND is_active = 1
		 LIMIT 1`, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SMSRepositoryImpl) UpsertTemplate(ctx context.Context, t model.SMSTemplate) error {
	const q = `
		INSERT INTO sms_templates (template_key, body, is_active, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			body = VALUES(body),
			is_active = VALUES(is_active),
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, q, t.Key, t.Body, t.IsActive)
	return err
}

// InsertLog writes a new attempt row with status=PENDING.
func (r *SMSRepositoryImpl) InsertLog(ctx context.Context, tx *sqlx.Tx, l model.SMSLog) error {
	const q = `
		INSERT INTO sms_logs (id, job_reference, template_key, phone, body, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'PENDING', NOW(), NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, l.ID, l.JobReference, l.TemplateKey, l.Phone, l.Body)
		return err
	})
}

func (r *SMSRepositoryImpl) GetLog(ctx context.Context, id string) (*model.SMSLog, error) {
	var l model.SMSLog
	err := r.db.GetContext(ctx, &l, `
		SELECT id, job_reference, template_key, phone, body, status, error_message, sent_at, created_at, updated_at
		  FROM sms_logs
		 WHERE id = ? LIMIT 1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// MarkLogResult records the outcome of a send attempt. sent_at is only set
// for SENT.
func (r *SMSRepositoryImpl) MarkLogResult(ctx context.Context, id string, status model.SMSStatus, errMsg *string) error {
	var sentAt *time.Time
	if status == model.SMSSent {
		now := time.Now()
		sentAt = &now
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sms_logs
		   SET status = ?, error_message = ?, sent_at = ?, updated_at = NOW()
		 WHERE id = ?`,
		status.String(), errMsg, sentAt, id)
	return err
}

func (r *SMSRepositoryImpl) ListLogsByJobReference(ctx context.Context, ref string) ([]model.SMSLog, error) {
	logs := []model.SMSLog{}
	err := r.db.SelectContext(ctx, &logs, `
		SELECT id, job_reference, template_key, phone, body, status, error_message, sent_at, created_at, updated_at
		  FROM sms_logs
		 WHERE job_reference = ?
		 ORDER BY created_at DESC`, ref)
	return logs, err
}
