package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/nfdrepairs/repair-ops/internal/model"
)

// EmailTemplatesRepository mirrors the SMS template store for the email channel.
type EmailTemplatesRepository interface {
	GetActive(ctx context.Context, key string) (*model.EmailTemplate, error)
	Upsert(ctx context.Context, t model.EmailTemplate) error
}

type EmailTemplatesRepositoryImpl struct {
	db *sqlx.DB
}

func NewEmailTemplatesRepository(db *sqlx.DB) *EmailTemplatesRepositoryImpl {
	return &EmailTemplatesRepositoryImpl{db: db}
}

var _ EmailTemplatesRepository = (*EmailTemplatesRepositoryImpl)(nil)

func (r *EmailTemplatesRepositoryImpl) GetActive(ctx context.Context, key string) (*model.EmailTemplate, error) {
	var t model.EmailTemplate
	err := r.db.GetContext(ctx, &t, `
		SELECT id, template_key, subject, html_body, text_body, is_active, created_at, updated_at
		  FROM email_templates
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

func (r *EmailTemplatesRepositoryImpl) Upsert(ctx context.Context, t model.EmailTemplate) error {
	const q = `
		INSERT INTO email_templates (template_key, subject, html_body, text_body, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			subject = VALUES(subject),
			html_body = VALUES(html_body),
			text_body = VALUES(text_body),
			is_active = VALUES(is_active),
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, q, t.Key, t.Subject, t.HTMLBody, t.TextBody, t.IsActive)
	return err
}
