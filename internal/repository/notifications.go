package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/nfdrepairs/repair-ops/internal/model"
)

// NotificationsRepository covers the staff notification feed, the per-status
// email gating config, and stored push subscriptions.
type NotificationsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, n model.StaffNotification) error
	List(ctx context.Context, unreadOnly bool, limit int) ([]model.StaffNotification, error)
	MarkRead(ctx context.Context, id int64, read bool) error

	GetConfig(ctx context.Context, statusKey string) (*model.NotificationConfig, error)

	ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	InsertPushSubscription(ctx context.Context, s model.PushSubscription) error
	DeletePushSubscription(ctx context.Context, id int64) error
}

type NotificationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewNotificationsRepository(db *sqlx.DB) *NotificationsRepositoryImpl {
	return &NotificationsRepositoryImpl{db: db}
}

var _ NotificationsRepository = (*NotificationsRepositoryImpl)(nil)

func (r *NotificationsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

func (r *NotificationsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, n model.StaffNotification) error {
	const q = `
		INSERT INTO notifications (type, title, body, job_reference, is_read, created_at)
		VALUES (?, ?, ?, ?, 0, NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, n.Type, n.Title, n.Body, n.JobReference)
		return err
	})
}

func (r *NotificationsRepositoryImpl) List(ctx context.Context, unreadOnly bool, limit int) ([]model.StaffNotification, error) {
	notifs := []model.StaffNotification{}
	q := `SELECT id, type, title, body, job_reference, is_read, created_at FROM notifications`
	if unreadOnly {
		q += ` WHERE is_read = 0`
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &notifs, q, limit)
	return notifs, err
}

func (r *NotificationsRepositoryImpl) MarkRead(ctx context.Context, id int64, read bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = ? WHERE id = ?`, read, id)
	return err
}

// GetConfig returns nil when no row exists for the status key, which callers
// interpret as "sending allowed".
func (r *NotificationsRepositoryImpl) GetConfig(ctx context.Context, statusKey string) (*model.NotificationConfig, error) {
	var c model.NotificationConfig
	err := r.db.GetContext(ctx, &c, `
		SELECT id, status_key, send_email, is_active, updated_at
		  FROM notification_configs
		 WHERE status_key = ? LIMIT 1`, statusKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *NotificationsRepositoryImpl) ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	subs := []model.PushSubscription{}
	err := r.db.SelectContext(ctx, &subs,
		`SELECT id, endpoint, p256dh, auth, created_at FROM push_subscriptions`)
	return subs, err
}

func (r *NotificationsRepositoryImpl) InsertPushSubscription(ctx context.Context, s model.PushSubscription) error {
	const q = `
		INSERT INTO push_subscriptions (endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE p256dh = VALUES(p256dh), auth = VALUES(auth)
	`
	_, err := r.db.ExecContext(ctx, q, s.Endpoint, s.P256dh, s.Auth)
	return err
}

func (r *NotificationsRepositoryImpl) DeletePushSubscription(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id)
	return err
}
