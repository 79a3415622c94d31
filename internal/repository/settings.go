package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/nfdrepairs/repair-ops/internal/model"
)

// SettingsRepository is the generic key/value admin store.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) ([]model.AdminSetting, error)
}

type SettingsRepositoryImpl struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepositoryImpl {
	return &SettingsRepositoryImpl{db: db}
}

var _ SettingsRepository = (*SettingsRepositoryImpl)(nil)

func (r *SettingsRepositoryImpl) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.GetContext(ctx, &v,
		`SELECT setting_value FROM admin_settings WHERE setting_key = ? LIMIT 1`, key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *SettingsRepositoryImpl) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO admin_settings (setting_key, setting_value, updated_at)
		VALUES (?, ?, NOW())
		ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value), updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, q, key, value)
	return err
}

func (r *SettingsRepositoryImpl) All(ctx context.Context) ([]model.AdminSetting, error) {
	settings := []model.AdminSetting{}
	err := r.db.SelectContext(ctx, &settings,
		`SELECT setting_key, setting_value, updated_at FROM admin_settings ORDER BY setting_key`)
	return settings, err
}
