package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/nfdrepairs/repair-ops/internal/config"
	"github.com/nfdrepairs/repair-ops/internal/db"
	"github.com/nfdrepairs/repair-ops/internal/model"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed SMS/email templates, notification configs and settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding templates and settings...")

		if err := seedSMSTemplates(sqlDB); err != nil {
			return err
		}
		if err := seedNotificationConfigs(sqlDB); err != nil {
			return err
		}
		if err := seedSettings(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

// seedSMSTemplates upserts one body per SMS-capable status key (idempotent).
func seedSMSTemplates(dbx *sqlx.DB) error {
	templates := []struct {
		key  string
		body string
	}{
		{
			key:  model.StatusReadyToBookIn.String(),
			body: "Hi {customer_name}, good news: parts for your {device_make} {device_model} have arrived. Reply or call us to book your repair in. Track progress: {tracking_link}",
		},
		{
			key:  model.StatusReadyToCollect.String(),
			body: "Hi {customer_name}, your {device_make} {device_model} is repaired and ready to collect ({job_ref}). We're open 9-5:30 Mon-Sat.",
		},
		{
			key:  model.StatusCompleted.String(),
			body: "Hi {customer_name}, thanks for choosing us for your {device_make} {device_model} repair. Keep your ref {job_ref} for warranty.",
		},
		{
			key:  model.TemplateKeyDepositRequired,
			body: "Hi {customer_name}, to order parts for your {device_make} {device_model} we need a £20 deposit. Pay securely here: {tracking_link}",
		},
		{
			key:  model.TemplateKeyPostCollectionReview,
			body: "Hi {customer_name}, hope your {device_make} {device_model} is working well! If you have a minute, we'd love a review: {review_link}",
		},
	}

	const q = `
INSERT INTO sms_templates (template_key, body, is_active, created_at, updated_at)
VALUES (?, ?, 1, ?, ?)
ON DUPLICATE KEY UPDATE
    body       = VALUES(body),
    is_active  = 1,
    updated_at = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, t := range templates {
		if _, err := tx.Exec(q, t.key, t.body, now, now); err != nil {
			return fmt.Errorf("insert sms template %q: %w", t.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sms templates: %w", err)
	}
	return nil
}

// seedNotificationConfigs creates an email gate row per status (all on).
func seedNotificationConfigs(dbx *sqlx.DB) error {
	statuses := []model.JobStatus{
		model.StatusReceived,
		model.StatusAwaitingDeposit,
		model.StatusPartsOrdered,
		model.StatusPartsArrived,
		model.StatusReadyToBookIn,
		model.StatusInRepair,
		model.StatusDelayed,
		model.StatusReadyToCollect,
		model.StatusCollected,
		model.StatusCompleted,
		model.StatusCancelled,
	}

	const q = `
INSERT INTO notification_configs (status_key, send_email, is_active, updated_at)
VALUES (?, 1, 1, ?)
ON DUPLICATE KEY UPDATE updated_at = VALUES(updated_at)
`
	now := time.Now()
	for _, s := range statuses {
		if _, err := dbx.Exec(q, s.String(), now); err != nil {
			return fmt.Errorf("insert notification config %q: %w", s, err)
		}
	}
	return nil
}

// seedSettings inserts defaults only when the key is absent: live values
// edited through the settings UI must survive re-seeding.
func seedSettings(dbx *sqlx.DB) error {
	settings := map[string]string{
		model.SettingWarrantyAPIKey: "dev-warranty-key-change-me",
		model.SettingReviewLink:     "https://g.page/r/nfd-repairs/review",
		model.SettingMapsLink:       "https://maps.app.goo.gl/nfd-repairs",
	}

	const q = `
INSERT IGNORE INTO admin_settings (setting_key, setting_value, updated_at)
VALUES (?, ?, ?)
`
	now := time.Now()
	for key, val := range settings {
		if _, err := dbx.Exec(q, key, val, now); err != nil {
			return fmt.Errorf("insert setting %q: %w", key, err)
		}
	}
	return nil
}
