package model

import "time"

// Well-known admin setting keys.
const (
	SettingWarrantyAPIKey = "warranty_api_key"
	SettingReviewLink     = "review_link"
	SettingMapsLink       = "maps_link"
	SettingRelayURL       = "sms_relay_url"
)

// AdminSetting is a generic key/value row edited through the settings UI.
type AdminSetting struct {
	Key       string    `db:"setting_key"`
	Value     string    `db:"setting_value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// EmailTemplate mirrors SMSTemplate for the email channel.
type EmailTemplate struct {
	ID        int64     `db:"id"`
	Key       string    `db:"template_key"`
	Subject   string    `db:"subject"`
	HTMLBody  string    `db:"html_body"`
	TextBody  string    `db:"text_body"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
