package model

import "time"

type SMSStatus string

const (
	SMSPending SMSStatus = "PENDING"
	SMSSent    SMSStatus = "SENT"
	SMSFailed  SMSStatus = "FAILED"
)

func (s SMSStatus) String() string { return string(s) }

func (s SMSStatus) Valid() bool {
	return s == SMSPending || s == SMSSent || s == SMSFailed
}

// Template keys are status names plus business keys that are not statuses
// themselves (deposit request at creation, post-collection review ask).
const (
	TemplateKeyDepositRequired      = "DEPOSIT_REQUIRED"
	TemplateKeyPostCollectionReview = "POST_COLLECTION_REVIEW"
)

// SMSTemplate is a staff-editable message body keyed by status/business key.
type SMSTemplate struct {
	ID        int64     `db:"id"`
	Key       string    `db:"template_key"`
	Body      string    `db:"body"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SMSLog is one row per SMS attempt. Inserted PENDING when queued and
// updated exactly once when the send attempt completes.
type SMSLog struct {
	ID           string     `db:"id"`
	JobReference string     `db:"job_reference"`
	TemplateKey  string     `db:"template_key"`
	Phone        string     `db:"phone"`
	Body         string     `db:"body"`
	Status       SMSStatus  `db:"status"`
	ErrorMessage *string    `db:"error_message"`
	SentAt       *time.Time `db:"sent_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}
