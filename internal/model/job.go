package model

import (
	"strings"
	"time"
)

type JobStatus string

const (
	StatusReceived        JobStatus = "RECEIVED"
	StatusAwaitingDeposit JobStatus = "AWAITING_DEPOSIT"
	StatusPartsOrdered    JobStatus = "PARTS_ORDERED"
	StatusPartsArrived    JobStatus = "PARTS_ARRIVED"
	StatusReadyToBookIn   JobStatus = "READY_TO_BOOK_IN"
	StatusInRepair        JobStatus = "IN_REPAIR"
	StatusDelayed         JobStatus = "DELAYED"
	StatusReadyToCollect  JobStatus = "READY_TO_COLLECT"
	StatusCollected       JobStatus = "COLLECTED"
	StatusCompleted       JobStatus = "COMPLETED"
	StatusCancelled       JobStatus = "CANCELLED"
)

func (s JobStatus) String() string { return string(s) }

func (s JobStatus) Valid() bool {
	switch s {
	case StatusReceived, StatusAwaitingDeposit, StatusPartsOrdered, StatusPartsArrived,
		StatusReadyToBookIn, StatusInRepair, StatusDelayed, StatusReadyToCollect,
		StatusCollected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further workflow transition is legal.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseJobStatus normalizes input. Returns (value, true) if valid.
func ParseJobStatus(s string) (JobStatus, bool) {
	st := JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// Label is the human-readable form used in event messages and emails.
func (s JobStatus) Label() string {
	words := strings.Split(strings.ToLower(string(s)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Job is the DB entity persisted in the jobs table. One row per repair order;
// rows are never hard-deleted (CANCELLED is terminal but persists).
type Job struct {
	ID              string `db:"id"`
	Reference       string `db:"reference"`        // e.g. NFD-20240101-001
	TrackingToken   string `db:"tracking_token"`   // public, unauthenticated status page
	OnboardingToken string `db:"onboarding_token"` // customer intake link

	CustomerName  string  `db:"customer_name"`
	CustomerPhone string  `db:"customer_phone"`
	CustomerEmail *string `db:"customer_email"`

	DeviceMake       string  `db:"device_make"`
	DeviceModel      string  `db:"device_model"`
	Issue            string  `db:"issue"`
	IssueDescription *string `db:"issue_description"`
	AdditionalIssues *string `db:"additional_issues"` // JSON array of strings

	QuotedPrice     *float64 `db:"quoted_price"`
	TotalPrice      *float64 `db:"total_price"`
	PartsRequired   bool     `db:"parts_required"`
	DepositRequired bool     `db:"deposit_required"`
	DepositAmount   *float64 `db:"deposit_amount"`
	DepositReceived bool     `db:"deposit_received"`

	Status                JobStatus `db:"status"`
	OnboardingCompleted   bool      `db:"onboarding_completed"`
	TermsAccepted         bool      `db:"terms_accepted"`
	DevicePassword        *string   `db:"device_password"`
	PasswordNotApplicable bool      `db:"password_not_applicable"`

	PostCollectionSMSScheduledAt    *time.Time `db:"post_collection_sms_scheduled_at"`
	PostCollectionSMSSentAt         *time.Time `db:"post_collection_sms_sent_at"`
	PostCollectionSMSDeliveryStatus *string    `db:"post_collection_sms_delivery_status"`
	PostCollectionSMSBody           *string    `db:"post_collection_sms_body"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DepositGBP is the fixed deposit taken when a repair needs parts ordered.
const DepositGBP = 20.00
