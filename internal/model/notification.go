package model

import "time"

// StaffNotification is the in-app notification feed shown to shop staff.
// Created as a side effect of job creation and status changes; only the
// read flag is ever mutated.
type StaffNotification struct {
	ID           int64     `db:"id"`
	Type         string    `db:"type"` // JOB_CREATED | STATUS_CHANGE | WARRANTY
	Title        string    `db:"title"`
	Body         string    `db:"body"`
	JobReference *string   `db:"job_reference"`
	IsRead       bool      `db:"is_read"`
	CreatedAt    time.Time `db:"created_at"`
}

// NotificationConfig gates outbound email per status key. A missing row
// means "send"; a present row with send_email=false or is_active=false
// suppresses the send.
type NotificationConfig struct {
	ID        int64     `db:"id"`
	StatusKey string    `db:"status_key"`
	SendEmail bool      `db:"send_email"`
	IsActive  bool      `db:"is_active"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PushSubscription is a stored web-push endpoint. Subscriptions whose
// endpoint answers 410 Gone are deleted during broadcast.
type PushSubscription struct {
	ID        int64     `db:"id"`
	Endpoint  string    `db:"endpoint"`
	P256dh    string    `db:"p256dh"`
	Auth      string    `db:"auth"`
	CreatedAt time.Time `db:"created_at"`
}
