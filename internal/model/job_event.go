package model

import "time"

type JobEventType string

const (
	EventStatusChange JobEventType = "STATUS_CHANGE"
	EventNote         JobEventType = "NOTE"
	EventSystem       JobEventType = "SYSTEM"
)

func (t JobEventType) String() string { return string(t) }

func (t JobEventType) Valid() bool {
	return t == EventStatusChange || t == EventNote || t == EventSystem
}

// JobEvent is an append-only audit row. Never updated or deleted.
type JobEvent struct {
	ID        int64        `db:"id"`
	JobID     string       `db:"job_id"`
	Type      JobEventType `db:"type"`
	Message   string       `db:"message"`
	Actor     string       `db:"actor"`
	CreatedAt time.Time    `db:"created_at"`
}
