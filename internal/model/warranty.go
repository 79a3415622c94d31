package model

import (
	"strings"
	"time"
)

type TicketStatus string

const (
	TicketNew            TicketStatus = "NEW"
	TicketNeedsAttention TicketStatus = "NEEDS_ATTENTION"
	TicketInProgress     TicketStatus = "IN_PROGRESS"
	TicketResolved       TicketStatus = "RESOLVED"
	TicketClosed         TicketStatus = "CLOSED"
)

func (s TicketStatus) String() string { return string(s) }

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketNew, TicketNeedsAttention, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

type MatchConfidence string

const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceLow    MatchConfidence = "low"
	ConfidenceNone   MatchConfidence = "none"
)

func (c MatchConfidence) String() string { return string(c) }

type TicketSource string

const (
	SourceWebsite  TicketSource = "website"
	SourceSMSReply TicketSource = "sms_reply"
)

func ParseTicketSource(s string) (TicketSource, bool) {
	switch TicketSource(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceWebsite:
		return SourceWebsite, true
	case SourceSMSReply:
		return SourceSMSReply, true
	default:
		return SourceWebsite, false
	}
}

// WarrantyTicket is a customer-reported post-repair issue, optionally
// linked to the originating job by the matcher.
type WarrantyTicket struct {
	ID              string          `db:"id"`
	Reference       string          `db:"reference"` // e.g. WTY-20240101-001
	Source          TicketSource    `db:"source"`
	SubmittedAt     time.Time       `db:"submitted_at"`
	CustomerName    string          `db:"customer_name"`
	CustomerPhone   string          `db:"customer_phone"`
	CustomerEmail   *string         `db:"customer_email"`
	MatchedJobID    *string         `db:"matched_job_id"`
	MatchConfidence MatchConfidence `db:"match_confidence"`
	IssueCategory   *string         `db:"issue_category"`
	IssueDescription string         `db:"issue_description"`
	Status          TicketStatus    `db:"status"`
	IdempotencyKey  string          `db:"idempotency_key"`
	ThreadID        *string         `db:"thread_id"`        // inbound SMS thread
	InboundMessages *string         `db:"inbound_messages"` // JSON array of {body, received_at}
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// WarrantyTicketEvent is the append-only audit trail for a ticket.
type WarrantyTicketEvent struct {
	ID        int64     `db:"id"`
	TicketID  string    `db:"ticket_id"`
	Type      string    `db:"type"` // STATUS_CHANGE | NOTE | SYSTEM
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}
