package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nfdrepairs/repair-ops/internal/model"
)

// WarrantyRepository persists warranty tickets and their audit trail.
type WarrantyRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, t model.WarrantyTicket) error
	GetByID(ctx context.Context, id string) (*model.WarrantyTicket, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.WarrantyTicket, error)
	LatestOpenByPhone(ctx context.Context, phone string) (*model.WarrantyTicket, error)
	CountCreatedOn(ctx context.Context, day time.Time) (int, error)
	UpdateStatus(ctx context.Context, id string, status model.TicketStatus) error
	AppendInboundMessages(ctx context.Context, id string, inboundJSON string, status model.TicketStatus) error

	InsertEvent(ctx context.Context, tx *sqlx.Tx, e model.WarrantyTicketEvent) error
	ListEvents(ctx context.Context, ticketID string) ([]model.WarrantyTicketEvent, error)
}

type WarrantyRepositoryImpl struct {
	db *sqlx.DB
}

func NewWarrantyRepository(db *sqlx.DB) *WarrantyRepositoryImpl {
	return &WarrantyRepositoryImpl{db: db}
}

var _ WarrantyRepository = (*WarrantyRepositoryImpl)(nil)

const ticketColumns = `
	id, reference, source, submitted_at,
	customer_name, customer_phone, customer_email,
	matched_job_id, match_confidence, issue_category, issue_description,
	status, idempotency_key, thread_id, inbound_messages,
	created_at, updated_at`

func (r *WarrantyRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

func (r *WarrantyRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, t model.WarrantyTicket) error {
	const q = `
		INSERT INTO warranty_tickets (
			id, reference, source, submitted_at,
			customer_name, customer_phone, customer_email,
			matched_job_id, match_confidence, issue_category, issue_description,
			status, idempotency_key, thread_id, inbound_messages,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			t.ID, t.Reference, string(t.Source), t.SubmittedAt,
			t.CustomerName, t.CustomerPhone, t.CustomerEmail,
			t.MatchedJobID, t.MatchConfidence.String(), t.IssueCategory, t.IssueDescription,
			t.Status.String(), t.IdempotencyKey, t.ThreadID, t.InboundMessages,
		)
		return err
	})
}

func (r *WarrantyRepositoryImpl) getOne(ctx context.Context, where string, arg any) (*model.WarrantyTicket, error) {
	var t model.WarrantyTicket
	err := r.db.GetContext(ctx, &t, `SELECT `+ticketColumns+` FROM warranty_tickets WHERE `+where+` LIMIT 1`, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *WarrantyRepositoryImpl) GetByID(ctx context.Context, id string) (*model.WarrantyTicket, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *WarrantyRepositoryImpl) GetByIdempotencyKey(ctx context.Context, key string) (*model.WarrantyTicket, error) {
	return r.getOne(ctx, `idempotency_key = ?`, key)
}

// LatestOpenByPhone returns the most recent not-yet-resolved ticket for a
// phone number, used to thread inbound SMS replies.
func (r *WarrantyRepositoryImpl) LatestOpenByPhone(ctx context.Context, phone string) (*model.WarrantyTicket, error) {
	var t model.WarrantyTicket
	err := r.db.GetContext(ctx, &t, `
		SELECT `+ticketColumns+`
		  FROM warranty_tickets
		 WHERE customer_phone = ? AND status NOT IN ('RESOLVED', 'CLOSED')
		 ORDER BY created_at DESC LIMIT 1`, phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *WarrantyRepositoryImpl) CountCreatedOn(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM warranty_tickets WHERE DATE(created_at) = ?`, day.Format("2006-01-02"))
	return n, err
}

func (r *WarrantyRepositoryImpl) UpdateStatus(ctx context.Context, id string, status model.TicketStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE warranty_tickets SET status = ?, updated_at = NOW() WHERE id = ?`, status.String(), id)
	return err
}

// AppendInboundMessages replaces the inbound_messages JSON and flips status in
// one statement (a further customer reply reopens the ticket).
func (r *WarrantyRepositoryImpl) AppendInboundMessages(ctx context.Context, id string, inboundJSON string, status model.TicketStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE warranty_tickets
		   SET inbound_messages = ?, status = ?, updated_at = NOW()
		 WHERE id = ?`,
		inboundJSON, status.String(), id)
	return err
}

func (r *WarrantyRepositoryImpl) InsertEvent(ctx context.Context, tx *sqlx.Tx, e model.WarrantyTicketEvent) error {
	const q = `
		INSERT INTO warranty_ticket_events (ticket_id, type, message, created_at)
		VALUES (?, ?, ?, NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, e.TicketID, e.Type, e.Message)
		return err
	})
}

func (r *WarrantyRepositoryImpl) ListEvents(ctx context.Context, ticketID string) ([]model.WarrantyTicketEvent, error) {
	events := []model.WarrantyTicketEvent{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, ticket_id, type, message, created_at
		  FROM warranty_ticket_events
		 WHERE ticket_id = ?
		 ORDER BY created_at ASC, id ASC`, ticketID)
	return events, err
}
