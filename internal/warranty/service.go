package warranty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/nfdrepairs/repair-ops/internal/logger"
	"github.com/nfdrepairs/repair-ops/internal/metrics"
	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/repository"
	"github.com/nfdrepairs/repair-ops/internal/util"
)

var ErrTicketNotFound = errors.New("warranty ticket not found")

// isDuplicateKey reports MySQL 1062 (ER_DUP_ENTRY), the unique-key
// violation raised on uq_warranty_tickets_idem.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// Claim is an inbound warranty submission from the website or an SMS reply.
type Claim struct {
	Source        model.TicketSource
	CustomerName  string
	CustomerPhone string
	CustomerEmail *string

	JobID        string // hint, optional
	JobReference string // hint, optional

	IssueCategory    *string
	IssueDescription string

	SubmittedAt    time.Time
	IdempotencyKey string // caller-supplied header; derived when empty
	ThreadID       *string
}

// SubmitResult is the claim outcome, including whether an earlier identical
// submission was returned instead of a new ticket.
type SubmitResult struct {
	Ticket    *model.WarrantyTicket
	Duplicate bool
}

type inboundMessage struct {
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Service creates and threads warranty tickets.
type Service struct {
	tickets repository.WarrantyRepository
	notifs  repository.NotificationsRepository
	matcher *Matcher
	prefix  string
}

func NewService(tickets repository.WarrantyRepository, notifs repository.NotificationsRepository, matcher *Matcher, referencePrefix string) *Service {
	if referencePrefix == "" {
		referencePrefix = "WTY"
	}
	return &Service{tickets: tickets, notifs: notifs, matcher: matcher, prefix: referencePrefix}
}

// SubmitClaim dedupes by idempotency key, matches the claim to a job, and
// creates the ticket with its audit event and a staff notification.
func (s *Service) SubmitClaim(ctx context.Context, c Claim) (*SubmitResult, error) {
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = time.Now()
	}
	c.CustomerPhone = util.NormalizePhone(c.CustomerPhone)

	key := c.IdempotencyKey
	if key == "" {
		key = IdempotencyKey(c.CustomerPhone, c.IssueDescription, c.SubmittedAt)
	}

	// Same phone, same description prefix, same 5-minute bucket: hand back
	// the original ticket instead of creating a twin.
	if existing, err := s.tickets.GetByIdempotencyKey(ctx, key); err != nil {
		return nil, err
	} else if existing != nil {
		return &SubmitResult{Ticket: existing, Duplicate: true}, nil
	}

	match, err := s.matcher.MatchToJob(ctx, Candidate{
		JobID:     c.JobID,
		Reference: c.JobReference,
		Phone:     c.CustomerPhone,
	})
	if err != nil {
		return nil, err
	}

	seq, err := s.tickets.CountCreatedOn(ctx, c.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("reference sequence: %w", err)
	}

	ticket := model.WarrantyTicket{
		ID:               util.New(),
		Reference:        util.FormatReference(s.prefix, c.SubmittedAt, seq+1),
		Source:           c.Source,
		SubmittedAt:      c.SubmittedAt,
		CustomerName:     c.CustomerName,
		CustomerPhone:    c.CustomerPhone,
		CustomerEmail:    c.CustomerEmail,
		MatchedJobID:     match.JobID,
		MatchConfidence:  match.Confidence,
		IssueCategory:    c.IssueCategory,
		IssueDescription: c.IssueDescription,
		Status:           model.TicketNew,
		IdempotencyKey:   key,
		ThreadID:         c.ThreadID,
	}

	if err := s.tickets.Insert(ctx, nil, ticket); err != nil {
		// Concurrent identical claim won the unique-key race: hand back
		// its ticket, same as the pre-insert dedup path.
		if isDuplicateKey(err) {
			if existing, ferr := s.tickets.GetByIdempotencyKey(ctx, key); ferr == nil && existing != nil {
				return &SubmitResult{Ticket: existing, Duplicate: true}, nil
			}
		}
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	metrics.WarrantyTicketsTotal.WithLabelValues(match.Confidence.String()).Inc()

	if err := s.tickets.InsertEvent(ctx, nil, model.WarrantyTicketEvent{
		TicketID: ticket.ID,
		Type:     "SYSTEM",
		Message:  fmt.Sprintf("Ticket opened via %s, match confidence %s", ticket.Source, match.Confidence),
	}); err != nil {
		logger.Log.Warn("ticket audit event", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	if err := s.notifs.Insert(ctx, nil, model.StaffNotification{
		Type:  "WARRANTY",
		Title: fmt.Sprintf("Warranty claim %s", ticket.Reference),
		Body:  ticket.IssueDescription,
	}); err != nil {
		logger.Log.Warn("warranty staff notification", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	return &SubmitResult{Ticket: &ticket, Duplicate: false}, nil
}

// AppendInbound threads a further customer reply onto an existing ticket
// and flips it back to NEEDS_ATTENTION.
func (s *Service) AppendInbound(ctx context.Context, ticketID, body string, receivedAt time.Time) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return ErrTicketNotFound
	}

	var msgs []inboundMessage
	if ticket.InboundMessages != nil && *ticket.InboundMessages != "" {
		if err := json.Unmarshal([]byte(*ticket.InboundMessages), &msgs); err != nil {
			logger.Log.Warn("corrupt inbound_messages, resetting",
				zap.String("ticket_id", ticketID), zap.Error(err))
			msgs = nil
		}
	}
	msgs = append(msgs, inboundMessage{Body: body, ReceivedAt: receivedAt})

	b, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal inbound messages: %w", err)
	}

	if err := s.tickets.AppendInboundMessages(ctx, ticketID, string(b), model.TicketNeedsAttention); err != nil {
		return err
	}

	if err := s.tickets.InsertEvent(ctx, nil, model.WarrantyTicketEvent{
		TicketID: ticketID,
		Type:     "SYSTEM",
		Message:  "Customer reply received",
	}); err != nil {
		logger.Log.Warn("ticket audit event", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	return nil
}

// HandleInboundSMS routes an inbound relay message: a further reply on an
// open ticket threads onto it; anything else opens a new claim matched by
// phone.
func (s *Service) HandleInboundSMS(ctx context.Context, phone, message string, receivedAt time.Time, threadID *string) (*SubmitResult, error) {
	phone = util.NormalizePhone(phone)

	open, err := s.tickets.LatestOpenByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if open != nil {
		if err := s.AppendInbound(ctx, open.ID, message, receivedAt); err != nil {
			return nil, err
		}
		refreshed, err := s.tickets.GetByID(ctx, open.ID)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{Ticket: refreshed, Duplicate: true}, nil
	}

	return s.SubmitClaim(ctx, Claim{
		Source:           model.SourceSMSReply,
		CustomerPhone:    phone,
		IssueDescription: message,
		SubmittedAt:      receivedAt,
		ThreadID:         threadID,
	})
}
