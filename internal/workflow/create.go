package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/util"
)

// NewJobInput is the normalized creation payload. Handlers fold the two
// historical field-naming conventions into this before calling CreateJob.
type NewJobInput struct {
	CustomerName  string
	CustomerPhone string
	CustomerEmail *string

	DeviceMake       string
	DeviceModel      string
	Issue            string
	IssueDescription *string
	AdditionalIssues []string

	QuotedPrice   *float64
	TotalPrice    *float64
	PartsRequired bool

	Actor string
}

// referencePrefix is injected at construction; see NewCreator.
type Creator struct {
	svc    *Service
	prefix string
}

func NewCreator(svc *Service, referencePrefix string) *Creator {
	if referencePrefix == "" {
		referencePrefix = "NFD"
	}
	return &Creator{svc: svc, prefix: referencePrefix}
}

// CreateJob builds the job row with its invariants enforced, then runs the
// creation side effects (audit event, staff notification, conditional
// deposit SMS + email).
//
// Invariants: deposit_required and deposit_amount are set iff parts are
// required; the deposit is the fixed £20; a parts job starts in
// AWAITING_DEPOSIT, any other in RECEIVED.
func (c *Creator) CreateJob(ctx context.Context, in NewJobInput) (*model.Job, *TransitionResult, error) {
	now := time.Now()
	seq, err := c.svc.jobs.CountCreatedOn(ctx, now)
	if err != nil {
		return nil, nil, fmt.Errorf("reference sequence: %w", err)
	}

	job := model.Job{
		ID:              util.New(),
		Reference:       util.FormatReference(c.prefix, now, seq+1),
		TrackingToken:   util.NewToken(),
		OnboardingToken: util.NewToken(),

		CustomerName:  in.CustomerName,
		CustomerPhone: util.NormalizePhone(in.CustomerPhone),
		CustomerEmail: in.CustomerEmail,

		DeviceMake:       in.DeviceMake,
		DeviceModel:      in.DeviceModel,
		Issue:            in.Issue,
		IssueDescription: in.IssueDescription,

		QuotedPrice:   in.QuotedPrice,
		TotalPrice:    in.TotalPrice,
		PartsRequired: in.PartsRequired,

		Status: InitialStatus(in.PartsRequired),
	}

	if len(in.AdditionalIssues) > 0 {
		b, err := json.Marshal(in.AdditionalIssues)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal additional issues: %w", err)
		}
		s := string(b)
		job.AdditionalIssues = &s
	}

	if in.PartsRequired {
		job.DepositRequired = true
		amount := model.DepositGBP
		job.DepositAmount = &amount
	}

	if err := c.svc.jobs.Insert(ctx, nil, job); err != nil {
		return nil, nil, fmt.Errorf("insert job: %w", err)
	}

	res := &TransitionResult{JobID: job.ID, From: "", To: job.Status}
	res.Steps = append(res.Steps, StepOutcome{Step: StepStatusWrite, OK: true})

	actor := in.Actor
	if actor == "" {
		actor = "staff"
	}
	c.svc.appendEvent(ctx, res, job.ID, model.EventSystem,
		fmt.Sprintf("Job created with status %s", job.Status.Label()), actor)
	c.svc.notifyStaff(ctx, res, &job,
		fmt.Sprintf("New job %s: %s %s", job.Reference, job.DeviceMake, job.DeviceModel))

	// A parts job asks for its deposit straight away.
	if job.DepositRequired {
		c.svc.dispatchSMS(ctx, res, job.ID, model.TemplateKeyDepositRequired)
		c.svc.dispatchEmail(ctx, res, job.ID, model.StatusAwaitingDeposit.String())
	}

	return &job, res, nil
}
