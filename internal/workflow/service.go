package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nfdrepairs/repair-ops/internal/logger"
	"github.com/nfdrepairs/repair-ops/internal/metrics"
	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/notify"
	"github.com/nfdrepairs/repair-ops/internal/repository"
	"github.com/nfdrepairs/repair-ops/internal/schedule"
)

var (
	ErrJobNotFound          = errors.New("job not found")
	ErrOnboardingIncomplete = errors.New("onboarding not completed")
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrDepositAlreadyTaken  = errors.New("deposit already received")
	ErrNotAwaitingDeposit   = errors.New("job is not awaiting a deposit")
)

// Step names recorded in a transition result.
const (
	StepStatusWrite       = "status_write"
	StepAuditEvent        = "audit_event"
	StepStaffNotification = "staff_notification"
	StepSMS               = "sms"
	StepEmail             = "email"
	StepScheduleReviewSMS = "schedule_review_sms"
)

// StepOutcome records one side effect of a status change. The status write
// is the only step whose failure aborts the transition; everything after it
// is best-effort and merely recorded.
type StepOutcome struct {
	Step    string `json:"step"`
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// TransitionResult is what a status change actually did.
type TransitionResult struct {
	JobID string          `json:"job_id"`
	From  model.JobStatus `json:"from"`
	To    model.JobStatus `json:"to"`
	Steps []StepOutcome   `json:"steps"`
}

// Service runs the status workflow: the status write plus its notification
// side effects, executed as an explicit sequence so partial failure is
// observable instead of silent.
type Service struct {
	jobs       repository.JobsRepository
	events     repository.JobEventsRepository
	notifs     repository.NotificationsRepository
	dispatcher *notify.Dispatcher

	// enforceTransitions turns on the server-side guard. Historically the
	// UI was the only gate, so this ships default-off.
	enforceTransitions bool
}

func NewService(
	jobs repository.JobsRepository,
	events repository.JobEventsRepository,
	notifs repository.NotificationsRepository,
	dispatcher *notify.Dispatcher,
	enforceTransitions bool,
) *Service {
	return &Service{
		jobs:               jobs,
		events:             events,
		notifs:             notifs,
		dispatcher:         dispatcher,
		enforceTransitions: enforceTransitions,
	}
}

// ChangeStatusOpts selects the entry point. Manual overrides come from a
// multi-step UI confirmation and skip the onboarding gate and (even when
// enforcement is on) the transition guard.
type ChangeStatusOpts struct {
	Manual bool
	Actor  string
}

// ChangeStatus moves a job to newStatus and runs the side-effect sequence:
// audit event, staff notification, SMS, email, and (into COLLECTED) the
// deferred review-SMS scheduling. Side-effect failures are logged and
// recorded but never roll back the status write.
func (s *Service) ChangeStatus(ctx context.Context, jobID string, newStatus model.JobStatus, opts ChangeStatusOpts) (*TransitionResult, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	if !opts.Manual && !job.OnboardingCompleted {
		return nil, ErrOnboardingIncomplete
	}
	if s.enforceTransitions && !opts.Manual && !Allowed(job.Status, newStatus, job.PartsRequired) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, newStatus)
	}

	res := &TransitionResult{JobID: job.ID, From: job.Status, To: newStatus}
	actor := opts.Actor
	if actor == "" {
		actor = "staff"
	}

	// Step 1: the core write. The only step that can fail the operation.
	if err := s.jobs.UpdateStatus(ctx, job.ID, newStatus); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	res.Steps = append(res.Steps, StepOutcome{Step: StepStatusWrite, OK: true})
	metrics.StatusTransitionsTotal.WithLabelValues(newStatus.String()).Inc()

	msg := fmt.Sprintf("Status changed from %s to %s", job.Status.Label(), newStatus.Label())
	s.appendEvent(ctx, res, job.ID, model.EventStatusChange, msg, actor)

	s.notifyStaff(ctx, res, job, fmt.Sprintf("%s is now %s", job.Reference, newStatus.Label()))

	s.dispatchSMS(ctx, res, job.ID, newStatus.String())
	s.dispatchEmail(ctx, res, job.ID, newStatus.String())

	if newStatus == model.StatusCollected {
		s.scheduleReviewSMS(ctx, res, job)
	}

	return res, nil
}

// MarkDepositReceived is the special AWAITING_DEPOSIT → PARTS_ORDERED
// transition: both fields flip together and the audit message carries the
// amount.
func (s *Service) MarkDepositReceived(ctx context.Context, jobID, actor string) (*TransitionResult, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.Status != model.StatusAwaitingDeposit {
		return nil, ErrNotAwaitingDeposit
	}
	if job.DepositReceived {
		return nil, ErrDepositAlreadyTaken
	}

	res := &TransitionResult{JobID: job.ID, From: job.Status, To: model.StatusPartsOrdered}
	if actor == "" {
		actor = "staff"
	}

	if err := s.jobs.MarkDepositReceived(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("mark deposit received: %w", err)
	}
	res.Steps = append(res.Steps, StepOutcome{Step: StepStatusWrite, OK: true})
	metrics.StatusTransitionsTotal.WithLabelValues(model.StatusPartsOrdered.String()).Inc()

	amount := model.DepositGBP
	if job.DepositAmount != nil {
		amount = *job.DepositAmount
	}
	msg := fmt.Sprintf("Deposit of £%.2f received, parts ordered", amount)
	s.appendEvent(ctx, res, job.ID, model.EventStatusChange, msg, actor)

	s.notifyStaff(ctx, res, job, fmt.Sprintf("%s deposit received (£%.2f)", job.Reference, amount))

	s.dispatchSMS(ctx, res, job.ID, model.StatusPartsOrdered.String())
	s.dispatchEmail(ctx, res, job.ID, model.StatusPartsOrdered.String())

	return res, nil
}

// ScheduleCollectionSMS computes and persists the deferred review-request
// send time. Idempotent once the SMS has been sent.
func (s *Service) ScheduleCollectionSMS(ctx context.Context, jobID string) (time.Time, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return time.Time{}, err
	}
	if job == nil {
		return time.Time{}, ErrJobNotFound
	}
	if job.PostCollectionSMSSentAt != nil {
		return *job.PostCollectionSMSSentAt, nil
	}

	at := schedule.PostCollectionSendTime(time.Now())
	if err := s.jobs.SchedulePostCollectionSMS(ctx, job.ID, at, ""); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

// ---- side-effect steps ----

func (s *Service) appendEvent(ctx context.Context, res *TransitionResult, jobID string, typ model.JobEventType, msg, actor string) {
	err := s.events.Insert(ctx, nil, model.JobEvent{JobID: jobID, Type: typ, Message: msg, Actor: actor})
	if err != nil {
		logger.Log.Error("append job event", zap.String("job_id", jobID), zap.Error(err))
		res.Steps = append(res.Steps, StepOutcome{Step: StepAuditEvent, OK: false, Detail: err.Error()})
		return
	}
	res.Steps = append(res.Steps, StepOutcome{Step: StepAuditEvent, OK: true})
}

func (s *Service) notifyStaff(ctx context.Context, res *TransitionResult, job *model.Job, title string) {
	err := s.notifs.Insert(ctx, nil, model.StaffNotification{
		Type:         "STATUS_CHANGE",
		Title:        title,
		Body:         fmt.Sprintf("%s %s for %s", job.DeviceMake, job.DeviceModel, job.CustomerName),
		JobReference: &job.Reference,
	})
	if err != nil {
		logger.Log.Error("staff notification", zap.String("job_id", job.ID), zap.Error(err))
		res.Steps = append(res.Steps, StepOutcome{Step: StepStaffNotification, OK: false, Detail: err.Error()})
		return
	}
	res.Steps = append(res.Steps, StepOutcome{Step: StepStaffNotification, OK: true})
}

func (s *Service) dispatchSMS(ctx context.Context, res *TransitionResult, jobID, statusKey string) {
	queued, detail, err := s.dispatcher.DispatchStatusSMS(ctx, jobID, statusKey)
	if err != nil {
		logger.Log.Warn("dispatch sms", zap.String("job_id", jobID), zap.Error(err))
		res.Steps = append(res.Steps, StepOutcome{Step: StepSMS, OK: false, Detail: err.Error()})
		return
	}
	res.Steps = append(res.Steps, StepOutcome{Step: StepSMS, OK: true, Skipped: !queued, Detail: detail})
}

func (s *Service) dispatchEmail(ctx context.Context, res *TransitionResult, jobID, statusKey string) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil || job == nil {
		res.Steps = append(res.Steps, StepOutcome{Step: StepEmail, OK: false, Detail: "job reload failed"})
		return
	}
	sent, detail, err := s.dispatcher.DispatchStatusEmail(ctx, job, statusKey)
	if err != nil {
		res.Steps = append(res.Steps, StepOutcome{Step: StepEmail, OK: false, Detail: err.Error()})
		return
	}
	res.Steps = append(res.Steps, StepOutcome{Step: StepEmail, OK: true, Skipped: !sent, Detail: detail})
}

func (s *Service) scheduleReviewSMS(ctx context.Context, res *TransitionResult, job *model.Job) {
	at := schedule.PostCollectionSendTime(time.Now())
	if err := s.jobs.SchedulePostCollectionSMS(ctx, job.ID, at, ""); err != nil {
		logger.Log.Error("schedule review sms", zap.String("job_id", job.ID), zap.Error(err))
		res.Steps = append(res.Steps, StepOutcome{Step: StepScheduleReviewSMS, OK: false, Detail: err.Error()})
		return
	}
	res.Steps = append(res.Steps, StepOutcome{
		Step:   StepScheduleReviewSMS,
		OK:     true,
		Detail: "scheduled for " + at.Format(time.RFC3339),
	})
}
