package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nfdrepairs/repair-ops/internal/cache"
	"github.com/nfdrepairs/repair-ops/internal/logger"
	"github.com/nfdrepairs/repair-ops/internal/metrics"
	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/relay"
	"github.com/nfdrepairs/repair-ops/internal/repository"
	"github.com/nfdrepairs/repair-ops/internal/util"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrSMSLogNotFound = errors.New("sms log not found")
)

// smsStatuses is the allow-list of status keys that warrant a customer SMS.
// DEPOSIT_REQUIRED is a business key queued at job creation, not a status.
var smsStatuses = map[string]bool{
	model.StatusReadyToBookIn.String():  true,
	model.StatusReadyToCollect.String(): true,
	model.StatusCompleted.String():      true,
	model.TemplateKeyDepositRequired:    true,
}

// SMSAllowed reports whether the key is on the SMS allow-list.
func SMSAllowed(key string) bool { return smsStatuses[key] }

// Dispatcher decides whether a job event sends SMS/email/push, renders the
// content, and keeps the delivery log. Side effects are best-effort: a
// failed send never propagates to the caller's primary operation.
type Dispatcher struct {
	jobs        repository.JobsRepository
	sms         repository.SMSRepository
	emails      repository.EmailTemplatesRepository
	notifs      repository.NotificationsRepository
	events      repository.JobEventsRepository
	settings    *cache.Settings
	relay       relay.Sender
	email       EmailSender
	baseURL     string
	relayURL    string // fallback when no admin setting overrides it
	sendTimeout time.Duration
}

type DispatcherOpts struct {
	Jobs     repository.JobsRepository
	SMS      repository.SMSRepository
	Emails   repository.EmailTemplatesRepository
	Notifs   repository.NotificationsRepository
	Events   repository.JobEventsRepository
	Settings *cache.Settings
	Relay    relay.Sender
	Email    EmailSender
	BaseURL  string
	RelayURL string
}

func NewDispatcher(o DispatcherOpts) *Dispatcher {
	return &Dispatcher{
		jobs:        o.Jobs,
		sms:         o.SMS,
		emails:      o.Emails,
		notifs:      o.Notifs,
		events:      o.Events,
		settings:    o.Settings,
		relay:       o.Relay,
		email:       o.Email,
		baseURL:     o.BaseURL,
		relayURL:    o.RelayURL,
		sendTimeout: 15 * time.Second,
	}
}

func (d *Dispatcher) trackingURL(job *model.Job) string {
	return d.baseURL + "/track/" + job.TrackingToken
}

func (d *Dispatcher) paymentURL(job *model.Job) string {
	if job.DepositRequired && !job.DepositReceived {
		return d.baseURL + "/pay/" + job.TrackingToken
	}
	return ""
}

func (d *Dispatcher) jobVars(job *model.Job) map[string]string {
	total := ""
	if job.TotalPrice != nil {
		total = fmt.Sprintf("£%.2f", *job.TotalPrice)
	}
	return JobVars(job.CustomerName, job.DeviceMake, job.DeviceModel, total, d.trackingURL(job), job.Reference)
}

// resolveRelayURL prefers the staff-configured relay URL over the deploy
// config fallback.
func (d *Dispatcher) resolveRelayURL(ctx context.Context) string {
	if d.settings != nil {
		if v, ok, err := d.settings.Get(ctx, model.SettingRelayURL); err == nil && ok && v != "" {
			return v
		}
	}
	return d.relayURL
}

// DispatchStatusSMS queues and fires the SMS for a status/business key.
// Returns (queued, human message). A key off the allow-list or a missing
// active template is a silent no-op, not an error.
func (d *Dispatcher) DispatchStatusSMS(ctx context.Context, jobID, key string) (bool, string, error) {
	if !SMSAllowed(key) {
		return false, fmt.Sprintf("status %s does not trigger SMS", key), nil
	}

	job, err := d.jobs.GetByID(ctx, jobID)
	if err != nil {
		return false, "", err
	}
	if job == nil {
		return false, "", ErrJobNotFound
	}

	tpl, err := d.sms.GetActiveTemplate(ctx, key)
	if err != nil {
		return false, "", err
	}
	if tpl == nil {
		return false, fmt.Sprintf("no active SMS template for %s", key), nil
	}

	body := Render(tpl.Body, d.jobVars(job))

	entry := model.SMSLog{
		ID:           util.New(),
		JobReference: job.Reference,
		TemplateKey:  key,
		Phone:        job.CustomerPhone,
		Body:         body,
		Status:       model.SMSPending,
	}
	if err := d.sms.InsertLog(ctx, nil, entry); err != nil {
		return false, "", err
	}
	metrics.SMSTotal.WithLabelValues("queued").Inc()

	// Fire-and-forget: delivery happens after the request returns.
	go d.sendLogged(entry.ID, entry.Phone, entry.Body)

	return true, "SMS queued", nil
}

// sendLogged performs one relay send for a PENDING log row and records the
// outcome. Runs detached from the originating request.
func (d *Dispatcher) sendLogged(logID, phone, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	err := d.relay.Send(ctx, d.resolveRelayURL(ctx), phone, body)
	if err != nil {
		metrics.SMSTotal.WithLabelValues("failed").Inc()
		msg := err.Error()
		if uerr := d.sms.MarkLogResult(ctx, logID, model.SMSFailed, &msg); uerr != nil {
			logger.Log.Error("mark sms failed", zap.String("sms_log_id", logID), zap.Error(uerr))
		}
		logger.Log.Warn("sms send failed", zap.String("sms_log_id", logID), zap.Error(err))
		return
	}

	metrics.SMSTotal.WithLabelValues("sent").Inc()
	if uerr := d.sms.MarkLogResult(ctx, logID, model.SMSSent, nil); uerr != nil {
		logger.Log.Error("mark sms sent", zap.String("sms_log_id", logID), zap.Error(uerr))
	}
}

// ResendSMS re-attempts a FAILED or still-PENDING log row synchronously.
// This is the only retry path in the system and it is staff-triggered.
func (d *Dispatcher) ResendSMS(ctx context.Context, logID string) (model.SMSStatus, error) {
	entry, err := d.sms.GetLog(ctx, logID)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", ErrSMSLogNotFound
	}
	if entry.Status == model.SMSSent {
		return model.SMSSent, nil
	}

	if err := d.relay.Send(ctx, d.resolveRelayURL(ctx), entry.Phone, entry.Body); err != nil {
		metrics.SMSTotal.WithLabelValues("failed").Inc()
		msg := err.Error()
		_ = d.sms.MarkLogResult(ctx, logID, model.SMSFailed, &msg)
		return model.SMSFailed, err
	}

	metrics.SMSTotal.WithLabelValues("sent").Inc()
	if err := d.sms.MarkLogResult(ctx, logID, model.SMSSent, nil); err != nil {
		return model.SMSSent, err
	}
	return model.SMSSent, nil
}

// SendPostCollectionSMS delivers the deferred review-request SMS for a job
// whose scheduled time has come. Synchronous; the sweeper collects per-item
// results.
func (d *Dispatcher) SendPostCollectionSMS(ctx context.Context, job *model.Job) error {
	if job.PostCollectionSMSSentAt != nil {
		return nil // already sent, idempotent
	}

	body := ""
	if job.PostCollectionSMSBody != nil {
		body = *job.PostCollectionSMSBody
	}
	if body == "" {
		tpl, err := d.sms.GetActiveTemplate(ctx, model.TemplateKeyPostCollectionReview)
		if err != nil {
			return err
		}
		if tpl == nil {
			return fmt.Errorf("no active template for %s", model.TemplateKeyPostCollectionReview)
		}
		vars := d.jobVars(job)
		if d.settings != nil {
			if link, ok, err := d.settings.Get(ctx, model.SettingReviewLink); err == nil && ok {
				vars["review_link"] = link
			}
		}
		body = Render(tpl.Body, vars)
	}

	entry := model.SMSLog{
		ID:           util.New(),
		JobReference: job.Reference,
		TemplateKey:  model.TemplateKeyPostCollectionReview,
		Phone:        job.CustomerPhone,
		Body:         body,
		Status:       model.SMSPending,
	}
	if err := d.sms.InsertLog(ctx, nil, entry); err != nil {
		return err
	}

	now := time.Now()
	if err := d.relay.Send(ctx, d.resolveRelayURL(ctx), entry.Phone, entry.Body); err != nil {
		metrics.SMSTotal.WithLabelValues("failed").Inc()
		msg := err.Error()
		_ = d.sms.MarkLogResult(ctx, entry.ID, model.SMSFailed, &msg)
		_ = d.jobs.MarkPostCollectionSMSSent(ctx, job.ID, now, model.SMSFailed.String())
		return err
	}

	metrics.SMSTotal.WithLabelValues("sent").Inc()
	if err := d.sms.MarkLogResult(ctx, entry.ID, model.SMSSent, nil); err != nil {
		return err
	}
	return d.jobs.MarkPostCollectionSMSSent(ctx, job.ID, now, model.SMSSent.String())
}

// EmailKeyJobCreated is the template key for the booking confirmation.
const EmailKeyJobCreated = "JOB_CREATED"

// DispatchStatusEmail sends the status update email if gating allows.
// Returns (sent, human message). A config row with send_email=false or
// is_active=false suppresses the send and still counts as success.
func (d *Dispatcher) DispatchStatusEmail(ctx context.Context, job *model.Job, statusKey string) (bool, string, error) {
	return d.sendJobEmail(ctx, job, statusKey, true)
}

// DispatchJobCreatedEmail sends the booking confirmation for a new job.
// Not subject to the per-status config gate: disabling RECEIVED updates
// must not silence the confirmation.
func (d *Dispatcher) DispatchJobCreatedEmail(ctx context.Context, job *model.Job) (bool, string, error) {
	return d.sendJobEmail(ctx, job, EmailKeyJobCreated, false)
}

func (d *Dispatcher) sendJobEmail(ctx context.Context, job *model.Job, statusKey string, gated bool) (bool, string, error) {
	if d.email == nil {
		return false, "email sending disabled", nil
	}
	if job.CustomerEmail == nil || *job.CustomerEmail == "" {
		return false, "no customer email on file", nil
	}

	if gated {
		cfg, err := d.notifs.GetConfig(ctx, statusKey)
		if err != nil {
			return false, "", err
		}
		if cfg != nil && (!cfg.SendEmail || !cfg.IsActive) {
			metrics.EmailsTotal.WithLabelValues("disabled").Inc()
			return false, fmt.Sprintf("email disabled for %s", statusKey), nil
		}
	}

	subject := fmt.Sprintf("Update on your repair %s", job.Reference)
	if statusKey == EmailKeyJobCreated {
		subject = fmt.Sprintf("Your repair %s is booked in", job.Reference)
	}
	var htmlBody, textBody string

	// Staff-edited template wins over the built-in renderer.
	if tpl, err := d.emails.GetActive(ctx, statusKey); err == nil && tpl != nil {
		vars := d.jobVars(job)
		subject = Render(tpl.Subject, vars)
		htmlBody = Render(tpl.HTMLBody, vars)
		textBody = Render(tpl.TextBody, vars)
	} else {
		label := model.JobStatus(statusKey).Label()
		if statusKey == EmailKeyJobCreated {
			label = "Booked In"
		}
		view := EmailView{
			CustomerName:  job.CustomerName,
			JobRef:        job.Reference,
			DeviceMake:    job.DeviceMake,
			DeviceModel:   job.DeviceModel,
			StatusLabel:   label,
			StatusMessage: StatusMessage(statusKey),
			TrackingURL:   d.trackingURL(job),
			PaymentURL:    d.paymentURL(job),
			TotalPrice:    job.TotalPrice,
		}
		htmlBody, textBody = BuildStatusEmail(view)
	}

	sendErr := d.email.Send(ctx, Email{
		To:       *job.CustomerEmail,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
	if sendErr != nil {
		metrics.EmailsTotal.WithLabelValues("failed").Inc()
		logger.Log.Warn("status email failed",
			zap.String("job_id", job.ID), zap.String("status", statusKey), zap.Error(sendErr))
		return false, "", sendErr
	}

	metrics.EmailsTotal.WithLabelValues("sent").Inc()
	if err := d.events.Insert(ctx, nil, model.JobEvent{
		JobID:   job.ID,
		Type:    model.EventSystem,
		Message: fmt.Sprintf("Email sent: %q", subject),
		Actor:   "system",
	}); err != nil {
		logger.Log.Warn("record email event", zap.String("job_id", job.ID), zap.Error(err))
	}
	return true, "email sent", nil
}
