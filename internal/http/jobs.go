package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/notify"
	"github.com/nfdrepairs/repair-ops/internal/repository"
	"github.com/nfdrepairs/repair-ops/internal/worker"
	"github.com/nfdrepairs/repair-ops/internal/workflow"
)

// createJobReq accepts both field-naming conventions: the intake form sends
// snake_case customer_* fields, the upstream quoting system sends the short
// legacy names.
type createJobReq struct {
	CustomerName  string `json:"customer_name"`
	Name          string `json:"name"` // legacy
	CustomerPhone string `json:"customer_phone"`
	Phone         string `json:"phone"` // legacy
	CustomerEmail string `json:"customer_email"`
	Email         string `json:"email"` // legacy

	DeviceMake  string `json:"device_make"`
	Make        string `json:"make"` // legacy
	DeviceModel string `json:"device_model"`
	Model       string `json:"model"` // legacy

	Issue            string   `json:"issue"`
	IssueDescription string   `json:"issue_description"`
	AdditionalIssues []string `json:"additional_issues"`

	QuotedPrice   *float64 `json:"quoted_price"`
	TotalPrice    *float64 `json:"total_price"`
	PartsRequired bool     `json:"parts_required"`
	// RequiresPartsOrder is the legacy synonym kept in sync with
	// parts_required.
	RequiresPartsOrder bool `json:"requires_parts_order"`

	Actor string `json:"actor"`
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return strings.TrimSpace(b)
}

func createJobHandler(creator *workflow.Creator, baseURL string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createJobReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		in := workflow.NewJobInput{
			CustomerName:  firstNonEmpty(req.CustomerName, req.Name),
			CustomerPhone: firstNonEmpty(req.CustomerPhone, req.Phone),
			DeviceMake:    firstNonEmpty(req.DeviceMake, req.Make),
			DeviceModel:   firstNonEmpty(req.DeviceModel, req.Model),
			Issue:         strings.TrimSpace(req.Issue),
			QuotedPrice:   req.QuotedPrice,
			TotalPrice:    req.TotalPrice,
			PartsRequired: req.PartsRequired || req.RequiresPartsOrder,
			Actor:         req.Actor,
		}
		if email := firstNonEmpty(req.CustomerEmail, req.Email); email != "" {
			in.CustomerEmail = &email
		}
		if desc := strings.TrimSpace(req.IssueDescription); desc != "" {
			in.IssueDescription = &desc
		}
		in.AdditionalIssues = req.AdditionalIssues

		if in.CustomerName == "" || in.CustomerPhone == "" || in.DeviceMake == "" || in.DeviceModel == "" || in.Issue == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing required fields"})
		}

		job, _, err := creator.CreateJob(c.Request().Context(), in)
		if err != nil {
			log.Errorf("create job failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success":        true,
			"job_id":         job.ID,
			"job_ref":        job.Reference,
			"tracking_token": job.TrackingToken,
			"tracking_url":   baseURL + "/track/" + job.TrackingToken,
			"status":         job.Status.String(),
		})
	}
}

func getJobHandler(jobs repository.JobsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := jobs.GetByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			log.Errorf("get job failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if job == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "job": job})
	}
}

func listJobsHandler(jobs repository.JobsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var status model.JobStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			st, ok := model.ParseJobStatus(raw)
			if !ok {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
			}
			status = st
		}

		list, err := jobs.List(c.Request().Context(), status, limit, offset)
		if err != nil {
			log.Errorf("list jobs failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"limit":   limit,
			"offset":  offset,
			"count":   len(list),
			"results": list,
		})
	}
}

type changeStatusReq struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Manual bool   `json:"manual"`
	Actor  string `json:"actor"`
}

func changeStatusHandler(wf *workflow.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req changeStatusReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if req.JobID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "jobId is required"})
		}
		status, ok := model.ParseJobStatus(req.Status)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
		}

		res, err := wf.ChangeStatus(c.Request().Context(), req.JobID, status, workflow.ChangeStatusOpts{
			Manual: req.Manual,
			Actor:  req.Actor,
		})
		switch {
		case errors.Is(err, workflow.ErrJobNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		case errors.Is(err, workflow.ErrOnboardingIncomplete):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "onboarding must be completed first"})
		case errors.Is(err, workflow.ErrIllegalTransition):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case err != nil:
			log.Errorf("change status failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{"success": true, "result": res})
	}
}

type jobIDReq struct {
	JobID string `json:"jobId"`
	Actor string `json:"actor"`
}

func markDepositReceivedHandler(wf *workflow.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req jobIDReq
		if err := c.Bind(&req); err != nil || req.JobID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "jobId is required"})
		}

		res, err := wf.MarkDepositReceived(c.Request().Context(), req.JobID, req.Actor)
		switch {
		case errors.Is(err, workflow.ErrJobNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		case errors.Is(err, workflow.ErrNotAwaitingDeposit), errors.Is(err, workflow.ErrDepositAlreadyTaken):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case err != nil:
			log.Errorf("mark deposit failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{"success": true, "result": res})
	}
}

type completeOnboardingReq struct {
	OnboardingToken       string  `json:"onboarding_token"`
	DevicePassword        *string `json:"device_password"`
	PasswordNotApplicable bool    `json:"password_not_applicable"`
	TermsAccepted         bool    `json:"terms_accepted"`
}

func completeOnboardingHandler(jobs repository.JobsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req completeOnboardingReq
		if err := c.Bind(&req); err != nil || req.OnboardingToken == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "onboarding_token is required"})
		}
		if !req.TermsAccepted {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "terms must be accepted"})
		}
		if req.DevicePassword == nil && !req.PasswordNotApplicable {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "device password required or mark not applicable"})
		}

		job, err := jobs.GetByOnboardingToken(c.Request().Context(), req.OnboardingToken)
		if err != nil {
			log.Errorf("onboarding lookup failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if job == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}

		if err := jobs.CompleteOnboarding(c.Request().Context(), job.ID, req.DevicePassword, req.PasswordNotApplicable, req.TermsAccepted); err != nil {
			log.Errorf("complete onboarding failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{"success": true, "job_id": job.ID})
	}
}

type queueStatusSMSReq struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

func queueStatusSMSHandler(dispatcher *notify.Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req queueStatusSMSReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if req.JobID == "" || req.Status == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "jobId and status are required"})
		}

		key := strings.ToUpper(strings.TrimSpace(req.Status))
		queued, msg, err := dispatcher.DispatchStatusSMS(c.Request().Context(), req.JobID, key)
		switch {
		case errors.Is(err, notify.ErrJobNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		case err != nil:
			log.Errorf("queue status sms failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{"success": true, "queued": queued, "message": msg})
	}
}

func scheduleCollectionSMSHandler(wf *workflow.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req jobIDReq
		if err := c.Bind(&req); err != nil || req.JobID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "jobId is required"})
		}

		at, err := wf.ScheduleCollectionSMS(c.Request().Context(), req.JobID)
		switch {
		case errors.Is(err, workflow.ErrJobNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		case err != nil:
			log.Errorf("schedule collection sms failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success":      true,
			"scheduled_at": at.Format(time.RFC3339),
		})
	}
}

// sendCollectionSMSHandler handles the manual POST: send one job's due
// review SMS now.
func sendCollectionSMSHandler(jobs repository.JobsRepository, dispatcher *notify.Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req jobIDReq
		if err := c.Bind(&req); err != nil || req.JobID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "jobId is required"})
		}

		job, err := jobs.GetByID(c.Request().Context(), req.JobID)
		if err != nil {
			log.Errorf("get job failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if job == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}

		if err := dispatcher.SendPostCollectionSMS(c.Request().Context(), job); err != nil {
			log.Errorf("send collection sms failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true})
	}
}

// sweepCollectionSMSHandler is the cron GET variant: sweep everything due.
func sweepCollectionSMSHandler(jobs repository.JobsRepository, dispatcher *notify.Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, err := worker.Sweep(c.Request().Context(), jobs, dispatcher)
		if err != nil {
			log.Errorf("collection sms sweep failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "sweep failed"})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "sweep": res})
	}
}

// trackJobHandler is the public, unauthenticated status view behind the
// opaque tracking token.
func trackJobHandler(jobs repository.JobsRepository, events repository.JobEventsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := jobs.GetByTrackingToken(c.Request().Context(), c.Param("token"))
		if err != nil {
			log.Errorf("tracking lookup failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if job == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}

		history, err := events.ListByJob(c.Request().Context(), job.ID)
		if err != nil {
			log.Errorf("tracking events failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		// Public view: no tokens, passwords, or pricing internals.
		type publicEvent struct {
			Message   string    `json:"message"`
			CreatedAt time.Time `json:"created_at"`
		}
		timeline := make([]publicEvent, 0, len(history))
		for _, e := range history {
			if e.Type == model.EventStatusChange {
				timeline = append(timeline, publicEvent{Message: e.Message, CreatedAt: e.CreatedAt})
			}
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success":      true,
			"job_ref":      job.Reference,
			"status":       job.Status.String(),
			"status_label": job.Status.Label(),
			"device_make":  job.DeviceMake,
			"device_model": job.DeviceModel,
			"timeline":     timeline,
		})
	}
}
