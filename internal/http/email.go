package http

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/nfdrepairs/repair-ops/internal/notify"
	"github.com/nfdrepairs/repair-ops/internal/repository"
)

type sendEmailReq struct {
	JobID string `json:"jobId"`
	Type  string `json:"type"` // JOB_CREATED | STATUS_UPDATE
}

func sendEmailHandler(jobs repository.JobsRepository, dispatcher *notify.Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendEmailReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if req.JobID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "jobId is required"})
		}

		emailType := strings.ToUpper(strings.TrimSpace(req.Type))
		if emailType != "JOB_CREATED" && emailType != "STATUS_UPDATE" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "type must be JOB_CREATED or STATUS_UPDATE"})
		}

		job, err := jobs.GetByID(c.Request().Context(), req.JobID)
		if err != nil {
			log.Errorf("get job failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if job == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}

		// JOB_CREATED is always eligible; STATUS_UPDATE runs through the
		// per-status notification-config gate inside the dispatcher.
		var (
			sent bool
			msg  string
		)
		if emailType == "JOB_CREATED" {
			sent, msg, err = dispatcher.DispatchJobCreatedEmail(c.Request().Context(), job)
		} else {
			sent, msg, err = dispatcher.DispatchStatusEmail(c.Request().Context(), job, job.Status.String())
		}
		if err != nil {
			log.Errorf("send email failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "email send failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{"success": true, "sent": sent, "message": msg})
	}
}
