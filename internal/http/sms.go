package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/nfdrepairs/repair-ops/internal/notify"
	"github.com/nfdrepairs/repair-ops/internal/warranty"
)

type resendSMSReq struct {
	SMSLogID string `json:"smsLogId"`
}

// resendSMSHandler is the one manual retry in the system: staff re-fires a
// FAILED or stuck-PENDING SMS log row.
func resendSMSHandler(dispatcher *notify.Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req resendSMSReq
		if err := c.Bind(&req); err != nil || req.SMSLogID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "smsLogId is required"})
		}

		status, err := dispatcher.ResendSMS(c.Request().Context(), req.SMSLogID)
		switch {
		case errors.Is(err, notify.ErrSMSLogNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "sms log not found"})
		case err != nil:
			log.Errorf("resend sms failed: %v", err)
			return c.JSON(http.StatusOK, map[string]any{
				"success": false,
				"status":  status.String(),
				"error":   err.Error(),
			})
		}

		return c.JSON(http.StatusOK, map[string]any{"success": true, "status": status.String()})
	}
}

type inboundSMSReq struct {
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	ThreadID  string `json:"threadId"`
}

// inboundSMSHandler is the webhook the relay calls when a customer replies.
func inboundSMSHandler(svc *warranty.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req inboundSMSReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		req.Phone = strings.TrimSpace(req.Phone)
		req.Message = strings.TrimSpace(req.Message)
		if req.Phone == "" || req.Message == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "phone and message are required"})
		}

		receivedAt := time.Now()
		if req.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
				receivedAt = ts
			}
		}
		var threadID *string
		if req.ThreadID != "" {
			threadID = &req.ThreadID
		}

		res, err := svc.HandleInboundSMS(c.Request().Context(), req.Phone, req.Message, receivedAt, threadID)
		if err != nil {
			log.Errorf("inbound sms failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success":   true,
			"ticketId":  res.Ticket.ID,
			"ticketRef": res.Ticket.Reference,
			"status":    res.Ticket.Status.String(),
			"threaded":  res.Duplicate,
		})
	}
}
