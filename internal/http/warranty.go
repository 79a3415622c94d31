package http

import (
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/warranty"
)

type warrantyTicketReq struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`

	JobID        string `json:"job_id"`
	JobReference string `json:"job_reference"`

	IssueCategory    string `json:"issue_category"`
	IssueDescription string `json:"issue_description"`

	Source      string `json:"source"`
	SubmittedAt string `json:"submitted_at"`
}

func createWarrantyTicketHandler(svc *warranty.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req warrantyTicketReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
		req.IssueDescription = strings.TrimSpace(req.IssueDescription)
		if req.CustomerPhone == "" || req.IssueDescription == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "customer_phone and issue_description are required"})
		}

		source, ok := model.ParseTicketSource(req.Source)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid source"})
		}

		claim := warranty.Claim{
			Source:           source,
			CustomerName:     strings.TrimSpace(req.CustomerName),
			CustomerPhone:    req.CustomerPhone,
			JobID:            strings.TrimSpace(req.JobID),
			JobReference:     strings.TrimSpace(req.JobReference),
			IssueDescription: req.IssueDescription,
			IdempotencyKey:   strings.TrimSpace(c.Request().Header.Get("Idempotency-Key")),
		}
		if e := strings.TrimSpace(req.CustomerEmail); e != "" {
			claim.CustomerEmail = &e
		}
		if cat := strings.TrimSpace(req.IssueCategory); cat != "" {
			claim.IssueCategory = &cat
		}
		if req.SubmittedAt != "" {
			if ts, err := time.Parse(time.RFC3339, req.SubmittedAt); err == nil {
				claim.SubmittedAt = ts
			}
		}

		res, err := svc.SubmitClaim(c.Request().Context(), claim)
		if err != nil {
			log.Errorf("warranty claim failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		body := map[string]any{
			"success":         true,
			"ticketId":        res.Ticket.ID,
			"ticketRef":       res.Ticket.Reference,
			"matchedJobId":    res.Ticket.MatchedJobID,
			"matchConfidence": res.Ticket.MatchConfidence.String(),
			"status":          res.Ticket.Status.String(),
		}
		if res.Duplicate {
			body["duplicate"] = true
		}
		return c.JSON(http.StatusOK, body)
	}
}
