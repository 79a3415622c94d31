package notify

import (
	"fmt"
	"html"
	"strings"
)

// EmailView is the structured input for email rendering. Building the body
// from a view-model keeps the renderer free of I/O.
type EmailView struct {
	CustomerName  string
	JobRef        string
	DeviceMake    string
	DeviceModel   string
	StatusLabel   string
	StatusMessage string
	TrackingURL   string
	PaymentURL    string // empty unless a deposit is outstanding
	TotalPrice    *float64
}

// statusMessages is the fixed status → blurb table used in update emails.
var statusMessages = map[string]string{
	"JOB_CREATED":      "Your repair is booked in. We'll keep you posted at every step.",
	"RECEIVED":         "We've received your device and it is booked in for assessment.",
	"AWAITING_DEPOSIT": "We're waiting on your parts deposit before we can order parts.",
	"PARTS_ORDERED":    "Parts for your repair have been ordered.",
	"PARTS_ARRIVED":    "The parts for your repair have arrived.",
	"READY_TO_BOOK_IN": "Your repair is ready to be booked in - we'll be in touch to arrange a time.",
	"IN_REPAIR":        "Your device is currently being repaired.",
	"DELAYED":          "Your repair is taking a little longer than expected. Sorry for the delay.",
	"READY_TO_COLLECT": "Great news - your device is repaired and ready to collect!",
	"COLLECTED":        "Thanks for collecting your device.",
	"COMPLETED":        "Your repair is complete. Thank you for choosing us.",
	"CANCELLED":        "Your repair has been cancelled. Get in touch if this is unexpected.",
}

// StatusMessage returns the canned blurb for a status key, or a generic
// fallback for unknown keys.
func StatusMessage(statusKey string) string {
	if m, ok := statusMessages[statusKey]; ok {
		return m
	}
	return "There's an update on your repair."
}

// BuildStatusEmail renders the full HTML and plain-text bodies for a status
// update email.
func BuildStatusEmail(v EmailView) (htmlBody, textBody string) {
	esc := html.EscapeString

	var h strings.Builder
	h.WriteString(`<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;color:#222;margin:0;padding:24px;">`)
	h.WriteString(`<div style="max-width:560px;margin:0 auto;">`)
	fmt.Fprintf(&h, `<h2 style="color:#0b5394;">Repair update: %s</h2>`, esc(v.StatusLabel))
	fmt.Fprintf(&h, `<p>Hi %s,</p>`, esc(v.CustomerName))
	fmt.Fprintf(&h, `<p>%s</p>`, esc(v.StatusMessage))
	fmt.Fprintf(&h, `<p><strong>%s %s</strong> &mdash; reference %s</p>`,
		esc(v.DeviceMake), esc(v.DeviceModel), esc(v.JobRef))
	if v.TotalPrice != nil {
		fmt.Fprintf(&h, `<p>Repair total: &pound;%.2f</p>`, *v.TotalPrice)
	}
	if v.TrackingURL != "" {
		fmt.Fprintf(&h, `<p><a href="%s" style="background:#0b5394;color:#fff;padding:10px 18px;border-radius:4px;text-decoration:none;">Track your repair</a></p>`, v.TrackingURL)
	}
	if v.PaymentURL != "" {
		fmt.Fprintf(&h, `<p><a href="%s">Pay your deposit</a> to get parts on order.</p>`, v.PaymentURL)
	}
	h.WriteString(`<p style="color:#888;font-size:12px;">NFD Repairs &middot; this mailbox is not monitored.</p>`)
	h.WriteString(`</div></body></html>`)

	var t strings.Builder
	fmt.Fprintf(&t, "Hi %s,\n\n%s\n\n", v.CustomerName, v.StatusMessage)
	fmt.Fprintf(&t, "%s %s - reference %s\n", v.DeviceMake, v.DeviceModel, v.JobRef)
	if v.TotalPrice != nil {
		fmt.Fprintf(&t, "Repair total: GBP %.2f\n", *v.TotalPrice)
	}
	if v.TrackingURL != "" {
		fmt.Fprintf(&t, "\nTrack your repair: %s\n", v.TrackingURL)
	}
	if v.PaymentURL != "" {
		fmt.Fprintf(&t, "Pay your deposit: %s\n", v.PaymentURL)
	}

	return h.String(), t.String()
}
