package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMessage(t *testing.T) {
	assert.Contains(t, StatusMessage("READY_TO_COLLECT"), "ready to collect")
	assert.Equal(t, "There's an update on your repair.", StatusMessage("SOMETHING_ELSE"))
}

func TestBuildStatusEmail(t *testing.T) {
	total := 89.00
	htmlBody, textBody := BuildStatusEmail(EmailView{
		CustomerName:  "Sam & co",
		JobRef:        "NFD-20260302-001",
		DeviceMake:    "Apple",
		DeviceModel:   "iPhone 12",
		StatusLabel:   "Ready To Collect",
		StatusMessage: StatusMessage("READY_TO_COLLECT"),
		TrackingURL:   "https://example.com/track/abc",
		TotalPrice:    &total,
	})

	// customer input is escaped in HTML
	assert.Contains(t, htmlBody, "Sam &amp; co")
	assert.NotContains(t, htmlBody, "Sam & co,")

	assert.Contains(t, htmlBody, "NFD-20260302-001")
	assert.Contains(t, htmlBody, "&pound;89.00")
	assert.Contains(t, htmlBody, "https://example.com/track/abc")
	assert.NotContains(t, htmlBody, "Pay your deposit")

	assert.Contains(t, textBody, "Sam & co")
	assert.Contains(t, textBody, "GBP 89.00")
	assert.Contains(t, textBody, "https://example.com/track/abc")
}

func TestBuildStatusEmail_DepositOutstanding(t *testing.T) {
	htmlBody, textBody := BuildStatusEmail(EmailView{
		CustomerName: "Sam",
		JobRef:       "NFD-20260302-001",
		StatusLabel:  "Awaiting Deposit",
		PaymentURL:   "https://example.com/pay/abc",
	})

	assert.Contains(t, htmlBody, "https://example.com/pay/abc")
	assert.Contains(t, textBody, "Pay your deposit: https://example.com/pay/abc")
}
