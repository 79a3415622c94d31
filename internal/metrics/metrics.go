package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SMSTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairops_sms_total",
			Help: "SMS lifecycle counter by outcome",
		},
		[]string{"status"}, // queued|sent|failed|skipped
	)

	EmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairops_emails_total",
			Help: "Outbound email counter by outcome",
		},
		[]string{"status"}, // sent|failed|disabled
	)

	PushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairops_push_total",
			Help: "Web-push delivery counter by per-subscription result",
		},
		[]string{"result"}, // sent|failed|gone
	)

	StatusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairops_status_transitions_total",
			Help: "Job status transitions by target status",
		},
		[]string{"to"},
	)

	WarrantyTicketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairops_warranty_tickets_total",
			Help: "Warranty ticket submissions by match confidence",
		},
		[]string{"confidence"},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		SMSTotal,
		EmailsTotal,
		PushTotal,
		StatusTransitionsTotal,
		WarrantyTicketsTotal,
	)
}
