package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VerificationsTotal counts verification attempts by terminal outcome.
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_verifications_total",
		Help: "Verification attempts by outcome.",
	}, []string{"outcome"})

	// RegistrationsTotal counts completed student registrations.
	RegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_registrations_total",
		Help: "Completed student registrations.",
	})

	// MailTotal counts delivery attempts by result.
	MailTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_mail_total",
		Help: "Mail deliveries by result.",
	}, []string{"result"})

	// ReportsDispatched counts daily reports handed to the mailer.
	ReportsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_reports_dispatched_total",
		Help: "Daily attendance reports dispatched.",
	})
)
