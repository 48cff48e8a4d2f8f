package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepa_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prepa_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UnlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepa_unlocks_total",
			Help: "Total number of paper unlocks",
		},
		[]string{"access"},
	)

	TicketsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prepa_tickets_created_total",
			Help: "Total number of subject request tickets created",
		},
	)

	TicketTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepa_ticket_transitions_total",
			Help: "Total number of ticket status transitions",
		},
		[]string{"status"},
	)

	SweepRefundedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prepa_sweep_refunded_total",
			Help: "Total number of tickets refunded by the expiry sweep",
		},
	)

	SweepFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prepa_sweep_failures_total",
			Help: "Total number of tickets the expiry sweep failed to refund",
		},
	)

	TopUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prepa_topups_total",
			Help: "Total number of credit top-ups",
		},
	)

	BalanceCredits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prepa_balance_credits",
			Help: "Current credit balance per user",
		},
		[]string{"user_id"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepa_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prepa_email_queue_length",
			Help: "Current length of email queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordUnlock(access string) {
	UnlocksTotal.WithLabelValues(access).Inc()
}

func RecordTicketCreated() {
	TicketsCreatedTotal.Inc()
}

func RecordTicketTransition(status string) {
	TicketTransitionsTotal.WithLabelValues(status).Inc()
}

func RecordSweepResult(refunded, failed int) {
	SweepRefundedTotal.Add(float64(refunded))
	SweepFailuresTotal.Add(float64(failed))
}

func RecordTopUp() {
	TopUpsTotal.Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}
