package metrics

import "github.com/prometheus/client_golang/prometheus"

// PlatformMetrics exposes counters for the appointment and notification
// workflows.
type PlatformMetrics struct {
	paymentReviews   *prometheus.CounterVec
	remindersSent    *prometheus.CounterVec
	rateLimitDenied  *prometheus.CounterVec
	outboxDeliveries *prometheus.CounterVec
	emailFailures    prometheus.Counter
}

func NewPlatformMetrics(reg prometheus.Registerer) *PlatformMetrics {
	m := &PlatformMetrics{
		paymentReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartwell",
			Subsystem: "payments",
			Name:      "reviews_total",
			Help:      "Total payment proof reviews by outcome",
		}, []string{"outcome"}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartwell",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Total appointment reminders dispatched",
		}, []string{"band"}),
		rateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartwell",
			Subsystem: "http",
			Name:      "rate_limit_denied_total",
			Help:      "Total requests denied by the rate limiter",
		}, []string{"preset"}),
		outboxDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartwell",
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Total outbox delivery attempts by status",
		}, []string{"status"}),
		emailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smartwell",
			Subsystem: "notify",
			Name:      "email_failures_total",
			Help:      "Total transactional email send failures",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.paymentReviews, m.remindersSent, m.rateLimitDenied,
		m.outboxDeliveries, m.emailFailures)
	return m
}

func (m *PlatformMetrics) ObservePaymentReview(outcome string) {
	if m == nil {
		return
	}
	m.paymentReviews.WithLabelValues(outcome).Inc()
}

func (m *PlatformMetrics) ObserveReminderSent(band string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(band).Inc()
}

func (m *PlatformMetrics) ObserveRateLimitDenied(preset string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(preset).Inc()
}

func (m *PlatformMetrics) ObserveOutboxDelivery(status string) {
	if m == nil {
		return
	}
	m.outboxDeliveries.WithLabelValues(status).Inc()
}

func (m *PlatformMetrics) ObserveEmailFailure() {
	if m == nil {
		return
	}
	m.emailFailures.Inc()
}
