package metrics

import "github.com/prometheus/client_golang/prometheus"

// PayoutMetrics counts payout attempts per method and outcome.
type PayoutMetrics struct {
	attempts *prometheus.CounterVec
}

// NewPayoutMetrics registers payout counters on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_attempts_total",
		Help: "Payout execution attempts by method type and result.",
	}, []string{"method", "result"})
	reg.MustRegister(attempts)
	return &PayoutMetrics{attempts: attempts}
}

// IncAttempt records one payout attempt.
func (p *PayoutMetrics) IncAttempt(method, result string) {
	if p == nil || p.attempts == nil {
		return
	}
	p.attempts.WithLabelValues(normalizeLabel(method), normalizeLabel(result)).Inc()
}

// WebhookMetrics counts webhook ingestion outcomes.
type WebhookMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewWebhookMetrics registers webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound webhook events by ingestion outcome.",
	}, []string{"outcome"})
	reg.MustRegister(outcomes)
	return &WebhookMetrics{outcomes: outcomes}
}

// IncOutcome records one ingestion outcome.
func (w *WebhookMetrics) IncOutcome(outcome string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}
