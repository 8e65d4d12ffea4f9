// Package metrics exposes Prometheus collectors for dispatch, gateway and
// reconciliation. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bulksms"

type Metrics struct {
	MessagesDispatched *prometheus.CounterVec
	CreditsReserved    prometheus.Counter
	CreditsReleased    prometheus.Counter
	GatewayRequests    *prometheus.CounterVec
	GatewayLatency     prometheus.Histogram
	GatewayUnreachable prometheus.Counter
	CallbacksReceived  *prometheus.CounterVec
	CampaignsFinished  *prometheus.CounterVec
	PaymentsApplied    *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dispatched_total",
			Help:      "Per-recipient dispatch outcomes.",
		}, []string{"outcome"}),
		CreditsReserved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_reserved_total",
			Help:      "Credits debited by granted reservations.",
		}),
		CreditsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_released_total",
			Help:      "Credits returned by released reservations.",
		}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Gateway send attempts by result.",
		}, []string{"result"}),
		GatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of gateway send calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		GatewayUnreachable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_unreachable_total",
			Help:      "Sends that failed at the transport level.",
		}),
		CallbacksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_callbacks_total",
			Help:      "Delivery callbacks by reconciliation result.",
		}, []string{"result"}),
		CampaignsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaigns_finished_total",
			Help:      "Campaigns that left the dispatch loop, by final status.",
		}, []string{"status"}),
		PaymentsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment callbacks by provider and result.",
		}, []string{"provider", "result"}),
	}
	reg.MustRegister(
		m.MessagesDispatched,
		m.CreditsReserved,
		m.CreditsReleased,
		m.GatewayRequests,
		m.GatewayLatency,
		m.GatewayUnreachable,
		m.CallbacksReceived,
		m.CampaignsFinished,
		m.PaymentsApplied,
	)
	return m
}

func (m *Metrics) Dispatched(outcome string) {
	if m == nil {
		return
	}
	m.MessagesDispatched.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reserved(credits int64) {
	if m == nil {
		return
	}
	m.CreditsReserved.Add(float64(credits))
}

func (m *Metrics) Released(credits int64) {
	if m == nil {
		return
	}
	m.CreditsReleased.Add(float64(credits))
}

func (m *Metrics) GatewayCall(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(result).Inc()
	m.GatewayLatency.Observe(took.Seconds())
	if result == "unreachable" {
		m.GatewayUnreachable.Inc()
	}
}

func (m *Metrics) Callback(result string) {
	if m == nil {
		return
	}
	m.CallbacksReceived.WithLabelValues(result).Inc()
}

func (m *Metrics) CampaignFinished(status string) {
	if m == nil {
		return
	}
	m.CampaignsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) Payment(provider, result string) {
	if m == nil {
		return
	}
	m.PaymentsApplied.WithLabelValues(provider, result).Inc()
}
