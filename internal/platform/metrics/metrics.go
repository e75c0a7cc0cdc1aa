package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "healthbff"

// Metrics holds all Prometheus metrics for the gateway. Every recorder method
// is safe on a nil receiver so components can run without metrics in tests.
type Metrics struct {
	AuthResolutions     *prometheus.CounterVec
	PolicyDecisions     *prometheus.CounterVec
	SessionRotations    *prometheus.CounterVec
	SessionInvalidation *prometheus.CounterVec
	SessionsCreated     prometheus.Counter
	PubSubEvents        *prometheus.CounterVec
	CacheRequests       *prometheus.CounterVec
	UpstreamRequests    *prometheus.CounterVec
	UpstreamLatency     *prometheus.HistogramVec
	LoginOutcomes       *prometheus.CounterVec
	AuditDropped        prometheus.Counter
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AuthResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_resolutions_total",
			Help:      "Request authentication outcomes by channel",
		}, []string{"auth_type", "outcome"}),
		PolicyDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_decisions_total",
			Help:      "ABAC decisions by deciding policy and outcome",
		}, []string{"policy_id", "outcome"}),
		SessionRotations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_rotations_total",
			Help:      "Session id rotation attempts by result",
		}, []string{"result"}),
		SessionInvalidation: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_invalidations_total",
			Help:      "Session invalidations by reason",
		}, []string{"reason"}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created at login",
		}),
		PubSubEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubsub_events_total",
			Help:      "Cross-instance events by type and direction",
		}, []string{"event_type", "direction"}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Shared cache lookups by tier and result",
		}, []string{"tier", "result"}),
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Backend calls by service and outcome category",
		}, []string{"service", "outcome"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_ms",
			Help:      "Backend call latency including retries, in milliseconds",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"service"}),
		LoginOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_outcomes_total",
			Help:      "Login enrichment outcomes by persona or rejection reason",
		}, []string{"outcome"}),
		AuditDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_dropped_total",
			Help:      "Audit events dropped because the async buffer was full",
		}),
	}
}

func (m *Metrics) IncAuthResolution(authType, outcome string) {
	if m == nil {
		return
	}
	m.AuthResolutions.WithLabelValues(authType, outcome).Inc()
}

func (m *Metrics) IncPolicyDecision(policyID, outcome string) {
	if m == nil {
		return
	}
	m.PolicyDecisions.WithLabelValues(policyID, outcome).Inc()
}

func (m *Metrics) IncSessionRotation(result string) {
	if m == nil {
		return
	}
	m.SessionRotations.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSessionInvalidation(reason string) {
	if m == nil {
		return
	}
	m.SessionInvalidation.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncSessionsCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

func (m *Metrics) IncPubSubEvent(eventType, direction string) {
	if m == nil {
		return
	}
	m.PubSubEvents.WithLabelValues(eventType, direction).Inc()
}

func (m *Metrics) IncCacheRequest(tier, result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) ObserveUpstream(service, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(service, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(service).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) IncLoginOutcome(outcome string) {
	if m == nil {
		return
	}
	m.LoginOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}
