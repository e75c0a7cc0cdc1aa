package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncAuthResolution("HSID", "ok")
	m.IncAuthResolution("HSID", "ok")
	m.IncPolicyDecision("DEFAULT_DENY", "DENY")
	m.ObserveUpstream("eligibility", "ok", 12*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthResolutions.WithLabelValues("HSID", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PolicyDecisions.WithLabelValues("DEFAULT_DENY", "DENY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("eligibility", "ok")))
}

func TestNilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncAuthResolution("PROXY", "ok")
		m.IncSessionRotation("rotated")
		m.IncPubSubEvent("EVICT", "published")
		m.ObserveUpstream("x", "ok", time.Second)
		m.IncAuditDropped()
	})
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
