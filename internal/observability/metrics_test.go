package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/api/auth/signin", "POST", 200, 15*time.Millisecond)
	m.RecordRequest("/api/auth/signin", "POST", 200, 20*time.Millisecond)
	m.RecordError("/api/auth/refresh", "POST", "AUTH_REFRESH_TOKEN_MISMATCH")
	m.RecordAuthEvent("signed_in")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/auth/signin", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/api/auth/refresh", "POST", "AUTH_REFRESH_TOKEN_MISMATCH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authEvents.WithLabelValues("signed_in")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordAuthEvent("signed_in")
	})
}

func TestRegistriesAreIndependent(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}
