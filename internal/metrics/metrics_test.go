package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/navikt/roomswitch/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.SwitchResult("succeeded")
	m.SwitchResult("succeeded")
	m.SwitchResult("failed")
	m.TransportEvent("meeting-joined")
	m.ProvisioningResult(true)
	m.ProvisioningResult(false)
	m.RelayTransition(models.RelayIdle, models.RelayRequesting)
	m.RelayTransition(models.RelayRequesting, models.RelayActive)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.switches.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transportEvents.WithLabelValues("meeting-joined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.provisioningResult.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayTransitions.WithLabelValues("requesting", "active")))
	assert.Equal(t, float64(models.RelayActive), testutil.ToFloat64(m.relayState))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SwitchResult("succeeded")
		m.RelayTransition(models.RelayIdle, models.RelayActive)
		m.TransportEvent("meeting-left")
		m.ProvisioningResult(true)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.TransportEvent("media-relay-started")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# TYPE roomswitch_transport_events_total counter")
	assert.Contains(t, rr.Body.String(), `roomswitch_transport_events_total{event="media-relay-started"} 1`)
}
