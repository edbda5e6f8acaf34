// Package metrics exposes Prometheus counters for switches, relay
// transitions, transport events and provisioning calls.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/navikt/roomswitch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomswitch"

// Metrics holds the application collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	switches           *prometheus.CounterVec
	relayTransitions   *prometheus.CounterVec
	relayState         prometheus.Gauge
	transportEvents    *prometheus.CounterVec
	provisioningResult *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.switches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "switches_total",
		Help:      "Room switches by outcome",
	}, []string{"outcome"})

	m.relayTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "transitions_total",
		Help:      "Media relay state transitions",
	}, []string{"from", "to"})

	m.relayState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "state",
		Help:      "Current media relay state (0 idle, 1 requesting, 2 active, 3 stopping)",
	})

	m.transportEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "events_total",
		Help:      "Transport events dispatched by kind",
	}, []string{"event"})

	m.provisioningResult = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provisioning",
		Name:      "requests_total",
		Help:      "Room provisioning calls by result",
	}, []string{"success"})

	m.registry.MustRegister(
		m.switches,
		m.relayTransitions,
		m.relayState,
		m.transportEvents,
		m.provisioningResult,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SwitchResult counts a room switch outcome
func (m *Metrics) SwitchResult(outcome string) {
	if m == nil {
		return
	}
	m.switches.WithLabelValues(outcome).Inc()
}

// RelayTransition counts a relay state change and tracks the current state
func (m *Metrics) RelayTransition(from, to models.RelayState) {
	if m == nil {
		return
	}
	m.relayTransitions.WithLabelValues(from.String(), to.String()).Inc()
	m.relayState.Set(float64(to))
}

// TransportEvent counts a dispatched transport event
func (m *Metrics) TransportEvent(kind string) {
	if m == nil {
		return
	}
	m.transportEvents.WithLabelValues(kind).Inc()
}

// ProvisioningResult counts a provisioning call
func (m *Metrics) ProvisioningResult(ok bool) {
	if m == nil {
		return
	}
	m.provisioningResult.WithLabelValues(strconv.FormatBool(ok)).Inc()
}
