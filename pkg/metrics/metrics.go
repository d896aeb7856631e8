// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus instrumentation for quarry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Routes label how a packet left the bridge.
const (
	RouteOpaque  = "opaque"  // forwarded before both sides reached play
	RouteDefault = "default" // play phase, no handler registered
	RouteHandled = "handled" // play phase, handled by a registered handler
)

// Metrics holds all Prometheus metrics for quarry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Bridge metrics
	ActiveBridges  prometheus.Gauge
	BridgesTotal   *prometheus.CounterVec
	BridgeDuration prometheus.Histogram

	// Packet metrics
	Packets     *prometheus.CounterVec
	PacketBytes *prometheus.HistogramVec
	Malformed   *prometheus.CounterVec
	Synthesized *prometheus.CounterVec
	Phases      *prometheus.CounterVec

	// Backend metrics
	DialErrors          *prometheus.CounterVec
	CircuitBreakerState prometheus.Gauge
	CircuitBreakerTrips prometheus.Counter

	// Rate limiter metrics
	RateLimited prometheus.Counter
}

// New creates the metric set and registers it with reg. A nil reg creates
// unregistered metrics, which is what tests use.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "quarry"
	}
	f := promauto.With(reg)

	return &Metrics{
		ActiveBridges: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_bridges",
			Help:      "Number of currently running client/server bridges",
		}),
		BridgesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridges_total",
			Help:      "Total number of bridges by outcome",
		}, []string{"status"}),
		BridgeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bridge_duration_seconds",
			Help:      "Bridge lifetime in seconds",
			Buckets:   []float64{1, 5, 30, 60, 300, 900, 1800, 3600, 7200, 14400},
		}),
		Packets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Total number of packets bridged",
		}, []string{"direction", "packet", "route"}),
		PacketBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "packet_size_bytes",
			Help:      "Packet payload size in bytes",
			Buckets:   []float64{8, 32, 128, 512, 2048, 8192, 32768, 131072, 1048576},
		}, []string{"direction"}),
		Malformed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_packets_total",
			Help:      "Packets whose decode failed and were forwarded raw",
		}, []string{"direction", "packet"}),
		Synthesized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesized_packets_total",
			Help:      "Packets emitted by the bridge itself",
		}, []string{"direction", "packet"}),
		Phases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Protocol phase transitions by direction and target phase",
		}, []string{"direction", "phase"}),
		DialErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_dial_errors_total",
			Help:      "Failed dials to the target server",
		}, []string{"reason"}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
		}),
		CircuitBreakerTrips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_connections_total",
			Help:      "Client connections rejected by the rate limiter",
		}),
	}
}

// ObserveBridge tracks a bridge lifecycle.
func (m *Metrics) ObserveBridge(f func() error) error {
	if m == nil {
		return f()
	}

	m.ActiveBridges.Inc()
	defer m.ActiveBridges.Dec()

	start := time.Now()
	err := f()
	m.BridgeDuration.Observe(time.Since(start).Seconds())

	status := "closed"
	if err != nil {
		status = "error"
	}
	m.BridgesTotal.WithLabelValues(status).Inc()

	return err
}

// Packet counts one bridged packet.
func (m *Metrics) Packet(direction, name, route string, size int) {
	if m == nil {
		return
	}
	if name == "" {
		name = "unknown"
	}
	m.Packets.WithLabelValues(direction, name, route).Inc()
	m.PacketBytes.WithLabelValues(direction).Observe(float64(size))
}

// MalformedPacket counts a decode failure that fell back to raw forwarding.
func (m *Metrics) MalformedPacket(direction, name string) {
	if m == nil {
		return
	}
	m.Malformed.WithLabelValues(direction, name).Inc()
}

// SynthesizedPacket counts a packet the bridge emitted on its own.
func (m *Metrics) SynthesizedPacket(direction, name string) {
	if m == nil {
		return
	}
	m.Synthesized.WithLabelValues(direction, name).Inc()
}

// Phase counts a phase transition.
func (m *Metrics) Phase(direction, phase string) {
	if m == nil {
		return
	}
	m.Phases.WithLabelValues(direction, phase).Inc()
}

// DialError counts a failed dial to the target server.
func (m *Metrics) DialError(reason string) {
	if m == nil {
		return
	}
	m.DialErrors.WithLabelValues(reason).Inc()
}

// BreakerState records a circuit breaker transition.
func (m *Metrics) BreakerState(state int, tripped bool) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Set(float64(state))
	if tripped {
		m.CircuitBreakerTrips.Inc()
	}
}

// RateLimitedConnection counts a rejected client connection.
func (m *Metrics) RateLimitedConnection() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
