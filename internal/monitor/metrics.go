package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine's Prometheus collectors.
type Metrics struct {
	Validations      *prometheus.CounterVec
	RiskDecisions    *prometheus.CounterVec
	StatusChanges    *prometheus.CounterVec
	Dispatched       *prometheus.CounterVec
	DispatchLatency  prometheus.Histogram
	BusDropped       prometheus.Counter
	ActiveStrategies prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quanta_validation_total",
				Help: "Order validations by result and failure kind",
			},
			[]string{"result", "kind"},
		),
		RiskDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quanta_risk_decisions_total",
				Help: "Risk screening outcomes by reason",
			},
			[]string{"reason"},
		),
		StatusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quanta_strategy_status_changes_total",
				Help: "Strategy status updates by target status",
			},
			[]string{"status"},
		),
		Dispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quanta_orders_dispatched_total",
				Help: "Orders handed to the broker by result",
			},
			[]string{"result"},
		),
		DispatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quanta_dispatch_latency_seconds",
				Help:    "Latency of broker dispatch",
				Buckets: prometheus.DefBuckets,
			},
		),
		BusDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quanta_bus_dropped_total",
				Help: "Events dropped because a subscriber was slow",
			},
		),
		ActiveStrategies: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quanta_active_strategies",
				Help: "Strategies currently ACTIVE",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Validations,
			m.RiskDecisions,
			m.StatusChanges,
			m.Dispatched,
			m.DispatchLatency,
			m.BusDropped,
			m.ActiveStrategies,
		)
	}
	return m
}

// RecordValidation counts a validation outcome. kind is "none" on success.
func (m *Metrics) RecordValidation(kind string) {
	if m == nil {
		return
	}
	result := "accepted"
	if kind != "none" {
		result = "rejected"
	}
	m.Validations.WithLabelValues(result, kind).Inc()
}

// RecordRisk counts a risk decision. reason is empty when allowed.
func (m *Metrics) RecordRisk(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "allowed"
	}
	m.RiskDecisions.WithLabelValues(reason).Inc()
}

// RecordStatusChange counts a status update.
func (m *Metrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(status).Inc()
}

// RecordDispatch counts a dispatch result and observes its latency.
func (m *Metrics) RecordDispatch(success bool, seconds float64) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.Dispatched.WithLabelValues(result).Inc()
	m.DispatchLatency.Observe(seconds)
}

// RecordBusDrop counts a dropped event.
func (m *Metrics) RecordBusDrop() {
	if m == nil {
		return
	}
	m.BusDropped.Inc()
}

// SetActiveStrategies sets the active strategy gauge.
func (m *Metrics) SetActiveStrategies(n int) {
	if m == nil {
		return
	}
	m.ActiveStrategies.Set(float64(n))
}
