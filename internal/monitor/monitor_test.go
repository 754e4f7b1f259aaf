package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quanta-engine/internal/events"
)

type captureSink struct {
	mu   sync.Mutex
	msgs []string
	got  chan struct{}
}

func (c *captureSink) Send(message string) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, message)
	c.mu.Unlock()
	c.got <- struct{}{}
	return nil
}

func TestFormatAlert(t *testing.T) {
	at := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"string", "boom", "[2024-03-15T14:30:00Z] order.failed: boom"},
		{"error", errors.New("broker down"), "[2024-03-15T14:30:00Z] order.failed: broker down"},
		{"nil", nil, "[2024-03-15T14:30:00Z] order.failed: alert triggered"},
		{"struct", struct{ N int }{3}, "[2024-03-15T14:30:00Z] order.failed: {N:3}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAlert(events.Message{Topic: events.EventOrderFailed, Payload: tt.payload, At: at})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonitorForwardsDefaultTopics(t *testing.T) {
	bus := events.NewBus()
	sink := &captureSink{got: make(chan struct{}, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := &Monitor{Bus: bus, Sink: sink}
	m.Start(ctx)

	bus.Publish(events.EventOrderQueued, "ignored")
	bus.Publish(events.EventRiskRejected, "position limit")

	select {
	case <-sink.got:
	case <-time.After(2 * time.Second):
		t.Fatal("alert not delivered")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.msgs, 1)
	assert.Contains(t, sink.msgs[0], "order.risk_rejected: position limit")
}

func TestMonitorNotConfigured(t *testing.T) {
	m := &Monitor{}
	assert.NotPanics(t, func() { m.Start(context.Background()) })
}

func TestMetricsRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordValidation("none")
	m.RecordValidation("unknown_symbol")
	m.RecordRisk("")
	m.RecordRisk("ORDER_VALUE")
	m.RecordStatusChange("PAUSED")
	m.RecordDispatch(true, 0.01)
	m.RecordDispatch(false, 0.02)
	m.RecordBusDrop()
	m.SetActiveStrategies(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("accepted", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("rejected", "unknown_symbol")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RiskDecisions.WithLabelValues("allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RiskDecisions.WithLabelValues("ORDER_VALUE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusChanges.WithLabelValues("PAUSED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatched.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatched.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BusDropped))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveStrategies))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DispatchLatency))

	n, err := testutil.GatherAndCount(reg, "quanta_validation_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordValidation("none")
		m.RecordRisk("")
		m.RecordDispatch(true, 1)
		m.RecordBusDrop()
		m.SetActiveStrategies(1)
	})
}
