package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quanta-engine/internal/events"
)

// AlertSink delivers alert text somewhere a human will see it.
type AlertSink interface {
	Send(message string) error
}

// LogSink writes alerts to a zap logger at warn level.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Send(message string) error {
	s.Log.Warn("alert", zap.String("message", message))
	return nil
}

// Monitor watches rejection and failure events on the bus and turns them
// into alerts.
type Monitor struct {
	Bus    *events.Bus
	Sink   AlertSink
	Log    *zap.Logger
	Topics []events.Event
}

// DefaultTopics are the events that raise alerts.
var DefaultTopics = []events.Event{
	events.EventRiskRejected,
	events.EventOrderFailed,
}

// Start subscribes and forwards alerts until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	log := m.Log
	if log == nil {
		log = zap.NewNop()
	}
	if m.Bus == nil || m.Sink == nil {
		log.Info("monitor not fully configured; skipping")
		return
	}
	topics := m.Topics
	if len(topics) == 0 {
		topics = DefaultTopics
	}

	for _, topic := range topics {
		stream, unsub := m.Bus.Subscribe(topic, 50)
		go func() {
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					if err := m.Sink.Send(FormatAlert(msg)); err != nil {
						log.Error("alert delivery failed", zap.Error(err))
					}
				}
			}
		}()
	}
}

// FormatAlert renders a bus message as one line of alert text.
func FormatAlert(msg events.Message) string {
	at := msg.At
	if at.IsZero() {
		at = time.Now()
	}
	return "[" + at.UTC().Format(time.RFC3339) + "] " + string(msg.Topic) + ": " + describe(msg.Payload)
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	case nil:
		return "alert triggered"
	default:
		return fmt.Sprintf("%+v", t)
	}
}
