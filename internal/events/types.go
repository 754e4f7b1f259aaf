package events

import "time"

// Event enumerates the topics published inside the engine.
type Event string

const (
	EventOrderValidated Event = "order.validated"
	EventOrderRejected  Event = "order.rejected"
	EventRiskRejected   Event = "order.risk_rejected"
	EventOrderQueued    Event = "order.queued"
	EventOrderExecuted  Event = "order.executed"
	EventOrderFailed    Event = "order.failed"
	EventStrategyAdded  Event = "strategy.added"
	EventStrategyStatus Event = "strategy.status"
	EventUserAdded      Event = "user.added"
)

// Message is what subscribers receive.
type Message struct {
	Topic   Event
	Payload any
	At      time.Time
}
