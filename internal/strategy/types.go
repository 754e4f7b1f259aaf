package strategy

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a strategy. Every transition is allowed,
// including re-activating a stopped strategy.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusPaused  Status = "PAUSED"
	StatusStopped Status = "STOPPED"
)

// ParseStatus accepts any casing of ACTIVE, PAUSED or STOPPED.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusPaused:
		return StatusPaused, nil
	case StatusStopped:
		return StatusStopped, nil
	}
	return "", fmt.Errorf("unknown strategy status %q", s)
}

// User owns strategies. BrokerAPI is an opaque handle shared, not owned, by
// every strategy of the user.
type User struct {
	ID        string
	Name      string
	BrokerAPI any
}

// Strategy is a user-owned trading program tracked by the Registry.
// Values handed out by the Registry are copies.
type Strategy struct {
	ID        string
	Name      string
	UserID    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time

	// Payload is the opaque strategy implementation passed through unchanged.
	Payload any
	// User is a snapshot of the owner taken when the strategy was added.
	User User
}

// BrokerAPI returns the owner's broker handle.
func (s Strategy) BrokerAPI() any {
	return s.User.BrokerAPI
}

// IsActive reports whether the strategy may submit orders.
func (s Strategy) IsActive() bool {
	return s.Status == StatusActive
}
