// Package engine composes order validation, risk screening, the strategy
// registry and order dispatch behind a single API.
package engine

import (
	"context"

	"quanta-engine/internal/order"
	"quanta-engine/internal/risk"
	"quanta-engine/internal/strategy"
)

// Service defines the operations callers use to drive the engine.
type Service interface {
	// Registry
	AddUser(id, name string, brokerAPI any) error
	AddStrategy(id, name, userID string, payload any) error
	GetStrategy(id string) (strategy.Strategy, error)
	UpdateStatus(id string, status strategy.Status) error
	PauseStrategy(id string) error
	ResumeStrategy(id string) error
	StopStrategy(id string) error
	ListActiveStrategies() ([]strategy.Strategy, error)
	ListUserStrategies(userID string) ([]strategy.Strategy, error)

	// Validation rules
	SetRule(t order.Type, rule order.ValidationRule)
	AddSymbol(symbol string)
	ConfigureValidator(fn func(*order.Validator) error) error

	// Orders
	Validate(o order.Order) error
	Submit(ctx context.Context, strategyID string, o order.Order) (string, error)
	SubmitBatch(ctx context.Context, strategyID string, orders []order.Order) ([]order.BatchFailure, []string, error)
	RecordFill(userID string, f risk.Fill)
	ResetDaily()

	// System
	Status() SystemStatus
}

var _ Service = (*Engine)(nil)
