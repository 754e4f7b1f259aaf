package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"quanta-engine/internal/order"
	"quanta-engine/internal/risk"
)

var (
	// ErrStrategyNotActive is returned when orders arrive for a PAUSED or STOPPED strategy.
	ErrStrategyNotActive = errors.New("strategy not active")
	// ErrRiskRejected is the sentinel every *RiskRejection unwraps to.
	ErrRiskRejected = errors.New("order rejected by risk check")
)

// RiskRejection reports which risk check stopped an order.
type RiskRejection struct {
	StrategyID string
	UserID     string
	Symbol     string
	Decision   risk.Decision
}

func (r *RiskRejection) Error() string {
	return fmt.Sprintf("risk rejected %s for strategy %s: %s (%s)",
		r.Symbol, r.StrategyID, r.Decision.Reason, r.Decision.Detail)
}

func (r *RiskRejection) Unwrap() error { return ErrRiskRejected }

// Config holds the dependencies and tunables for New.
type Config struct {
	Risk     risk.Config
	Executor order.ExecutorConfig
	Broker   order.Broker // nil uses order.DryRunBroker

	Logger     *zap.Logger
	Registerer prometheus.Registerer // nil keeps metrics unregistered
	Clock      func() time.Time

	// MaintenanceInterval paces ledger day rollover and idle cleanup
	// (default one minute). LedgerIdleTTL <= 0 keeps idle ledgers.
	MaintenanceInterval time.Duration
	LedgerIdleTTL       time.Duration

	// Alerts on risk rejections and dispatch failures are logged when true.
	LogAlerts bool
}

// SystemStatus is a point-in-time view of the engine.
type SystemStatus struct {
	Users            int           `json:"users"`
	Strategies       int           `json:"strategies"`
	ActiveStrategies int           `json:"active_strategies"`
	LedgerUsers      int           `json:"ledger_users"`
	PendingOrders    int           `json:"pending_orders"`
	DroppedEvents    uint64        `json:"dropped_events"`
	Uptime           time.Duration `json:"uptime"`

	Ledgers map[string]risk.Snapshot `json:"ledgers"`
}
