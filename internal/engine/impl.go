package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quanta-engine/internal/events"
	"quanta-engine/internal/monitor"
	"quanta-engine/internal/order"
	"quanta-engine/internal/risk"
	"quanta-engine/internal/strategy"
)

// Engine implements Service by composing the order, risk and strategy packages.
type Engine struct {
	vmu       sync.RWMutex // guards validator configuration
	validator *order.Validator

	risk     *risk.Validator
	ledgers  *risk.MultiUserLedger
	registry *strategy.Registry
	executor *order.Executor
	bus      *events.Bus
	metrics  *monitor.Metrics
	monitor  *monitor.Monitor

	log     *zap.Logger
	now     func() time.Time
	started time.Time

	maintainEvery time.Duration
	idleTTL       time.Duration
}

// New builds an engine. Call Start before submitting orders so the dispatch
// workers run; Submit still enqueues before Start, up to the queue size.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	bus := events.NewBus()
	metrics := monitor.NewMetrics(cfg.Registerer)
	bus.OnDrop = func(events.Event) { metrics.RecordBusDrop() }

	executor := order.NewExecutor(cfg.Executor, cfg.Broker, bus, log.Named("executor"))
	executor.OnResult(func(r order.ExecutionResult) {
		metrics.RecordDispatch(r.Success, r.Latency.Seconds())
	})

	e := &Engine{
		validator: order.NewValidator(order.WithLogger(log.Named("validator")), order.WithClock(now)),
		risk:      risk.NewValidator(cfg.Risk),
		ledgers:   risk.NewMultiUserLedger(log.Named("ledger"), now),
		registry: strategy.NewRegistry(
			strategy.WithLogger(log.Named("registry")),
			strategy.WithBus(bus),
			strategy.WithClock(now),
		),
		executor: executor,
		bus:      bus,
		metrics:  metrics,
		log:      log,
		now:      now,
		started:  now(),

		maintainEvery: cfg.MaintenanceInterval,
		idleTTL:       cfg.LedgerIdleTTL,
	}
	if e.maintainEvery <= 0 {
		e.maintainEvery = time.Minute
	}
	if cfg.LogAlerts {
		e.monitor = &monitor.Monitor{
			Bus:  bus,
			Sink: monitor.LogSink{Log: log.Named("alerts")},
			Log:  log,
		}
	}
	return e
}

// Bus exposes the event bus for subscribers.
func (e *Engine) Bus() *events.Bus { return e.bus }

// ApplySeed loads users and strategies from a seed file into the registry.
func (e *Engine) ApplySeed(seed *strategy.Seed, brokers func(userID string) any) error {
	err := seed.Apply(e.registry, brokers)
	e.refreshActive()
	return err
}

// Results exposes dispatch results.
func (e *Engine) Results() <-chan order.ExecutionResult { return e.executor.Results() }

// Start launches dispatch workers, ledger maintenance and the alert monitor.
// Cancelling ctx stops dispatch; queued orders are then reported as failed.
func (e *Engine) Start(ctx context.Context) {
	e.executor.Start(ctx)
	if e.monitor != nil {
		e.monitor.Start(ctx)
	}
	go e.maintain(ctx)
	e.log.Info("engine started")
}

// maintain rolls ledgers into a new trading day and drops idle flat ledgers.
func (e *Engine) maintain(ctx context.Context) {
	ticker := time.NewTicker(e.maintainEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runMaintenance()
		}
	}
}

func (e *Engine) runMaintenance() {
	rolled := e.ledgers.RollAll()
	removed := e.ledgers.CleanupIdle(e.idleTTL)
	if rolled > 0 || removed > 0 {
		e.log.Info("ledger maintenance", zap.Int("rolled", rolled), zap.Int("removed", removed))
	}
}

// Close stops accepting orders, dispatches the backlog (or reports it as
// failed when the start context is already cancelled) and stops the workers.
func (e *Engine) Close() {
	e.executor.Close()
	e.log.Info("engine stopped", zap.Uint64("dropped_events", e.bus.Dropped()))
}

// --- Registry ---

func (e *Engine) AddUser(id, name string, brokerAPI any) error {
	return e.registry.AddUser(id, name, brokerAPI)
}

func (e *Engine) AddStrategy(id, name, userID string, payload any) error {
	if err := e.registry.AddStrategy(id, name, userID, payload); err != nil {
		return err
	}
	e.refreshActive()
	return nil
}

func (e *Engine) GetStrategy(id string) (strategy.Strategy, error) {
	return e.registry.GetStrategy(id)
}

func (e *Engine) UpdateStatus(id string, status strategy.Status) error {
	if err := e.registry.UpdateStatus(id, status); err != nil {
		return err
	}
	e.metrics.RecordStatusChange(string(status))
	e.refreshActive()
	return nil
}

func (e *Engine) PauseStrategy(id string) error {
	return e.UpdateStatus(id, strategy.StatusPaused)
}

func (e *Engine) ResumeStrategy(id string) error {
	return e.UpdateStatus(id, strategy.StatusActive)
}

func (e *Engine) StopStrategy(id string) error {
	return e.UpdateStatus(id, strategy.StatusStopped)
}

func (e *Engine) ListActiveStrategies() ([]strategy.Strategy, error) {
	return e.registry.ListActiveStrategies()
}

func (e *Engine) ListUserStrategies(userID string) ([]strategy.Strategy, error) {
	return e.registry.ListUserStrategies(userID)
}

func (e *Engine) refreshActive() {
	active, err := e.registry.ListActiveStrategies()
	if err != nil {
		return
	}
	e.metrics.SetActiveStrategies(len(active))
}

// --- Validation rules ---

func (e *Engine) SetRule(t order.Type, rule order.ValidationRule) {
	e.vmu.Lock()
	defer e.vmu.Unlock()
	e.validator.SetRule(t, rule)
}

func (e *Engine) AddSymbol(symbol string) {
	e.vmu.Lock()
	defer e.vmu.Unlock()
	e.validator.AddSymbol(symbol)
}

func (e *Engine) SetMaxOrderAge(age *time.Duration) {
	e.vmu.Lock()
	defer e.vmu.Unlock()
	e.validator.SetMaxOrderAge(age)
}

// ConfigureValidator runs fn with exclusive access to the validator, e.g. to
// apply a rule file.
func (e *Engine) ConfigureValidator(fn func(*order.Validator) error) error {
	e.vmu.Lock()
	defer e.vmu.Unlock()
	return fn(e.validator)
}

// --- Orders ---

// Validate runs the rule checks only.
func (e *Engine) Validate(o order.Order) error {
	e.vmu.RLock()
	err := e.validator.Validate(o)
	e.vmu.RUnlock()

	e.recordValidation(o, err)
	return err
}

// Submit validates o, screens it against the owner's risk context and queues
// it for dispatch through the owner's broker handle.
func (e *Engine) Submit(ctx context.Context, strategyID string, o order.Order) (string, error) {
	s, err := e.activeStrategy(strategyID)
	if err != nil {
		return "", err
	}
	if err := e.Validate(o); err != nil {
		return "", err
	}
	if err := e.screen(s, o); err != nil {
		return "", err
	}
	return e.dispatch(ctx, s, o)
}

// SubmitBatch validates the whole batch, then screens and queues each order
// that passed. Failures are returned sorted by index; ticket ids follow the
// order of accepted entries.
func (e *Engine) SubmitBatch(ctx context.Context, strategyID string, orders []order.Order) ([]order.BatchFailure, []string, error) {
	s, err := e.activeStrategy(strategyID)
	if err != nil {
		return nil, nil, err
	}

	e.vmu.RLock()
	failures := e.validator.ValidateMultiple(orders)
	e.vmu.RUnlock()

	rejected := make(map[int]error, len(failures))
	for _, f := range failures {
		rejected[f.Index] = f.Err
	}

	var tickets []string
	for i, o := range orders {
		if verr, bad := rejected[i]; bad {
			e.recordValidation(o, verr)
			continue
		}
		e.recordValidation(o, nil)

		if err := e.screen(s, o); err != nil {
			failures = append(failures, order.BatchFailure{Index: i, Reason: err.Error(), Err: err})
			continue
		}
		id, err := e.dispatch(ctx, s, o)
		if err != nil {
			failures = append(failures, order.BatchFailure{Index: i, Reason: err.Error(), Err: err})
			continue
		}
		tickets = append(tickets, id)
	}

	slices.SortFunc(failures, func(a, b order.BatchFailure) int { return a.Index - b.Index })
	return failures, tickets, nil
}

// RecordFill feeds an executed trade back into the user's risk context.
func (e *Engine) RecordFill(userID string, f risk.Fill) {
	if f.Time.IsZero() {
		f.Time = e.now()
	}
	e.ledgers.ApplyFill(userID, f)
}

// ResetDaily clears every user's daily P&L counters immediately, e.g. after
// an operator reviews a daily-loss lockout.
func (e *Engine) ResetDaily() {
	e.ledgers.ResetDailyForAll()
	e.log.Warn("daily risk counters reset for all users")
}

// Ledger returns the risk ledger for userID, or nil if it has no fills.
func (e *Engine) Ledger(userID string) *risk.Ledger {
	return e.ledgers.Get(userID)
}

// Status reports registry, ledger and queue sizes.
func (e *Engine) Status() SystemStatus {
	st := SystemStatus{
		LedgerUsers:   e.ledgers.UserCount(),
		PendingOrders: e.executor.Pending(),
		DroppedEvents: e.bus.Dropped(),
		Uptime:        e.now().Sub(e.started),
		Ledgers:       e.ledgers.Snapshots(),
	}
	if users, strategies, err := e.registry.Len(); err == nil {
		st.Users, st.Strategies = users, strategies
	}
	if active, err := e.registry.ListActiveStrategies(); err == nil {
		st.ActiveStrategies = len(active)
	}
	return st
}

func (e *Engine) activeStrategy(id string) (strategy.Strategy, error) {
	s, err := e.registry.GetStrategy(id)
	if err != nil {
		return strategy.Strategy{}, err
	}
	if !s.IsActive() {
		return strategy.Strategy{}, fmt.Errorf("%w: %s is %s", ErrStrategyNotActive, id, s.Status)
	}
	return s, nil
}

func (e *Engine) recordValidation(o order.Order, err error) {
	e.metrics.RecordValidation(order.KindName(err))
	if err != nil {
		e.bus.Publish(events.EventOrderRejected, err)
		return
	}
	e.bus.Publish(events.EventOrderValidated, o)
}

func (e *Engine) screen(s strategy.Strategy, o order.Order) error {
	position, dailyPnL := e.ledgers.Context(s.UserID, o.Symbol)
	d := e.risk.Evaluate(o, position, dailyPnL)
	e.metrics.RecordRisk(string(d.Reason))
	if d.Allowed {
		return nil
	}

	rej := &RiskRejection{StrategyID: s.ID, UserID: s.UserID, Symbol: o.Symbol, Decision: d}
	e.log.Warn("order rejected by risk",
		zap.String("strategy_id", s.ID),
		zap.String("symbol", o.Symbol),
		zap.String("reason", string(d.Reason)),
		zap.String("detail", d.Detail),
	)
	e.bus.Publish(events.EventRiskRejected, rej)
	return rej
}

func (e *Engine) dispatch(ctx context.Context, s strategy.Strategy, o order.Order) (string, error) {
	o = o.Clone()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return e.executor.Submit(ctx, order.Ticket{
		StrategyID: s.ID,
		UserID:     s.UserID,
		Order:      o,
		Handle:     s.BrokerAPI(),
	})
}
