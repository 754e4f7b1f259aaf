package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quanta-engine/internal/events"
)

// ErrExecutorClosed is returned by Submit after Close.
var ErrExecutorClosed = errors.New("executor closed")

// Broker forwards an order to the venue behind handle. The handle is the
// opaque broker value registered with the owning user.
type Broker func(ctx context.Context, handle any, o Order) (string, error)

// DryRunBroker never leaves the process; it reports what would have been sent.
func DryRunBroker(_ context.Context, _ any, o Order) (string, error) {
	return "Executed order: " + o.Describe(), nil
}

// ExecutionResult represents the outcome of a dispatched ticket.
type ExecutionResult struct {
	TicketID   string        `json:"ticket_id"`
	StrategyID string        `json:"strategy_id"`
	Symbol     string        `json:"symbol"`
	Success    bool          `json:"success"`
	Message    string        `json:"message,omitempty"`
	Err        error         `json:"-"`
	Latency    time.Duration `json:"latency"`
	Timestamp  time.Time     `json:"timestamp"`
}

// ExecutorConfig sizes the dispatch pipeline.
type ExecutorConfig struct {
	Workers      int
	QueueSize    int
	ResultBuffer int
	RatePerSec   float64 // <= 0 means unlimited
	Burst        int
}

// Executor drains the ticket queue with a pool of workers, paced by a rate
// limiter, and hands each ticket to the broker. Every accepted ticket ends in
// exactly one ExecutionResult, including tickets discarded at shutdown.
type Executor struct {
	queue   *Queue
	broker  Broker
	limiter *rate.Limiter
	workers int
	bus     *events.Bus
	log     *zap.Logger

	resultCh chan ExecutionResult
	observe  func(ExecutionResult)

	// mu keeps Submit's send and queue.Close apart. stop is closed before mu
	// is taken for writing so blocked senders let go of the read lock.
	mu        sync.RWMutex
	closed    bool
	started   bool
	runCtx    context.Context
	stop      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewExecutor(cfg ExecutorConfig, broker Broker, bus *events.Bus, logger *zap.Logger) *Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ResultBuffer <= 0 {
		cfg.ResultBuffer = 100
	}
	if broker == nil {
		broker = DryRunBroker
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		if burst <= 0 {
			burst = 1
		}
	}
	return &Executor{
		queue:    NewQueue(cfg.QueueSize),
		broker:   broker,
		limiter:  rate.NewLimiter(limit, burst),
		workers:  cfg.Workers,
		bus:      bus,
		log:      logger,
		resultCh: make(chan ExecutionResult, cfg.ResultBuffer),
		stop:     make(chan struct{}),
	}
}

// OnResult registers a hook invoked for every result (used for metrics).
// Call before Start.
func (e *Executor) OnResult(fn func(ExecutionResult)) {
	e.observe = fn
}

// Start launches the worker pool. It is a no-op when already started or
// closed. Cancelling ctx stops the executor: Submit fails from then on and
// queued tickets are reported as failed instead of dispatched.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true
	e.runCtx = ctx
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.queue.Drain(func(t Ticket) {
				if err := ctx.Err(); err != nil {
					e.discard(t, err)
					return
				}
				e.handle(ctx, t)
			})
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
			e.log.Warn("dispatch context cancelled, failing queued tickets",
				zap.Int("pending", e.queue.Len()))
			e.shutdown()
		case <-e.stop:
		}
	}()
}

// Submit enqueues an order for dispatch and returns its ticket id. It fails
// with ErrExecutorClosed after Close or once the Start context is done.
func (e *Executor) Submit(ctx context.Context, t Ticket) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed || (e.runCtx != nil && e.runCtx.Err() != nil) {
		return "", ErrExecutorClosed
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.EnqueuedAt = time.Now()
	if err := e.queue.Enqueue(ctx, e.stop, t); err != nil {
		if errors.Is(err, ErrQueueStopped) {
			return "", ErrExecutorClosed
		}
		return "", fmt.Errorf("enqueue ticket %s: %w", t.ID, err)
	}
	e.bus.Publish(events.EventOrderQueued, t)
	return t.ID, nil
}

// Results returns the result channel. Results are dropped when it is full.
func (e *Executor) Results() <-chan ExecutionResult {
	return e.resultCh
}

// Pending returns the number of tickets waiting in the queue.
func (e *Executor) Pending() int {
	return e.queue.Len()
}

// Close stops accepting tickets, waits for the workers to work through the
// backlog and closes Results. Tickets nobody dispatched (never started, or
// the Start context was cancelled) get a failed result.
func (e *Executor) Close() {
	e.shutdown()
	e.wg.Wait()
	e.queue.Drain(func(t Ticket) { e.discard(t, ErrExecutorClosed) })
	e.closeOnce.Do(func() { close(e.resultCh) })
}

func (e *Executor) shutdown() {
	e.stopOnce.Do(func() {
		close(e.stop)
		e.mu.Lock()
		e.closed = true
		e.queue.Close()
		e.mu.Unlock()
	})
}

func (e *Executor) handle(ctx context.Context, t Ticket) {
	start := time.Now()
	res := ExecutionResult{
		TicketID:   t.ID,
		StrategyID: t.StrategyID,
		Symbol:     t.Order.Symbol,
	}

	err := e.limiter.Wait(ctx)
	if err == nil {
		res.Message, err = e.broker(ctx, t.Handle, t.Order)
	}
	res.Success = err == nil
	res.Err = err
	res.Latency = time.Since(start)
	res.Timestamp = time.Now()

	if err != nil {
		e.log.Error("order dispatch failed",
			zap.String("ticket", t.ID),
			zap.String("strategy", t.StrategyID),
			zap.String("symbol", t.Order.Symbol),
			zap.Error(err),
		)
		e.bus.Publish(events.EventOrderFailed, res)
	} else {
		e.log.Info("order dispatched",
			zap.String("ticket", t.ID),
			zap.String("strategy", t.StrategyID),
			zap.String("message", res.Message),
			zap.Duration("latency", res.Latency),
		)
		e.bus.Publish(events.EventOrderExecuted, res)
	}
	e.deliver(res)
}

// discard reports a queued ticket that will never reach the broker.
func (e *Executor) discard(t Ticket, cause error) {
	err := fmt.Errorf("ticket %s not dispatched: %w", t.ID, ErrExecutorClosed)
	if !errors.Is(cause, ErrExecutorClosed) {
		err = fmt.Errorf("ticket %s not dispatched: %w: %w", t.ID, ErrExecutorClosed, cause)
	}
	res := ExecutionResult{
		TicketID:   t.ID,
		StrategyID: t.StrategyID,
		Symbol:     t.Order.Symbol,
		Err:        err,
		Latency:    time.Since(t.EnqueuedAt),
		Timestamp:  time.Now(),
	}
	e.log.Warn("queued order discarded",
		zap.String("ticket", t.ID),
		zap.String("strategy", t.StrategyID),
		zap.String("symbol", t.Order.Symbol),
		zap.Error(cause),
	)
	e.bus.Publish(events.EventOrderFailed, res)
	e.deliver(res)
}

func (e *Executor) deliver(res ExecutionResult) {
	if e.observe != nil {
		e.observe(res)
	}
	select {
	case e.resultCh <- res:
	default:
		e.log.Warn("result channel full, dropping result", zap.String("ticket", res.TicketID))
	}
}
