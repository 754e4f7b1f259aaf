package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"quanta-engine/internal/engine"
	"quanta-engine/internal/order"
	"quanta-engine/internal/risk"
	"quanta-engine/internal/strategy"
	"quanta-engine/pkg/config"
	"quanta-engine/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var zl *zap.Logger
	if cfg.LogFile != "" {
		zl, err = logger.NewWithFile(cfg.LogLevel, cfg.LogFile)
	} else {
		zl, err = logger.New(cfg.LogLevel)
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng := engine.New(engine.Config{
		Risk: risk.Config{
			MaxPositionSize:  cfg.RiskMaxPositionSize,
			MaxDailyLoss:     cfg.RiskMaxDailyLoss,
			MaxOrderValue:    cfg.RiskMaxOrderValue,
			AbsoluteNotional: cfg.RiskAbsoluteNotional,
		},
		Executor: order.ExecutorConfig{
			Workers:    cfg.ExecutorWorkers,
			QueueSize:  cfg.OrderQueueSize,
			RatePerSec: cfg.ExecutorRatePerSec,
			Burst:      cfg.ExecutorBurst,
		},
		LedgerIdleTTL: cfg.LedgerIdleTTL,
		Logger:        zl,
		Registerer:    prometheus.DefaultRegisterer,
		LogAlerts:     true,
	})
	defer eng.Close()

	if err := loadRules(eng, cfg.RulesPath); err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if err := loadSeed(eng, cfg.SeedPath); err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for res := range eng.Results() {
			if res.Success {
				fmt.Println(res.Message)
			} else {
				fmt.Printf("Order %s failed: %v\n", res.TicketID, res.Err)
			}
		}
	}()

	eng.Start(ctx)
	if err := runExample(ctx, eng); err != nil {
		zl.Error("example run failed", zap.Error(err))
	}

	// Give the dispatch workers a moment, then drain.
	select {
	case <-ctx.Done():
		zl.Info("shutting down")
	case <-time.After(200 * time.Millisecond):
	}
	eng.Close()
	<-printed

	st := eng.Status()
	zl.Info("engine status",
		zap.Int("users", st.Users),
		zap.Int("strategies", st.Strategies),
		zap.Int("active_strategies", st.ActiveStrategies),
		zap.Int("ledger_users", st.LedgerUsers),
		zap.Uint64("dropped_events", st.DroppedEvents),
	)
	return nil
}

// loadRules applies a rule file, or the built-in LIMIT rule for AAPL when no
// file is configured.
func loadRules(eng *engine.Engine, path string) error {
	if path == "" {
		eng.SetRule(order.TypeLimit, order.NewValidationRule(1, 1000, 10, 500))
		eng.AddSymbol("AAPL")
		return nil
	}
	rf, err := config.LoadRules(path)
	if err != nil {
		return err
	}
	return eng.ConfigureValidator(rf.Apply)
}

func loadSeed(eng *engine.Engine, path string) error {
	if path == "" {
		return nil
	}
	seed, err := strategy.LoadSeed(path)
	if err != nil {
		return err
	}
	return eng.ApplySeed(seed, func(userID string) any { return "paper:" + userID })
}

func runExample(ctx context.Context, eng *engine.Engine) error {
	if err := eng.AddUser("user1", "John Doe", "paper:user1"); err != nil {
		return err
	}
	if err := eng.AddStrategy("strat1", "Moving Average Crossover", "user1", nil); err != nil {
		return err
	}
	if err := eng.AddUser("user2", "Jane Roe", "paper:user2"); err != nil {
		return err
	}
	if err := eng.AddStrategy("strat2", "RSI Reversal", "user2", nil); err != nil {
		return err
	}

	orders := []order.Order{
		order.NewOrder("AAPL", 100, order.TypeLimit, 150.0, time.Now(), nil),
		order.NewOrder("AAPL", 1, order.TypeLimit, 150.0, time.Now(), nil),
	}
	for _, o := range orders {
		_, err := eng.Submit(ctx, "strat1", o)
		var (
			verr *order.ValidationError
			rej  *engine.RiskRejection
		)
		switch {
		case err == nil:
			fmt.Printf("Order accepted: %s\n", o.Describe())
		case errors.As(err, &verr):
			fmt.Printf("Order validation failed: %v\n", verr)
		case errors.As(err, &rej):
			fmt.Printf("Order failed risk check: %s\n", rej.Decision.Detail)
		default:
			return err
		}
	}

	if err := eng.PauseStrategy("strat2"); err != nil {
		return err
	}
	active, err := eng.ListActiveStrategies()
	if err != nil {
		return err
	}
	fmt.Printf("Active strategies: %d\n", len(active))
	for _, s := range active {
		fmt.Printf("  %s (%s) owned by %s\n", s.Name, s.ID, s.User.Name)
	}
	return nil
}
