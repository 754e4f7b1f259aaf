package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quanta-engine/internal/order"
	"quanta-engine/internal/risk"
)

func newStressEngine(broker order.Broker) *Engine {
	e := New(Config{
		Risk:     risk.Config{MaxPositionSize: 1e6, MaxDailyLoss: 1e6, MaxOrderValue: 1e9},
		Executor: order.ExecutorConfig{Workers: 8, QueueSize: 256},
		Broker:   broker,
	})
	e.SetRule(order.TypeLimit, order.NewValidationRule(0.001, 1e6, 1, 1e6))
	e.AddSymbol("BTCUSDT")
	return e
}

// BenchmarkSubmitParallel measures validation, risk screening and enqueue
// across many users.
func BenchmarkSubmitParallel(b *testing.B) {
	e := newStressEngine(nil)
	for u := 0; u < 100; u++ {
		userID := fmt.Sprintf("user-%d", u)
		if err := e.AddUser(userID, userID, nil); err != nil {
			b.Fatal(err)
		}
		if err := e.AddStrategy("strat-"+userID, "bench", userID, nil); err != nil {
			b.Fatal(err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	go func() {
		for range e.Results() {
		}
	}()
	defer e.Close()

	o := order.NewOrder("BTCUSDT", 0.01, order.TypeLimit, 50000, time.Now(), nil)
	var n atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := n.Add(1)
			if _, err := e.Submit(ctx, fmt.Sprintf("strat-user-%d", i%100), o); err != nil {
				b.Errorf("Submit failed: %v", err)
			}
		}
	})
}

// BenchmarkPerUserLedger benchmarks concurrent ledger access.
func BenchmarkPerUserLedger(b *testing.B) {
	ledgers := risk.NewMultiUserLedger(nil, nil)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			userID := fmt.Sprintf("user-%d", i%100)
			ledgers.ApplyFill(userID, risk.Fill{Symbol: "BTCUSDT", Quantity: 0.01, Price: 50000})
			_, _ = ledgers.Context(userID, "BTCUSDT")
			i++
		}
	})
}

// TestConcurrentMultiUserLoad submits from many users while their strategies
// are paused and resumed, then checks every accepted order reached the broker
// and that fills stayed isolated per user.
func TestConcurrentMultiUserLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	var brokered atomic.Int64
	e := newStressEngine(func(_ context.Context, _ any, o order.Order) (string, error) {
		brokered.Add(1)
		return o.Describe(), nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	go func() {
		for range e.Results() {
		}
	}()

	const numUsers = 50
	const ordersPerUser = 200

	for u := 0; u < numUsers; u++ {
		userID := fmt.Sprintf("stress-user-%d", u)
		if err := e.AddUser(userID, userID, nil); err != nil {
			t.Fatalf("AddUser: %v", err)
		}
		if err := e.AddStrategy("strat-"+userID, "stress", userID, nil); err != nil {
			t.Fatalf("AddStrategy: %v", err)
		}
	}

	var wg sync.WaitGroup
	var accepted, refused int64
	start := time.Now()

	for u := 0; u < numUsers; u++ {
		wg.Add(2)
		userID := fmt.Sprintf("stress-user-%d", u)
		stratID := "strat-" + userID

		go func() {
			defer wg.Done()
			for i := 0; i < ordersPerUser; i++ {
				o := order.NewOrder("BTCUSDT", 0.01, order.TypeLimit, 50000+float64(i), time.Now(), nil)
				if _, err := e.Submit(ctx, stratID, o); err != nil {
					atomic.AddInt64(&refused, 1)
				} else {
					atomic.AddInt64(&accepted, 1)
				}
				e.RecordFill(userID, risk.Fill{Symbol: "BTCUSDT", Quantity: 0.01, Price: 50000})
			}
		}()

		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if err := e.PauseStrategy(stratID); err != nil {
					t.Errorf("PauseStrategy: %v", err)
				}
				if err := e.ResumeStrategy(stratID); err != nil {
					t.Errorf("ResumeStrategy: %v", err)
				}
			}
		}()
	}

	wg.Wait()
	e.Close()
	elapsed := time.Since(start)

	t.Logf("Users: %d, Orders per user: %d", numUsers, ordersPerUser)
	t.Logf("Accepted: %d, Refused while paused: %d", accepted, refused)
	t.Logf("Duration: %v", elapsed)

	if accepted+refused != numUsers*ordersPerUser {
		t.Errorf("expected %d outcomes, got %d", numUsers*ordersPerUser, accepted+refused)
	}
	if brokered.Load() != accepted {
		t.Errorf("broker saw %d orders, accepted %d", brokered.Load(), accepted)
	}

	for u := 0; u < numUsers; u++ {
		l := e.Ledger(fmt.Sprintf("stress-user-%d", u))
		if l == nil {
			t.Fatalf("missing ledger for user %d", u)
		}
		want := 0.01 * ordersPerUser
		if got := l.Position("BTCUSDT"); got < want-1e-6 || got > want+1e-6 {
			t.Errorf("user %d position = %v, want %v", u, got, want)
		}
	}

	if st := e.Status(); st.ActiveStrategies != numUsers {
		t.Errorf("active strategies = %d, want %d", st.ActiveStrategies, numUsers)
	}
}
