package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"quanta-engine/pkg/cache"
)

// Ledger supplies the position and P&L context the Validator needs: net
// position per symbol plus realised daily and cumulative performance.
// Trading days are UTC calendar days.
type Ledger struct {
	positions *cache.PositionBook

	mu      sync.RWMutex
	metrics Metrics
	day     string
	log     *zap.Logger
	now     func() time.Time
}

// NewLedger creates a ledger. now defaults to time.Now.
func NewLedger(logger *zap.Logger, now func() time.Time) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		positions: cache.NewPositionBook(),
		day:       dayOf(now()),
		log:       logger,
		now:       now,
	}
}

func dayOf(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// ApplyFill records a fill: the position moves by the signed quantity and the
// realised PnL (already net of fees) is added to the daily and total figures.
// A fill dated before the current day only counts toward the totals.
func (l *Ledger) ApplyFill(f Fill) {
	if f.Symbol != "" && f.Quantity != 0 {
		l.positions.Apply(f.Symbol, f.Quantity, f.Price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollLocked(dayOf(l.now()))
	fillDay := l.day
	if !f.Time.IsZero() {
		fillDay = dayOf(f.Time)
		l.rollLocked(fillDay)
	}

	net := f.PnL
	if fillDay == l.day {
		l.metrics.DailyTrades++
		l.metrics.DailyPnL += net
		if net < 0 {
			l.metrics.DailyLosses += -net
		}
	}

	l.metrics.TotalRealizedPnL += net
	if l.metrics.TotalRealizedPnL > l.metrics.MaxProfit {
		l.metrics.MaxProfit = l.metrics.TotalRealizedPnL
	}
	if dd := l.metrics.MaxProfit - l.metrics.TotalRealizedPnL; dd > l.metrics.MaxDrawdown {
		l.metrics.MaxDrawdown = dd
	}
}

// Position returns the net position for symbol.
func (l *Ledger) Position(symbol string) float64 {
	return l.positions.Quantity(symbol)
}

// Positions returns a snapshot of all net positions.
func (l *Ledger) Positions() map[string]float64 {
	return l.positions.Snapshot()
}

// Flat reports whether every position is closed.
func (l *Ledger) Flat() bool {
	return l.positions.Len() == 0
}

// DailyPnL returns realised PnL for the current day.
func (l *Ledger) DailyPnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollLocked(dayOf(l.now()))
	return l.metrics.DailyPnL
}

// Metrics returns a snapshot for the current day.
func (l *Ledger) Metrics() Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollLocked(dayOf(l.now()))
	return l.metrics
}

// Roll starts a new day if the clock has passed the current one. It reports
// whether the daily counters were cleared.
func (l *Ledger) Roll() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rollLocked(dayOf(l.now()))
}

// ResetDaily clears the daily counters regardless of the date.
func (l *Ledger) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetDailyLocked(dayOf(l.now()))
}

// rollLocked only moves forward; DateOnly strings order lexically.
func (l *Ledger) rollLocked(day string) bool {
	if day <= l.day {
		return false
	}
	l.resetDailyLocked(day)
	return true
}

func (l *Ledger) resetDailyLocked(day string) {
	l.log.Info("daily risk metrics reset",
		zap.String("previous_day", l.day),
		zap.String("day", day),
		zap.Float64("daily_pnl", l.metrics.DailyPnL),
		zap.Int("daily_trades", l.metrics.DailyTrades),
		zap.Float64("daily_losses", l.metrics.DailyLosses),
	)
	l.metrics.DailyPnL = 0
	l.metrics.DailyTrades = 0
	l.metrics.DailyLosses = 0
	l.day = day
}
