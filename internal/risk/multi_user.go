package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Snapshot is one user's ledger state.
type Snapshot struct {
	Positions map[string]float64 `json:"positions"`
	Metrics   Metrics            `json:"metrics"`
}

// MultiUserLedger keeps one Ledger per user.
type MultiUserLedger struct {
	mu       sync.RWMutex
	ledgers  map[string]*Ledger // userID -> Ledger
	lastSeen map[string]time.Time
	log      *zap.Logger
	now      func() time.Time
}

// NewMultiUserLedger creates an empty set of ledgers sharing the clock now
// (time.Now when nil).
func NewMultiUserLedger(logger *zap.Logger, now func() time.Time) *MultiUserLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &MultiUserLedger{
		ledgers:  make(map[string]*Ledger),
		lastSeen: make(map[string]time.Time),
		log:      logger,
		now:      now,
	}
}

// GetOrCreate returns the ledger for a user, creating it if needed.
func (m *MultiUserLedger) GetOrCreate(userID string) *Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.ledgers[userID]; ok {
		m.lastSeen[userID] = m.now()
		return l
	}

	l := NewLedger(m.log.With(zap.String("user_id", userID)), m.now)
	m.ledgers[userID] = l
	m.lastSeen[userID] = m.now()
	return l
}

// Get returns the ledger for a user, or nil if not found. It only refreshes
// activity for existing ledgers and never creates a new one.
func (m *MultiUserLedger) Get(userID string) *Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.ledgers[userID]; ok {
		m.lastSeen[userID] = m.now()
		return l
	}
	return nil
}

// Context returns the position for symbol and daily PnL of a user. Unknown
// users have a flat book.
func (m *MultiUserLedger) Context(userID, symbol string) (position, dailyPnL float64) {
	l := m.Get(userID)
	if l == nil {
		return 0, 0
	}
	return l.Position(symbol), l.DailyPnL()
}

// ApplyFill records a fill for a user.
func (m *MultiUserLedger) ApplyFill(userID string, f Fill) {
	m.GetOrCreate(userID).ApplyFill(f)
}

// Snapshots returns positions and metrics for every user without counting
// as activity.
func (m *MultiUserLedger) Snapshots() map[string]Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]Snapshot, len(m.ledgers))
	for userID, l := range m.ledgers {
		result[userID] = Snapshot{Positions: l.Positions(), Metrics: l.Metrics()}
	}
	return result
}

// UserCount returns the number of tracked users.
func (m *MultiUserLedger) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ledgers)
}

// RollAll starts a new day on every ledger whose day has passed and returns
// how many rolled.
func (m *MultiUserLedger) RollAll() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rolled := 0
	for _, l := range m.ledgers {
		if l.Roll() {
			rolled++
		}
	}
	return rolled
}

// ResetDailyForAll resets daily metrics for all users.
func (m *MultiUserLedger) ResetDailyForAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, l := range m.ledgers {
		l.ResetDaily()
	}
}

// CleanupIdle removes flat ledgers that have been idle longer than ttl.
// Ledgers holding a position are kept so risk limits still see it.
func (m *MultiUserLedger) CleanupIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for userID, t := range m.lastSeen {
		if t.Before(cutoff) && m.ledgers[userID].Flat() {
			delete(m.ledgers, userID)
			delete(m.lastSeen, userID)
			removed++
		}
	}
	return removed
}
