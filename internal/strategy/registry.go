package strategy

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"quanta-engine/internal/events"
)

// StatusChange is published on events.EventStrategyStatus. Seq increases
// with every applied update in the order the updates took effect.
type StatusChange struct {
	Seq        uint64
	StrategyID string
	UserID     string
	From       Status
	To         Status
	At         time.Time
}

// Registry stores users and their strategies. Each map has its own RWMutex:
// lookups share the read lock, writes take the write lock of the one map they
// change. AddStrategy reads users then writes strategies and never holds both
// locks at once; any future operation touching both maps must keep that order.
//
// Adding an id that already exists overwrites the previous entry.
type Registry struct {
	users      lockedMap[User]
	strategies lockedMap[Strategy]
	statusSeq  uint64 // guarded by the strategies lock

	log *zap.Logger
	bus *events.Bus
	now func() time.Time
}

// Option customises a Registry.
type Option func(*Registry)

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithBus publishes user, strategy and status events.
func WithBus(b *events.Bus) Option {
	return func(r *Registry) { r.bus = b }
}

// WithClock overrides the time source for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		users:      lockedMap[User]{name: "users", items: make(map[string]User)},
		strategies: lockedMap[Strategy]{name: "strategies", items: make(map[string]Strategy)},
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddUser registers a user, replacing any user with the same id.
func (r *Registry) AddUser(id, name string, brokerAPI any) error {
	u := User{ID: id, Name: name, BrokerAPI: brokerAPI}
	var replaced bool
	err := r.users.write(func(m map[string]User) {
		_, replaced = m[id]
		m[id] = u
	})
	if err != nil {
		return err
	}
	if replaced {
		r.log.Debug("user overwritten", zap.String("user_id", id))
	}
	r.bus.Publish(events.EventUserAdded, u)
	return nil
}

// GetUser returns a copy of the user.
func (r *Registry) GetUser(id string) (User, error) {
	var (
		u  User
		ok bool
	)
	if err := r.users.read(func(m map[string]User) { u, ok = m[id] }); err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return u, nil
}

// AddStrategy registers an ACTIVE strategy owned by userID. The user must
// exist; otherwise ErrUserNotFound is returned and nothing changes. The
// strategy keeps a snapshot of the user as it was at this moment.
func (r *Registry) AddStrategy(id, name, userID string, payload any) error {
	owner, err := r.GetUser(userID)
	if err != nil {
		return err
	}
	// users read lock released above; only now take the strategies write lock.

	var s Strategy
	var replaced bool
	err = r.strategies.write(func(m map[string]Strategy) {
		now := r.now()
		s = Strategy{
			ID:        id,
			Name:      name,
			UserID:    userID,
			Status:    StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
			Payload:   payload,
			User:      owner,
		}
		_, replaced = m[id]
		m[id] = s
	})
	if err != nil {
		return err
	}
	if replaced {
		r.log.Debug("strategy overwritten", zap.String("strategy_id", id))
	}
	r.log.Info("strategy added",
		zap.String("strategy_id", id),
		zap.String("name", name),
		zap.String("user_id", userID),
	)
	r.bus.Publish(events.EventStrategyAdded, s)
	return nil
}

// GetStrategy returns a copy of the strategy.
func (r *Registry) GetStrategy(id string) (Strategy, error) {
	var (
		s  Strategy
		ok bool
	)
	if err := r.strategies.read(func(m map[string]Strategy) { s, ok = m[id] }); err != nil {
		return Strategy{}, err
	}
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
	}
	return s, nil
}

// UpdateStatus sets the status and refreshes UpdatedAt in one write.
// The event is published after the lock is released, so concurrent updates
// can reach subscribers out of order; StatusChange.Seq gives the applied order.
func (r *Registry) UpdateStatus(id string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var (
		change StatusChange
		found  bool
	)
	err := r.strategies.write(func(m map[string]Strategy) {
		s, ok := m[id]
		if !ok {
			return
		}
		found = true
		r.statusSeq++
		change = StatusChange{Seq: r.statusSeq, StrategyID: id, UserID: s.UserID, From: s.Status, To: status}
		s.Status = status
		s.UpdatedAt = r.now()
		change.At = s.UpdatedAt
		m[id] = s
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
	}

	r.log.Info("strategy status updated",
		zap.String("strategy_id", id),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)),
	)
	r.bus.Publish(events.EventStrategyStatus, change)
	return nil
}

// ListActiveStrategies returns copies of every ACTIVE strategy in no particular order.
func (r *Registry) ListActiveStrategies() ([]Strategy, error) {
	return r.filter(func(s Strategy) bool { return s.Status == StatusActive })
}

// ListUserStrategies returns copies of every strategy owned by userID in no particular order.
func (r *Registry) ListUserStrategies(userID string) ([]Strategy, error) {
	return r.filter(func(s Strategy) bool { return s.UserID == userID })
}

// Len returns the number of users and strategies.
func (r *Registry) Len() (users, strategies int, err error) {
	if err = r.users.read(func(m map[string]User) { users = len(m) }); err != nil {
		return 0, 0, err
	}
	if err = r.strategies.read(func(m map[string]Strategy) { strategies = len(m) }); err != nil {
		return 0, 0, err
	}
	return users, strategies, nil
}

func (r *Registry) filter(keep func(Strategy) bool) ([]Strategy, error) {
	var out []Strategy
	err := r.strategies.read(func(m map[string]Strategy) {
		for _, s := range m {
			if keep(s) {
				out = append(out, s)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockedMap is a map guarded by an RWMutex. A panic inside a write leaves the
// map poisoned: that call and every later one fail with ErrConcurrencyFault.
type lockedMap[V any] struct {
	name     string
	mu       sync.RWMutex
	items    map[string]V
	poisoned atomic.Bool
}

func (l *lockedMap[V]) read(fn func(map[string]V)) (err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.poisoned.Load() {
		return l.poisonedErr()
	}
	defer l.recoverFault(&err, false)
	fn(l.items)
	return nil
}

func (l *lockedMap[V]) write(fn func(map[string]V)) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.poisoned.Load() {
		return l.poisonedErr()
	}
	defer l.recoverFault(&err, true)
	fn(l.items)
	return nil
}

func (l *lockedMap[V]) recoverFault(err *error, poison bool) {
	if p := recover(); p != nil {
		if poison {
			l.poisoned.Store(true)
		}
		*err = fmt.Errorf("%w: panic in %s map: %v", ErrConcurrencyFault, l.name, p)
	}
}

func (l *lockedMap[V]) poisonedErr() error {
	return fmt.Errorf("%w: %s map poisoned", ErrConcurrencyFault, l.name)
}
