// Package cache holds concurrent in-memory books used on the order path.
package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// PositionBook stores signed net positions per symbol, sharded to keep
// lock contention low when many symbols are updated concurrently.
type PositionBook struct {
	shards [numShards]*positionShard
}

type positionShard struct {
	mu    sync.RWMutex
	items map[string]PositionEntry
}

// PositionEntry is a net position and the average entry price of the open side.
type PositionEntry struct {
	Quantity  float64
	AvgPrice  float64
	UpdatedAt time.Time
}

func NewPositionBook() *PositionBook {
	b := &PositionBook{}
	for i := 0; i < numShards; i++ {
		b.shards[i] = &positionShard{items: make(map[string]PositionEntry)}
	}
	return b
}

func (b *PositionBook) shard(symbol string) *positionShard {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return b.shards[h.Sum32()%numShards]
}

// Apply adds a signed fill to the symbol's position and returns the new entry.
// Average price is kept for the open side; it resets when the position flips.
// A position that closes is removed from the book.
func (b *PositionBook) Apply(symbol string, qty, price float64) PositionEntry {
	s := b.shard(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.items[symbol]
	next := cur.Quantity + qty
	if next == 0 {
		delete(s.items, symbol)
		return PositionEntry{UpdatedAt: time.Now()}
	}
	switch {
	case cur.Quantity == 0 || (cur.Quantity > 0) != (next > 0):
		cur.AvgPrice = price
	case (cur.Quantity > 0) == (qty > 0):
		cur.AvgPrice = (cur.AvgPrice*cur.Quantity + price*qty) / next
	}
	cur.Quantity = next
	cur.UpdatedAt = time.Now()
	s.items[symbol] = cur
	return cur
}

// Get returns the entry for symbol.
func (b *PositionBook) Get(symbol string) (PositionEntry, bool) {
	s := b.shard(symbol)
	s.mu.RLock()
	e, ok := s.items[symbol]
	s.mu.RUnlock()
	return e, ok
}

// Quantity returns the net position, zero when unknown.
func (b *PositionBook) Quantity(symbol string) float64 {
	e, _ := b.Get(symbol)
	return e.Quantity
}

// Len returns the number of open positions across all shards.
func (b *PositionBook) Len() int {
	total := 0
	for _, s := range b.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Snapshot returns a copy of all net positions.
func (b *PositionBook) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	for _, s := range b.shards {
		s.mu.RLock()
		for sym, e := range s.items {
			out[sym] = e.Quantity
		}
		s.mu.RUnlock()
	}
	return out
}
