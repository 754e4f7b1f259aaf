package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Bus is a lightweight in-process pub/sub broker using channels.
// Publish never blocks: a full subscriber channel drops the message.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Event][]chan Message
	dropped atomic.Uint64

	// OnDrop, if set, is called for every dropped message.
	OnDrop func(Event)
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan Message)}
}

// Subscribe registers a listener for an event and returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Message, buffer)
	b.subs[e] = append(b.subs[e], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[e]
			for i, c := range subs {
				if c == ch {
					close(c)
					b.subs[e] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		})
	}

	return ch, unsub
}

// Publish fans the payload out to subscribers and returns how many received it.
// A nil bus is a no-op.
func (b *Bus) Publish(e Event, payload any) int {
	if b == nil {
		return 0
	}
	msg := Message{Topic: e, Payload: payload, At: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, ch := range b.subs[e] {
		select {
		case ch <- msg:
			delivered++
		default:
			b.dropped.Add(1)
			if b.OnDrop != nil {
				b.OnDrop(e)
			}
		}
	}
	return delivered
}

// Dropped returns the number of messages dropped because a subscriber was slow.
func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
