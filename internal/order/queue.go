package order

import (
	"context"
	"errors"
	"time"
)

// ErrQueueStopped is returned by Enqueue once the stop channel is closed.
var ErrQueueStopped = errors.New("queue stopped")

// Ticket is a validated order handed to the dispatch layer together with the
// opaque broker handle of the owning user.
type Ticket struct {
	ID         string
	StrategyID string
	UserID     string
	Order      Order
	Handle     any
	EnqueuedAt time.Time
}

// Queue buffers tickets before execution.
type Queue struct {
	ch chan Ticket
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 100
	}
	return &Queue{ch: make(chan Ticket, size)}
}

// Enqueue blocks until the ticket is buffered, stop is closed or ctx is done.
// A nil stop never fires.
func (q *Queue) Enqueue(ctx context.Context, stop <-chan struct{}, t Ticket) error {
	select {
	case q.ch <- t:
		return nil
	case <-stop:
		return ErrQueueStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Len() int {
	return len(q.ch)
}

// Close must only be called once no Enqueue can run concurrently.
func (q *Queue) Close() {
	close(q.ch)
}

// Drain hands every ticket to handler until the queue is closed and empty.
func (q *Queue) Drain(handler func(Ticket)) {
	for t := range q.ch {
		handler(t)
	}
}
