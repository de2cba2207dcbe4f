package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrEmpty is returned when Dequeue times out with nothing to hand out.
	ErrEmpty = errors.New("dispatch queue empty")
	// ErrClosed is returned once the queue has been closed.
	ErrClosed = errors.New("dispatch queue closed")
)

// Item is one frame awaiting processing.
type Item struct {
	SessionID string
	Index     uint32
	// Payload is the submission exactly as the producer sent it: the 4-byte
	// index prefix followed by the encoded image.
	Payload  []byte
	Attempts int
	Enqueued time.Time
}

// Stats is a point-in-time view of queue activity.
type Stats struct {
	Pending  int
	Enqueued uint64
	Requeued uint64
	Dequeued uint64
	Purged   uint64
}

// Queue is a mutex-guarded FIFO with a wakeup channel for blocked consumers.
// The zero value is not usable; call New.
type Queue struct {
	mu     sync.Mutex
	items  []Item
	notify chan struct{}
	done   chan struct{}
	closed bool
	stats  Stats
	now    func() time.Time
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Enqueue appends item to the back of the queue.
func (q *Queue) Enqueue(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if item.Enqueued.IsZero() {
		item.Enqueued = q.now()
	}
	q.items = append(q.items, item)
	q.stats.Enqueued++
	q.signalLocked()
	return nil
}

// Requeue returns an item whose worker failed to the back of the queue with
// its attempt count incremented.
func (q *Queue) Requeue(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	item.Attempts++
	item.Enqueued = q.now()
	q.items = append(q.items, item)
	q.stats.Requeued++
	q.signalLocked()
	return nil
}

// Dequeue removes the item at the front of the queue, waiting up to timeout
// for one to arrive. It returns ErrEmpty on timeout, ctx.Err() when ctx ends
// first, and ErrClosed after Close.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (Item, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		if item, ok, err := q.tryDequeue(); ok || err != nil {
			return item, err
		}
		if timeout <= 0 {
			return Item{}, ErrEmpty
		}
		select {
		case <-q.notify:
		case <-q.done:
			return Item{}, ErrClosed
		case <-expired:
			return Item{}, ErrEmpty
		case <-ctx.Done():
			return Item{}, ctx.Err()
		}
	}
}

func (q *Queue) tryDequeue() (Item, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return Item{}, false, ErrClosed
	}
	if len(q.items) == 0 {
		return Item{}, false, nil
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	q.stats.Dequeued++
	if len(q.items) > 0 {
		// Hand the wakeup on so another waiting consumer sees the rest.
		q.signalLocked()
	}
	return item, true, nil
}

// Purge drops every queued item belonging to sessionID and returns how many
// were removed. Items already handed to a worker are unaffected.
func (q *Queue) Purge(sessionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	removed := 0
	for _, item := range q.items {
		if item.SessionID == sessionID {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	clear(q.items[len(kept):])
	q.items = kept
	q.stats.Purged += uint64(removed)
	return removed
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns counters and the current depth.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := q.stats
	stats.Pending = len(q.items)
	return stats
}

// Close wakes every blocked consumer with ErrClosed and discards queued
// items. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}

func (q *Queue) signalLocked() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
