package frame

import "sync"

// Queue is a bounded FIFO of pending frames with a drop-oldest overflow
// policy. Push never blocks: when the queue is full the oldest entry is
// evicted to make room, so the queue always holds the most recent
// candidates. Pop blocks until an item is available or the queue is closed.
//
// This is the one concurrency-critical structure between a session's
// broadcast side (Push) and its flush goroutine (Pop).
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Frame // ring buffer, len == capacity
	head   int
	count  int
	closed bool

	dropped uint64
}

// DefaultQueueCapacity matches the send queue depth of the push client.
const DefaultQueueCapacity = 4

// NewQueue creates a queue with the given capacity. Capacities below 1
// fall back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	q := &Queue{items: make([]Frame, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a frame, evicting the oldest entry first when full.
// It reports whether an eviction happened. Pushing to a closed queue is a
// no-op.
func (q *Queue) Push(f Frame) (evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.count == len(q.items) {
		q.head = (q.head + 1) % len(q.items)
		q.count--
		q.dropped++
		evicted = true
	}
	q.items[(q.head+q.count)%len(q.items)] = f
	q.count++
	q.cond.Signal()
	return evicted
}

// Pop removes and returns the oldest frame, blocking while the queue is
// empty. ok is false once the queue has been closed.
func (q *Queue) Pop() (f Frame, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		return Frame{}, false
	}
	f = q.items[q.head]
	q.items[q.head] = Frame{}
	q.head = (q.head + 1) % len(q.items)
	q.count--
	return f, true
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Dropped returns the lifetime count of evicted frames.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close discards pending frames and wakes any blocked Pop. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for i := range q.items {
		q.items[i] = Frame{}
	}
	q.count = 0
	q.cond.Broadcast()
}
