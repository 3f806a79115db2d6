package engine

import "sync"

// workQueue is a thread-safe FIFO queue of items.
//
// The controller's dispatcher is the only consumer. Enqueue is safe from
// any goroutine so steps may hand items back while others run.
type workQueue struct {
	mu     sync.Mutex
	items  []*Item
	closed bool
}

func newWorkQueue(capacity int) *workQueue {
	return &workQueue{items: make([]*Item, 0, capacity)}
}

// Enqueue adds an item to the back of the queue.
// Returns false if the queue is closed.
func (q *workQueue) Enqueue(it *Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, it)
	return true
}

// TryDequeue removes and returns the front item without blocking.
func (q *workQueue) TryDequeue() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	it := q.items[0]

	// Nil out the slot so the backing array does not retain the item.
	q.items[0] = nil

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return it, true
}

// Len returns the current queue length.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further Enqueue calls and returns what is still queued.
func (q *workQueue) Close() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	rest := q.items
	q.items = nil
	return rest
}
