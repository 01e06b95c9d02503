// queue package

package queue

import (
	"context"
	"sync"
)

// InMemoryQueue implements an in-memory queue.
type InMemoryQueue struct {
	items  []interface{}
	size   int
	lock   sync.Mutex
	notify chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewInMemoryQueue creates a new queue holding at most size items.
// A size of 0 makes the queue unbounded.
func NewInMemoryQueue(size int) *InMemoryQueue {
	return &InMemoryQueue{
		size:   size,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Enqueue adds an item to the end of the queue.
func (q *InMemoryQueue) Enqueue(item interface{}) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	if q.size > 0 && len(q.items) >= q.size {
		return ErrQueueFull
	}
	q.items = append(q.items, item)
	q.signal()
	return nil
}

// Dequeue removes and returns the item from the front of the queue.
// Items enqueued before Close are still returned.
func (q *InMemoryQueue) Dequeue(ctx context.Context) (interface{}, error) {
	for {
		q.lock.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.signal()
			}
			q.lock.Unlock()
			return item, nil
		}
		q.lock.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.closed:
			q.lock.Lock()
			empty := len(q.items) == 0
			q.lock.Unlock()
			if empty {
				return nil, ErrQueueClosed
			}
		case <-q.notify:
		}
	}
}

// signal wakes one waiting consumer. The lock must be held.
func (q *InMemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Size returns the current size of the queue.
func (q *InMemoryQueue) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}

// Close rejects further items and wakes blocked consumers once the queue is drained.
func (q *InMemoryQueue) Close() {
	q.once.Do(func() {
		q.lock.Lock()
		defer q.lock.Unlock()
		close(q.closed)
	})
}
