package queue

import (
	"context"
	"errors"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Queue represents a basic FIFO queue.
type Queue interface {
	Enqueue(item interface{}) error
	// Dequeue blocks until an item is available, the context is done or the queue is closed.
	Dequeue(ctx context.Context) (interface{}, error)
	Size() int
	Close()
}
