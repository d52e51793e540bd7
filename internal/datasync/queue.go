package datasync

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a bounded FIFO of inbound batches. Producers block in Enqueue
// while it is full; the handler drains it with Next.
type Queue struct {
	ch        chan Batch
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue holding at most size pending batches.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		ch:   make(chan Batch, size),
		done: make(chan struct{}),
	}
}

// Enqueue appends a batch, waiting for room or for ctx to end.
func (q *Queue) Enqueue(ctx context.Context, b Batch) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- b:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the oldest pending batch. ok is false once ctx ends or the
// queue is closed and drained.
func (q *Queue) Next(ctx context.Context) (b Batch, ok bool) {
	select {
	case b = <-q.ch:
		return b, true
	default:
	}

	select {
	case b = <-q.ch:
		return b, true
	case <-ctx.Done():
		return nil, false
	case <-q.done:
		// Drain what was accepted before Close.
		select {
		case b = <-q.ch:
			return b, true
		default:
			return nil, false
		}
	}
}

// Len reports the number of pending batches.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting batches. Pending batches remain readable.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
