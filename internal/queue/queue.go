// Package queue provides the FIFO channel that carries messages between the
// pipeline workers.
package queue

import "sync"

type node[T any] struct {
	item T
	next *node[T]
}

// Queue is an unbounded, thread-safe FIFO queue. Any number of goroutines may
// put and take items concurrently; every item is handed to exactly one taker.
//
// Put never blocks the producer and TryGet never blocks the consumer, so a
// worker polling the queue can keep checking its controller between attempts.
type Queue[T any] struct {
	mu   sync.Mutex
	head *node[T]
	tail *node[T]
	size int
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Put appends an item to the end of the queue.
func (q *Queue[T]) Put(item T) {
	n := &node[T]{item: item}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.size++
}

// TryGet removes and returns the item at the front of the queue. The boolean
// is false when the queue is empty.
func (q *Queue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == nil {
		var zero T
		return zero, false
	}

	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.size--

	return n.item, true
}

// IsEmpty returns true if the queue holds no items.
func (q *Queue[T]) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size == 0
}

// Len returns the current number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Drain removes and returns all queued items in FIFO order.
// Returns nil if the queue is empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil
	}

	items := make([]T, 0, q.size) // Preallocate with capacity
	for n := q.head; n != nil; n = n.next {
		items = append(items, n.item)
	}

	q.head = nil
	q.tail = nil
	q.size = 0
	return items
}
