// Package pqueue implements a fixed-capacity binary heap whose items remember
// their own slot, so membership checks and priority changes are O(1) and
// O(log n) respectively.
package pqueue

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCapacity = errors.New("invalid queue configuration")
	ErrEmpty           = errors.New("queue is empty")
	ErrNotQueued       = errors.New("item is not queued")
)

// Item is stored in a Queue. HeapIndex returns 0 while the item is not queued.
type Item interface {
	comparable
	HeapIndex() int
	SetHeapIndex(int)
}

// Queue is a 1-indexed binary heap ordered by a better-than comparator.
type Queue[T Item] struct {
	items  []T
	count  int
	better func(a, b T) bool
}

// New allocates a queue that can hold up to capacity items. better reports
// whether a should leave the queue before b.
func New[T Item](capacity int, better func(a, b T) bool) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d must be positive", ErrInvalidCapacity, capacity)
	}
	if better == nil {
		return nil, fmt.Errorf("%w: comparator is required", ErrInvalidCapacity)
	}
	return &Queue[T]{
		items:  make([]T, capacity+1),
		better: better,
	}, nil
}

func (q *Queue[T]) Len() int {
	return q.count
}

func (q *Queue[T]) Cap() int {
	return len(q.items) - 1
}

// Enqueue adds item to the heap. Exceeding the capacity is a programming
// error and panics.
func (q *Queue[T]) Enqueue(item T) {
	if q.count >= q.Cap() {
		panic(fmt.Sprintf("pqueue: enqueue beyond capacity (count=%d cap=%d)", q.count, q.Cap()))
	}
	q.count++
	q.items[q.count] = item
	item.SetHeapIndex(q.count)
	q.siftUp(q.count)
}

// DequeueBest removes and returns the best item.
func (q *Queue[T]) DequeueBest() (T, error) {
	var zero T
	if q.count == 0 {
		return zero, ErrEmpty
	}
	best := q.items[1]
	q.swap(1, q.count)
	q.items[q.count] = zero
	q.count--
	best.SetHeapIndex(0)
	if q.count > 0 {
		q.siftDown(1)
	}
	return best, nil
}

// Peek returns the best item without removing it.
func (q *Queue[T]) Peek() (T, error) {
	if q.count == 0 {
		var zero T
		return zero, ErrEmpty
	}
	return q.items[1], nil
}

// Contains reports whether item currently occupies a slot in this queue.
func (q *Queue[T]) Contains(item T) bool {
	i := item.HeapIndex()
	return i > 0 && i <= q.count && q.items[i] == item
}

// Update restores heap order after item's priority changed.
func (q *Queue[T]) Update(item T) error {
	if !q.Contains(item) {
		return ErrNotQueued
	}
	i := item.HeapIndex()
	if i > 1 && q.better(item, q.items[i/2]) {
		q.siftUp(i)
		return nil
	}
	q.siftDown(i)
	return nil
}

// Clear empties the queue and resets the slots of the removed items.
func (q *Queue[T]) Clear() {
	var zero T
	for i := 1; i <= q.count; i++ {
		q.items[i].SetHeapIndex(0)
		q.items[i] = zero
	}
	q.count = 0
}

func (q *Queue[T]) siftUp(i int) {
	for i > 1 {
		parent := i / 2
		if !q.better(q.items[i], q.items[parent]) {
			return
		}
		q.swap(i, parent)
		i = parent
	}
}

func (q *Queue[T]) siftDown(i int) {
	for {
		left := i * 2
		if left > q.count {
			return
		}
		child := left
		if right := left + 1; right <= q.count && q.better(q.items[right], q.items[left]) {
			child = right
		}
		if !q.better(q.items[child], q.items[i]) {
			return
		}
		q.swap(i, child)
		i = child
	}
}

func (q *Queue[T]) swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].SetHeapIndex(i)
	q.items[j].SetHeapIndex(j)
}
