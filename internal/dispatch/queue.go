package dispatch

import "sync"

// resultQueue is the only state shared between workers and the consumer.
type resultQueue struct {
	mu      sync.Mutex
	pending []completed
}

type completed struct {
	outcome    Outcome
	callback   func(Outcome)
	generation uint64
}

func newResultQueue() *resultQueue {
	return &resultQueue{
		pending: make([]completed, 0),
	}
}

func (q *resultQueue) enqueue(c completed) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, c)
}

// drain removes up to max results in arrival order; max <= 0 takes all.
func (q *resultQueue) drain(max int) []completed {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	if max <= 0 || max >= len(q.pending) {
		batch := append([]completed(nil), q.pending...)
		q.pending = q.pending[:0]
		return batch
	}
	batch := append([]completed(nil), q.pending[:max]...)
	q.pending = q.pending[max:]
	return batch
}

func (q *resultQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
