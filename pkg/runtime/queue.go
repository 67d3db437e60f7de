package runtime

import (
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by operations on a closed Instance.
	ErrClosed = errors.New("runtime: instance is closed")
	// ErrUnknownField is returned when a field id is not part of the schema.
	ErrUnknownField = errors.New("runtime: unknown field")
)

// task is one queued transaction. fn reports whether state changed and a new
// snapshot must be published.
type task struct {
	kind string
	fn   func() bool
}

// queue is an unbounded FIFO feeding the loop goroutine.
type queue struct {
	mu     sync.Mutex
	items  []task
	closed bool
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

func (q *queue) push(t task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.notify()
	return nil
}

// take removes every queued task. closed is true once no further task can
// arrive.
func (q *queue) take() (tasks []task, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks, q.items = q.items, nil
	return tasks, q.closed
}

func (q *queue) close() bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.closed = true
	q.mu.Unlock()
	q.notify()
	return true
}

func (q *queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
