package engine

import "sync"

// eventQueue is the unbounded FIFO between producers and the Run loop.
//
// Any goroutine may push; Run is the only consumer. ready has a one-slot
// buffer so Run can select on it alongside ctx.Done(). Closing the queue
// closes ready, which wakes Run for the final drain.
type eventQueue struct {
	mu     sync.Mutex
	buf    []Event
	head   int // index of the next event to pop
	closed bool
	ready  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		buf:   make([]Event, 0, 64),
		ready: make(chan struct{}, 1),
	}
}

// push appends e. It reports false once the queue is closed.
func (q *eventQueue) push(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.buf = append(q.buf, e)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// pop removes the front event without blocking.
func (q *eventQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.buf) {
		return Event{}, false
	}
	e := q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head++

	switch {
	case q.head == len(q.buf):
		q.buf, q.head = q.buf[:0], 0
	case q.head > cap(q.buf)/2:
		n := copy(q.buf, q.buf[q.head:])
		clear(q.buf[n:])
		q.buf, q.head = q.buf[:n], 0
	}
	return e, true
}

// wait fires when events may be available, and is closed with the queue.
func (q *eventQueue) wait() <-chan struct{} {
	return q.ready
}

func (q *eventQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) - q.head
}

// drained reports whether the queue is closed and empty.
func (q *eventQueue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && q.head == len(q.buf)
}

// close rejects further pushes. Events already queued stay poppable.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ready)
	}
}
