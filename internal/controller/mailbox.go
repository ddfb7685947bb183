package controller

import (
	"errors"
	"sync"
)

var errMailboxPanicked = errors.New("dropped: an earlier call panicked")

// mailbox serializes mutating calls into one per-store queue.
//
// A call that arrives while another is in progress (for example a confirm
// issued from inside a port callback of a reorder) is queued and run by the
// caller already holding the mailbox, after its own call finishes. Calls
// therefore never interleave and run in arrival order.
type mailbox struct {
	mu      sync.Mutex
	pending []job
	busy    bool
}

type job struct {
	name string
	fn   func() error
}

// run executes j, or queues it when the mailbox is busy. deferred is true when
// j was queued; its error is then reported to onErr instead of returned.
//
// If a call panics, the mailbox is released, the calls queued behind it are
// reported to onErr as dropped, and the panic continues up the stack.
func (m *mailbox) run(j job, onErr func(name string, err error)) (deferred bool, err error) {
	m.mu.Lock()
	if m.busy {
		m.pending = append(m.pending, j)
		m.mu.Unlock()
		return true, nil
	}
	m.busy = true
	m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			for _, dropped := range m.release() {
				onErr(dropped.name, errMailboxPanicked)
			}
			panic(r)
		}
	}()

	err = j.fn()

	for {
		next, ok := m.next()
		if !ok {
			return false, err
		}
		if qerr := next.fn(); qerr != nil {
			onErr(next.name, qerr)
		}
	}
}

func (m *mailbox) next() (job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		m.busy = false
		return job{}, false
	}
	j := m.pending[0]
	m.pending[0] = job{}
	if len(m.pending) == 1 {
		m.pending = m.pending[:0]
	} else {
		m.pending = m.pending[1:]
	}
	return j, true
}

// release clears the mailbox and returns the calls that were still queued.
func (m *mailbox) release() []job {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := m.pending
	m.pending = nil
	m.busy = false
	return dropped
}
