package queue

import "sync"

// Mailbox is an unbounded FIFO queue with a readiness signal.
// Push never blocks, so producers on any goroutine can hand work to a single
// consumer goroutine without being held up by it.
type Mailbox[T any] struct {
	items  []T
	ready  chan struct{}
	closed bool
	mu     sync.Mutex
}

// NewMailbox creates an empty mailbox
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		items: make([]T, 0, 16),
		ready: make(chan struct{}, 1),
	}
}

// Push appends an item. Returns false if the mailbox is closed.
func (m *Mailbox[T]) Push(value T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, value)
	m.mu.Unlock()

	m.signal()
	return true
}

// Pop removes and returns the oldest item
func (m *Mailbox[T]) Pop() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if len(m.items) == 0 {
		return zero, false
	}

	item := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	if len(m.items) == 0 {
		// Release the consumed prefix once drained
		m.items = nil
	}
	return item, true
}

// Ready returns a channel that receives a value whenever items were pushed.
// Consumers should Pop until empty after each receive.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.ready
}

// Len returns the number of queued items
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close rejects further pushes. Items already queued can still be popped.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.signal()
}

// Closed reports whether Close was called
func (m *Mailbox[T]) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mailbox[T]) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}
