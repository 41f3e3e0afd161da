package channel

import (
	"context"
	"sync"
)

// MemoryChannel is an in-process PhysicalChannel. Two of them made by
// NewMemoryPair are cross-connected: what one writes the other reads.
type MemoryChannel struct {
	inbound  chan []byte
	peer     *MemoryChannel
	done     chan struct{}
	stats    transportCounters
	notifier stateNotifier

	drop   func(data []byte) bool
	dropMu sync.RWMutex

	once sync.Once
}

// NewMemoryPair creates two connected channels with the given buffering
func NewMemoryPair(buffer int) (*MemoryChannel, *MemoryChannel) {
	a := &MemoryChannel{inbound: make(chan []byte, buffer), done: make(chan struct{})}
	b := &MemoryChannel{inbound: make(chan []byte, buffer), done: make(chan struct{})}
	a.peer = b
	b.peer = a
	a.stats.connects.Add(1)
	b.stats.connects.Add(1)
	return a, b
}

// SetDropFilter installs a filter that discards written envelopes for which
// it returns true, simulating a lossy link
func (m *MemoryChannel) SetDropFilter(drop func(data []byte) bool) {
	m.dropMu.Lock()
	defer m.dropMu.Unlock()
	m.drop = drop
}

func (m *MemoryChannel) dropped(data []byte) bool {
	m.dropMu.RLock()
	defer m.dropMu.RUnlock()
	return m.drop != nil && m.drop(data)
}

// Read implements PhysicalChannel.Read
func (m *MemoryChannel) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, errTransportClosed
	case data := <-m.inbound:
		m.stats.bytesReceived.Add(uint64(len(data)))
		return data, nil
	}
}

// Write implements PhysicalChannel.Write
func (m *MemoryChannel) Write(ctx context.Context, data []byte) error {
	select {
	case <-m.done:
		return errTransportClosed
	case <-m.peer.done:
		m.stats.writeErrors.Add(1)
		return errNotConnected
	default:
	}

	m.stats.bytesSent.Add(uint64(len(data)))
	if m.dropped(data) {
		return nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case <-ctx.Done():
		m.stats.writeErrors.Add(1)
		return ctx.Err()
	case <-m.done:
		return errTransportClosed
	case <-m.peer.done:
		return errNotConnected
	case m.peer.inbound <- buf:
		return nil
	}
}

// Close implements PhysicalChannel.Close
func (m *MemoryChannel) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.stats.disconnects.Add(1)
		m.peer.notifier.lost()
	})
	return nil
}

// Statistics implements PhysicalChannel.Statistics
func (m *MemoryChannel) Statistics() TransportStats {
	return m.stats.snapshot()
}

// SetConnectionStateListener implements PhysicalChannel
func (m *MemoryChannel) SetConnectionStateListener(listener ConnectionStateListener) {
	m.notifier.set(listener)
}
