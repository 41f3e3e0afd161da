package channel

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	errTransportClosed = errors.New("transport closed")
	errNotConnected    = errors.New("no connection")
)

// TransportStats is a snapshot of transport counters
type TransportStats struct {
	BytesSent     uint64
	BytesReceived uint64
	WriteErrors   uint64
	ReadErrors    uint64 // includes envelopes dropped for bad framing
	Connects      uint64 // stays at 1 for connectionless transports
	Disconnects   uint64
}

// transportCounters is the counter block shared by the transports
type transportCounters struct {
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	writeErrors   atomic.Uint64
	readErrors    atomic.Uint64
	connects      atomic.Uint64
	disconnects   atomic.Uint64
}

func (c *transportCounters) snapshot() TransportStats {
	return TransportStats{
		BytesSent:     c.bytesSent.Load(),
		BytesReceived: c.bytesReceived.Load(),
		WriteErrors:   c.writeErrors.Load(),
		ReadErrors:    c.readErrors.Load(),
		Connects:      c.connects.Load(),
		Disconnects:   c.disconnects.Load(),
	}
}

// stateNotifier holds an optional ConnectionStateListener
type stateNotifier struct {
	listener ConnectionStateListener
	mu       sync.RWMutex
}

func (n *stateNotifier) set(listener ConnectionStateListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listener = listener
}

func (n *stateNotifier) established() {
	n.mu.RLock()
	listener := n.listener
	n.mu.RUnlock()

	if listener != nil {
		listener.OnConnectionEstablished()
	}
}

func (n *stateNotifier) lost() {
	n.mu.RLock()
	listener := n.listener
	n.mu.RUnlock()

	if listener != nil {
		listener.OnConnectionLost()
	}
}
