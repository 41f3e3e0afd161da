package channel

import "context"

// ConnectionStateListener is told when a connection-oriented transport gains
// or loses its peer. Calls come from transport goroutines.
type ConnectionStateListener interface {
	OnConnectionEstablished()
	OnConnectionLost()
}

// PhysicalChannel is the pluggable transport under a Channel.
// Implementations move whole envelopes; they never look inside them.
type PhysicalChannel interface {
	// Read blocks until one complete envelope is available or ctx is done
	Read(ctx context.Context) ([]byte, error)

	// Write sends one complete envelope. Called from a single goroutine.
	Write(ctx context.Context, data []byte) error

	// Close releases the transport and unblocks pending Read/Write
	Close() error

	// Statistics returns transport-level statistics
	Statistics() TransportStats

	// SetConnectionStateListener sets a listener for connection state changes.
	// Connectionless transports may ignore it.
	SetConnectionStateListener(listener ConnectionStateListener)
}
