package frame

import "sync/atomic"

// Counter is an in-memory virtual channel frame counter V(S), modulo 256
type Counter struct {
	next atomic.Uint32
}

// NewCounter creates a counter starting at zero
func NewCounter() *Counter {
	return &Counter{}
}

// NextFrameCounter returns the current V(S) and advances it
func (c *Counter) NextFrameCounter() uint8 {
	return uint8(c.next.Add(1) - 1)
}

// SetFrameCounter sets the value the next call to NextFrameCounter returns
func (c *Counter) SetFrameCounter(value uint8) {
	c.next.Store(uint32(value))
}

// Peek returns the next value without consuming it
func (c *Counter) Peek() uint8 {
	return uint8(c.next.Load())
}
