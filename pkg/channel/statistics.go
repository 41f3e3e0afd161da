package channel

import "sync/atomic"

// Statistics tracks channel-level counters
type Statistics struct {
	framesTx     atomic.Uint64
	framesRx     atomic.Uint64
	clcwsTx      atomic.Uint64
	clcwsRx      atomic.Uint64
	badEnvelopes atomic.Uint64
	queueFull    atomic.Uint64
	writeErrors  atomic.Uint64
	unrouted     atomic.Uint64
	receivers    atomic.Uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{}
}

// FrameTx counts a transfer frame written to the transport
func (s *Statistics) FrameTx() { s.framesTx.Add(1) }

// FrameRx counts a transfer frame read from the transport
func (s *Statistics) FrameRx() { s.framesRx.Add(1) }

// CLCWTx counts a CLCW written to the transport
func (s *Statistics) CLCWTx() { s.clcwsTx.Add(1) }

// CLCWRx counts a CLCW read from the transport
func (s *Statistics) CLCWRx() { s.clcwsRx.Add(1) }

// BadEnvelope counts an envelope that failed to decode
func (s *Statistics) BadEnvelope() { s.badEnvelopes.Add(1) }

// QueueFull counts a frame refused because the write queue was full
func (s *Statistics) QueueFull() { s.queueFull.Add(1) }

// WriteError counts a failed transport write
func (s *Statistics) WriteError() { s.writeErrors.Add(1) }

// Unrouted counts an envelope with no receiver for its virtual channel
func (s *Statistics) Unrouted() { s.unrouted.Add(1) }

// SetReceivers sets the number of bound receivers
func (s *Statistics) SetReceivers(count uint64) { s.receivers.Store(count) }

// GetFramesTx returns transmitted frames
func (s *Statistics) GetFramesTx() uint64 { return s.framesTx.Load() }

// GetFramesRx returns received frames
func (s *Statistics) GetFramesRx() uint64 { return s.framesRx.Load() }

// GetCLCWsTx returns transmitted CLCWs
func (s *Statistics) GetCLCWsTx() uint64 { return s.clcwsTx.Load() }

// GetCLCWsRx returns received CLCWs
func (s *Statistics) GetCLCWsRx() uint64 { return s.clcwsRx.Load() }

// GetBadEnvelopes returns envelopes that failed to decode
func (s *Statistics) GetBadEnvelopes() uint64 { return s.badEnvelopes.Load() }

// GetQueueFull returns frames refused with a full write queue
func (s *Statistics) GetQueueFull() uint64 { return s.queueFull.Load() }

// GetWriteErrors returns failed transport writes
func (s *Statistics) GetWriteErrors() uint64 { return s.writeErrors.Load() }

// GetUnrouted returns envelopes without a receiver
func (s *Statistics) GetUnrouted() uint64 { return s.unrouted.Load() }

// GetReceivers returns the number of bound receivers
func (s *Statistics) GetReceivers() uint64 { return s.receivers.Load() }

// Reset resets all counters except the receiver count
func (s *Statistics) Reset() {
	s.framesTx.Store(0)
	s.framesRx.Store(0)
	s.clcwsTx.Store(0)
	s.clcwsRx.Store(0)
	s.badEnvelopes.Store(0)
	s.queueFull.Store(0)
	s.writeErrors.Store(0)
	s.unrouted.Store(0)
}
