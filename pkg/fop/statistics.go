package fop

import "sync/atomic"

// Statistics tracks engine-level counters
type Statistics struct {
	framesAccepted     atomic.Uint64
	framesTransmitted  atomic.Uint64
	retransmissions    atomic.Uint64
	framesAcknowledged atomic.Uint64
	framesPurged       atomic.Uint64
	framesRejected     atomic.Uint64
	expeditedSent      atomic.Uint64
	controlSent        atomic.Uint64
	sinkBusy           atomic.Uint64
	clcwsReceived      atomic.Uint64
	timerExpiries      atomic.Uint64
	alerts             atomic.Uint64
	directivesAccepted atomic.Uint64
	directivesRejected atomic.Uint64
}

// StatisticsSnapshot is a copy of the counters at one point in time
type StatisticsSnapshot struct {
	FramesAccepted     uint64 // AD frames taken into the sent queue
	FramesTransmitted  uint64 // AD frame sends, first and repeated
	Retransmissions    uint64 // AD frame sends after the first
	FramesAcknowledged uint64
	FramesPurged       uint64
	FramesRejected     uint64 // Transmit calls refused
	ExpeditedSent      uint64 // BD frames
	ControlSent        uint64 // BC frames
	SinkBusy           uint64 // sends refused by the sink
	CLCWsReceived      uint64
	TimerExpiries      uint64
	Alerts             uint64
	DirectivesAccepted uint64
	DirectivesRejected uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Snapshot returns the current counter values
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		FramesAccepted:     s.framesAccepted.Load(),
		FramesTransmitted:  s.framesTransmitted.Load(),
		Retransmissions:    s.retransmissions.Load(),
		FramesAcknowledged: s.framesAcknowledged.Load(),
		FramesPurged:       s.framesPurged.Load(),
		FramesRejected:     s.framesRejected.Load(),
		ExpeditedSent:      s.expeditedSent.Load(),
		ControlSent:        s.controlSent.Load(),
		SinkBusy:           s.sinkBusy.Load(),
		CLCWsReceived:      s.clcwsReceived.Load(),
		TimerExpiries:      s.timerExpiries.Load(),
		Alerts:             s.alerts.Load(),
		DirectivesAccepted: s.directivesAccepted.Load(),
		DirectivesRejected: s.directivesRejected.Load(),
	}
}

// Reset resets all statistics
func (s *Statistics) Reset() {
	s.framesAccepted.Store(0)
	s.framesTransmitted.Store(0)
	s.retransmissions.Store(0)
	s.framesAcknowledged.Store(0)
	s.framesPurged.Store(0)
	s.framesRejected.Store(0)
	s.expeditedSent.Store(0)
	s.controlSent.Store(0)
	s.sinkBusy.Store(0)
	s.clcwsReceived.Store(0)
	s.timerExpiries.Store(0)
	s.alerts.Store(0)
	s.directivesAccepted.Store(0)
	s.directivesRejected.Store(0)
}
