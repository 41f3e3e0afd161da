package fop

import "avaneesh/cop1-go/pkg/clcw"

// handleCLCW applies a CLCW report to the state machine
func (e *Engine) handleCLCW(report clcw.CLCW) {
	e.stats.clcwsReceived.Add(1)
	e.logger.Debug("FOP %s: %s in %s", e.config.ID, report, e.state)

	e.lastCLCW = report
	e.haveCLCW = true

	switch e.state {
	case StateInitial:
		// Recorded only
	case StateInitialisingWithoutBC:
		e.clcwInitialisingWithoutBC(report)
	case StateInitialisingWithBC:
		e.clcwInitialisingWithBC(report)
	case StateActive, StateRetransmitWithoutWait, StateRetransmitWithWait:
		e.clcwActive(report)
	case StateSuspended:
		e.clcwSuspended(report)
	}
}

// clcwInitialisingWithoutBC accepts any CLCW without lockout as proof of
// synchronisation. No BC frame was sent, so FARM-B is not checked.
func (e *Engine) clcwInitialisingWithoutBC(report clcw.CLCW) {
	if report.Lockout {
		e.raiseAlert(AlertLockout)
		return
	}
	e.completeInit()
}

// clcwInitialisingWithBC waits for the FARM-B counter to move away from the
// value seen before the BC frame was sent. Lockout is expected here: Unlock
// is what clears it.
func (e *Engine) clcwInitialisingWithBC(report clcw.CLCW) {
	if !e.bcFarmBKnown {
		e.bcFarmB = report.FarmB
		e.bcFarmBKnown = true
		return
	}
	if report.FarmB != e.bcFarmB {
		e.completeInit()
	}
}

// clcwActive handles reports in S1, S2 and S3
func (e *Engine) clcwActive(report clcw.CLCW) {
	if report.Lockout {
		e.raiseAlert(AlertLockout)
		return
	}

	acked, ok := e.acknowledge(report)
	if !ok {
		return
	}

	if report.Retransmit && e.sent.Len() > 0 {
		// A repeated retransmit request with no progress waits for T1
		if e.state == StateActive || acked > 0 {
			if e.sent.maxRetransmissions() >= e.config.TransmissionLimit {
				e.transmissionLimitReached(AlertLimit)
				return
			}
			e.retransmitAll(report.Wait)
		} else if report.Wait {
			e.setState(StateRetransmitWithWait)
		}
		return
	}

	if report.Wait && e.state != StateActive {
		e.setState(StateRetransmitWithWait)
		return
	}
	e.setState(StateActive)
}

// clcwSuspended still releases acknowledged frames but sends nothing
func (e *Engine) clcwSuspended(report clcw.CLCW) {
	if report.Lockout {
		e.raiseAlert(AlertLockout)
		return
	}
	if _, ok := e.acknowledge(report); ok {
		// acknowledge restarts T1 while frames remain; suspended keeps it stopped
		e.t1.stop()
	}
}

// acknowledge removes acknowledged frames and maintains T1. Returns the number
// of frames removed and false if the report was stale or raised an alert.
func (e *Engine) acknowledge(report clcw.CLCW) (int, bool) {
	acked, result := e.sent.acknowledge(report.ReportValue, e.vs, e.config.WindowSize)
	switch result {
	case ackStale:
		e.logger.Debug("FOP %s: stale N(R)=%d ignored", e.config.ID, report.ReportValue)
		return 0, false
	case ackInvalid:
		e.logger.Warn("FOP %s: N(R)=%d outside window, V(S)=%d", e.config.ID, report.ReportValue, e.vs)
		e.raiseAlert(AlertNNR)
		return 0, false
	}

	for _, entry := range acked {
		e.stats.framesAcknowledged.Add(1)
		e.confirmTransfer(PositiveConfirm, entry.frame)
	}

	if len(acked) > 0 {
		if e.sent.Len() == 0 {
			e.t1.stop()
		} else {
			e.t1.start(e.config.T1)
		}
	}
	return len(acked), true
}
