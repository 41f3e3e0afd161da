package fop

import "time"

// retransmitAll sends every outstanding frame again in sequence order and
// enters S2, or S3 if the sink pushed back or the receiver asked to wait.
func (e *Engine) retransmitAll(wait bool) {
	busy := false
	now := time.Now()

	for _, entry := range e.sent.entries {
		if e.send(entry.frame) == SinkBusy {
			busy = true
			break
		}
		entry.transmissions++
		entry.lastSent = now
		e.stats.framesTransmitted.Add(1)
		e.stats.retransmissions.Add(1)
	}

	e.t1.start(e.config.T1)
	if busy || wait {
		e.setState(StateRetransmitWithWait)
	} else {
		e.setState(StateRetransmitWithoutWait)
	}
}

// handleTimerExpiry applies a T1 expiry to the current state
func (e *Engine) handleTimerExpiry() {
	e.logger.Debug("FOP %s: T1 expired in %s", e.config.ID, e.state)

	switch e.state {
	case StateActive, StateRetransmitWithoutWait, StateRetransmitWithWait:
		if e.sent.Len() == 0 {
			return
		}
		if e.sent.maxRetransmissions() >= e.config.TransmissionLimit {
			e.transmissionLimitReached(AlertT1)
			return
		}
		e.retransmitAll(e.haveCLCW && e.lastCLCW.Wait)

	case StateInitialisingWithoutBC:
		if e.initCount >= e.config.TransmissionLimit {
			e.raiseAlert(AlertT1)
			return
		}
		e.initCount++
		e.t1.start(e.config.T1)

	case StateInitialisingWithBC:
		// initCount counts transmissions of the BC frame; L bounds the repeats
		if e.initCount-1 >= e.config.TransmissionLimit {
			e.raiseAlert(AlertT1)
			return
		}
		e.initCount++
		e.sendBC()
		e.t1.start(e.config.T1)

	case StateInitial, StateSuspended:
		// Timer is never armed here
	}
}

// transmissionLimitReached applies the configured timeout type
func (e *Engine) transmissionLimitReached(code AlertCode) {
	if e.config.TimeoutType == TimeoutSuspend {
		e.t1.stop()
		e.logger.Warn("FOP %s: transmission limit reached, suspending with %d frames outstanding",
			e.config.ID, e.sent.Len())
		e.dispatcher.post(func(o Observer) { o.OnSuspend() })
		e.setState(StateSuspended)
		return
	}
	e.raiseAlert(code)
}
