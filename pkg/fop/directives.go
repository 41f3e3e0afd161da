package fop

import (
	"time"

	"avaneesh/cop1-go/pkg/frame"
)

// handleDirective applies one operator directive. Every directive produces
// exactly one terminal confirmation: immediately, or for the initialisation
// directives that need a CLCW round trip, when S1 is reached or abandoned.
func (e *Engine) handleDirective(req directiveRequest) {
	e.logger.Info("FOP %s: directive %s(%d) in %s", e.config.ID, req.kind, req.qualifier, e.state)

	switch req.kind {
	case SetFOPSlidingWindow, SetT1Initial, SetTransmissionLimit, SetTimeoutType:
		e.applyConfigDirective(req)
	case InitADWithoutCLCW:
		e.initWithoutCLCW(req)
	case InitADWithCLCW:
		e.initWithCLCW(req)
	case InitADWithUnlock:
		e.initWithBC(req, e.bcf.BuildUnlockFrame)
	case InitADWithSetVR:
		if req.qualifier < 0 || req.qualifier > 255 {
			e.confirmDirective(NegativeConfirm, req)
			return
		}
		vr := uint8(req.qualifier)
		e.initWithBC(req, func() *frame.Frame {
			e.vca.SetFrameCounter(vr)
			e.vs = vr
			return e.bcf.BuildSetVRFrame(vr)
		})
	case Terminate:
		e.terminate(req)
	case Resume:
		e.resume(req)
	case SetVS:
		e.setVS(req)
	default:
		e.confirmDirective(NegativeConfirm, req)
	}
}

// applyConfigDirective updates K, T1, L or the timeout type
func (e *Engine) applyConfigDirective(req directiveRequest) {
	if e.state == StateInitialisingWithoutBC || e.state == StateInitialisingWithBC {
		e.confirmDirective(NegativeConfirm, req)
		return
	}

	next := e.config
	q := req.qualifier
	switch req.kind {
	case SetFOPSlidingWindow:
		// Shrinking below the outstanding frames would break |queue| <= K
		if q < e.sent.Len() {
			e.confirmDirective(NegativeConfirm, req)
			return
		}
		next.WindowSize = q
	case SetT1Initial:
		next.T1 = time.Duration(q) * time.Second
	case SetTransmissionLimit:
		next.TransmissionLimit = q
	case SetTimeoutType:
		next.TimeoutType = TimeoutType(q)
	}

	if err := next.Validate(); err != nil {
		e.logger.Warn("FOP %s: %s rejected: %v", e.config.ID, req.kind, err)
		e.confirmDirective(NegativeConfirm, req)
		return
	}

	e.config = next
	e.confirmDirective(PositiveConfirm, req)
	e.notifyStatus()
}

// initWithoutCLCW starts AD service assuming the receiver is synchronised
func (e *Engine) initWithoutCLCW(req directiveRequest) {
	if e.state != StateInitial {
		e.confirmDirective(NegativeConfirm, req)
		return
	}

	e.vca.SetFrameCounter(0)
	e.vs = 0
	e.purge()
	e.haveCLCW = false
	e.t1.stop()

	e.confirmDirective(PositiveConfirm, req)
	e.setState(StateActive)
}

// initWithCLCW waits for the next CLCW before starting AD service
func (e *Engine) initWithCLCW(req directiveRequest) {
	if e.state != StateInitial {
		e.confirmDirective(NegativeConfirm, req)
		return
	}

	e.purge()
	e.pendingInit = &req
	e.initCount = 1
	e.setState(StateInitialisingWithoutBC)
	e.t1.start(e.config.T1)
}

// initWithBC sends a BC frame and waits for the FARM-B counter to toggle
func (e *Engine) initWithBC(req directiveRequest, build func() *frame.Frame) {
	if e.state != StateInitial {
		e.confirmDirective(NegativeConfirm, req)
		return
	}

	e.purge()

	// Baseline for toggle detection; without a prior CLCW the first one in S5 becomes the baseline
	e.bcFarmBKnown = e.haveCLCW
	e.bcFarmB = e.lastCLCW.FarmB

	e.bcFrame = build()
	e.pendingInit = &req
	e.initCount = 1
	e.setState(StateInitialisingWithBC)

	e.sendBC()
	e.t1.start(e.config.T1)
}

func (e *Engine) sendBC() {
	if e.send(e.bcFrame) == SinkAccepted {
		e.stats.controlSent.Add(1)
	}
}

// completeInit finishes initialisation and enters S1
func (e *Engine) completeInit() {
	e.t1.stop()
	e.bcFrame = nil
	if e.pendingInit != nil {
		e.confirmDirective(PositiveConfirm, *e.pendingInit)
		e.pendingInit = nil
	}
	e.setState(StateActive)
}

// terminate stops AD service from any state
func (e *Engine) terminate(req directiveRequest) {
	if e.state != StateInitial {
		e.raiseAlert(AlertTerm)
	}

	e.t1.stop()
	e.purge()
	e.rejectWaiting(ReasonPurged)
	e.confirmDirective(PositiveConfirm, req)
	e.setState(StateInitial)
}

// resume leaves the suspended state
func (e *Engine) resume(req directiveRequest) {
	if e.state != StateSuspended {
		e.confirmDirective(NegativeConfirm, req)
		return
	}

	e.sent.resetTransmissions()
	e.confirmDirective(PositiveConfirm, req)
	e.setState(StateActive)
	if e.sent.Len() > 0 {
		e.t1.start(e.config.T1)
	}
}

// setVS changes the next sequence number; only allowed before initialisation
func (e *Engine) setVS(req directiveRequest) {
	if e.state != StateInitial || req.qualifier < 0 || req.qualifier > 255 {
		e.confirmDirective(NegativeConfirm, req)
		return
	}

	vs := uint8(req.qualifier)
	e.vca.SetFrameCounter(vs)
	e.vs = vs
	e.confirmDirective(PositiveConfirm, req)
	e.notifyStatus()
}
