package fop

import (
	"sync/atomic"
	"time"

	"avaneesh/cop1-go/pkg/frame"
)

// Claim states of a transmit request
const (
	txPending int32 = iota
	txClaimed
	txCancelled
)

// transmitRequest is a frame submitted by a producer. Either the loop claims
// it and sends exactly one result, or the producer cancels it on timeout and
// the loop drops it.
type transmitRequest struct {
	frame  *frame.Frame
	claim  atomic.Int32
	result chan error
}

func newTransmitRequest(f *frame.Frame) *transmitRequest {
	return &transmitRequest{
		frame:  f,
		result: make(chan error, 1),
	}
}

// cancel is called by the producer; false means the loop already claimed it
func (r *transmitRequest) cancel() bool {
	return r.claim.CompareAndSwap(txPending, txCancelled)
}

// take is called by the loop; false means the producer gave up
func (r *transmitRequest) take() bool {
	return r.claim.CompareAndSwap(txPending, txClaimed)
}

// handleTransmit routes a new submission by frame type and state
func (e *Engine) handleTransmit(req *transmitRequest) {
	switch req.frame.Type {
	case frame.TypeBD:
		e.transmitExpedited(req)
		return
	case frame.TypeAD:
	default:
		e.reject(req, ReasonInvalidType)
		return
	}

	switch e.state {
	case StateActive, StateRetransmitWithoutWait, StateRetransmitWithWait:
		e.waiting = append(e.waiting, req)
	case StateInitialisingWithoutBC, StateInitialisingWithBC:
		e.reject(req, ReasonInitialising)
	case StateSuspended:
		e.reject(req, ReasonSuspended)
	case StateInitial:
		e.reject(req, ReasonNotInitialised)
	}
}

// transmitExpedited sends a BD frame straight to the sink
func (e *Engine) transmitExpedited(req *transmitRequest) {
	if !req.take() {
		return
	}

	if e.send(req.frame) == SinkBusy {
		e.stats.framesRejected.Add(1)
		e.confirmTransfer(NegativeConfirm, req.frame)
		req.result <- &RejectedError{Reason: ReasonSinkBusy, State: e.state}
		return
	}

	e.stats.expeditedSent.Add(1)
	e.confirmTransfer(PositiveConfirm, req.frame)
	req.result <- nil
}

// serviceWaiting releases waiting AD frames while the window is open
func (e *Engine) serviceWaiting() {
	for len(e.waiting) > 0 && e.canAccept() {
		req := e.waiting[0]
		e.waiting[0] = nil
		e.waiting = e.waiting[1:]

		if !req.take() {
			continue
		}
		e.accept(req)
	}

	// Drop requests abandoned by their producers
	kept := e.waiting[:0]
	for _, req := range e.waiting {
		if req.claim.Load() == txPending {
			kept = append(kept, req)
		}
	}
	for i := len(kept); i < len(e.waiting); i++ {
		e.waiting[i] = nil
	}
	e.waiting = kept
	if len(e.waiting) == 0 {
		e.waiting = nil
	}
}

// pendingCount returns the waiting requests whose producers have not given up
func (e *Engine) pendingCount() int {
	n := 0
	for _, req := range e.waiting {
		if req.claim.Load() == txPending {
			n++
		}
	}
	return n
}

// canAccept reports whether a new AD frame may enter the sent queue
func (e *Engine) canAccept() bool {
	if !e.state.acceptsFrames() {
		return false
	}
	if e.haveCLCW && e.lastCLCW.Wait {
		return false
	}
	return e.sent.Len() < e.config.WindowSize
}

// accept assigns V(S), queues and sends a claimed AD frame
func (e *Engine) accept(req *transmitRequest) {
	seq := e.vca.NextFrameCounter()
	e.vs = seq + 1

	f := req.frame
	f.Sequence = seq

	now := time.Now()
	e.sent.push(&sentEntry{
		frame:         f,
		seq:           seq,
		transmissions: 1,
		enqueued:      now,
		lastSent:      now,
	})
	e.stats.framesAccepted.Add(1)

	// A refused first send is recovered by the T1 retransmission
	if e.send(f) == SinkAccepted {
		e.stats.framesTransmitted.Add(1)
	}
	e.t1.start(e.config.T1)

	req.result <- nil
}

// reject refuses a claimed request
func (e *Engine) reject(req *transmitRequest, reason RejectReason) {
	if !req.take() {
		return
	}
	e.stats.framesRejected.Add(1)
	req.result <- &RejectedError{Reason: reason, State: e.state}
}

// rejectWaiting refuses every frame still waiting for the window
func (e *Engine) rejectWaiting(reason RejectReason) {
	for _, req := range e.waiting {
		e.reject(req, reason)
	}
	e.waiting = nil
}
