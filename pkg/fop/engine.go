// Package fop implements the transmitting side of COP-1: the Frame Operation
// Procedure that delivers AD frames over a virtual channel using a sliding
// window, the T1 retransmission timer and the CLCW reports returned by the
// receiver.
//
// Every input (directives, CLCW reports, frame submissions, timer expiries) is
// queued as an event and applied by a single goroutine, so engine state is
// never touched concurrently. Observers are called from a second goroutine.
package fop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"avaneesh/cop1-go/pkg/clcw"
	"avaneesh/cop1-go/pkg/frame"
	"avaneesh/cop1-go/pkg/internal/logger"
	"avaneesh/cop1-go/pkg/internal/queue"
)

// eventKind tags the events processed by the loop
type eventKind int

const (
	evDirective eventKind = iota
	evCLCW
	evTransmit
	evTimer
	evProbe // runs a function on the loop; only pushed from tests
	evDispose
)

// event is a tagged union; only the field matching kind is set
type event struct {
	kind      eventKind
	directive directiveRequest
	clcw      clcw.CLCW
	tx        *transmitRequest
	timerGen  uint64
	probe     func()
}

// directiveRequest is one operator directive
type directiveRequest struct {
	tag       any
	kind      DirectiveKind
	qualifier int
}

// Engine is a FOP instance bound to one virtual channel
type Engine struct {
	config Config
	vca    VirtualChannelAccessor
	bcf    BCFrameFactory
	sink   FrameSink
	logger logger.Logger

	// Loop-owned state
	state   State
	sent    *sentQueue
	vs      uint8
	waiting []*transmitRequest
	t1      *t1Timer

	lastCLCW clcw.CLCW
	haveCLCW bool

	// Initialisation in progress (S4/S5)
	pendingInit  *directiveRequest
	initCount    int // transmissions of the BC frame, or T1 periods waited in S4
	bcFrame      *frame.Frame
	bcFarmB      uint8
	bcFarmBKnown bool

	events     *queue.Mailbox[event]
	dispatcher *dispatcher
	stats      *Statistics
	status     atomic.Pointer[Status]

	disposed atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates an engine in state S6 and starts its event loop
func New(config Config, vca VirtualChannelAccessor, bcf BCFrameFactory, sink FrameSink, log logger.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if vca == nil || bcf == nil || sink == nil {
		return nil, errors.New("fop: accessor, BC factory and sink are required")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	e := &Engine{
		config:     config,
		vca:        vca,
		bcf:        bcf,
		sink:       sink,
		logger:     log,
		state:      StateInitial,
		sent:       newSentQueue(),
		events:     queue.NewMailbox[event](),
		dispatcher: newDispatcher(log),
		stats:      NewStatistics(),
		done:       make(chan struct{}),
	}
	e.t1 = newT1Timer(func(gen uint64) {
		e.events.Push(event{kind: evTimer, timerGen: gen})
	})
	e.publishStatus()

	go e.dispatcher.run()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run()
	}()

	e.logger.Info("FOP %s created: K=%d, L=%d, T1=%s, timeout=%s",
		config.ID, config.WindowSize, config.TransmissionLimit, config.T1, config.TimeoutType)
	return e, nil
}

// Transmit submits a frame, waiting up to timeout for window capacity.
// A timeout of zero waits indefinitely.
func (e *Engine) Transmit(f *frame.Frame, timeout time.Duration) error {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return e.TransmitContext(ctx, f)
}

// TransmitContext submits a frame, waiting until the window has capacity or
// ctx is done. AD frames wait for the window; BD frames are sent at once.
// Returns ErrTransmitTimeout if the deadline passed before the frame was
// taken, leaving the frame unconsumed.
func (e *Engine) TransmitContext(ctx context.Context, f *frame.Frame) error {
	if f == nil {
		return ErrNilFrame
	}
	if e.disposed.Load() {
		e.stats.framesRejected.Add(1)
		return &RejectedError{Reason: ReasonDisposed, State: e.Status().State}
	}

	req := newTransmitRequest(f)
	if !e.events.Push(event{kind: evTransmit, tx: req}) {
		e.stats.framesRejected.Add(1)
		return &RejectedError{Reason: ReasonDisposed, State: e.Status().State}
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		if req.cancel() {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTransmitTimeout
			}
			return ctx.Err()
		}
		// The loop took the frame first
		return <-req.result
	case <-e.done:
		if req.cancel() {
			return &RejectedError{Reason: ReasonDisposed, State: e.Status().State}
		}
		return <-req.result
	}
}

// Directive queues an operator directive. The outcome is reported to
// observers through OnDirective with the same tag.
func (e *Engine) Directive(tag any, kind DirectiveKind, qualifier int) error {
	if e.disposed.Load() {
		return ErrDisposed
	}
	req := directiveRequest{tag: tag, kind: kind, qualifier: qualifier}
	if !e.events.Push(event{kind: evDirective, directive: req}) {
		return ErrDisposed
	}
	return nil
}

// CLCW queues a CLCW report from the return link
func (e *Engine) CLCW(report clcw.CLCW) error {
	if e.disposed.Load() {
		return ErrDisposed
	}
	if !e.events.Push(event{kind: evCLCW, clcw: report}) {
		return ErrDisposed
	}
	return nil
}

// Register adds an observer. Observers are compared with ==, so register
// pointer types.
func (e *Engine) Register(o Observer) {
	e.dispatcher.register(o)
}

// Deregister removes an observer
func (e *Engine) Deregister(o Observer) {
	e.dispatcher.deregister(o)
}

// Status returns the snapshot published after the last processed event
func (e *Engine) Status() Status {
	return *e.status.Load()
}

// Statistics returns engine counters
func (e *Engine) Statistics() *Statistics {
	return e.stats
}

// ID returns the configured engine identity
func (e *Engine) ID() string {
	return e.config.ID
}

// Dispose stops the engine permanently. Outstanding frames are purged with a
// negative confirmation and waiting Transmit calls are rejected. Safe to call
// more than once; must not be called from a FrameSink.
func (e *Engine) Dispose() {
	if !e.disposed.CompareAndSwap(false, true) {
		return
	}

	e.events.Push(event{kind: evDispose})
	e.events.Close()
	e.wg.Wait()

	e.logger.Info("FOP %s disposed", e.config.ID)
}

// run is the serialized event loop
func (e *Engine) run() {
	var tick <-chan time.Time
	if e.config.StatusInterval > 0 {
		ticker := time.NewTicker(e.config.StatusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-e.events.Ready():
			for {
				ev, ok := e.events.Pop()
				if !ok {
					break
				}
				if ev.kind == evDispose {
					e.shutdown()
					return
				}
				e.handle(ev)
				e.serviceWaiting()
				e.publishStatus()
			}
		case <-tick:
			e.notifyStatus()
		}
	}
}

// handle dispatches one event
func (e *Engine) handle(ev event) {
	switch ev.kind {
	case evDirective:
		e.handleDirective(ev.directive)
	case evCLCW:
		e.handleCLCW(ev.clcw)
	case evTransmit:
		e.handleTransmit(ev.tx)
	case evTimer:
		if e.t1.expired(ev.timerGen) {
			e.stats.timerExpiries.Add(1)
			e.handleTimerExpiry()
		}
	case evProbe:
		ev.probe()
	default:
		e.logger.Error("FOP %s: unknown event kind %d", e.config.ID, ev.kind)
	}
}

// shutdown releases everything on dispose
func (e *Engine) shutdown() {
	e.t1.stop()

	if e.pendingInit != nil {
		e.confirmDirective(NegativeConfirm, *e.pendingInit)
		e.pendingInit = nil
	}
	e.purge()
	e.rejectWaiting(ReasonDisposed)

	// Events that raced with Dispose; pushes fail once the mailbox is closed
	e.events.Close()
	for {
		ev, ok := e.events.Pop()
		if !ok {
			break
		}
		switch ev.kind {
		case evTransmit:
			e.reject(ev.tx, ReasonDisposed)
		case evDirective:
			e.confirmDirective(NegativeConfirm, ev.directive)
		case evProbe:
			ev.probe()
		}
	}

	e.setState(StateInitial)
	e.publishStatus()
	close(e.done)
	e.dispatcher.close()
}

// setState changes state and reports it
func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	e.logger.Info("FOP %s: %s -> %s", e.config.ID, e.state, s)
	e.state = s
	e.notifyStatus()
}

// currentStatus builds a status snapshot from loop-owned state
func (e *Engine) currentStatus() Status {
	return Status{
		State:      e.state,
		VS:         e.vs,
		QueueDepth: e.sent.Len(),
		Pending:    e.pendingCount(),
		Wait:       e.haveCLCW && e.lastCLCW.Wait,
		Lockout:    e.haveCLCW && e.lastCLCW.Lockout,
		Config:     e.config,
	}
}

func (e *Engine) publishStatus() {
	s := e.currentStatus()
	e.status.Store(&s)
}

func (e *Engine) notifyStatus() {
	s := e.currentStatus()
	e.dispatcher.post(func(o Observer) { o.OnStatus(s) })
}

func (e *Engine) confirmDirective(status OperationStatus, req directiveRequest) {
	if status == PositiveConfirm {
		e.stats.directivesAccepted.Add(1)
	} else {
		e.stats.directivesRejected.Add(1)
	}
	e.logger.Debug("FOP %s: %s(%d) tag=%v -> %s", e.config.ID, req.kind, req.qualifier, req.tag, status)
	e.dispatcher.post(func(o Observer) { o.OnDirective(status, req.tag, req.kind, req.qualifier) })
}

func (e *Engine) confirmTransfer(status OperationStatus, f *frame.Frame) {
	e.dispatcher.post(func(o Observer) { o.OnTransfer(status, f) })
}

// raiseAlert reports an alert and falls back to S6, dropping all in-flight work
func (e *Engine) raiseAlert(code AlertCode) {
	e.logger.Warn("FOP %s: alert %s in %s", e.config.ID, code, e.state)
	e.stats.alerts.Add(1)
	e.dispatcher.post(func(o Observer) { o.OnAlert(code) })

	e.t1.stop()
	if e.pendingInit != nil {
		e.confirmDirective(NegativeConfirm, *e.pendingInit)
		e.pendingInit = nil
	}
	e.bcFrame = nil
	e.purge()
	e.rejectWaiting(ReasonPurged)
	e.setState(StateInitial)
}

// purge drops every unacknowledged frame with a negative confirmation
func (e *Engine) purge() {
	for _, entry := range e.sent.purge() {
		e.stats.framesPurged.Add(1)
		e.confirmTransfer(NegativeConfirm, entry.frame)
	}
}

// send hands a frame to the sink
func (e *Engine) send(f *frame.Frame) SinkStatus {
	if logger.FrameDebug() {
		e.logger.Debug("FOP %s: TX %s [% X]", e.config.ID, f, f.Data)
	}
	status := e.sink.Send(f)
	if status == SinkBusy {
		e.stats.sinkBusy.Add(1)
		e.logger.Debug("FOP %s: sink busy for %s", e.config.ID, f)
	}
	return status
}

// String returns string representation of the engine
func (e *Engine) String() string {
	return fmt.Sprintf("FOP{ID=%s, %s}", e.config.ID, e.Status())
}
