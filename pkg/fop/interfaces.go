package fop

import "avaneesh/cop1-go/pkg/frame"

// VirtualChannelAccessor supplies the transmitter frame sequence number V(S)
type VirtualChannelAccessor interface {
	// NextFrameCounter returns V(S) and advances it modulo 256
	NextFrameCounter() uint8

	// SetFrameCounter sets the value NextFrameCounter returns next
	SetFrameCounter(value uint8)
}

// BCFrameFactory builds the control frames used during AD initialisation
type BCFrameFactory interface {
	BuildUnlockFrame() *frame.Frame
	BuildSetVRFrame(vr uint8) *frame.Frame
}

// SinkStatus is the answer of a FrameSink to a send request
type SinkStatus int

const (
	SinkAccepted SinkStatus = iota
	SinkBusy
)

// String returns string representation of SinkStatus
func (s SinkStatus) String() string {
	switch s {
	case SinkAccepted:
		return "Accepted"
	case SinkBusy:
		return "Busy"
	default:
		return "Unknown"
	}
}

// FrameSink accepts frames for physical transmission.
// Send is called from the engine's event loop and must not block;
// it must not call back into Dispose.
type FrameSink interface {
	Send(f *frame.Frame) SinkStatus
}

// FrameSinkFunc adapts a function to FrameSink
type FrameSinkFunc func(f *frame.Frame) SinkStatus

// Send implements FrameSink
func (fn FrameSinkFunc) Send(f *frame.Frame) SinkStatus {
	return fn(f)
}

// Observer receives engine notifications. Calls are made from a single
// dispatcher goroutine in the order the engine produced them, never while
// engine state is being modified, so observers may call back into the engine.
type Observer interface {
	OnTransfer(status OperationStatus, f *frame.Frame)
	OnDirective(status OperationStatus, tag any, kind DirectiveKind, qualifier int)
	OnAlert(code AlertCode)
	OnSuspend()
	OnStatus(status Status)
}

// ObserverFuncs adapts optional callbacks to Observer. Register it by pointer.
type ObserverFuncs struct {
	Transfer  func(status OperationStatus, f *frame.Frame)
	Directive func(status OperationStatus, tag any, kind DirectiveKind, qualifier int)
	Alert     func(code AlertCode)
	Suspend   func()
	Status    func(status Status)
}

// OnTransfer implements Observer
func (o *ObserverFuncs) OnTransfer(status OperationStatus, f *frame.Frame) {
	if o.Transfer != nil {
		o.Transfer(status, f)
	}
}

// OnDirective implements Observer
func (o *ObserverFuncs) OnDirective(status OperationStatus, tag any, kind DirectiveKind, qualifier int) {
	if o.Directive != nil {
		o.Directive(status, tag, kind, qualifier)
	}
}

// OnAlert implements Observer
func (o *ObserverFuncs) OnAlert(code AlertCode) {
	if o.Alert != nil {
		o.Alert(code)
	}
}

// OnSuspend implements Observer
func (o *ObserverFuncs) OnSuspend() {
	if o.Suspend != nil {
		o.Suspend()
	}
}

// OnStatus implements Observer
func (o *ObserverFuncs) OnStatus(status Status) {
	if o.Status != nil {
		o.Status(status)
	}
}
