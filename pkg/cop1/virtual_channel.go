package cop1

import (
	"context"
	"time"

	"avaneesh/cop1-go/pkg/fop"
	"avaneesh/cop1-go/pkg/frame"
)

// VirtualChannel is the FOP of one virtual channel on a link
type VirtualChannel interface {
	VCID() uint8

	// Transmit queues data as a sequence-controlled AD frame, waiting up to
	// timeout for window space
	Transmit(data []byte, timeout time.Duration) error
	TransmitContext(ctx context.Context, data []byte) error

	// TransmitExpedited sends data as a BD frame, bypassing the window
	TransmitExpedited(data []byte) error

	// Directive requests a FOP directive; the result arrives through
	// Observer.OnDirective
	Directive(tag any, kind fop.DirectiveKind, qualifier int) error

	Register(o fop.Observer)
	Deregister(o fop.Observer)

	Status() fop.Status
	Statistics() fop.StatisticsSnapshot

	// Engine exposes the underlying FOP engine
	Engine() *fop.Engine

	// Remove disposes the engine and unbinds the virtual channel
	Remove() error
}

// virtualChannel implements VirtualChannel
type virtualChannel struct {
	vcid   uint8
	engine *fop.Engine
	link   *link
}

func (v *virtualChannel) VCID() uint8 {
	return v.vcid
}

func (v *virtualChannel) Transmit(data []byte, timeout time.Duration) error {
	return v.engine.Transmit(frame.NewAD(v.vcid, data), timeout)
}

func (v *virtualChannel) TransmitContext(ctx context.Context, data []byte) error {
	return v.engine.TransmitContext(ctx, frame.NewAD(v.vcid, data))
}

func (v *virtualChannel) TransmitExpedited(data []byte) error {
	return v.engine.Transmit(frame.NewBD(v.vcid, data), 0)
}

func (v *virtualChannel) Directive(tag any, kind fop.DirectiveKind, qualifier int) error {
	return v.engine.Directive(tag, kind, qualifier)
}

func (v *virtualChannel) Register(o fop.Observer) {
	v.engine.Register(o)
}

func (v *virtualChannel) Deregister(o fop.Observer) {
	v.engine.Deregister(o)
}

func (v *virtualChannel) Status() fop.Status {
	return v.engine.Status()
}

func (v *virtualChannel) Statistics() fop.StatisticsSnapshot {
	return v.engine.Statistics().Snapshot()
}

func (v *virtualChannel) Engine() *fop.Engine {
	return v.engine
}

func (v *virtualChannel) Remove() error {
	return v.link.RemoveVirtualChannel(v.vcid)
}
