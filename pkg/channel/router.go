package channel

import (
	"errors"
	"fmt"
	"sync"

	"avaneesh/cop1-go/pkg/clcw"
	"avaneesh/cop1-go/pkg/frame"
)

var (
	ErrNoRoute     = errors.New("no receiver for virtual channel")
	ErrRouteExists = errors.New("virtual channel already has a receiver")
)

// CLCWReceiver takes CLCW reports for one virtual channel. *fop.Engine
// satisfies it.
type CLCWReceiver interface {
	CLCW(report clcw.CLCW) error
}

// FrameReceiver takes transfer frames for one virtual channel on the
// receiving end of a link
type FrameReceiver interface {
	OnFrame(f *frame.Frame) error
}

// FrameReceiverFunc adapts a function to FrameReceiver
type FrameReceiverFunc func(f *frame.Frame) error

// OnFrame implements FrameReceiver
func (fn FrameReceiverFunc) OnFrame(f *frame.Frame) error {
	return fn(f)
}

// Router delivers inbound envelopes to the receiver bound to their
// virtual channel
type Router struct {
	clcws  map[uint8]CLCWReceiver
	frames map[uint8]FrameReceiver
	mu     sync.RWMutex
}

// NewRouter creates a new router
func NewRouter() *Router {
	return &Router{
		clcws:  make(map[uint8]CLCWReceiver),
		frames: make(map[uint8]FrameReceiver),
	}
}

// AddCLCWReceiver binds r to vcid
func (r *Router) AddCLCWReceiver(vcid uint8, receiver CLCWReceiver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clcws[vcid]; exists {
		return fmt.Errorf("%w: CLCW VC %d", ErrRouteExists, vcid)
	}
	r.clcws[vcid] = receiver
	return nil
}

// RemoveCLCWReceiver unbinds vcid
func (r *Router) RemoveCLCWReceiver(vcid uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clcws, vcid)
}

// AddFrameReceiver binds r to vcid
func (r *Router) AddFrameReceiver(vcid uint8, receiver FrameReceiver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.frames[vcid]; exists {
		return fmt.Errorf("%w: frame VC %d", ErrRouteExists, vcid)
	}
	r.frames[vcid] = receiver
	return nil
}

// RemoveFrameReceiver unbinds vcid
func (r *Router) RemoveFrameReceiver(vcid uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.frames, vcid)
}

// RouteCLCW delivers a CLCW to the receiver of its virtual channel
func (r *Router) RouteCLCW(report clcw.CLCW) error {
	r.mu.RLock()
	receiver, exists := r.clcws[report.VCID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: CLCW VC %d", ErrNoRoute, report.VCID)
	}
	return receiver.CLCW(report)
}

// RouteFrame delivers a frame to the receiver of its virtual channel
func (r *Router) RouteFrame(f *frame.Frame) error {
	r.mu.RLock()
	receiver, exists := r.frames[f.VCID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: frame VC %d", ErrNoRoute, f.VCID)
	}
	return receiver.OnFrame(f)
}

// Count returns the number of bound receivers
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clcws) + len(r.frames)
}

// Clear removes all receivers
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clcws = make(map[uint8]CLCWReceiver)
	r.frames = make(map[uint8]FrameReceiver)
}
