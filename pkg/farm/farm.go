// Package farm is a simulated FARM-1, the receiving end of a COP-1 link. It
// checks AD frame sequence numbers against V(R), executes BC frames and
// reports its state back as CLCWs.
package farm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"avaneesh/cop1-go/pkg/clcw"
	"avaneesh/cop1-go/pkg/frame"
	"avaneesh/cop1-go/pkg/internal/logger"
)

var (
	ErrFarmDisabled = errors.New("farm is disabled")
	ErrWrongVC      = errors.New("frame for another virtual channel")
)

// Reporter carries CLCWs back to the FOP. *channel.Channel implements it.
type Reporter interface {
	SendCLCW(ctx context.Context, report clcw.CLCW) error
}

// State is the FARM-1 state
type State int

const (
	StateOpen State = iota
	StateWait
	StateLockout
)

// String returns string representation of State
func (s State) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateWait:
		return "Wait"
	case StateLockout:
		return "Lockout"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Statistics counts frame outcomes
type Statistics struct {
	Accepted  uint64
	Discarded uint64
	Lockouts  uint64
	BCFrames  uint64
	Reports   uint64
}

// Farm implements channel.FrameReceiver
type Farm struct {
	config    FarmConfig
	callbacks FarmCallbacks
	reporter  Reporter
	logger    logger.Logger

	mu         sync.Mutex
	vr         uint8
	state      State
	retransmit bool
	farmB      uint8
	buffered   int
	bufferFull bool
	stats      Statistics

	enabled bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a farm that reports through reporter. reporter may be nil, in
// which case CLCWs are only available through CLCW().
func New(config FarmConfig, callbacks FarmCallbacks, reporter Reporter, log logger.Logger) *Farm {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if config.WindowWidth < 2 || config.WindowWidth > 254 {
		config.WindowWidth = DefaultFarmConfig(config.VCID).WindowWidth
	}
	if config.ReportTimeout <= 0 {
		config.ReportTimeout = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Farm{
		config:    config,
		callbacks: callbacks,
		reporter:  reporter,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enable starts periodic reporting
func (f *Farm) Enable() {
	f.mu.Lock()
	if f.enabled {
		f.mu.Unlock()
		return
	}
	f.enabled = true
	f.mu.Unlock()

	f.logger.Info("FARM %s enabled on VC %d", f.config.ID, f.config.VCID)

	if f.config.ReportInterval > 0 && f.reporter != nil {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.reportLoop()
		}()
	}
}

// Disable stops reporting and frame processing
func (f *Farm) Disable() {
	f.mu.Lock()
	if !f.enabled {
		f.mu.Unlock()
		return
	}
	f.enabled = false
	f.mu.Unlock()

	f.cancel()
	f.wg.Wait()
	f.logger.Info("FARM %s disabled", f.config.ID)
}

func (f *Farm) reportLoop() {
	ticker := time.NewTicker(f.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.report()
		}
	}
}

// OnFrame processes one transfer frame and reports the resulting CLCW
func (f *Farm) OnFrame(fr *frame.Frame) error {
	if fr.VCID != f.config.VCID {
		return fmt.Errorf("%w: VC %d", ErrWrongVC, fr.VCID)
	}

	f.mu.Lock()
	if !f.enabled {
		f.mu.Unlock()
		return ErrFarmDisabled
	}

	var deliver []byte
	switch fr.Type {
	case frame.TypeAD:
		if f.acceptAD(fr.Sequence) {
			deliver = fr.Data
		}
	case frame.TypeBD:
		f.farmB++
		f.stats.Accepted++
		deliver = fr.Data
	case frame.TypeBC:
		f.executeBC(fr)
	}
	f.mu.Unlock()

	if deliver != nil && f.callbacks.OnDeliver != nil {
		f.callbacks.OnDeliver(deliver)
	}

	f.report()
	return nil
}

// acceptAD applies the FARM-1 acceptance checks to N(S)
func (f *Farm) acceptAD(ns uint8) bool {
	if f.state == StateLockout {
		f.stats.Discarded++
		return false
	}

	half := uint8(f.config.WindowWidth / 2)
	ahead := ns - f.vr

	switch {
	case ahead == 0:
		if f.state == StateWait || f.bufferFull {
			f.retransmit = true
			f.state = StateWait
			f.stats.Discarded++
			return false
		}
		f.vr++
		f.retransmit = false
		f.stats.Accepted++
		if f.config.BufferSize > 0 {
			f.buffered++
			if f.buffered >= f.config.BufferSize {
				f.bufferFull = true
			}
		}
		return true

	case ahead < half:
		// Gap: a frame was lost
		f.retransmit = true
		f.stats.Discarded++
		f.logger.Debug("FARM %s: N(S)=%d ahead of V(R)=%d", f.config.ID, ns, f.vr)
		return false

	case f.vr-ns <= half:
		// Already accepted
		f.stats.Discarded++
		return false

	default:
		f.state = StateLockout
		f.stats.Discarded++
		f.stats.Lockouts++
		f.logger.Warn("FARM %s: N(S)=%d outside window of V(R)=%d, lockout", f.config.ID, ns, f.vr)
		return false
	}
}

// executeBC runs Unlock and Set V(R)
func (f *Farm) executeBC(fr *frame.Frame) {
	f.stats.BCFrames++
	f.farmB++

	switch fr.Command {
	case frame.ControlUnlock:
		f.logger.Info("FARM %s: unlock", f.config.ID)
		f.retransmit = false
		if f.bufferFull {
			f.state = StateWait
		} else {
			f.state = StateOpen
		}

	case frame.ControlSetVR:
		if f.state == StateLockout {
			return
		}
		f.logger.Info("FARM %s: V(R) set to %d", f.config.ID, fr.VR)
		f.vr = fr.VR
		f.retransmit = false
		if !f.bufferFull {
			f.state = StateOpen
		}
	}
}

// Release empties the delivery buffer and clears the wait condition
func (f *Farm) Release() {
	f.mu.Lock()
	f.buffered = 0
	f.bufferFull = false
	if f.state == StateWait {
		f.state = StateOpen
	}
	f.mu.Unlock()

	f.report()
}

// SetBufferFull simulates the higher layer refusing further frames
func (f *Farm) SetBufferFull(full bool) {
	if !full {
		f.Release()
		return
	}
	f.mu.Lock()
	f.bufferFull = true
	f.mu.Unlock()
}

// CLCW returns the current report
func (f *Farm) CLCW() clcw.CLCW {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clcwLocked()
}

func (f *Farm) clcwLocked() clcw.CLCW {
	return clcw.CLCW{
		COPInEffect: clcw.COP1,
		VCID:        f.config.VCID,
		Lockout:     f.state == StateLockout,
		Wait:        f.state == StateWait,
		Retransmit:  f.retransmit,
		FarmB:       f.farmB & 0x03,
		ReportValue: f.vr,
	}
}

// report sends the current CLCW to the reporter, if any
func (f *Farm) report() {
	if f.reporter == nil {
		return
	}

	f.mu.Lock()
	report := f.clcwLocked()
	f.stats.Reports++
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(f.ctx, f.config.ReportTimeout)
	defer cancel()
	if err := f.reporter.SendCLCW(ctx, report); err != nil && f.ctx.Err() == nil {
		f.logger.Warn("FARM %s: CLCW report failed: %v", f.config.ID, err)
	}
}

// State returns the FARM state
func (f *Farm) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// VR returns the next expected sequence number
func (f *Farm) VR() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vr
}

// Statistics returns a snapshot of the counters
func (f *Farm) Statistics() Statistics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// String returns string representation of the farm
func (f *Farm) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("FARM{ID=%s, VC=%d, State=%s, V(R)=%d, FARM-B=%d}",
		f.config.ID, f.config.VCID, f.state, f.vr, f.farmB&0x03)
}
