// Package channel moves transfer frames and CLCW reports between a FOP and
// the receiving end over a pluggable transport (TCP, QUIC, UDP or custom).
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"avaneesh/cop1-go/pkg/clcw"
	"avaneesh/cop1-go/pkg/fop"
	"avaneesh/cop1-go/pkg/frame"
	"avaneesh/cop1-go/pkg/internal/logger"
)

var (
	ErrChannelClosed = errors.New("channel is closed")
	ErrChannelOpen   = errors.New("channel is already open")
)

// Config configures a Channel
type Config struct {
	ID string

	// Envelopes buffered ahead of the transport. A full queue makes Send
	// report Busy.
	WriteQueueSize int

	// Per-envelope write limit passed to the transport (0 = none)
	WriteTimeout time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		ID:             "channel",
		WriteQueueSize: 64,
		WriteTimeout:   5 * time.Second,
	}
}

// ChannelState is Open between Open and Close
type ChannelState int

const (
	ChannelStateOpen ChannelState = iota
	ChannelStateClosed
)

func (s ChannelState) String() string {
	if s == ChannelStateOpen {
		return "Open"
	}
	return "Closed"
}

// Channel serializes outbound envelopes onto a PhysicalChannel and routes
// inbound ones by virtual channel. It is the FrameSink of every FOP engine
// bound to it.
type Channel struct {
	id              string
	physicalChannel PhysicalChannel
	router          *Router
	stats           *Statistics
	logger          logger.Logger
	writeTimeout    time.Duration

	state   ChannelState
	stateMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writeQueue chan *writeRequest
}

// writeRequest is one envelope waiting for the transport
type writeRequest struct {
	data []byte
	kind Kind
	resp chan error // nil when nobody waits for the result
}

// New creates a closed channel over physical
func New(config Config, physical PhysicalChannel, log logger.Logger) *Channel {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if config.WriteQueueSize <= 0 {
		config.WriteQueueSize = DefaultConfig().WriteQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Channel{
		id:              config.ID,
		physicalChannel: physical,
		router:          NewRouter(),
		stats:           NewStatistics(),
		logger:          log,
		writeTimeout:    config.WriteTimeout,
		state:           ChannelStateClosed,
		ctx:             ctx,
		cancel:          cancel,
		writeQueue:      make(chan *writeRequest, config.WriteQueueSize),
	}
	physical.SetConnectionStateListener(c)
	return c
}

var _ fop.FrameSink = (*Channel)(nil)

// ID returns the channel ID
func (c *Channel) ID() string {
	return c.id
}

// Open starts the read and write loops
func (c *Channel) Open() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.state == ChannelStateOpen {
		return ErrChannelOpen
	}
	if c.ctx.Err() != nil {
		return ErrChannelClosed
	}

	c.state = ChannelStateOpen

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.readLoop()
	}()
	go func() {
		defer c.wg.Done()
		c.writeLoop()
	}()

	c.logger.Info("Channel %s opened", c.id)
	return nil
}

// Close stops the loops and closes the transport. A closed channel cannot be
// reopened.
func (c *Channel) Close() error {
	c.stateMu.Lock()
	wasOpen := c.state == ChannelStateOpen
	c.state = ChannelStateClosed
	c.stateMu.Unlock()

	if c.ctx.Err() != nil {
		return nil
	}

	c.logger.Info("Channel %s closing", c.id)
	c.cancel()

	if err := c.physicalChannel.Close(); err != nil {
		c.logger.Error("Channel %s: error closing transport: %v", c.id, err)
	}

	if wasOpen {
		c.wg.Wait()
	}
	c.logger.Info("Channel %s closed", c.id)
	return nil
}

// readLoop decodes inbound envelopes and routes them
func (c *Channel) readLoop() {
	c.logger.Debug("Channel %s read loop started", c.id)
	defer c.logger.Debug("Channel %s read loop stopped", c.id)

	for {
		data, err := c.physicalChannel.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Error("Channel %s read error: %v", c.id, err)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		if logger.FrameDebug() {
			c.logger.Debug("Channel %s RX [% X]", c.id, data)
		}

		env, err := Decode(data)
		if err != nil {
			c.logger.Warn("Channel %s: dropping envelope: %v", c.id, err)
			c.stats.BadEnvelope()
			continue
		}
		c.dispatch(env)
	}
}

func (c *Channel) dispatch(env Envelope) {
	var err error
	switch env.Kind {
	case KindCLCW:
		c.stats.CLCWRx()
		err = c.router.RouteCLCW(env.CLCW)
	case KindFrame:
		c.stats.FrameRx()
		c.logger.Debug("Channel %s received %s", c.id, env.Frame)
		err = c.router.RouteFrame(env.Frame)
	}

	if errors.Is(err, ErrNoRoute) {
		c.stats.Unrouted()
		c.logger.Debug("Channel %s: %v", c.id, err)
	} else if err != nil {
		c.logger.Warn("Channel %s: delivery failed: %v", c.id, err)
	}
}

// writeLoop hands queued envelopes to the transport one at a time
func (c *Channel) writeLoop() {
	c.logger.Debug("Channel %s write loop started", c.id)
	defer c.logger.Debug("Channel %s write loop stopped", c.id)

	for {
		select {
		case <-c.ctx.Done():
			for {
				select {
				case req := <-c.writeQueue:
					req.complete(ErrChannelClosed)
				default:
					return
				}
			}

		case req := <-c.writeQueue:
			req.complete(c.write(req))
		}
	}
}

func (c *Channel) write(req *writeRequest) error {
	ctx := c.ctx
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}

	if err := c.physicalChannel.Write(ctx, req.data); err != nil {
		c.stats.WriteError()
		c.logger.Error("Channel %s write error: %v", c.id, err)
		return err
	}

	switch req.kind {
	case KindFrame:
		c.stats.FrameTx()
	case KindCLCW:
		c.stats.CLCWTx()
	}
	return nil
}

func (r *writeRequest) complete(err error) {
	if r.resp != nil {
		r.resp <- err
	}
}

func (c *Channel) isOpen() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state == ChannelStateOpen
}

// Send implements fop.FrameSink. It never blocks: a closed channel or a full
// write queue answers Busy and the FOP retries on its own schedule.
func (c *Channel) Send(f *frame.Frame) fop.SinkStatus {
	if !c.isOpen() {
		return fop.SinkBusy
	}

	data, err := EncodeFrame(f)
	if err != nil {
		c.logger.Error("Channel %s: cannot encode %s: %v", c.id, f, err)
		c.stats.BadEnvelope()
		return fop.SinkBusy
	}

	select {
	case c.writeQueue <- &writeRequest{data: data, kind: KindFrame}:
		return fop.SinkAccepted
	default:
		c.stats.QueueFull()
		return fop.SinkBusy
	}
}

// SendCLCW writes a CLCW report and waits for the transport. Used by the
// receiving end of a link.
func (c *Channel) SendCLCW(ctx context.Context, report clcw.CLCW) error {
	if !c.isOpen() {
		return ErrChannelClosed
	}

	req := &writeRequest{
		data: EncodeCLCW(report),
		kind: KindCLCW,
		resp: make(chan error, 1),
	}

	select {
	case c.writeQueue <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrChannelClosed
	}

	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddVirtualChannel routes CLCWs for vcid to receiver
func (c *Channel) AddVirtualChannel(vcid uint8, receiver CLCWReceiver) error {
	if err := c.router.AddCLCWReceiver(vcid, receiver); err != nil {
		return err
	}
	c.stats.SetReceivers(uint64(c.router.Count()))
	c.logger.Info("Channel %s: virtual channel %d bound", c.id, vcid)
	return nil
}

// RemoveVirtualChannel stops routing CLCWs for vcid
func (c *Channel) RemoveVirtualChannel(vcid uint8) {
	c.router.RemoveCLCWReceiver(vcid)
	c.stats.SetReceivers(uint64(c.router.Count()))
	c.logger.Info("Channel %s: virtual channel %d unbound", c.id, vcid)
}

// AddFrameReceiver routes inbound frames for vcid to receiver
func (c *Channel) AddFrameReceiver(vcid uint8, receiver FrameReceiver) error {
	if err := c.router.AddFrameReceiver(vcid, receiver); err != nil {
		return err
	}
	c.stats.SetReceivers(uint64(c.router.Count()))
	return nil
}

// RemoveFrameReceiver stops routing frames for vcid
func (c *Channel) RemoveFrameReceiver(vcid uint8) {
	c.router.RemoveFrameReceiver(vcid)
	c.stats.SetReceivers(uint64(c.router.Count()))
}

// OnConnectionEstablished implements ConnectionStateListener
func (c *Channel) OnConnectionEstablished() {
	c.logger.Info("Channel %s: transport connected", c.id)
}

// OnConnectionLost implements ConnectionStateListener
func (c *Channel) OnConnectionLost() {
	c.logger.Warn("Channel %s: transport connection lost", c.id)
}

// GetStatistics returns channel statistics
func (c *Channel) GetStatistics() *Statistics {
	return c.stats
}

// GetPhysicalStatistics returns physical channel statistics
func (c *Channel) GetPhysicalStatistics() TransportStats {
	return c.physicalChannel.Statistics()
}

// State returns the current channel state
func (c *Channel) State() ChannelState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// String returns string representation of channel
func (c *Channel) String() string {
	return fmt.Sprintf("Channel{ID=%s, State=%s, Receivers=%d}",
		c.id, c.State(), c.router.Count())
}
