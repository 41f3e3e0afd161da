package cop1

import (
	"errors"
	"fmt"
	"sync"

	"avaneesh/cop1-go/pkg/channel"
	"avaneesh/cop1-go/pkg/farm"
	"avaneesh/cop1-go/pkg/fop"
	"avaneesh/cop1-go/pkg/frame"
)

var (
	ErrVirtualChannelExists   = errors.New("virtual channel already exists")
	ErrVirtualChannelNotFound = errors.New("virtual channel not found")
)

// Link is one physical connection carrying several virtual channels
type Link interface {
	ID() string

	// AddVirtualChannel starts a FOP engine for vcid. The engine starts in
	// S6 and needs an initialisation directive before AD frames flow.
	AddVirtualChannel(vcid uint8, config fop.Config) (VirtualChannel, error)
	RemoveVirtualChannel(vcid uint8) error
	VirtualChannel(vcid uint8) (VirtualChannel, bool)

	// AddReceiver attaches a simulated FARM that answers frames on its
	// virtual channel with CLCWs over this link
	AddReceiver(config farm.FarmConfig, callbacks farm.FarmCallbacks) (*farm.Farm, error)

	Shutdown() error
	Statistics() LinkStatistics
}

// LinkStatistics provides link-level statistics
type LinkStatistics struct {
	FramesTx        uint64 // Frame envelopes written
	FramesRx        uint64 // Frame envelopes received
	CLCWsTx         uint64 // CLCW envelopes written
	CLCWsRx         uint64 // CLCW envelopes received
	BadEnvelopes    uint64 // Envelopes failing sync, length or CRC checks
	QueueFull       uint64 // Sends refused with a full write queue
	WriteErrors     uint64
	Unrouted        uint64 // Envelopes for unbound virtual channels
	VirtualChannels uint64
	PhysicalBytesTx uint64
	PhysicalBytesRx uint64
}

// link implements Link
type link struct {
	channel *channel.Channel
	manager *Manager

	mu        sync.Mutex
	vcs       map[uint8]*virtualChannel
	receivers map[uint8]*farm.Farm
}

func newLink(ch *channel.Channel, m *Manager) *link {
	return &link{
		channel:   ch,
		manager:   m,
		vcs:       make(map[uint8]*virtualChannel),
		receivers: make(map[uint8]*farm.Farm),
	}
}

// ID returns the link ID
func (l *link) ID() string {
	return l.channel.ID()
}

// AddVirtualChannel implements Link
func (l *link) AddVirtualChannel(vcid uint8, config fop.Config) (VirtualChannel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.vcs[vcid]; exists {
		return nil, fmt.Errorf("%w: %d", ErrVirtualChannelExists, vcid)
	}

	engine, err := fop.New(config, frame.NewCounter(), frame.NewBCFactory(vcid), l.channel, l.manager.log())
	if err != nil {
		return nil, err
	}
	if err := l.channel.AddVirtualChannel(vcid, engine); err != nil {
		engine.Dispose()
		return nil, err
	}

	vc := &virtualChannel{vcid: vcid, engine: engine, link: l}
	l.vcs[vcid] = vc
	return vc, nil
}

// RemoveVirtualChannel implements Link
func (l *link) RemoveVirtualChannel(vcid uint8) error {
	l.mu.Lock()
	vc, exists := l.vcs[vcid]
	delete(l.vcs, vcid)
	l.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %d", ErrVirtualChannelNotFound, vcid)
	}

	l.channel.RemoveVirtualChannel(vcid)
	vc.engine.Dispose()
	return nil
}

// VirtualChannel implements Link
func (l *link) VirtualChannel(vcid uint8) (VirtualChannel, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	vc, exists := l.vcs[vcid]
	if !exists {
		return nil, false
	}
	return vc, true
}

// AddReceiver implements Link
func (l *link) AddReceiver(config farm.FarmConfig, callbacks farm.FarmCallbacks) (*farm.Farm, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.receivers[config.VCID]; exists {
		return nil, fmt.Errorf("%w: receiver %d", ErrVirtualChannelExists, config.VCID)
	}

	f := farm.New(config, callbacks, l.channel, l.manager.log())
	if err := l.channel.AddFrameReceiver(config.VCID, f); err != nil {
		return nil, err
	}
	f.Enable()

	l.receivers[config.VCID] = f
	return f, nil
}

// Shutdown closes the link and removes it from the manager
func (l *link) Shutdown() error {
	return l.manager.RemoveLink(l.ID())
}

// close disposes engines and receivers, then closes the channel
func (l *link) close() {
	l.mu.Lock()
	vcs := l.vcs
	receivers := l.receivers
	l.vcs = make(map[uint8]*virtualChannel)
	l.receivers = make(map[uint8]*farm.Farm)
	l.mu.Unlock()

	for vcid, vc := range vcs {
		l.channel.RemoveVirtualChannel(vcid)
		vc.engine.Dispose()
	}
	for vcid, f := range receivers {
		l.channel.RemoveFrameReceiver(vcid)
		f.Disable()
	}
	l.channel.Close()
}

// Statistics implements Link
func (l *link) Statistics() LinkStatistics {
	stats := l.channel.GetStatistics()
	physStats := l.channel.GetPhysicalStatistics()

	l.mu.Lock()
	count := len(l.vcs)
	l.mu.Unlock()

	return LinkStatistics{
		FramesTx:        stats.GetFramesTx(),
		FramesRx:        stats.GetFramesRx(),
		CLCWsTx:         stats.GetCLCWsTx(),
		CLCWsRx:         stats.GetCLCWsRx(),
		BadEnvelopes:    stats.GetBadEnvelopes(),
		QueueFull:       stats.GetQueueFull(),
		WriteErrors:     stats.GetWriteErrors(),
		Unrouted:        stats.GetUnrouted(),
		VirtualChannels: uint64(count),
		PhysicalBytesTx: physStats.BytesSent,
		PhysicalBytesRx: physStats.BytesReceived,
	}
}
