package cop1

import (
	"errors"
	"fmt"

	"avaneesh/cop1-go/pkg/channel"
	"avaneesh/cop1-go/pkg/config"
	"avaneesh/cop1-go/pkg/internal/logger"
)

var ErrNeedsPhysical = errors.New("memory transport needs a physical channel from the caller")

// NewPhysicalChannel builds the transport described by a link section
func NewPhysicalChannel(link config.LinkConfig) (channel.PhysicalChannel, error) {
	switch link.Transport {
	case config.TransportTCP:
		return channel.NewTCPChannel(link.TCP())
	case config.TransportQUIC:
		return channel.NewQUICChannel(link.QUIC())
	case config.TransportUDP:
		return channel.NewUDPChannel(link.UDP())
	case config.TransportMemory:
		return nil, ErrNeedsPhysical
	default:
		return nil, fmt.Errorf("unknown transport %q", link.Transport)
	}
}

// Station is a link opened from a station file together with its virtual
// channels
type Station struct {
	Link            Link
	VirtualChannels map[uint8]VirtualChannel
}

// OpenStation applies the logging section, connects the link and starts one
// engine per virtual channel
func (m *Manager) OpenStation(cfg *config.StationConfig) (*Station, error) {
	physical, err := NewPhysicalChannel(cfg.Link)
	if err != nil {
		return nil, err
	}
	return m.OpenStationWith(cfg, physical)
}

// OpenStationWith is OpenStation over a caller-supplied transport
func (m *Manager) OpenStationWith(cfg *config.StationConfig, physical channel.PhysicalChannel) (*Station, error) {
	level, err := ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		physical.Close()
		return nil, err
	}
	if cfg.Logging.Level != "" {
		SetLogLevel(level)
		m.SetLogger(logger.GetDefault())
	}
	EnableFrameDebug(cfg.Logging.FrameDebug)

	l, err := m.AddLink(cfg.Link.Channel(), physical)
	if err != nil {
		physical.Close()
		return nil, err
	}

	station := &Station{Link: l, VirtualChannels: make(map[uint8]VirtualChannel)}
	for _, vcc := range cfg.VirtualChannels {
		fc, err := vcc.FOP()
		if err != nil {
			l.Shutdown()
			return nil, err
		}
		vc, err := l.AddVirtualChannel(vcc.VCID, fc)
		if err != nil {
			l.Shutdown()
			return nil, fmt.Errorf("virtual channel %d: %w", vcc.VCID, err)
		}
		station.VirtualChannels[vcc.VCID] = vc
	}
	return station, nil
}
