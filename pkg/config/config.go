// Package config loads the YAML description of a ground station: the link to
// the spacecraft and the FOP settings of each virtual channel on it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"avaneesh/cop1-go/pkg/channel"
	"avaneesh/cop1-go/pkg/fop"
)

var (
	ErrInvalidConfig = errors.New("invalid station configuration")
)

// Transport kinds accepted in link.transport
const (
	TransportTCP    = "tcp"
	TransportQUIC   = "quic"
	TransportUDP    = "udp"
	TransportMemory = "memory"
)

// Duration is a time.Duration written as "3s" or "250ms" in YAML
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// StationConfig is the root of a station file
type StationConfig struct {
	Link            LinkConfig             `yaml:"link"`
	Logging         LoggingConfig          `yaml:"logging"`
	VirtualChannels []VirtualChannelConfig `yaml:"virtual_channels"`
}

// LinkConfig selects and configures the transport
type LinkConfig struct {
	ID             string   `yaml:"id"`
	Transport      string   `yaml:"transport"`
	Address        string   `yaml:"address"`
	Server         bool     `yaml:"server"`
	ReconnectDelay Duration `yaml:"reconnect_delay"`
	DialTimeout    Duration `yaml:"dial_timeout"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	KeepAlive      Duration `yaml:"keep_alive"`
	WriteQueue     int      `yaml:"write_queue"`
}

// LoggingConfig sets the global log output
type LoggingConfig struct {
	Level      string `yaml:"level"`
	FrameDebug bool   `yaml:"frame_debug"`
}

// VirtualChannelConfig holds the FOP settings of one virtual channel
type VirtualChannelConfig struct {
	VCID              uint8    `yaml:"vcid"`
	ID                string   `yaml:"id"`
	Window            int      `yaml:"window"`
	TransmissionLimit int      `yaml:"transmission_limit"`
	T1                Duration `yaml:"t1"`
	TimeoutType       string   `yaml:"timeout_type"`
	StatusInterval    Duration `yaml:"status_interval"`
}

// Default returns a station with one TCP client link and virtual channel 0
func Default() *StationConfig {
	fc := fop.DefaultConfig()
	tc := channel.DefaultTCPChannelConfig("127.0.0.1:20000", false)
	cc := channel.DefaultConfig()

	return &StationConfig{
		Link: LinkConfig{
			ID:             "uplink",
			Transport:      TransportTCP,
			Address:        tc.Address,
			ReconnectDelay: Duration(tc.ReconnectDelay),
			DialTimeout:    Duration(tc.DialTimeout),
			WriteTimeout:   Duration(tc.WriteTimeout),
			WriteQueue:     cc.WriteQueueSize,
		},
		Logging: LoggingConfig{Level: "info"},
		VirtualChannels: []VirtualChannelConfig{{
			VCID:              0,
			ID:                "vc0",
			Window:            fc.WindowSize,
			TransmissionLimit: fc.TransmissionLimit,
			T1:                Duration(fc.T1),
			TimeoutType:       "alert",
		}},
	}
}

// Load reads and validates a station file
func Load(path string) (*StationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a station file over the defaults and validates it. Keys left
// out keep their default values.
func Parse(data []byte) (*StationConfig, error) {
	cfg := Default()
	defaults := cfg.VirtualChannels[0]
	cfg.VirtualChannels = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(cfg.VirtualChannels) == 0 {
		cfg.VirtualChannels = []VirtualChannelConfig{defaults}
	}
	for i := range cfg.VirtualChannels {
		cfg.VirtualChannels[i].fillDefaults(defaults)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (v *VirtualChannelConfig) fillDefaults(d VirtualChannelConfig) {
	if v.ID == "" {
		v.ID = fmt.Sprintf("vc%d", v.VCID)
	}
	if v.Window == 0 {
		v.Window = d.Window
	}
	if v.TransmissionLimit == 0 {
		v.TransmissionLimit = d.TransmissionLimit
	}
	if v.T1 == 0 {
		v.T1 = d.T1
	}
	if v.TimeoutType == "" {
		v.TimeoutType = d.TimeoutType
	}
}

// Validate checks the whole station
func (c *StationConfig) Validate() error {
	switch c.Link.Transport {
	case TransportTCP, TransportQUIC, TransportUDP:
		if c.Link.Address == "" {
			return fmt.Errorf("%w: link address is required for %s", ErrInvalidConfig, c.Link.Transport)
		}
	case TransportMemory:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Link.Transport)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}

	seen := make(map[uint8]bool)
	for _, vc := range c.VirtualChannels {
		if seen[vc.VCID] {
			return fmt.Errorf("%w: virtual channel %d defined twice", ErrInvalidConfig, vc.VCID)
		}
		seen[vc.VCID] = true

		fc, err := vc.FOP()
		if err != nil {
			return err
		}
		if err := fc.Validate(); err != nil {
			return fmt.Errorf("virtual channel %d: %w", vc.VCID, err)
		}
	}
	return nil
}

// FOP converts the virtual channel settings to an engine configuration
func (v VirtualChannelConfig) FOP() (fop.Config, error) {
	var tt fop.TimeoutType
	switch strings.ToLower(v.TimeoutType) {
	case "alert", "":
		tt = fop.TimeoutAlert
	case "suspend":
		tt = fop.TimeoutSuspend
	default:
		return fop.Config{}, fmt.Errorf("%w: virtual channel %d: timeout type %q", ErrInvalidConfig, v.VCID, v.TimeoutType)
	}

	return fop.Config{
		ID:                v.ID,
		WindowSize:        v.Window,
		TransmissionLimit: v.TransmissionLimit,
		T1:                time.Duration(v.T1),
		TimeoutType:       tt,
		StatusInterval:    time.Duration(v.StatusInterval),
	}, nil
}

// Channel returns the frame channel settings
func (l LinkConfig) Channel() channel.Config {
	cc := channel.DefaultConfig()
	if l.ID != "" {
		cc.ID = l.ID
	}
	if l.WriteQueue > 0 {
		cc.WriteQueueSize = l.WriteQueue
	}
	cc.WriteTimeout = time.Duration(l.WriteTimeout)
	return cc
}

// TCP returns the TCP transport settings
func (l LinkConfig) TCP() channel.TCPChannelConfig {
	tc := channel.DefaultTCPChannelConfig(l.Address, l.Server)
	if l.ReconnectDelay > 0 {
		tc.ReconnectDelay = time.Duration(l.ReconnectDelay)
	}
	if l.DialTimeout > 0 {
		tc.DialTimeout = time.Duration(l.DialTimeout)
	}
	tc.ReadTimeout = time.Duration(l.ReadTimeout)
	tc.WriteTimeout = time.Duration(l.WriteTimeout)
	return tc
}

// QUIC returns the QUIC transport settings
func (l LinkConfig) QUIC() channel.QUICChannelConfig {
	qc := channel.DefaultQUICChannelConfig(l.Address, l.Server)
	if l.ReconnectDelay > 0 {
		qc.ReconnectDelay = time.Duration(l.ReconnectDelay)
	}
	if l.KeepAlive > 0 {
		qc.KeepAlive = time.Duration(l.KeepAlive)
	}
	qc.ReadTimeout = time.Duration(l.ReadTimeout)
	qc.WriteTimeout = time.Duration(l.WriteTimeout)
	return qc
}

// UDP returns the UDP transport settings
func (l LinkConfig) UDP() channel.UDPChannelConfig {
	return channel.UDPChannelConfig{
		Address:      l.Address,
		IsServer:     l.Server,
		WriteTimeout: time.Duration(l.WriteTimeout),
	}
}
