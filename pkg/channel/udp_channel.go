package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// UDPChannel carries one envelope per datagram. A server replies to the last
// peer it heard from; a client sends to the configured address.
type UDPChannel struct {
	conn *net.UDPConn

	isServer   bool
	remoteAddr *net.UDPAddr
	lastPeer   atomic.Pointer[net.UDPAddr]

	pollInterval time.Duration
	writeTimeout time.Duration

	stats  transportCounters
	closed atomic.Bool
	once   sync.Once
}

// UDPChannelConfig configures a UDP channel
type UDPChannelConfig struct {
	Address      string        // "host:port"; bound by a server, target of a client
	IsServer     bool          // true = bind and wait for a peer, false = send to Address
	PollInterval time.Duration // How often a blocked Read checks for cancellation
	WriteTimeout time.Duration // Write timeout (0 = none)
}

// NewUDPChannel creates a UDP channel
func NewUDPChannel(config UDPChannelConfig) (*UDPChannel, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}

	addr, err := net.ResolveUDPAddr("udp", config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", config.Address, err)
	}

	uc := &UDPChannel{
		isServer:     config.IsServer,
		pollInterval: config.PollInterval,
		writeTimeout: config.WriteTimeout,
	}

	if config.IsServer {
		uc.conn, err = net.ListenUDP("udp", addr)
	} else {
		uc.remoteAddr = addr
		uc.conn, err = net.ListenUDP("udp", &net.UDPAddr{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP socket for %s: %w", config.Address, err)
	}

	uc.stats.connects.Add(1)
	return uc, nil
}

// Read implements PhysicalChannel.Read
func (uc *UDPChannel) Read(ctx context.Context) ([]byte, error) {
	buffer := make([]byte, HeaderSize+MaxBodySize+TrailerSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if uc.closed.Load() {
			return nil, errTransportClosed
		}

		uc.conn.SetReadDeadline(time.Now().Add(uc.pollInterval))
		n, peer, err := uc.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if uc.closed.Load() {
				return nil, errTransportClosed
			}
			uc.stats.readErrors.Add(1)
			return nil, err
		}

		if uc.isServer {
			uc.lastPeer.Store(peer)
		}

		// Datagrams that are not a whole envelope are dropped here
		length, err := bodyLength(buffer[:n])
		if err != nil || n != HeaderSize+length+TrailerSize {
			uc.stats.readErrors.Add(1)
			continue
		}

		data := make([]byte, n)
		copy(data, buffer[:n])
		uc.stats.bytesReceived.Add(uint64(n))
		return data, nil
	}
}

// Write implements PhysicalChannel.Write
func (uc *UDPChannel) Write(ctx context.Context, data []byte) error {
	if uc.closed.Load() {
		return errTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := uc.remoteAddr
	if uc.isServer {
		dest = uc.lastPeer.Load()
		if dest == nil {
			uc.stats.writeErrors.Add(1)
			return fmt.Errorf("%w: no datagram received yet", errNotConnected)
		}
	}

	if uc.writeTimeout > 0 {
		uc.conn.SetWriteDeadline(time.Now().Add(uc.writeTimeout))
	}

	if _, err := uc.conn.WriteToUDP(data, dest); err != nil {
		uc.stats.writeErrors.Add(1)
		return err
	}

	uc.stats.bytesSent.Add(uint64(len(data)))
	return nil
}

// Close implements PhysicalChannel.Close
func (uc *UDPChannel) Close() error {
	var err error
	uc.once.Do(func() {
		uc.closed.Store(true)
		err = uc.conn.Close()
		uc.stats.disconnects.Add(1)
	})
	return err
}

// Statistics implements PhysicalChannel.Statistics
func (uc *UDPChannel) Statistics() TransportStats {
	return uc.stats.snapshot()
}

// SetConnectionStateListener is a no-op: UDP has no connection to report
func (uc *UDPChannel) SetConnectionStateListener(listener ConnectionStateListener) {}

// LocalAddr returns the bound local address
func (uc *UDPChannel) LocalAddr() net.Addr {
	return uc.conn.LocalAddr()
}
