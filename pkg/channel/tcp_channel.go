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

// TCPChannel carries envelopes over a TCP byte stream. A server keeps the most
// recent accepted connection; a client redials after the connection drops.
type TCPChannel struct {
	conn     net.Conn
	connLock sync.RWMutex

	address        string
	isServer       bool
	listener       net.Listener
	reconnectDelay time.Duration
	dialTimeout    time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration

	stats    transportCounters
	notifier stateNotifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// TCPChannelConfig configures a TCP channel
type TCPChannelConfig struct {
	Address        string        // "host:port" format
	IsServer       bool          // true = listen, false = connect
	ReconnectDelay time.Duration // Delay between reconnection attempts (client only)
	DialTimeout    time.Duration
	ReadTimeout    time.Duration // Idle read limit before the connection is dropped (0 = none)
	WriteTimeout   time.Duration // Write timeout (0 = none)
}

// DefaultTCPChannelConfig returns default configuration
func DefaultTCPChannelConfig(address string, isServer bool) TCPChannelConfig {
	return TCPChannelConfig{
		Address:        address,
		IsServer:       isServer,
		ReconnectDelay: 2 * time.Second,
		DialTimeout:    10 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

// NewTCPChannel creates a TCP channel, listening or dialing immediately
func NewTCPChannel(config TCPChannelConfig) (*TCPChannel, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 2 * time.Second
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TCPChannel{
		address:        config.Address,
		isServer:       config.IsServer,
		reconnectDelay: config.ReconnectDelay,
		dialTimeout:    config.DialTimeout,
		readTimeout:    config.ReadTimeout,
		writeTimeout:   config.WriteTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}

	var err error
	if config.IsServer {
		err = tc.startServer()
	} else {
		err = tc.connect()
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return tc, nil
}

func (tc *TCPChannel) startServer() error {
	listener, err := net.Listen("tcp", tc.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", tc.address, err)
	}
	tc.listener = listener

	tc.wg.Add(1)
	go tc.acceptLoop()
	return nil
}

// acceptLoop replaces the current connection with each newly accepted one
func (tc *TCPChannel) acceptLoop() {
	defer tc.wg.Done()

	for {
		conn, err := tc.listener.Accept()
		if err != nil {
			if tc.closed.Load() {
				return
			}
			continue
		}

		tc.connLock.Lock()
		replaced := tc.conn != nil
		if replaced {
			tc.conn.Close()
			tc.stats.disconnects.Add(1)
		}
		tc.conn = conn
		tc.stats.connects.Add(1)
		tc.connLock.Unlock()

		if replaced {
			tc.notifier.lost()
		}
		tc.notifier.established()
	}
}

func (tc *TCPChannel) dial() (net.Conn, error) {
	dialer := net.Dialer{Timeout: tc.dialTimeout}
	return dialer.DialContext(tc.ctx, "tcp", tc.address)
}

func (tc *TCPChannel) connect() error {
	conn, err := tc.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", tc.address, err)
	}

	tc.setConn(conn)

	tc.wg.Add(1)
	go tc.reconnectLoop()
	return nil
}

func (tc *TCPChannel) setConn(conn net.Conn) {
	tc.connLock.Lock()
	tc.conn = conn
	tc.stats.connects.Add(1)
	tc.connLock.Unlock()

	tc.notifier.established()
}

// reconnectLoop redials while the client has no connection
func (tc *TCPChannel) reconnectLoop() {
	defer tc.wg.Done()

	ticker := time.NewTicker(tc.reconnectDelay)
	defer ticker.Stop()

	for {
		select {
		case <-tc.ctx.Done():
			return
		case <-ticker.C:
		}

		if tc.IsConnected() {
			continue
		}
		if conn, err := tc.dial(); err == nil {
			tc.setConn(conn)
		}
	}
}

// waitConn returns the current connection, waiting for one if necessary
func (tc *TCPChannel) waitConn(ctx context.Context) (net.Conn, error) {
	for {
		tc.connLock.RLock()
		conn := tc.conn
		tc.connLock.RUnlock()

		if conn != nil {
			return conn, nil
		}

		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-tc.ctx.Done():
			return nil, errTransportClosed
		}
	}
}

// Read implements PhysicalChannel.Read
func (tc *TCPChannel) Read(ctx context.Context) ([]byte, error) {
	for {
		conn, err := tc.waitConn(ctx)
		if err != nil {
			return nil, err
		}

		if tc.readTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(tc.readTimeout))
		}

		data, err := readEnvelope(conn)
		if err != nil {
			// A stream that lost framing cannot be resynchronised
			tc.dropConn(conn, &tc.stats.readErrors)
			if tc.closed.Load() {
				return nil, errTransportClosed
			}
			continue
		}

		tc.stats.bytesReceived.Add(uint64(len(data)))
		return data, nil
	}
}

// Write implements PhysicalChannel.Write
func (tc *TCPChannel) Write(ctx context.Context, data []byte) error {
	if tc.closed.Load() {
		return errTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tc.connLock.RLock()
	conn := tc.conn
	tc.connLock.RUnlock()

	if conn == nil {
		tc.stats.writeErrors.Add(1)
		return errNotConnected
	}

	if tc.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(tc.writeTimeout))
	}

	if _, err := conn.Write(data); err != nil {
		tc.dropConn(conn, &tc.stats.writeErrors)
		return err
	}

	tc.stats.bytesSent.Add(uint64(len(data)))
	return nil
}

// dropConn closes conn if it is still the current connection
func (tc *TCPChannel) dropConn(conn net.Conn, counter *atomic.Uint64) {
	counter.Add(1)

	tc.connLock.Lock()
	current := tc.conn == conn
	if current {
		tc.conn.Close()
		tc.conn = nil
		tc.stats.disconnects.Add(1)
	}
	tc.connLock.Unlock()

	if current && !tc.closed.Load() {
		tc.notifier.lost()
	}
}

// Close implements PhysicalChannel.Close
func (tc *TCPChannel) Close() error {
	if !tc.closed.CompareAndSwap(false, true) {
		return nil
	}

	tc.cancel()

	var err error
	if tc.listener != nil {
		err = tc.listener.Close()
	}

	tc.connLock.Lock()
	if tc.conn != nil {
		tc.conn.Close()
		tc.stats.disconnects.Add(1)
		tc.conn = nil
	}
	tc.connLock.Unlock()

	tc.wg.Wait()

	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Statistics implements PhysicalChannel.Statistics
func (tc *TCPChannel) Statistics() TransportStats {
	return tc.stats.snapshot()
}

// SetConnectionStateListener implements PhysicalChannel
func (tc *TCPChannel) SetConnectionStateListener(listener ConnectionStateListener) {
	tc.notifier.set(listener)
}

// IsConnected returns true if there is an active connection
func (tc *TCPChannel) IsConnected() bool {
	tc.connLock.RLock()
	defer tc.connLock.RUnlock()
	return tc.conn != nil
}

// Addr returns the listening address of a server channel
func (tc *TCPChannel) Addr() net.Addr {
	if tc.listener != nil {
		return tc.listener.Addr()
	}
	return nil
}

// RemoteAddr returns the remote address of the connection
func (tc *TCPChannel) RemoteAddr() net.Addr {
	tc.connLock.RLock()
	defer tc.connLock.RUnlock()
	if tc.conn != nil {
		return tc.conn.RemoteAddr()
	}
	return nil
}
