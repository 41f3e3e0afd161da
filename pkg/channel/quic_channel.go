package channel

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICNextProto is the ALPN protocol both ends must offer
const QUICNextProto = "cop1-quic"

// QUICChannel carries envelopes on a single bidirectional QUIC stream
type QUICChannel struct {
	connection *quic.Conn
	stream     *quic.Stream
	connLock   sync.RWMutex

	address        string
	isServer       bool
	listener       *quic.Listener
	reconnectDelay time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	tlsConfig      *tls.Config
	quicConfig     *quic.Config

	stats    transportCounters
	notifier stateNotifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// QUICChannelConfig configures a QUIC channel
type QUICChannelConfig struct {
	Address        string        // "host:port" format
	IsServer       bool          // true = listen, false = connect
	ReconnectDelay time.Duration // Delay between reconnection attempts (client only)
	ReadTimeout    time.Duration // Idle read limit before the stream is dropped (0 = none)
	WriteTimeout   time.Duration // Write timeout (0 = none)
	KeepAlive      time.Duration // QUIC keep-alive period (0 = quic-go default)
	TLSConfig      *tls.Config   // Optional; a self-signed certificate is generated if nil
}

// DefaultQUICChannelConfig returns default configuration
func DefaultQUICChannelConfig(address string, isServer bool) QUICChannelConfig {
	return QUICChannelConfig{
		Address:        address,
		IsServer:       isServer,
		ReconnectDelay: 2 * time.Second,
		WriteTimeout:   5 * time.Second,
		KeepAlive:      10 * time.Second,
	}
}

// NewQUICChannel creates a QUIC channel, listening or dialing immediately
func NewQUICChannel(config QUICChannelConfig) (*QUICChannel, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 2 * time.Second
	}

	tlsConfig := config.TLSConfig
	if tlsConfig == nil {
		var err error
		tlsConfig, err = generateTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to generate TLS config: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	qc := &QUICChannel{
		address:        config.Address,
		isServer:       config.IsServer,
		reconnectDelay: config.ReconnectDelay,
		readTimeout:    config.ReadTimeout,
		writeTimeout:   config.WriteTimeout,
		tlsConfig:      tlsConfig,
		quicConfig:     &quic.Config{KeepAlivePeriod: config.KeepAlive},
		ctx:            ctx,
		cancel:         cancel,
	}

	var err error
	if config.IsServer {
		err = qc.startServer()
	} else {
		err = qc.connect()
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return qc, nil
}

// generateTLSConfig creates a self-signed certificate for test and lab links
func generateTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates:       []tls.Certificate{tlsCert},
		NextProtos:         []string{QUICNextProto},
		InsecureSkipVerify: true, // self-signed
	}, nil
}

func (qc *QUICChannel) startServer() error {
	listener, err := quic.ListenAddr(qc.address, qc.tlsConfig, qc.quicConfig)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", qc.address, err)
	}
	qc.listener = listener

	qc.wg.Add(1)
	go qc.acceptLoop()
	return nil
}

// acceptLoop replaces the current connection with each newly accepted one
func (qc *QUICChannel) acceptLoop() {
	defer qc.wg.Done()

	for {
		conn, err := qc.listener.Accept(qc.ctx)
		if err != nil {
			if qc.closed.Load() || qc.ctx.Err() != nil {
				return
			}
			continue
		}

		qc.wg.Add(1)
		go qc.acceptStream(conn)
	}
}

// acceptStream waits for the client's stream and installs the connection
func (qc *QUICChannel) acceptStream(conn *quic.Conn) {
	defer qc.wg.Done()

	stream, err := conn.AcceptStream(qc.ctx)
	if err != nil {
		conn.CloseWithError(0, "no stream")
		return
	}
	qc.install(conn, stream)
}

func (qc *QUICChannel) dial() (*quic.Conn, *quic.Stream, error) {
	conn, err := quic.DialAddr(qc.ctx, qc.address, qc.tlsConfig, qc.quicConfig)
	if err != nil {
		return nil, nil, err
	}

	stream, err := conn.OpenStreamSync(qc.ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		return nil, nil, err
	}
	return conn, stream, nil
}

func (qc *QUICChannel) connect() error {
	conn, stream, err := qc.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", qc.address, err)
	}
	qc.install(conn, stream)

	qc.wg.Add(1)
	go qc.reconnectLoop()
	return nil
}

// install makes conn and stream current, closing any previous connection
func (qc *QUICChannel) install(conn *quic.Conn, stream *quic.Stream) {
	qc.connLock.Lock()
	replaced := qc.connection != nil
	if replaced {
		qc.stream.Close()
		qc.connection.CloseWithError(0, "replaced")
		qc.stats.disconnects.Add(1)
	}
	qc.connection = conn
	qc.stream = stream
	qc.stats.connects.Add(1)
	qc.connLock.Unlock()

	if replaced {
		qc.notifier.lost()
	}
	qc.notifier.established()
}

// reconnectLoop redials while the client connection is down
func (qc *QUICChannel) reconnectLoop() {
	defer qc.wg.Done()

	ticker := time.NewTicker(qc.reconnectDelay)
	defer ticker.Stop()

	for {
		select {
		case <-qc.ctx.Done():
			return
		case <-ticker.C:
		}

		if qc.IsConnected() {
			continue
		}
		if conn, stream, err := qc.dial(); err == nil {
			qc.install(conn, stream)
		}
	}
}

func (qc *QUICChannel) current() (*quic.Conn, *quic.Stream) {
	qc.connLock.RLock()
	defer qc.connLock.RUnlock()
	return qc.connection, qc.stream
}

// Read implements PhysicalChannel.Read
func (qc *QUICChannel) Read(ctx context.Context) ([]byte, error) {
	for {
		conn, stream := qc.current()
		if stream == nil {
			select {
			case <-time.After(50 * time.Millisecond):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-qc.ctx.Done():
				return nil, errTransportClosed
			}
		}

		if qc.readTimeout > 0 {
			stream.SetReadDeadline(time.Now().Add(qc.readTimeout))
		}

		data, err := readEnvelope(stream)
		if err != nil {
			qc.drop(conn, &qc.stats.readErrors, "read error")
			if qc.closed.Load() {
				return nil, errTransportClosed
			}
			continue
		}

		qc.stats.bytesReceived.Add(uint64(len(data)))
		return data, nil
	}
}

// Write implements PhysicalChannel.Write
func (qc *QUICChannel) Write(ctx context.Context, data []byte) error {
	if qc.closed.Load() {
		return errTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, stream := qc.current()
	if stream == nil {
		qc.stats.writeErrors.Add(1)
		return errNotConnected
	}

	if qc.writeTimeout > 0 {
		stream.SetWriteDeadline(time.Now().Add(qc.writeTimeout))
	}

	if _, err := stream.Write(data); err != nil {
		qc.drop(conn, &qc.stats.writeErrors, "write error")
		return err
	}

	qc.stats.bytesSent.Add(uint64(len(data)))
	return nil
}

// drop closes conn if it is still the current connection
func (qc *QUICChannel) drop(conn *quic.Conn, counter *atomic.Uint64, reason string) {
	counter.Add(1)

	qc.connLock.Lock()
	current := conn != nil && qc.connection == conn
	if current {
		qc.stream.Close()
		qc.connection.CloseWithError(0, reason)
		qc.connection = nil
		qc.stream = nil
		qc.stats.disconnects.Add(1)
	}
	qc.connLock.Unlock()

	if current && !qc.closed.Load() {
		qc.notifier.lost()
	}
}

// Close implements PhysicalChannel.Close
func (qc *QUICChannel) Close() error {
	if !qc.closed.CompareAndSwap(false, true) {
		return nil
	}

	qc.cancel()

	qc.connLock.Lock()
	if qc.connection != nil {
		qc.stream.Close()
		qc.connection.CloseWithError(0, "channel closed")
		qc.stats.disconnects.Add(1)
		qc.connection = nil
		qc.stream = nil
	}
	qc.connLock.Unlock()

	var err error
	if qc.listener != nil {
		err = qc.listener.Close()
	}

	qc.wg.Wait()
	return err
}

// Statistics implements PhysicalChannel.Statistics
func (qc *QUICChannel) Statistics() TransportStats {
	return qc.stats.snapshot()
}

// SetConnectionStateListener implements PhysicalChannel
func (qc *QUICChannel) SetConnectionStateListener(listener ConnectionStateListener) {
	qc.notifier.set(listener)
}

// IsConnected returns true if there is a live connection
func (qc *QUICChannel) IsConnected() bool {
	conn, _ := qc.current()
	return conn != nil && conn.Context().Err() == nil
}

// Addr returns the listening address of a server channel
func (qc *QUICChannel) Addr() net.Addr {
	if qc.listener != nil {
		return qc.listener.Addr()
	}
	return nil
}
