// Package quic carries envelopes over QUIC. Each session uses one server-initiated
// bidirectional stream; messages on it are framed with a 4-byte big-endian length.
package quic

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"io"
	"math/big"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/transport"
)

// ALPN is the application protocol both ends negotiate.
const ALPN = "bodysync-quic"

var (
	_ transport.Conn     = (*Conn)(nil)
	_ transport.Listener = (*Listener)(nil)
)

type Config struct {
	MaxMessageSize  uint32
	IdleTimeout     time.Duration
	KeepAlivePeriod time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxMessageSize:  1 << 20,
		IdleTimeout:     30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
}

func (c Config) quic() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  c.IdleTimeout,
		KeepAlivePeriod: c.KeepAlivePeriod,
	}
}

// Conn is one QUIC session and its stream.
type Conn struct {
	id     string
	conn   *quic.Conn
	stream *quic.Stream
	reader *bufio.Reader
	limit  uint32
	closed int32

	writeMu sync.Mutex
	readMu  sync.Mutex
}

func newConn(c *quic.Conn, s *quic.Stream, cfg Config) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		conn:   c,
		stream: s,
		reader: bufio.NewReader(s),
		limit:  cfg.MaxMessageSize,
	}
}

func (c *Conn) ID() string           { return c.id }
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Conn) Send(ctx context.Context, msg []byte) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return transport.ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if d, ok := ctx.Deadline(); ok {
		_ = c.stream.SetWriteDeadline(d)
		defer c.stream.SetWriteDeadline(time.Time{})
	}
	if err := WriteFrame(c.stream, msg, c.limit); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, transport.ErrClosed
	}
	c.readMu.Lock()
	defer c.readMu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = c.stream.SetReadDeadline(time.Now()) })
	defer stop()

	msg, err := ReadFrame(c.reader, c.limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if atomic.LoadInt32(&c.closed) == 1 {
			return nil, transport.ErrClosed
		}
		return nil, errors.Wrap(err, "failed to read frame")
	}
	return msg, nil
}

func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	_ = c.stream.Close()
	return c.conn.CloseWithError(0, "closed")
}

// WriteFrame writes msg behind its length.
func WriteFrame(w io.Writer, msg []byte, limit uint32) error {
	if limit > 0 && uint64(len(msg)) > uint64(limit) {
		return errors.Wrapf(transport.ErrFrameTooBig, "%d bytes", len(msg))
	}
	var head [4]byte
	binary.BigEndian.PutUint32(head[:], uint32(len(msg)))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

// ReadFrame reads one length-prefixed message.
func ReadFrame(r io.Reader, limit uint32) ([]byte, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(head[:])
	if limit > 0 && n > limit {
		return nil, errors.Wrapf(transport.ErrFrameTooBig, "%d bytes", n)
	}
	msg := make([]byte, n)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Listener accepts QUIC sessions and opens the session stream on each.
type Listener struct {
	ln     *quic.Listener
	cfg    Config
	logger log.Log
	closed int32
}

// Listen binds addr. A nil tlsConf gets a self-signed development certificate.
func Listen(addr string, tlsConf *tls.Config, cfg Config, logger log.Log) (*Listener, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if tlsConf == nil {
		var err error
		if tlsConf, err = GenerateSelfSignedTLS(); err != nil {
			return nil, errors.Wrap(err, "generate development certificate")
		}
	}
	ln, err := quic.ListenAddr(addr, tlsConf, cfg.quic())
	if err != nil {
		return nil, errors.Wrapf(transport.ErrListenFailed, "quic %s: %v", addr, err)
	}
	l := &Listener{ln: ln, cfg: cfg, logger: logger.With(log.String("carrier", "quic"))}
	l.logger.Info("quic listening", log.String("addr", ln.Addr().String()))
	return l, nil
}

// Accept waits for a session and opens its stream. The stream becomes visible to the
// peer with the first frame sent on it.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	if atomic.LoadInt32(&l.closed) == 1 {
		return nil, transport.ErrClosed
	}
	qc, err := l.ln.Accept(ctx)
	if err != nil {
		if atomic.LoadInt32(&l.closed) == 1 {
			return nil, transport.ErrClosed
		}
		return nil, errors.Wrap(err, "failed to accept quic session")
	}
	s, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(1, "no stream")
		return nil, errors.Wrap(err, "failed to open session stream")
	}
	return newConn(qc, s, l.cfg), nil
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Close() error {
	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return nil
	}
	return l.ln.Close()
}

// Dial opens a session to addr and waits for the server's stream. A nil tlsConf trusts
// any certificate, which only suits development servers.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config, cfg Config) (*Conn, error) {
	if tlsConf == nil {
		tlsConf = ClientTLS()
	}
	qc, err := quic.DialAddr(ctx, addr, tlsConf, cfg.quic())
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	s, err := qc.AcceptStream(ctx)
	if err != nil {
		_ = qc.CloseWithError(1, "no stream")
		return nil, errors.Wrap(err, "failed to accept session stream")
	}
	return newConn(qc, s, cfg), nil
}

// ClientTLS skips verification and speaks ALPN.
func ClientTLS() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // development servers use self-signed certificates
		NextProtos:         []string{ALPN},
		MinVersion:         tls.VersionTLS13,
	}
}

// GenerateSelfSignedTLS builds a certificate for localhost valid for a year.
func GenerateSelfSignedTLS() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	tpl := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"bodysync"}},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
