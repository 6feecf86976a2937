// Package websocket carries envelopes over WebSocket text messages.
package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/transport"
)

// Path is where the sync endpoint is mounted.
const Path = "/sync"

var (
	_ transport.Conn     = (*Conn)(nil)
	_ transport.Listener = (*Listener)(nil)
)

type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	WriteTimeout    time.Duration
	MaxMessageSize  int64
	// Backlog bounds upgraded connections waiting for Accept.
	Backlog         int
}

func DefaultConfig() Config {
	return Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		WriteTimeout:    5 * time.Second,
		MaxMessageSize:  1 << 20,
		Backlog:         64,
	}
}

// Conn is one WebSocket peer.
type Conn struct {
	id     string
	conn   *websocket.Conn
	cfg    Config
	closed int32

	writeMu sync.Mutex
}

func newConn(c *websocket.Conn, cfg Config) *Conn {
	if cfg.MaxMessageSize > 0 {
		c.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Conn{id: uuid.NewString(), conn: c, cfg: cfg}
}

func (c *Conn) ID() string           { return c.id }
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Conn) Send(ctx context.Context, msg []byte) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return transport.ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	} else if c.cfg.WriteTimeout > 0 {
		deadline = time.Now().Add(c.cfg.WriteTimeout)
	}
	_ = c.conn.SetWriteDeadline(deadline)

	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Receive blocks for the next data message. Cancelling ctx closes the connection,
// since a gorilla read cannot be interrupted any other way.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, transport.ErrClosed
	}
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if atomic.LoadInt32(&c.closed) == 1 {
				return nil, transport.ErrClosed
			}
			return nil, errors.Wrap(err, "failed to read message")
		}
		if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// Listener upgrades requests on Path and queues the connections for Accept. It can
// serve its own HTTP server through Listen or be mounted with Handler.
type Listener struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   log.Log
	conns    chan *Conn
	done     chan struct{}
	once     sync.Once

	ln  net.Listener
	srv *http.Server
}

// NewListener builds a listener without a network socket; mount Handler yourself.
func NewListener(cfg Config, logger log.Log) *Listener {
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultConfig().Backlog
	}
	return &Listener{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With(log.String("carrier", "websocket")),
		conns:  make(chan *Conn, cfg.Backlog),
		done:   make(chan struct{}),
	}
}

// Listen binds addr and serves Handler on it.
func Listen(addr string, cfg Config, logger log.Log) (*Listener, error) {
	l := NewListener(cfg, logger)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(transport.ErrListenFailed, "websocket %s: %v", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(Path, l.Handler())
	l.ln = ln
	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("websocket server stopped", log.Error(err))
		}
	}()
	l.logger.Info("websocket listening", log.String("addr", ln.Addr().String()))
	return l, nil
}

func (l *Listener) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-l.done:
			http.Error(w, "closed", http.StatusServiceUnavailable)
			return
		default:
		}
		ws, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			l.logger.Warn("upgrade failed", log.Error(err))
			return
		}
		c := newConn(ws, l.cfg)
		select {
		case l.conns <- c:
		case <-l.done:
			_ = c.Close()
		default:
			l.logger.Warn("accept backlog full, dropping connection", log.String("remote_addr", r.RemoteAddr))
			_ = c.Close()
		}
	})
}

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr is nil for a listener built with NewListener.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		if l.srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err = l.srv.Shutdown(ctx)
		}
		for {
			select {
			case c := <-l.conns:
				_ = c.Close()
			default:
				return
			}
		}
	})
	return err
}

// Dial connects to a sync endpoint, e.g. "ws://127.0.0.1:8080/sync".
func Dial(ctx context.Context, url string, cfg Config) (*Conn, error) {
	d := websocket.Dialer{
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		HandshakeTimeout: 5 * time.Second,
	}
	ws, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return newConn(ws, cfg), nil
}
