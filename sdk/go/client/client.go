// Package client mirrors an authoritative bodysync server into a local replica
// simulation. Remote entity ids are mapped onto the ids the replica allocates when it
// mirrors a spawn.
package client

import (
	"context"
	"crypto/tls"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/core/simulation"
	"github.com/zeusync/bodysync/internal/core/template"
	"github.com/zeusync/bodysync/internal/transport"
	"github.com/zeusync/bodysync/internal/transport/quic"
	"github.com/zeusync/bodysync/internal/transport/websocket"
)

type EntityID = simulation.EntityID

type Option func(*Client)

func WithLogger(l log.Log) Option {
	return func(c *Client) { c.logger = l }
}

// WithStrictProtocol makes a hello with a different field list fatal.
func WithStrictProtocol() Option {
	return func(c *Client) { c.strict = true }
}

// OnState is called after every applied state envelope.
func OnState(fn func(tick uint64, applied int)) Option {
	return func(c *Client) { c.onState = fn }
}

type Client struct {
	sim    *simulation.Simulation
	logger log.Log
	strict bool

	onState func(tick uint64, applied int)

	mu      sync.Mutex
	conn    transport.Conn
	session string
	hello   transport.Hello
	remote  map[EntityID]EntityID

	tick   uint64 // atomic
	closed int32  // atomic bool
}

// New builds a client that mirrors into sim. sim must define every kind the server
// spawns.
func New(sim *simulation.Simulation, opts ...Option) *Client {
	c := &Client{
		sim:    sim,
		logger: log.NewNop(),
		remote: make(map[EntityID]EntityID),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.String("component", "replica"))
	return c
}

// DialWebSocket connects to url, e.g. "ws://127.0.0.1:8080/sync".
func (c *Client) DialWebSocket(ctx context.Context, url string) error {
	conn, err := websocket.Dial(ctx, url, websocket.DefaultConfig())
	if err != nil {
		return err
	}
	return c.Attach(conn)
}

// DialQUIC connects to addr. A nil tlsConf accepts the server's certificate unchecked.
func (c *Client) DialQUIC(ctx context.Context, addr string, tlsConf *tls.Config) error {
	conn, err := quic.Dial(ctx, addr, tlsConf, quic.DefaultConfig())
	if err != nil {
		return err
	}
	return c.Attach(conn)
}

// Attach uses an already established connection.
func (c *Client) Attach(conn transport.Conn) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		_ = conn.Close()
		return ErrClientClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = conn.Close()
		return ErrAlreadyConnected
	}
	c.conn = conn
	return nil
}

// Run applies envelopes until ctx is done or the connection fails.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	for {
		raw, err := conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if atomic.LoadInt32(&c.closed) == 1 {
				return ErrClientClosed
			}
			return errors.Wrap(err, "receive")
		}
		env, err := transport.Decode(raw)
		if err != nil {
			c.logger.Warn("dropping envelope", log.Error(err))
			continue
		}
		if err := c.Handle(env); err != nil {
			if errors.Is(err, ErrProtocolMismatch) {
				return err
			}
			c.logger.Warn("envelope not applied", log.String("type", string(env.Type)), log.Error(err))
		}
	}
}

// Handle applies one envelope to the replica.
func (c *Client) Handle(env transport.Envelope) error {
	if env.Tick > atomic.LoadUint64(&c.tick) {
		atomic.StoreUint64(&c.tick, env.Tick)
	}
	switch env.Type {
	case transport.TypeHello:
		return c.onHello(env)
	case transport.TypeSpawn:
		return c.onSpawn(env)
	case transport.TypeDespawn:
		return c.onDespawn(env)
	case transport.TypeState:
		return c.onStateEnvelope(env)
	default:
		return errors.Wrapf(transport.ErrUnknownType, "%q", env.Type)
	}
}

func (c *Client) onHello(env transport.Envelope) error {
	var h transport.Hello
	if err := env.Bind(&h); err != nil {
		return err
	}
	c.mu.Lock()
	c.session = h.Session
	c.hello = h
	c.mu.Unlock()

	c.logger.Info("joined", log.Session(h.Session), log.Float64("tick_rate", h.TickRate))
	if !slices.Equal(h.Protocol, c.sim.Protocol()) {
		c.logger.Warn("protocol mismatch", log.Strings("server", h.Protocol), log.Strings("replica", c.sim.Protocol()))
		if c.strict {
			return errors.Wrapf(ErrProtocolMismatch, "server %v", h.Protocol)
		}
	}
	return nil
}

// onSpawn mirrors a remote instance. Repeated spawns of a known id are ignored, since
// a late joiner may see an instance both in its greeting and in a broadcast.
func (c *Client) onSpawn(env transport.Envelope) error {
	var sp transport.Spawn
	if err := env.Bind(&sp); err != nil {
		return err
	}
	remote := EntityID(sp.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.remote[remote]; ok {
		return nil
	}
	var overrides []template.TemplateSpec
	if sp.Template != nil {
		overrides = append(overrides, *sp.Template)
	}
	local, err := c.sim.Create(sp.Kind, overrides...)
	if err != nil {
		return errors.WithMessagef(err, "mirror spawn %d", sp.ID)
	}
	c.remote[remote] = local
	c.logger.Debug("mirrored spawn", log.EntityID(sp.ID), log.Kind(sp.Kind), log.Uint64("local", uint64(local)))
	return nil
}

func (c *Client) onDespawn(env transport.Envelope) error {
	var d transport.Despawn
	if err := env.Bind(&d); err != nil {
		return err
	}
	remote := EntityID(d.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	local, ok := c.remote[remote]
	if !ok {
		return nil
	}
	delete(c.remote, remote)
	c.sim.Destroy(local)
	return nil
}

func (c *Client) onStateEnvelope(env transport.Envelope) error {
	raw, err := env.State()
	if err != nil {
		return err
	}
	state, err := c.sim.Decode(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	local := make(simulation.State, len(state))
	for remote, group := range state {
		if id, ok := c.remote[remote]; ok {
			local[id] = group
		}
	}
	c.mu.Unlock()

	if err := c.sim.Sync(local); err != nil {
		return err
	}
	if c.onState != nil {
		c.onState(env.Tick, len(local))
	}
	return nil
}

// Local maps a remote id to the replica's id.
func (c *Client) Local(remote EntityID) (EntityID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.remote[remote]
	return id, ok
}

// Mirrored returns the remote ids currently mirrored, ascending.
func (c *Client) Mirrored() []EntityID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]EntityID, 0, len(c.remote))
	for id := range c.remote {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) Hello() transport.Hello {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello
}

// Tick is the latest server tick seen.
func (c *Client) Tick() uint64 { return atomic.LoadUint64(&c.tick) }

func (c *Client) Simulation() *simulation.Simulation { return c.sim }

func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
