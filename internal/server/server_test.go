package server

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/bodysync/internal/core/engine/memory"
	"github.com/zeusync/bodysync/internal/core/events"
	"github.com/zeusync/bodysync/internal/core/simulation"
	"github.com/zeusync/bodysync/internal/core/template"
	"github.com/zeusync/bodysync/internal/transport"
	"github.com/zeusync/bodysync/internal/transport/quic"
	"github.com/zeusync/bodysync/internal/transport/websocket"
)

func newServer(t *testing.T, cfg Config, opts ...Option) (*simulation.Simulation, *Server) {
	t.Helper()
	bus := events.NewBus()
	sim, err := simulation.New(memory.NewWorld(), simulation.DefaultConfig(), simulation.WithBus(bus))
	require.NoError(t, err)
	require.NoError(t, sim.Define("ball", template.StructureSpec{
		Parts: []template.PartSpec{{Form: &template.FormSpec{R: template.Ptr(0.5)}}},
	}))
	srv, err := New(sim, bus, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return sim, srv
}

func next(t *testing.T, c transport.Conn) transport.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, err := c.Receive(ctx)
	require.NoError(t, err)
	env, err := transport.Decode(raw)
	require.NoError(t, err)
	return env
}

func dialWebSocket(t *testing.T, srv *Server) transport.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln := websocket.NewListener(websocket.DefaultConfig(), nil)
	hs := httptest.NewServer(ln.Handler())
	t.Cleanup(hs.Close)
	t.Cleanup(func() { _ = ln.Close() })

	client, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(hs.URL, "http"), websocket.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	conn, err := ln.Accept(ctx)
	require.NoError(t, err)
	require.NoError(t, srv.Attach(context.Background(), conn))
	return client
}

func TestAttach_GreetsLateJoiner(t *testing.T) {
	sim, srv := newServer(t, Config{BroadcastEvery: 3})
	id, err := sim.Spawn("ball", template.StructureSpec{ModelSpec: template.ModelSpec{X: template.Ptr(2.0)}})
	require.NoError(t, err)

	client := dialWebSocket(t, srv)

	hello := next(t, client)
	require.Equal(t, transport.TypeHello, hello.Type)
	var h transport.Hello
	require.NoError(t, hello.Bind(&h))
	assert.NotEmpty(t, h.Session)
	assert.Equal(t, hello.Session, h.Session)
	assert.Equal(t, 60.0, h.TickRate)
	assert.Equal(t, simulation.DefaultProtocol(), h.Protocol)
	assert.Equal(t, 3, h.BroadcastEvery)

	spawn := next(t, client)
	require.Equal(t, transport.TypeSpawn, spawn.Type)
	var sp transport.Spawn
	require.NoError(t, spawn.Bind(&sp))
	assert.Equal(t, uint64(id), sp.ID)
	assert.Equal(t, "ball", sp.Kind)
	require.NotNil(t, sp.Template)
	ball, ok := sp.Template.Structures[template.DefaultName]
	require.True(t, ok)
	require.NotNil(t, ball.X)
	assert.Equal(t, 2.0, *ball.X)

	state := next(t, client)
	require.Equal(t, transport.TypeState, state.Type)
	raw, err := state.State()
	require.NoError(t, err)
	decoded, err := sim.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, 2.0, decoded[id][template.DefaultName]["x"])

	assert.Equal(t, 1, srv.Stats().Sessions)
}

func TestLifecycleAndBroadcast(t *testing.T) {
	sim, srv := newServer(t, Config{BroadcastEvery: 2})
	client := dialWebSocket(t, srv)
	next(t, client) // hello
	next(t, client) // empty state

	id, err := sim.Create("ball")
	require.NoError(t, err)
	env := next(t, client)
	require.Equal(t, transport.TypeSpawn, env.Type)
	var sp transport.Spawn
	require.NoError(t, env.Bind(&sp))
	assert.NotNil(t, sp.Template)

	require.NoError(t, srv.Tick())
	require.NoError(t, srv.Tick())
	env = next(t, client)
	require.Equal(t, transport.TypeState, env.Type)
	assert.Equal(t, uint64(2), env.Tick)
	raw, err := env.State()
	require.NoError(t, err)
	decoded, err := sim.Decode(raw)
	require.NoError(t, err)
	assert.Contains(t, decoded, id)

	sim.Destroy(id)
	env = next(t, client)
	require.Equal(t, transport.TypeDespawn, env.Type)
	var d transport.Despawn
	require.NoError(t, env.Bind(&d))
	assert.Equal(t, uint64(id), d.ID)

	stats := srv.Stats()
	assert.Equal(t, uint64(2), stats.Tick)
	assert.Equal(t, uint64(1), stats.Broadcasts)
}

func TestStats_CountsLifecycleEvents(t *testing.T) {
	bus := events.NewBus()
	sim, err := simulation.New(memory.NewWorld(), simulation.DefaultConfig(), simulation.WithBus(bus))
	require.NoError(t, err)
	require.NoError(t, sim.Define("ball", template.StructureSpec{}))
	srv, err := New(sim, bus, Config{})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = bus.Subscribe(events.TypeDestroyed, func(events.Event) error { return boom })
	require.NoError(t, err)
	assert.Zero(t, srv.Stats().Events.Published)

	id, err := sim.Create("ball")
	require.NoError(t, err)
	sim.Destroy(id)

	m := srv.Stats().Events
	assert.Equal(t, uint64(2), m.Published)
	assert.Equal(t, uint64(3), m.DeliveredHandlers)
	assert.Equal(t, uint64(1), m.Errors)
	assert.Equal(t, uint64(3), m.SubscribersActive)

	// closing removes the observer, so the bus stops counting
	require.NoError(t, srv.Close())
	_, err = sim.Create("ball")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), srv.Stats().Events.Published)
}

func TestTickHooksRunBeforeStep(t *testing.T) {
	var seen []uint64
	sim, srv := newServer(t, Config{BroadcastEvery: 10}, WithTickHook(func(sim *simulation.Simulation, tick uint64) {
		seen = append(seen, tick)
		if tick == 1 {
			_, _ = sim.Spawn("ball", template.StructureSpec{ModelSpec: template.ModelSpec{VX: template.Ptr(60.0)}})
		}
	}))

	require.NoError(t, srv.Tick())
	require.NoError(t, srv.Tick())
	assert.Equal(t, []uint64{1, 2}, seen)

	g, ok := sim.StateOf(0)
	require.True(t, ok)
	assert.InDelta(t, 2.0, g[template.DefaultName]["x"], 1e-9)
}

func TestRun_QUIC(t *testing.T) {
	ln, err := quic.Listen("127.0.0.1:0", nil, quic.DefaultConfig(), nil)
	require.NoError(t, err)
	_, srv := newServer(t, Config{}, WithListener(ln))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	client, err := quic.Dial(dctx, ln.Addr().String(), nil, quic.DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, transport.TypeHello, next(t, client).Type)
	assert.Eventually(t, func() bool { return srv.Stats().Running }, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, srv.Run(ctx), ErrServerAlreadyRunning)

	// the tick loop keeps broadcasting
	assert.Equal(t, transport.TypeState, next(t, client).Type)
	assert.Equal(t, transport.TypeState, next(t, client).Type)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Equal(t, 0, srv.Stats().Sessions)
	assert.False(t, srv.Stats().Running)
}

// stuckConn accepts nothing until closed.
type stuckConn struct {
	id     string
	closed chan struct{}
	once   sync.Once
}

func newStuckConn(id string) *stuckConn {
	return &stuckConn{id: id, closed: make(chan struct{})}
}

func (c *stuckConn) ID() string           { return c.id }
func (c *stuckConn) RemoteAddr() net.Addr { return nil }

func (c *stuckConn) Send(ctx context.Context, _ []byte) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *stuckConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-c.closed:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *stuckConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestSlowConsumerIsDropped(t *testing.T) {
	_, srv := newServer(t, Config{BroadcastEvery: 1, SendBuffer: 1, WriteTimeout: time.Minute})
	conn := newStuckConn("stuck")
	require.NoError(t, srv.Attach(context.Background(), conn))

	for i := 0; i < 10; i++ {
		require.NoError(t, srv.Broadcast())
	}
	assert.Eventually(t, func() bool { return srv.Stats().Sessions == 0 }, time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, srv.Stats().Dropped, uint64(1))

	select {
	case <-conn.closed:
	default:
		t.Fatal("dropped session was not closed")
	}
}

func TestClose(t *testing.T) {
	_, srv := newServer(t, Config{})
	conn := newStuckConn("a")
	require.NoError(t, srv.Attach(context.Background(), conn))

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())
	assert.Equal(t, 0, srv.Stats().Sessions)
	assert.ErrorIs(t, srv.Attach(context.Background(), newStuckConn("b")), ErrServerClosed)
	assert.ErrorIs(t, srv.Run(context.Background()), ErrServerClosed)
}
