// Package server runs an authoritative simulation and mirrors it to replica sessions
// over any transport carrier.
package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/bodysync/internal/core/events"
	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/core/registry"
	"github.com/zeusync/bodysync/internal/core/simulation"
	"github.com/zeusync/bodysync/internal/transport"
	"github.com/zeusync/bodysync/internal/transport/quic"
	"github.com/zeusync/bodysync/internal/transport/websocket"
)

// TickHook runs on the tick loop before the world steps. It is the only place game
// logic may mutate the authoritative simulation.
type TickHook func(sim *simulation.Simulation, tick uint64)

type Option func(*Server)

func WithLogger(l log.Log) Option {
	return func(s *Server) { s.logger = l }
}

// WithListener adds a carrier listener beyond the configured addresses.
func WithListener(l transport.Listener) Option {
	return func(s *Server) { s.listeners = append(s.listeners, l) }
}

func WithTickHook(h TickHook) Option {
	return func(s *Server) { s.hooks = append(s.hooks, h) }
}

// Server owns the tick loop of one simulation. Sessions only ever receive; every
// message they get is produced on the tick loop or by lifecycle events.
type Server struct {
	sim    *simulation.Simulation
	bus    events.Bus
	cfg    Config
	logger log.Log

	listeners []transport.Listener
	hooks     []TickHook
	subs      []events.Subscription
	watch     *eventWatch

	mu       sync.RWMutex
	sessions map[string]*session

	tick       uint64 // atomic
	broadcasts uint64 // atomic
	dropped    uint64 // atomic
	running    int32  // atomic bool
	closed     int32  // atomic bool
}

// Stats is a point-in-time view of the server.
type Stats struct {
	Sessions   int
	Tick       uint64
	Broadcasts uint64
	Dropped    uint64
	Running    bool
	// Events are the bus counters since the server registered its observer.
	Events events.Metrics
}

// New wires a server to sim. bus must be the bus sim publishes lifecycle events on.
func New(sim *simulation.Simulation, bus events.Bus, cfg Config, opts ...Option) (*Server, error) {
	s := &Server{
		sim:      sim,
		bus:      bus,
		cfg:      cfg.withDefaults(),
		logger:   log.NewNop(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.String("component", "server"))

	for typ, h := range map[string]events.Handler{
		events.TypeCreated:   s.onCreated,
		events.TypeDestroyed: s.onDestroyed,
	} {
		sub, err := bus.Subscribe(typ, h)
		if err != nil {
			s.unsubscribe()
			return nil, errors.Wrapf(err, "subscribe %s", typ)
		}
		s.subs = append(s.subs, sub)
	}
	s.watch = &eventWatch{logger: s.logger}
	bus.AddObserver(s.watch)
	return s, nil
}

// Run opens the configured carriers and drives the tick loop until ctx is done. All
// sessions and listeners are closed on return.
func (s *Server) Run(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}
	defer atomic.StoreInt32(&s.running, 0)

	listeners, err := s.open()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(ctx) })
	for _, l := range listeners {
		g.Go(func() error { return s.accept(ctx, l) })
	}
	g.Go(func() error {
		<-ctx.Done()
		for _, l := range listeners {
			_ = l.Close()
		}
		return nil
	})

	err = g.Wait()
	s.closeSessions()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) open() ([]transport.Listener, error) {
	listeners := append([]transport.Listener(nil), s.listeners...)
	if s.cfg.WebSocketAddr != "" {
		l, err := websocket.Listen(s.cfg.WebSocketAddr, websocket.DefaultConfig(), s.logger)
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, l)
	}
	if s.cfg.QUICAddr != "" {
		l, err := quic.Listen(s.cfg.QUICAddr, nil, quic.DefaultConfig(), s.logger)
		if err != nil {
			for _, opened := range listeners[len(s.listeners):] {
				_ = opened.Close()
			}
			return nil, err
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

func (s *Server) loop(ctx context.Context) error {
	period := time.Duration(float64(time.Second) / s.sim.Config().TickRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	s.logger.Info("tick loop started", log.Duration("period", period),
		log.Int("broadcast_every", s.cfg.BroadcastEvery))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				s.logger.Error("tick failed", log.Error(err))
			}
		}
	}
}

func (s *Server) accept(ctx context.Context, l transport.Listener) error {
	for {
		conn, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", log.Error(err))
			continue
		}
		if err := s.Attach(ctx, conn); err != nil {
			s.logger.Warn("session rejected", log.Session(conn.ID()), log.Error(err))
			_ = conn.Close()
		}
	}
}

// Tick runs the hooks, steps the world and broadcasts state when due.
func (s *Server) Tick() error {
	tick := atomic.AddUint64(&s.tick, 1)
	for _, h := range s.hooks {
		h(s.sim, tick)
	}
	s.sim.Step()
	if tick%uint64(s.cfg.BroadcastEvery) != 0 {
		return nil
	}
	return s.Broadcast()
}

// Broadcast quantizes the configured namespaces and sends the result to every session.
// The authority is left holding exactly what the replicas receive.
func (s *Server) Broadcast() error {
	raw, err := s.sim.QuantizeAndSerialize(s.sim.Of(s.cfg.Namespaces...))
	if err != nil {
		return errors.WithMessage(err, "broadcast")
	}
	msg, err := transport.EncodeState(atomic.LoadUint64(&s.tick), "", raw)
	if err != nil {
		return err
	}
	atomic.AddUint64(&s.broadcasts, 1)
	s.broadcast(msg)
	return nil
}

// Attach greets conn and starts mirroring to it: hello, a spawn per live instance,
// then the full state of the configured namespaces.
func (s *Server) Attach(ctx context.Context, conn transport.Conn) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	s.mu.Lock()
	greeting, err := s.greeting(conn.ID())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	sess := newSession(conn, len(greeting)+s.cfg.SendBuffer)
	for _, msg := range greeting {
		sess.enqueue(msg)
	}
	s.sessions[sess.id] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	s.logger.Info("session joined", log.Session(sess.id),
		log.String("remote_addr", remoteAddr(conn)), log.Int("sessions", count))

	go s.write(ctx, sess)
	go s.read(ctx, sess)
	return nil
}

func (s *Server) greeting(id string) ([][]byte, error) {
	tick := atomic.LoadUint64(&s.tick)
	cfg := s.sim.Config()

	hello, err := transport.Encode(transport.TypeHello, tick, id, transport.Hello{
		Session:        id,
		TickRate:       cfg.TickRate,
		Protocol:       cfg.Protocol,
		BroadcastEvery: s.cfg.BroadcastEvery,
	})
	if err != nil {
		return nil, err
	}
	out := [][]byte{hello}

	for _, eid := range s.sim.Of(registry.Instances) {
		kind, ok := s.sim.KindOf(eid)
		if !ok {
			continue
		}
		msg, err := transport.Encode(transport.TypeSpawn, tick, id, s.spawnOf(uint64(eid), kind))
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}

	raw, err := s.sim.SerializeUpdate(s.sim.Of(s.cfg.Namespaces...))
	if err != nil {
		return nil, errors.WithMessage(err, "initial state")
	}
	state, err := transport.EncodeState(tick, id, raw)
	if err != nil {
		return nil, err
	}
	return append(out, state), nil
}

func (s *Server) onCreated(e events.Event) error {
	c, ok := e.Data().(events.Created)
	if !ok {
		return nil
	}
	msg, err := transport.Encode(transport.TypeSpawn, atomic.LoadUint64(&s.tick), "", s.spawnOf(c.ID, c.Kind))
	if err != nil {
		return err
	}
	s.broadcast(msg)
	return nil
}

// spawnOf carries the resolved template along with the kind. An instance destroyed
// before its spawn went out is announced by kind alone.
func (s *Server) spawnOf(id uint64, kind string) transport.Spawn {
	sp := transport.Spawn{ID: id, Kind: kind}
	if t, ok := s.sim.TemplateOf(simulation.EntityID(id)); ok {
		spec := t.Spec()
		sp.Template = &spec
	}
	return sp
}

func (s *Server) onDestroyed(e events.Event) error {
	d, ok := e.Data().(events.Destroyed)
	if !ok {
		return nil
	}
	msg, err := transport.Encode(transport.TypeDespawn, atomic.LoadUint64(&s.tick), "", transport.Despawn{ID: d.ID})
	if err != nil {
		return err
	}
	s.broadcast(msg)
	return nil
}

func (s *Server) broadcast(msg []byte) {
	var slow []*session
	s.mu.RLock()
	for _, sess := range s.sessions {
		if !sess.enqueue(msg) {
			slow = append(slow, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range slow {
		atomic.AddUint64(&s.dropped, 1)
		s.drop(sess, ErrSlowConsumer)
	}
}

func (s *Server) write(ctx context.Context, sess *session) {
	for {
		select {
		case <-ctx.Done():
			s.drop(sess, ctx.Err())
			return
		case <-sess.done:
			return
		case msg := <-sess.out:
			wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err := sess.conn.Send(wctx, msg)
			cancel()
			if err != nil {
				s.drop(sess, err)
				return
			}
		}
	}
}

// read drains whatever the peer sends; replicas have nothing to say yet, so this only
// notices disconnects.
func (s *Server) read(ctx context.Context, sess *session) {
	for {
		if _, err := sess.conn.Receive(ctx); err != nil {
			s.drop(sess, err)
			return
		}
	}
}

func (s *Server) drop(sess *session, reason error) {
	if !sess.close() {
		return
	}
	s.mu.Lock()
	delete(s.sessions, sess.id)
	count := len(s.sessions)
	s.mu.Unlock()

	s.logger.Info("session left", log.Session(sess.id), log.Int("sessions", count), log.Error(reason))
}

func (s *Server) closeSessions() {
	s.mu.RLock()
	all := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()
	for _, sess := range all {
		s.drop(sess, ErrServerClosed)
	}
}

// Close stops mirroring. A running Run still needs its context cancelled.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	s.unsubscribe()
	s.closeSessions()
	return nil
}

func (s *Server) unsubscribe() {
	for _, sub := range s.subs {
		_ = s.bus.Unsubscribe(sub)
	}
	s.subs = nil
	if s.watch != nil {
		s.bus.RemoveObserver(s.watch)
		s.watch = nil
	}
}

func (s *Server) Simulation() *simulation.Simulation { return s.sim }

// Logger is the server's logger, already tagged with its component.
func (s *Server) Logger() log.Log { return s.logger }

func (s *Server) Stats() Stats {
	s.mu.RLock()
	n := len(s.sessions)
	s.mu.RUnlock()
	return Stats{
		Sessions:   n,
		Tick:       atomic.LoadUint64(&s.tick),
		Broadcasts: atomic.LoadUint64(&s.broadcasts),
		Dropped:    atomic.LoadUint64(&s.dropped),
		Running:    atomic.LoadInt32(&s.running) == 1,
		Events:     s.bus.Metrics(),
	}
}

// eventWatch logs lifecycle deliveries that failed. Registering it also turns on the
// bus metrics reported in Stats.
type eventWatch struct {
	logger log.Log
}

func (w *eventWatch) OnPublish(string, events.Event) {}

func (w *eventWatch) OnDelivered(eventType string, handlers int, err error, micros int64) {
	if err != nil {
		w.logger.Warn("event delivery failed",
			log.String("event", eventType), log.Int("handlers", handlers), log.Int64("micros", micros), log.Error(err))
	}
}

func remoteAddr(conn transport.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
