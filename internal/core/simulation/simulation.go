// Package simulation is the public face of the core: kind definition, entity
// lifecycle, namespace queries and the state protocol, safe for concurrent use.
//
// Reads share a lock and mutations take it exclusively, so a state snapshot never
// observes an entity halfway through being rebuilt. Lifecycle events are published
// after the lock is released.
package simulation

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/engine"
	"github.com/zeusync/bodysync/internal/core/events"
	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/core/registry"
	"github.com/zeusync/bodysync/internal/core/template"
	"github.com/zeusync/bodysync/pkg/generic"
)

var digests = generic.NewPool(xxhash.New, (*xxhash.Digest).Reset)

type EntityID = registry.EntityID

// Group is the projected state of one instance: a sparse record per structure name.
type Group map[string]template.Record

// State maps instances to their projected state.
type State map[EntityID]Group

// IDs returns the ids of s in ascending order.
func (s State) IDs() []EntityID {
	ids := make([]EntityID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

const eventSource = "simulation"

type Simulation struct {
	mu sync.RWMutex

	cfg        Config
	world      engine.World
	reg        *registry.Registry
	transforms Transforms
	logger     log.Log
	bus        events.Bus
	ticks      uint64
}

// New builds a simulation over world. The protocol must only name known fields and
// every configured kind must resolve.
func New(world engine.World, cfg Config, opts ...Option) (*Simulation, error) {
	o := options{logger: log.NewNop(), transforms: DefaultTransforms()}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.TickRate <= 0 {
		return nil, errors.Wrapf(ErrBadConfig, "tick rate %v", cfg.TickRate)
	}
	if len(cfg.Protocol) == 0 {
		cfg.Protocol = DefaultProtocol()
	}
	for _, field := range cfg.Protocol {
		if !template.IsField(field) {
			return nil, errors.Wrapf(ErrUnknownField, "%q", field)
		}
	}
	cfg.Protocol = append([]string(nil), cfg.Protocol...)

	regOpts := []registry.Option{registry.WithLogger(o.logger.With(log.String("component", "registry")))}
	for _, ns := range o.namespaces {
		regOpts = append(regOpts, registry.WithNamespace(ns.name, ns.pred))
	}

	s := &Simulation{
		cfg:        cfg,
		world:      world,
		reg:        registry.New(world, regOpts...),
		transforms: o.transforms,
		logger:     o.logger,
		bus:        o.bus,
	}
	for _, k := range cfg.Kinds {
		if err := s.defineKind(k); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Simulation) defineKind(k Kind) error {
	switch {
	case k.Template != nil:
		s.reg.DefineGroup(k.Name, *k.Template)
		return nil
	default:
		base := k.Base
		if base == "" {
			base = registry.DefaultKind
		}
		var spec template.StructureSpec
		if k.Structure != nil {
			spec = *k.Structure
		}
		return s.reg.DefineFrom(base, k.Name, spec)
	}
}

// Config returns the configuration the simulation runs with.
func (s *Simulation) Config() Config {
	cfg := s.cfg
	cfg.Protocol = s.Protocol()
	return cfg
}

// Protocol returns a copy of the field list.
func (s *Simulation) Protocol() []string {
	return append([]string(nil), s.cfg.Protocol...)
}

// Step advances the world by one tick.
func (s *Simulation) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world.Step(1/s.cfg.TickRate, s.cfg.VelocityIterations, s.cfg.PositionIterations)
	s.ticks++
}

// Ticks reports how many steps ran.
func (s *Simulation) Ticks() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticks
}

// Define registers kind from the default kind.
func (s *Simulation) Define(kind string, spec template.StructureSpec) error {
	return s.DefineFrom(registry.DefaultKind, kind, spec)
}

func (s *Simulation) DefineFrom(base, kind string, spec template.StructureSpec) error {
	s.mu.Lock()
	err := s.reg.DefineFrom(base, kind, spec)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(events.KindDefined{Kind: kind}.Event(eventSource))
	return nil
}

func (s *Simulation) DefineGroup(kind string, spec template.TemplateSpec) {
	s.mu.Lock()
	s.reg.DefineGroup(kind, spec)
	s.mu.Unlock()
	s.publish(events.KindDefined{Kind: kind}.Event(eventSource))
}

func (s *Simulation) Definition(kind string) (template.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Definition(kind)
}

func (s *Simulation) Kinds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Kinds()
}

func (s *Simulation) Create(kind string, overrides ...template.TemplateSpec) (EntityID, error) {
	s.mu.Lock()
	id, err := s.reg.Create(kind, overrides...)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	s.publish(events.Created{ID: uint64(id), Kind: kind}.Event(eventSource))
	return id, nil
}

// Spawn creates kind with spec merged over the kind's default structure.
func (s *Simulation) Spawn(kind string, spec template.StructureSpec) (EntityID, error) {
	s.mu.Lock()
	id, err := s.reg.Spawn(kind, spec)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	s.publish(events.Created{ID: uint64(id), Kind: kind}.Event(eventSource))
	return id, nil
}

// Destroy removes id; absent ids are a no-op reported as false.
func (s *Simulation) Destroy(id EntityID) bool {
	s.mu.Lock()
	kind, _ := s.reg.KindOf(id)
	ok := s.reg.Destroy(id)
	s.mu.Unlock()
	if ok {
		s.publish(events.Destroyed{ID: uint64(id), Kind: kind}.Event(eventSource))
	}
	return ok
}

func (s *Simulation) DestroyAll(ids []EntityID) []EntityID {
	s.mu.Lock()
	kinds := make(map[EntityID]string, len(ids))
	for _, id := range ids {
		if kind, ok := s.reg.KindOf(id); ok {
			kinds[id] = kind
		}
	}
	destroyed := s.reg.DestroyAll(ids)
	s.mu.Unlock()

	evs := make([]events.Event, len(destroyed))
	for i, id := range destroyed {
		evs[i] = events.Destroyed{ID: uint64(id), Kind: kinds[id]}.Event(eventSource)
	}
	s.publish(evs...)
	return destroyed
}

// Get returns the live body views of id. The views read the engine directly; do not
// hold them across a Step or an update from another goroutine.
func (s *Simulation) Get(id EntityID) (registry.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Get(id)
}

func (s *Simulation) GetAll(ids []EntityID) map[EntityID]registry.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.GetAll(ids)
}

func (s *Simulation) Of(names ...string) []EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Of(names...)
}

func (s *Simulation) Namespace(name string, pred registry.Predicate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Namespace(name, pred)
}

func (s *Simulation) Namespaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Namespaces()
}

func (s *Simulation) KindOf(id EntityID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.KindOf(id)
}

func (s *Simulation) TemplateOf(id EntityID) (template.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.TemplateOf(id)
}

func (s *Simulation) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Len()
}

// Impulse applies a linear impulse at the center of one structure of id.
func (s *Simulation) Impulse(id EntityID, structure string, impulse engine.Vec2) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.reg.Get(id)
	if !ok {
		return false
	}
	e, ok := g[structure]
	if !ok {
		return false
	}
	e.Body().ApplyLinearImpulse(impulse, e.Body().WorldCenter(), true)
	return true
}

// publish hands evs to the bus as one batch. Handler errors are logged; they never
// undo the change that produced the events.
func (s *Simulation) publish(evs ...events.Event) {
	if s.bus == nil || len(evs) == 0 {
		return
	}
	if err := s.bus.PublishBatch(evs...); err != nil {
		s.logger.Warn("lifecycle handler failed", log.String("event", evs[0].Type()), log.Int("events", len(evs)), log.Error(err))
	}
}

func rebuiltEvents(ids []EntityID) []events.Event {
	evs := make([]events.Event, len(ids))
	for i, id := range ids {
		evs[i] = events.Rebuilt{ID: uint64(id)}.Event(eventSource)
	}
	return evs
}

// unwrap keeps only protocol fields of rec.
func (s *Simulation) unwrap(rec template.Record) template.Record {
	out := make(template.Record, len(s.cfg.Protocol))
	for _, field := range s.cfg.Protocol {
		if v, ok := rec[field]; ok {
			out[field] = v
		}
	}
	return out
}

func (s *Simulation) project(group registry.Group) Group {
	out := make(Group, len(group))
	for name, e := range group {
		out[name] = e.Project(s.cfg.Protocol)
	}
	return out
}

// checksum hashes the canonical JSON of state; map keys are encoded sorted.
func (s *Simulation) checksum(state State) (sum uint64, err error) {
	err = digests.With(func(d *xxhash.Digest) error {
		if err := json.NewEncoder(d).Encode(state); err != nil {
			return errors.Wrap(ErrTransform, err.Error())
		}
		sum = d.Sum64()
		return nil
	})
	return sum, err
}
