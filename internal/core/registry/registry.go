// Package registry owns live entities: it compiles kinds into engine bodies, keeps
// the template each instance was built from, and keeps namespace membership in step
// with creation and destruction.
//
// A Registry is single-owner state. Callers that share one across goroutines must
// serialize access themselves; the simulation facade does.
package registry

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/adapter"
	"github.com/zeusync/bodysync/internal/core/engine"
	"github.com/zeusync/bodysync/internal/core/namespace"
	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/core/template"
)

var (
	ErrUndefinedKind = errors.New("undefined kind")
	// ErrConstruction is the engine's construction error, re-exported so callers of the
	// registry need not import the engine package.
	ErrConstruction = engine.ErrConstruction
)

// EntityID identifies an instance. Ids increase monotonically and are never reused
// by the registry that issued them.
type EntityID uint64

func (id EntityID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Group holds one body view per structure name.
type Group map[string]*adapter.Entity

// DefaultKind is the kind every registry starts with.
const DefaultKind = "default"

// Predefined namespaces.
const (
	Instances = "instances"
	Entities  = "entities"
	Barriers  = "barriers"
	Terrain   = "terrain"
	Dynamics  = "dynamics"
)

type Predicate = namespace.Predicate[template.Info]

type instance struct {
	kind     string
	group    Group
	template template.Template
}

type Registry struct {
	world  engine.World
	logger log.Log

	next      EntityID
	templates map[string]template.Template
	infos     map[string]template.Info
	kinds     []string
	instances map[EntityID]*instance
	index     *namespace.Index[EntityID, template.Info]
}

type Option func(*Registry)

func WithLogger(logger log.Log) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithNamespace registers an extra namespace before the default kind is defined.
func WithNamespace(name string, pred Predicate) Option {
	return func(r *Registry) { r.index.Register(name, pred) }
}

func New(world engine.World, opts ...Option) *Registry {
	r := &Registry{
		world:     world,
		logger:    log.NewNop(),
		templates: make(map[string]template.Template),
		infos:     make(map[string]template.Info),
		instances: make(map[EntityID]*instance),
		index:     namespace.New[EntityID, template.Info](),
	}

	r.index.Register(Instances, func(template.Info) bool { return true })
	r.index.Register(Entities, TypeIs(template.Entity))
	r.index.Register(Barriers, TypeIs(template.Barrier))
	r.index.Register(Terrain, TypeIs(template.Terrain))
	r.index.Register(Dynamics, func(info template.Info) bool {
		return TypeIs(template.Entity)(info) || TypeIs(template.Barrier)(info)
	})

	for _, opt := range opts {
		opt(r)
	}
	r.DefineGroup(DefaultKind, template.TemplateSpec{})
	return r
}

// TypeIs matches kinds whose default structure has type t.
func TypeIs(t template.StructureType) Predicate {
	return func(info template.Info) bool {
		typ, ok := info.Type()
		return ok && typ == t
	}
}

// KindIs matches instances of one kind.
func KindIs(kind string) Predicate {
	return func(info template.Info) bool { return info.Kind == kind }
}

// Define registers kind as the default kind's default structure with spec merged over it.
func (r *Registry) Define(kind string, spec template.StructureSpec) error {
	return r.DefineFrom(DefaultKind, kind, spec)
}

// DefineFrom registers kind as base's default structure with spec merged over it. Only
// the default structure is inherited.
func (r *Registry) DefineFrom(base, kind string, spec template.StructureSpec) error {
	parent, ok := r.templates[base]
	if !ok {
		return errors.Wrapf(ErrUndefinedKind, "base %q of %q", base, kind)
	}
	var inherited template.StructureSpec
	if s, ok := parent.Structures[template.DefaultName]; ok {
		inherited = s.Spec()
	}
	r.DefineGroup(kind, template.TemplateSpec{
		Structures: map[string]template.StructureSpec{template.DefaultName: inherited.Merge(spec)},
	})
	return nil
}

// DefineGroup registers a multi-structure kind and its auto-namespace. Redefining a kind
// replaces its template for future creates; live instances keep theirs.
func (r *Registry) DefineGroup(kind string, spec template.TemplateSpec) {
	tpl := template.DefineTemplate(spec)
	if _, exists := r.templates[kind]; !exists {
		r.kinds = append(r.kinds, kind)
	}
	r.templates[kind] = tpl
	r.infos[kind] = tpl.Info(kind)
	r.index.Register(kind, KindIs(kind))

	r.logger.Debug("kind defined", log.Kind(kind), log.Strings("structures", tpl.Names()))
}

// Definition returns a copy of the stored template of kind.
func (r *Registry) Definition(kind string) (template.Template, bool) {
	tpl, ok := r.templates[kind]
	if !ok {
		return template.Template{}, false
	}
	return tpl.Clone(), true
}

// Kinds lists defined kinds in definition order.
func (r *Registry) Kinds() []string {
	return append([]string(nil), r.kinds...)
}

// Create builds an instance of kind. Overrides are merged over the stored template at
// template level: a supplied structure mapping replaces the stored one wholesale.
//
// Create is atomic. If the engine rejects any body or fixture, every body already built
// for this call is destroyed and neither the scope nor any namespace changes.
func (r *Registry) Create(kind string, overrides ...template.TemplateSpec) (EntityID, error) {
	stored, ok := r.templates[kind]
	if !ok {
		return 0, errors.Wrapf(ErrUndefinedKind, "create %q", kind)
	}
	spec := stored.Spec()
	for _, o := range overrides {
		spec = spec.Merge(o)
	}
	return r.create(kind, template.DefineTemplate(spec))
}

// Spawn builds an instance of kind with spec merged over the kind's own default
// structure, keeping everything else the kind defines. It is how a kind is placed at
// a pose.
func (r *Registry) Spawn(kind string, spec template.StructureSpec) (EntityID, error) {
	stored, ok := r.templates[kind]
	if !ok {
		return 0, errors.Wrapf(ErrUndefinedKind, "spawn %q", kind)
	}
	ts := stored.Spec()
	ts.Structures[template.DefaultName] = ts.Structures[template.DefaultName].Merge(spec)
	return r.create(kind, template.DefineTemplate(ts))
}

func (r *Registry) create(kind string, tpl template.Template) (EntityID, error) {
	group, err := r.build(tpl)
	if err != nil {
		r.logger.Warn("create failed", log.Kind(kind), log.Error(err))
		return 0, errors.WithMessagef(err, "create %q", kind)
	}

	id := r.next
	r.next++
	r.instances[id] = &instance{kind: kind, group: group, template: tpl}
	r.index.Admit(id, r.infos[kind])

	r.logger.Debug("entity created", log.EntityID(uint64(id)), log.Kind(kind))
	return id, nil
}

// Rebuild replaces the bodies of id with ones built from tpl. The new bodies are built
// first; only when that succeeds are they swapped in and the old ones destroyed, so a
// failure leaves the instance exactly as it was. Absent ids are a no-op.
func (r *Registry) Rebuild(id EntityID, tpl template.Template) error {
	inst, ok := r.instances[id]
	if !ok {
		return nil
	}
	group, err := r.build(tpl)
	if err != nil {
		r.logger.Warn("rebuild failed", log.EntityID(uint64(id)), log.Kind(inst.kind), log.Error(err))
		return errors.WithMessagef(err, "rebuild %d", id)
	}
	old := inst.group
	inst.group = group
	inst.template = tpl.Clone()
	r.release(old)

	r.logger.Debug("entity rebuilt", log.EntityID(uint64(id)), log.Kind(inst.kind))
	return nil
}

// Destroy removes id from the engine, the scope and every namespace. It reports
// whether id was live.
func (r *Registry) Destroy(id EntityID) bool {
	inst, ok := r.instances[id]
	if !ok {
		return false
	}
	r.release(inst.group)
	delete(r.instances, id)
	r.index.Evict(id)

	r.logger.Debug("entity destroyed", log.EntityID(uint64(id)), log.Kind(inst.kind))
	return true
}

// DestroyAll destroys every live id among ids and returns those it destroyed.
func (r *Registry) DestroyAll(ids []EntityID) []EntityID {
	destroyed := make([]EntityID, 0, len(ids))
	for _, id := range ids {
		if r.Destroy(id) {
			destroyed = append(destroyed, id)
		}
	}
	return destroyed
}

// Get returns the body views of id.
func (r *Registry) Get(id EntityID) (Group, bool) {
	inst, ok := r.instances[id]
	if !ok {
		return nil, false
	}
	group := make(Group, len(inst.group))
	for name, e := range inst.group {
		group[name] = e
	}
	return group, true
}

// GetAll looks up several ids; absent ids are left out.
func (r *Registry) GetAll(ids []EntityID) map[EntityID]Group {
	out := make(map[EntityID]Group, len(ids))
	for _, id := range ids {
		if g, ok := r.Get(id); ok {
			out[id] = g
		}
	}
	return out
}

// Of returns the union of the named namespaces in ascending id order. Unknown names
// contribute nothing.
func (r *Registry) Of(names ...string) []EntityID {
	return namespace.Sorted(r.index.Of(names...))
}

// Namespace adds or replaces a namespace. Membership is computed over live instances.
func (r *Registry) Namespace(name string, pred Predicate) {
	r.index.Register(name, pred)
}

func (r *Registry) Namespaces() []string {
	return r.index.Names()
}

// TemplateOf returns a copy of the template id was last built from.
func (r *Registry) TemplateOf(id EntityID) (template.Template, bool) {
	inst, ok := r.instances[id]
	if !ok {
		return template.Template{}, false
	}
	return inst.template.Clone(), true
}

func (r *Registry) KindOf(id EntityID) (string, bool) {
	inst, ok := r.instances[id]
	if !ok {
		return "", false
	}
	return inst.kind, true
}

func (r *Registry) Contains(id EntityID) bool {
	_, ok := r.instances[id]
	return ok
}

func (r *Registry) Len() int {
	return len(r.instances)
}

// IDs returns every live id in ascending order.
func (r *Registry) IDs() []EntityID {
	ids := make([]EntityID, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type lowered struct {
	name     string
	body     engine.BodyDef
	fixtures []engine.FixtureDef
}

// build lowers the whole template before touching the engine, then constructs bodies
// in structure order and fixtures in part order.
func (r *Registry) build(tpl template.Template) (Group, error) {
	names := tpl.Names()
	plan := make([]lowered, 0, len(names))
	for _, name := range names {
		s := tpl.Structures[name]
		l := lowered{name: name, body: template.DefineBody(s.Model), fixtures: make([]engine.FixtureDef, len(s.Parts))}
		for i, p := range s.Parts {
			def, err := template.DefineFixture(p)
			if err != nil {
				return nil, errors.WithMessagef(err, "structure %q part %d", name, i)
			}
			l.fixtures[i] = def
		}
		plan = append(plan, l)
	}

	group := make(Group, len(plan))
	for _, l := range plan {
		body, err := r.world.CreateBody(l.body)
		if err != nil {
			r.release(group)
			return nil, errors.WithMessagef(err, "structure %q", l.name)
		}
		group[l.name] = adapter.NewEntity(body)
		for i, def := range l.fixtures {
			if _, err := body.CreateFixture(def); err != nil {
				r.release(group)
				return nil, errors.WithMessagef(err, "structure %q part %d", l.name, i)
			}
		}
	}
	return group, nil
}

func (r *Registry) release(group Group) {
	for name, e := range group {
		if err := r.world.DestroyBody(e.Body()); err != nil {
			r.logger.Warn("destroy body failed", log.String("structure", name), log.Error(err))
		}
	}
}
