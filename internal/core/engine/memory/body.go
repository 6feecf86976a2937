package memory

import (
	"math"

	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/engine"
)

var (
	_ engine.Body    = (*Body)(nil)
	_ engine.Fixture = (*Fixture)(nil)
)

// Body is a memory-backed rigid body.
type Body struct {
	world    *World
	def      engine.BodyDef
	fixtures []*Fixture
}

// CreateFixture validates the shape and attaches it. Like Box2D, the newest fixture
// is iterated first.
func (b *Body) CreateFixture(def engine.FixtureDef) (engine.Fixture, error) {
	if _, live := b.world.bodies[b]; !live {
		return nil, errors.Wrap(engine.ErrConstruction, "body was destroyed")
	}
	shape, err := buildShape(def.Shape)
	if err != nil {
		return nil, err
	}
	if def.Density < 0 {
		return nil, errors.Wrap(engine.ErrConstruction, "negative density")
	}
	f := &Fixture{body: b, def: def, shape: shape}
	b.fixtures = append([]*Fixture{f}, b.fixtures...)
	return f, nil
}

func (b *Body) Type() engine.BodyType       { return b.def.Type }
func (b *Body) Position() engine.Vec2       { return b.def.Position }
func (b *Body) LinearVelocity() engine.Vec2 { return b.def.LinearVelocity }
func (b *Body) Angle() float64              { return b.def.Angle }
func (b *Body) AngularVelocity() float64    { return b.def.AngularVelocity }
func (b *Body) LinearDamping() float64      { return b.def.LinearDamping }
func (b *Body) AngularDamping() float64     { return b.def.AngularDamping }
func (b *Body) IsFixedRotation() bool       { return b.def.FixedRotation }
func (b *Body) IsAwake() bool               { return b.def.Awake }
func (b *Body) IsSleepingAllowed() bool     { return b.def.AllowSleep }
func (b *Body) IsActive() bool              { return b.def.Active }
func (b *Body) IsBullet() bool              { return b.def.Bullet }
func (b *Body) WorldCenter() engine.Vec2    { return b.def.Position }

func (b *Body) Fixtures() []engine.Fixture {
	out := make([]engine.Fixture, len(b.fixtures))
	for i, f := range b.fixtures {
		out[i] = f
	}
	return out
}

// Mass sums density times area over the fixtures. Dynamic bodies never report less
// than unit mass, matching Box2D's fallback for massless dynamic bodies.
func (b *Body) Mass() float64 {
	if b.def.Type != engine.DynamicBody {
		return 0
	}
	var mass float64
	for _, f := range b.fixtures {
		mass += f.def.Density * f.shape.area()
	}
	if mass <= 0 {
		return 1
	}
	return mass
}

func (b *Body) ApplyLinearImpulse(impulse, _ engine.Vec2, wake bool) {
	if b.def.Type != engine.DynamicBody {
		return
	}
	if !b.def.Awake {
		if !wake {
			return
		}
		b.def.Awake = true
	}
	b.def.LinearVelocity = b.def.LinearVelocity.Add(impulse.Scale(1 / b.Mass()))
}

// Fixture is a memory-backed fixture.
type Fixture struct {
	body  *Body
	def   engine.FixtureDef
	shape shape
}

func (f *Fixture) Shape() engine.Shape  { return f.shape }
func (f *Fixture) Density() float64     { return f.def.Density }
func (f *Fixture) Friction() float64    { return f.def.Friction }
func (f *Fixture) Restitution() float64 { return f.def.Restitution }
func (f *Fixture) CategoryBits() uint32 { return f.def.CategoryBits }
func (f *Fixture) MaskBits() uint32     { return f.def.MaskBits }
func (f *Fixture) IsSensor() bool       { return f.def.IsSensor }

func (f *Fixture) ShouldCollide(other engine.Fixture) bool {
	return engine.ShouldCollide(f, other)
}

const linearSlop = 0.005

func buildShape(def engine.ShapeDef) (shape, error) {
	switch d := def.(type) {
	case engine.CircleDef:
		if !(d.Radius > 0) {
			return nil, errors.Wrapf(engine.ErrConstruction, "circle radius %v", d.Radius)
		}
		return &circle{center: d.Center, radius: d.Radius}, nil
	case engine.BoxDef:
		if !(d.HalfWidth > 0) || !(d.HalfHeight > 0) {
			return nil, errors.Wrapf(engine.ErrConstruction, "box half extents %vx%v", d.HalfWidth, d.HalfHeight)
		}
		vs := d.Vertices()
		return &polygon{vertices: vs, centroid: engine.Centroid(vs), box: true}, nil
	case engine.PolygonDef:
		if len(d.Vertices) < 3 || len(d.Vertices) > 8 {
			return nil, errors.Wrapf(engine.ErrConstruction, "polygon with %d vertices", len(d.Vertices))
		}
		if engine.Area(d.Vertices) <= linearSlop*linearSlop {
			return nil, errors.Wrap(engine.ErrConstruction, "degenerate polygon")
		}
		vs := append([]engine.Vec2(nil), d.Vertices...)
		return &polygon{vertices: vs, centroid: engine.Centroid(vs)}, nil
	case engine.EdgeDef:
		if d.V2.Sub(d.V1).Length() <= linearSlop {
			return nil, errors.Wrap(engine.ErrConstruction, "edge is shorter than the linear slop")
		}
		return &edge{v1: d.V1, v2: d.V2, prev: d.Prev, next: d.Next}, nil
	case engine.ChainDef:
		min := 2
		if d.Loop {
			min = 3
		}
		if len(d.Vertices) < min {
			return nil, errors.Wrapf(engine.ErrConstruction, "chain with %d vertices", len(d.Vertices))
		}
		for i := 1; i < len(d.Vertices); i++ {
			if d.Vertices[i].Sub(d.Vertices[i-1]).Length() <= linearSlop {
				return nil, errors.Wrap(engine.ErrConstruction, "chain vertices are too close")
			}
		}
		c := &chain{vertices: append([]engine.Vec2(nil), d.Vertices...), loop: d.Loop}
		if d.Loop {
			// a loop's ghost vertices wrap around the ring
			prev, next := c.vertices[len(c.vertices)-1], c.vertices[0]
			c.prev, c.next = &prev, &next
		} else {
			c.prev, c.next = d.Prev, d.Next
		}
		return c, nil
	case nil:
		return nil, errors.Wrap(engine.ErrConstruction, "fixture without shape")
	default:
		return nil, errors.Wrapf(engine.ErrConstruction, "unsupported shape %T", def)
	}
}

type shape interface {
	engine.Shape
	area() float64
}

type circle struct {
	center engine.Vec2
	radius float64
}

func (c *circle) Type() engine.ShapeType { return engine.CircleType }
func (c *circle) Center() engine.Vec2    { return c.center }
func (c *circle) Radius() float64        { return c.radius }
func (c *circle) area() float64          { return math.Pi * c.radius * c.radius }

type polygon struct {
	vertices []engine.Vec2
	centroid engine.Vec2
	box      bool
}

func (p *polygon) Type() engine.ShapeType { return engine.PolygonType }
func (p *polygon) Centroid() engine.Vec2  { return p.centroid }
func (p *polygon) IsBox() bool            { return p.box }
func (p *polygon) area() float64          { return engine.Area(p.vertices) }

func (p *polygon) Vertices() []engine.Vec2 {
	return append([]engine.Vec2(nil), p.vertices...)
}

type edge struct {
	v1, v2     engine.Vec2
	prev, next *engine.Vec2
}

func (e *edge) Type() engine.ShapeType { return engine.EdgeType }
func (e *edge) Vertex1() engine.Vec2   { return e.v1 }
func (e *edge) Vertex2() engine.Vec2   { return e.v2 }
func (e *edge) area() float64          { return 0 }

func (e *edge) PrevVertex() (engine.Vec2, bool) { return ghost(e.prev) }
func (e *edge) NextVertex() (engine.Vec2, bool) { return ghost(e.next) }

type chain struct {
	vertices   []engine.Vec2
	loop       bool
	prev, next *engine.Vec2
}

func (c *chain) Type() engine.ShapeType { return engine.ChainType }
func (c *chain) IsLoop() bool           { return c.loop }
func (c *chain) area() float64          { return 0 }

func (c *chain) Vertices() []engine.Vec2 {
	return append([]engine.Vec2(nil), c.vertices...)
}

func (c *chain) PrevVertex() (engine.Vec2, bool) { return ghost(c.prev) }
func (c *chain) NextVertex() (engine.Vec2, bool) { return ghost(c.next) }

func ghost(v *engine.Vec2) (engine.Vec2, bool) {
	if v == nil {
		return engine.Vec2{}, false
	}
	return *v, true
}
