package box2d

import (
	b2 "github.com/ByteArena/box2d"
	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/engine"
)

var (
	_ engine.Body    = (*Body)(nil)
	_ engine.Fixture = (*Fixture)(nil)
)

type Body struct {
	world  *World
	native *b2.B2Body
	// boxes remembers which polygon fixtures were built from a BoxDef; Box2D
	// itself keeps no such flag.
	boxes map[*b2.B2Fixture]bool
}

func (b *Body) CreateFixture(def engine.FixtureDef) (fixture engine.Fixture, err error) {
	if _, live := b.world.bodies[b.native]; !live {
		return nil, errors.Wrap(engine.ErrConstruction, "body was destroyed")
	}
	if def.CategoryBits > 0xFFFF || def.MaskBits > 0xFFFF {
		return nil, errors.Wrapf(ErrFilterOverflow, "category %#x mask %#x", def.CategoryBits, def.MaskBits)
	}
	defer recoverConstruction(&err)

	shape, err := buildShape(def.Shape)
	if err != nil {
		return nil, err
	}
	fd := b2.MakeB2FixtureDef()
	fd.Shape = shape
	fd.Density = def.Density
	fd.Friction = def.Friction
	fd.Restitution = def.Restitution
	fd.IsSensor = def.IsSensor
	fd.Filter.CategoryBits = uint16(def.CategoryBits)
	fd.Filter.MaskBits = uint16(def.MaskBits)

	// Attaching a fixture moves the center of mass and Box2D shifts the linear velocity
	// by rot x the move. The body keeps the velocity it was built with. The field is set
	// directly since SetLinearVelocity would wake an offloaded body.
	velocity := b.native.M_linearVelocity
	native := b.native.CreateFixtureFromDef(&fd)
	if native == nil {
		return nil, errors.Wrap(engine.ErrConstruction, "world is locked")
	}
	b.native.M_linearVelocity = velocity
	if _, ok := def.Shape.(engine.BoxDef); ok {
		b.boxes[native] = true
	}
	return &Fixture{native: native, box: b.boxes[native]}, nil
}

func (b *Body) Type() engine.BodyType {
	switch b.native.GetType() {
	case b2.B2BodyType.B2_dynamicBody:
		return engine.DynamicBody
	case b2.B2BodyType.B2_kinematicBody:
		return engine.KinematicBody
	default:
		return engine.StaticBody
	}
}

func (b *Body) Position() engine.Vec2       { return unvec(b.native.GetPosition()) }
func (b *Body) LinearVelocity() engine.Vec2 { return unvec(b.native.GetLinearVelocity()) }
func (b *Body) Angle() float64              { return b.native.GetAngle() }
func (b *Body) AngularVelocity() float64    { return b.native.GetAngularVelocity() }
func (b *Body) LinearDamping() float64      { return b.native.GetLinearDamping() }
func (b *Body) AngularDamping() float64     { return b.native.GetAngularDamping() }
func (b *Body) IsFixedRotation() bool       { return b.native.IsFixedRotation() }
func (b *Body) IsAwake() bool               { return b.native.IsAwake() }
func (b *Body) IsSleepingAllowed() bool     { return b.native.IsSleepingAllowed() }
func (b *Body) IsActive() bool              { return b.native.IsActive() }
func (b *Body) IsBullet() bool              { return b.native.IsBullet() }
func (b *Body) Mass() float64               { return b.native.GetMass() }
func (b *Body) WorldCenter() engine.Vec2    { return unvec(b.native.GetWorldCenter()) }

func (b *Body) Fixtures() []engine.Fixture {
	var out []engine.Fixture
	for f := b.native.GetFixtureList(); f != nil; f = f.GetNext() {
		out = append(out, &Fixture{native: f, box: b.boxes[f]})
	}
	return out
}

func (b *Body) ApplyLinearImpulse(impulse, point engine.Vec2, wake bool) {
	b.native.ApplyLinearImpulse(vec(impulse), vec(point), wake)
}

type Fixture struct {
	native *b2.B2Fixture
	box    bool
}

func (f *Fixture) Density() float64     { return f.native.GetDensity() }
func (f *Fixture) Friction() float64    { return f.native.GetFriction() }
func (f *Fixture) Restitution() float64 { return f.native.GetRestitution() }
func (f *Fixture) IsSensor() bool       { return f.native.IsSensor() }

func (f *Fixture) CategoryBits() uint32 {
	return uint32(f.native.GetFilterData().CategoryBits)
}

func (f *Fixture) MaskBits() uint32 {
	return uint32(f.native.GetFilterData().MaskBits)
}

func (f *Fixture) ShouldCollide(other engine.Fixture) bool {
	return engine.ShouldCollide(f, other)
}

func (f *Fixture) Shape() engine.Shape {
	switch s := f.native.GetShape().(type) {
	case *b2.B2CircleShape:
		return circle{s}
	case *b2.B2EdgeShape:
		return edge{s}
	case *b2.B2ChainShape:
		return chain{s}
	case *b2.B2PolygonShape:
		return polygon{native: s, box: f.box}
	default:
		return nil
	}
}
