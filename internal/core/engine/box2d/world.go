// Package box2d backs the engine capability interface with github.com/ByteArena/box2d.
package box2d

import (
	"fmt"

	b2 "github.com/ByteArena/box2d"
	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/engine"
)

// ErrFilterOverflow is returned when a fixture uses collision channels Box2D cannot
// represent; its filter words are 16 bits wide.
var ErrFilterOverflow = errors.New("collision channel does not fit a 16-bit filter")

var _ engine.World = (*World)(nil)

// World wraps a Box2D world.
type World struct {
	world  b2.B2World
	bodies map[*b2.B2Body]*Body
}

func NewWorld(gravity engine.Vec2) *World {
	return &World{
		world:  b2.MakeB2World(vec(gravity)),
		bodies: make(map[*b2.B2Body]*Body),
	}
}

func (w *World) CreateBody(def engine.BodyDef) (body engine.Body, err error) {
	defer recoverConstruction(&err)

	bd := b2.MakeB2BodyDef()
	bd.Type = bodyType(def.Type)
	bd.Position = vec(def.Position)
	bd.Angle = def.Angle
	bd.LinearVelocity = vec(def.LinearVelocity)
	bd.AngularVelocity = def.AngularVelocity
	bd.LinearDamping = def.LinearDamping
	bd.AngularDamping = def.AngularDamping
	bd.FixedRotation = def.FixedRotation
	bd.Awake = def.Awake
	bd.AllowSleep = def.AllowSleep
	bd.Active = def.Active
	bd.Bullet = def.Bullet

	native := w.world.CreateBody(&bd)
	if native == nil {
		return nil, errors.Wrap(engine.ErrConstruction, "world is locked")
	}
	b := &Body{world: w, native: native, boxes: make(map[*b2.B2Fixture]bool)}
	w.bodies[native] = b
	return b, nil
}

func (w *World) DestroyBody(body engine.Body) (err error) {
	b, ok := body.(*Body)
	if !ok || b.world != w {
		return engine.ErrForeignBody
	}
	if _, live := w.bodies[b.native]; !live {
		return nil
	}
	defer recoverConstruction(&err)
	delete(w.bodies, b.native)
	w.world.DestroyBody(b.native)
	return nil
}

func (w *World) Step(dt float64, velocityIterations, positionIterations int) {
	w.world.Step(dt, velocityIterations, positionIterations)
}

// BodyCount reports the number of live bodies.
func (w *World) BodyCount() int {
	return w.world.GetBodyCount()
}

// recoverConstruction turns a Box2D assertion panic into ErrConstruction.
func recoverConstruction(err *error) {
	if r := recover(); r != nil {
		*err = errors.Wrap(engine.ErrConstruction, fmt.Sprint(r))
	}
}

func vec(v engine.Vec2) b2.B2Vec2 {
	return b2.MakeB2Vec2(v.X, v.Y)
}

func unvec(v b2.B2Vec2) engine.Vec2 {
	return engine.Vec2{X: v.X, Y: v.Y}
}

func bodyType(t engine.BodyType) uint8 {
	switch t {
	case engine.DynamicBody:
		return b2.B2BodyType.B2_dynamicBody
	case engine.KinematicBody:
		return b2.B2BodyType.B2_kinematicBody
	default:
		return b2.B2BodyType.B2_staticBody
	}
}
