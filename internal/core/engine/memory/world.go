// Package memory is a headless engine backend: bodies integrate their velocity and
// damping, nothing collides. It validates geometry the way Box2D does so construction
// failures surface in tests exactly as they would against the real engine.
package memory

import (
	"math"

	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/engine"
)

var _ engine.World = (*World)(nil)

// World is a flat collection of bodies.
type World struct {
	bodies  map[*Body]struct{}
	order   []*Body
	gravity engine.Vec2
	steps   uint64
}

// Option configures a World.
type Option func(*World)

// WithGravity applies a constant acceleration to dynamic bodies.
func WithGravity(g engine.Vec2) Option {
	return func(w *World) { w.gravity = g }
}

func NewWorld(opts ...Option) *World {
	w := &World{bodies: make(map[*Body]struct{})}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) CreateBody(def engine.BodyDef) (engine.Body, error) {
	if math.IsNaN(def.Position.X) || math.IsNaN(def.Position.Y) || math.IsNaN(def.Angle) {
		return nil, errors.Wrap(engine.ErrConstruction, "body pose is not a number")
	}
	b := &Body{world: w, def: def}
	if def.Type == engine.StaticBody {
		b.def.LinearVelocity = engine.Vec2{}
		b.def.AngularVelocity = 0
	}
	w.bodies[b] = struct{}{}
	w.order = append(w.order, b)
	return b, nil
}

func (w *World) DestroyBody(body engine.Body) error {
	b, ok := body.(*Body)
	if !ok || b.world != w {
		return engine.ErrForeignBody
	}
	if _, live := w.bodies[b]; !live {
		return nil
	}
	delete(w.bodies, b)
	for i, o := range w.order {
		if o == b {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	b.fixtures = nil
	return nil
}

// Step integrates every awake, active, non-static body with semi-implicit Euler.
// The iteration counts are accepted for interface parity and ignored.
func (w *World) Step(dt float64, _, _ int) {
	w.steps++
	for _, b := range w.order {
		if b.def.Type == engine.StaticBody || !b.def.Active || !b.def.Awake {
			continue
		}
		if b.def.Type == engine.DynamicBody {
			b.def.LinearVelocity = b.def.LinearVelocity.Add(w.gravity.Scale(dt))
		}
		b.def.LinearVelocity = b.def.LinearVelocity.Scale(1 / (1 + dt*b.def.LinearDamping))
		b.def.AngularVelocity *= 1 / (1 + dt*b.def.AngularDamping)

		b.def.Position = b.def.Position.Add(b.def.LinearVelocity.Scale(dt))
		if !b.def.FixedRotation {
			b.def.Angle += b.def.AngularVelocity * dt
		}
	}
}

// BodyCount reports the number of live bodies.
func (w *World) BodyCount() int {
	return len(w.order)
}

// Steps reports how many times Step ran.
func (w *World) Steps() uint64 {
	return w.steps
}
