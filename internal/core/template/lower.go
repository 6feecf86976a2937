package template

import (
	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/engine"
)

// MaxChannel is one past the highest channel a part may name.
const MaxChannel = 32

// SetBits encodes a set of channels as a bitmask: bit i is set iff i is present.
func SetBits(channels []int) (uint32, error) {
	var bits uint32
	for _, c := range channels {
		if c < 0 || c >= MaxChannel {
			return 0, errors.Wrapf(ErrChannelRange, "channel %d", c)
		}
		bits |= 1 << uint(c)
	}
	return bits, nil
}

// ReadBits decodes a bitmask into its channels in ascending order.
func ReadBits(bits uint32) []int {
	channels := make([]int, 0, 4)
	for i := 0; bits != 0; i++ {
		if bits&1 != 0 {
			channels = append(channels, i)
		}
		bits >>= 1
	}
	return channels
}

// DefineBody lowers a model into body construction parameters. Each body category only
// receives the fields it accepts; everything else keeps the engine default.
func DefineBody(m Model) engine.BodyDef {
	def := engine.DefaultBodyDef()
	def.Position = engine.V(m.X, m.Y)
	def.Angle = m.Ang
	def.Active = m.UseCollision

	switch m.Type {
	case Terrain:
		def.Type = engine.StaticBody
		return def
	case Barrier:
		def.Type = engine.KinematicBody
	default:
		def.Type = engine.DynamicBody
		def.Bullet = m.UseExactCollision
	}
	def.LinearVelocity = engine.V(m.VX, m.VY)
	def.LinearDamping = m.DampVel
	def.AngularVelocity = m.Rot
	def.AngularDamping = m.DampRot
	def.FixedRotation = !m.UseRotate
	def.Awake = !m.Offload
	def.AllowSleep = m.UseOffload
	return def
}

// DefineShape lowers a form into a shape definition. Unknown types lower as circles.
func DefineShape(f Form) (engine.ShapeDef, error) {
	switch f.Type {
	case Box:
		if !(f.W > 0) || !(f.H > 0) {
			return nil, errors.Wrapf(ErrMalformedForm, "box %vx%v", f.W, f.H)
		}
		return engine.BoxDef{HalfWidth: f.W / 2, HalfHeight: f.H / 2, Center: engine.V(f.X, f.Y)}, nil
	case Edge:
		if f.X == f.X2 && f.Y == f.Y2 {
			return nil, errors.Wrap(ErrMalformedForm, "edge has zero length")
		}
		return engine.EdgeDef{
			V1:   engine.V(f.X, f.Y),
			V2:   engine.V(f.X2, f.Y2),
			Prev: vertex(f.Prev),
			Next: vertex(f.Next),
		}, nil
	case Chain:
		if len(f.Points) < 2 {
			return nil, errors.Wrapf(ErrMalformedForm, "chain with %d points", len(f.Points))
		}
		return engine.ChainDef{
			Vertices: vertices(f.Points),
			Loop:     f.UseLoop,
			Prev:     vertex(f.Prev),
			Next:     vertex(f.Next),
		}, nil
	case Polygon:
		if len(f.Points) < 3 {
			return nil, errors.Wrapf(ErrMalformedForm, "polygon with %d points", len(f.Points))
		}
		return engine.PolygonDef{Vertices: vertices(f.Points)}, nil
	default:
		if !(f.R > 0) {
			return nil, errors.Wrapf(ErrMalformedForm, "circle radius %v", f.R)
		}
		return engine.CircleDef{Center: engine.V(f.X, f.Y), Radius: f.R}, nil
	}
}

// DefineFixture lowers a part into fixture construction parameters.
func DefineFixture(p Part) (engine.FixtureDef, error) {
	shape, err := DefineShape(p.Form)
	if err != nil {
		return engine.FixtureDef{}, err
	}
	category, err := SetBits(p.Channels)
	if err != nil {
		return engine.FixtureDef{}, errors.Wrap(err, "channels")
	}
	mask, err := SetBits(p.CollidesWith)
	if err != nil {
		return engine.FixtureDef{}, errors.Wrap(err, "collidesWith")
	}
	return engine.FixtureDef{
		Shape:        shape,
		IsSensor:     !p.UseCollision,
		Density:      p.Density,
		Friction:     p.Friction,
		Restitution:  p.Elasticity,
		CategoryBits: category,
		MaskBits:     mask,
	}, nil
}

func vertex(p *Point) *engine.Vec2 {
	if p == nil {
		return nil
	}
	v := engine.V(p.X, p.Y)
	return &v
}

func vertices(points []Point) []engine.Vec2 {
	vs := make([]engine.Vec2, len(points))
	for i, p := range points {
		vs[i] = engine.V(p.X, p.Y)
	}
	return vs
}
