package memory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/bodysync/internal/core/engine"
)

func dynamicDef(x, y float64) engine.BodyDef {
	def := engine.DefaultBodyDef()
	def.Type = engine.DynamicBody
	def.Position = engine.V(x, y)
	return def
}

func TestWorld_StepIntegratesVelocity(t *testing.T) {
	w := NewWorld()
	def := dynamicDef(1, 2)
	def.LinearVelocity = engine.V(3, -1)
	def.AngularVelocity = 0.5
	b, err := w.CreateBody(def)
	require.NoError(t, err)

	w.Step(0.5, 8, 3)

	assert.InDelta(t, 2.5, b.Position().X, 1e-9)
	assert.InDelta(t, 1.5, b.Position().Y, 1e-9)
	assert.InDelta(t, 0.25, b.Angle(), 1e-9)
	assert.Equal(t, uint64(1), w.Steps())
}

func TestWorld_StepAppliesDamping(t *testing.T) {
	w := NewWorld()
	def := dynamicDef(0, 0)
	def.LinearVelocity = engine.V(2, 0)
	def.LinearDamping = 1
	b, err := w.CreateBody(def)
	require.NoError(t, err)

	w.Step(1, 8, 3)

	assert.InDelta(t, 1, b.LinearVelocity().X, 1e-9)
	assert.InDelta(t, 1, b.Position().X, 1e-9)
}

func TestWorld_StaticAndSleepingBodiesStayPut(t *testing.T) {
	w := NewWorld(WithGravity(engine.V(0, -10)))

	static := engine.DefaultBodyDef()
	static.LinearVelocity = engine.V(5, 5)
	s, err := w.CreateBody(static)
	require.NoError(t, err)
	assert.Equal(t, engine.Vec2{}, s.LinearVelocity())

	asleep := dynamicDef(0, 0)
	asleep.Awake = false
	a, err := w.CreateBody(asleep)
	require.NoError(t, err)

	w.Step(1, 8, 3)
	assert.Equal(t, engine.Vec2{}, s.Position())
	assert.Equal(t, engine.Vec2{}, a.Position())
}

func TestWorld_FixedRotation(t *testing.T) {
	w := NewWorld()
	def := dynamicDef(0, 0)
	def.FixedRotation = true
	def.AngularVelocity = 3
	b, err := w.CreateBody(def)
	require.NoError(t, err)

	w.Step(1, 8, 3)
	assert.Equal(t, 0.0, b.Angle())
}

func TestWorld_DestroyBody(t *testing.T) {
	w := NewWorld()
	b, err := w.CreateBody(dynamicDef(0, 0))
	require.NoError(t, err)
	require.Equal(t, 1, w.BodyCount())

	require.NoError(t, w.DestroyBody(b))
	assert.Equal(t, 0, w.BodyCount())
	// second destroy is a no-op
	require.NoError(t, w.DestroyBody(b))

	_, err = b.CreateFixture(engine.FixtureDef{Shape: engine.CircleDef{Radius: 1}})
	assert.ErrorIs(t, err, engine.ErrConstruction)

	other := NewWorld()
	ob, err := other.CreateBody(dynamicDef(0, 0))
	require.NoError(t, err)
	assert.ErrorIs(t, w.DestroyBody(ob), engine.ErrForeignBody)
}

func TestBody_CreateFixtureValidatesGeometry(t *testing.T) {
	w := NewWorld()
	b, err := w.CreateBody(dynamicDef(0, 0))
	require.NoError(t, err)

	bad := []engine.ShapeDef{
		engine.CircleDef{Radius: 0},
		engine.BoxDef{HalfWidth: 0, HalfHeight: 1},
		engine.PolygonDef{Vertices: []engine.Vec2{{0, 0}, {1, 0}}},
		engine.PolygonDef{Vertices: []engine.Vec2{{0, 0}, {1, 0}, {2, 0}}},
		engine.EdgeDef{V1: engine.V(1, 1), V2: engine.V(1, 1)},
		engine.ChainDef{Vertices: []engine.Vec2{{0, 0}}},
		engine.ChainDef{Vertices: []engine.Vec2{{0, 0}, {1, 0}}, Loop: true},
		nil,
	}
	for _, shape := range bad {
		_, err := b.CreateFixture(engine.FixtureDef{Shape: shape, Density: 1})
		assert.ErrorIs(t, err, engine.ErrConstruction, "%#v", shape)
	}
	assert.Empty(t, b.Fixtures())
}

func TestBody_ShapeViews(t *testing.T) {
	w := NewWorld()
	b, err := w.CreateBody(dynamicDef(0, 0))
	require.NoError(t, err)

	_, err = b.CreateFixture(engine.FixtureDef{Shape: engine.BoxDef{HalfWidth: 1, HalfHeight: 2, Center: engine.V(1, 1)}})
	require.NoError(t, err)
	_, err = b.CreateFixture(engine.FixtureDef{Shape: engine.ChainDef{Vertices: []engine.Vec2{{0, 0}, {1, 0}, {1, 1}}, Loop: true}})
	require.NoError(t, err)

	fixtures := b.Fixtures()
	require.Len(t, fixtures, 2)

	// newest first
	c, ok := fixtures[0].Shape().(engine.ChainShape)
	require.True(t, ok)
	assert.True(t, c.IsLoop())
	prev, has := c.PrevVertex()
	assert.True(t, has)
	assert.Equal(t, engine.V(1, 1), prev)

	p, ok := fixtures[1].Shape().(engine.PolygonShape)
	require.True(t, ok)
	assert.True(t, p.IsBox())
	assert.Equal(t, engine.V(1, 1), p.Centroid())
	vs := p.Vertices()
	require.Len(t, vs, 4)
	assert.Equal(t, engine.V(0, -1), vs[0])
	assert.Equal(t, engine.V(2, 3), vs[2])
}

func TestBody_MassAndImpulse(t *testing.T) {
	w := NewWorld()
	b, err := w.CreateBody(dynamicDef(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1.0, b.Mass())

	_, err = b.CreateFixture(engine.FixtureDef{Shape: engine.BoxDef{HalfWidth: 1, HalfHeight: 1}, Density: 2})
	require.NoError(t, err)
	assert.InDelta(t, 8, b.Mass(), 1e-9)

	b.ApplyLinearImpulse(engine.V(16, 0), b.WorldCenter(), true)
	assert.InDelta(t, 2, b.LinearVelocity().X, 1e-9)

	_, err = b.CreateFixture(engine.FixtureDef{Shape: engine.CircleDef{Radius: 1}, Density: 1})
	require.NoError(t, err)
	assert.InDelta(t, 8+math.Pi, b.Mass(), 1e-9)
}

func TestFixture_ShouldCollide(t *testing.T) {
	w := NewWorld()
	b, err := w.CreateBody(dynamicDef(0, 0))
	require.NoError(t, err)

	a, err := b.CreateFixture(engine.FixtureDef{Shape: engine.CircleDef{Radius: 1}, CategoryBits: 0b01, MaskBits: 0b10})
	require.NoError(t, err)
	c, err := b.CreateFixture(engine.FixtureDef{Shape: engine.CircleDef{Radius: 1}, CategoryBits: 0b10, MaskBits: 0b01})
	require.NoError(t, err)
	d, err := b.CreateFixture(engine.FixtureDef{Shape: engine.CircleDef{Radius: 1}, CategoryBits: 0b10, MaskBits: 0b10})
	require.NoError(t, err)

	assert.True(t, a.ShouldCollide(c))
	assert.False(t, a.ShouldCollide(d))
	assert.False(t, c.ShouldCollide(d))
}
