package template

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/bodysync/internal/core/engine"
)

func TestBits_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		seen := map[int]bool{}
		var set []int
		for n := rng.Intn(12); n > 0; n-- {
			c := rng.Intn(31)
			if !seen[c] {
				seen[c] = true
				set = append(set, c)
			}
		}
		bits, err := SetBits(set)
		require.NoError(t, err)

		sort.Ints(set)
		if set == nil {
			set = []int{}
		}
		assert.Equal(t, set, ReadBits(bits))
	}
}

func TestBits_Edges(t *testing.T) {
	bits, err := SetBits([]int{0, 31})
	require.NoError(t, err)
	assert.Equal(t, uint32(1|1<<31), bits)
	assert.Equal(t, []int{0, 31}, ReadBits(bits))

	// duplicates collapse
	bits, err = SetBits([]int{3, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, ReadBits(bits))

	_, err = SetBits([]int{32})
	assert.ErrorIs(t, err, ErrChannelRange)
	_, err = SetBits([]int{-1})
	assert.ErrorIs(t, err, ErrChannelRange)
}

func TestDefineBody_ByType(t *testing.T) {
	m := DefaultModel()
	m.X, m.Y, m.Ang = 1, 2, 0.5
	m.VX, m.Rot, m.DampVel = 3, 4, 0.1
	m.UseRotate = false
	m.Offload = true
	m.UseOffload = false

	entity := DefineBody(m)
	assert.Equal(t, engine.DynamicBody, entity.Type)
	assert.Equal(t, engine.V(1, 2), entity.Position)
	assert.Equal(t, engine.V(3, 0), entity.LinearVelocity)
	assert.Equal(t, 4.0, entity.AngularVelocity)
	assert.Equal(t, 0.1, entity.LinearDamping)
	assert.True(t, entity.FixedRotation)
	assert.False(t, entity.Awake)
	assert.False(t, entity.AllowSleep)
	assert.True(t, entity.Bullet)
	assert.True(t, entity.Active)

	m.Type = Barrier
	barrier := DefineBody(m)
	assert.Equal(t, engine.KinematicBody, barrier.Type)
	assert.Equal(t, engine.V(3, 0), barrier.LinearVelocity)
	assert.False(t, barrier.Bullet)

	m.Type = Terrain
	m.UseCollision = false
	terrain := DefineBody(m)
	want := engine.DefaultBodyDef()
	want.Position = engine.V(1, 2)
	want.Angle = 0.5
	want.Active = false
	assert.Equal(t, want, terrain)

	m.Type = "ghost"
	assert.Equal(t, engine.DynamicBody, DefineBody(m).Type)
}

func TestDefineShape(t *testing.T) {
	prev := &Point{-1, 0}
	cases := []struct {
		name string
		form Form
		want engine.ShapeDef
	}{
		{"circle", Form{Type: Circle, X: 1, Y: 2, R: 3}, engine.CircleDef{Center: engine.V(1, 2), Radius: 3}},
		{"box", Form{Type: Box, X: 1, W: 4, H: 2}, engine.BoxDef{HalfWidth: 2, HalfHeight: 1, Center: engine.V(1, 0)}},
		{"edge", Form{Type: Edge, X2: 1, Prev: prev}, engine.EdgeDef{V1: engine.V(0, 0), V2: engine.V(1, 0), Prev: &engine.Vec2{X: -1}}},
		{"chain", Form{Type: Chain, Points: []Point{{0, 0}, {1, 1}}, UseLoop: true}, engine.ChainDef{Vertices: []engine.Vec2{{0, 0}, {1, 1}}, Loop: true}},
		{"polygon", Form{Type: Polygon, Points: []Point{{0, 0}, {1, 0}, {0, 1}}}, engine.PolygonDef{Vertices: []engine.Vec2{{0, 0}, {1, 0}, {0, 1}}}},
		{"unknown falls back to circle", Form{Type: "blob", R: 1}, engine.CircleDef{Radius: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DefineShape(tc.form)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDefineShape_Malformed(t *testing.T) {
	malformed := []Form{
		{Type: Box, W: 0, H: 1, R: 1},
		{Type: Box, W: 1, H: -1},
		{Type: Polygon, Points: []Point{{0, 0}, {1, 0}}},
		{Type: Chain, Points: []Point{{0, 0}}},
		{Type: Circle, R: 0},
		{Type: Edge, X: 1, Y: 1, X2: 1, Y2: 1},
	}
	for _, f := range malformed {
		_, err := DefineShape(f)
		assert.ErrorIs(t, err, ErrMalformedForm, "%+v", f)
	}
}

func TestDefineFixture(t *testing.T) {
	p := DefaultPart()
	p.UseCollision = false
	p.Elasticity = 0.7
	p.Channels = []int{1, 2}
	p.CollidesWith = []int{0, 2}

	def, err := DefineFixture(p)
	require.NoError(t, err)
	assert.True(t, def.IsSensor)
	assert.Equal(t, 1.0, def.Density)
	assert.Equal(t, 0.7, def.Restitution)
	assert.Equal(t, uint32(0b110), def.CategoryBits)
	assert.Equal(t, uint32(0b101), def.MaskBits)
	assert.Equal(t, engine.CircleDef{Radius: 1}, def.Shape)

	p.CollidesWith = []int{40}
	_, err = DefineFixture(p)
	assert.ErrorIs(t, err, ErrChannelRange)
}
