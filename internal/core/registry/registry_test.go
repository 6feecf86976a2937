package registry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/bodysync/internal/core/engine/memory"
	"github.com/zeusync/bodysync/internal/core/template"
)

func newRegistry(t *testing.T, opts ...Option) (*Registry, *memory.World) {
	t.Helper()
	w := memory.NewWorld()
	return New(w, opts...), w
}

func circle(r float64) []template.PartSpec {
	return []template.PartSpec{{Form: &template.FormSpec{R: template.Ptr(r)}}}
}

// A chain of collinear points passes lowering but the engine refuses it.
func degenerate() []template.PartSpec {
	return []template.PartSpec{{Form: &template.FormSpec{
		Type:   template.Ptr(template.Polygon),
		Points: []template.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}},
	}}}
}

func TestNew_DefaultsAndNamespaces(t *testing.T) {
	r, _ := newRegistry(t, WithNamespace("heavy", func(template.Info) bool { return false }))

	assert.Equal(t, []string{DefaultKind}, r.Kinds())
	assert.Equal(t, []string{Instances, Entities, Barriers, Terrain, Dynamics, "heavy", DefaultKind}, r.Namespaces())

	tpl, ok := r.Definition(DefaultKind)
	require.True(t, ok)
	assert.Equal(t, template.DefaultTemplate(), tpl)
}

func TestDefineFrom_Inheritance(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Define("ball", template.StructureSpec{Parts: circle(2)}))
	require.NoError(t, r.DefineFrom("ball", "fast", template.StructureSpec{ModelSpec: template.ModelSpec{VX: template.Ptr(9.0)}}))

	ball, ok := r.Definition("ball")
	require.True(t, ok)
	fast, ok := r.Definition("fast")
	require.True(t, ok)

	want := ball.Structures[template.DefaultName]
	want.VX = 9
	assert.Equal(t, want, fast.Structures[template.DefaultName])
	assert.Equal(t, 2.0, fast.Structures[template.DefaultName].Parts[0].Form.R)

	err := r.DefineFrom("nope", "x", template.StructureSpec{})
	assert.ErrorIs(t, err, ErrUndefinedKind)
	_, ok = r.Definition("x")
	assert.False(t, ok)
}

func TestCreate_PopulatesNamespaces(t *testing.T) {
	r, w := newRegistry(t)
	require.NoError(t, r.Define("wall", template.StructureSpec{ModelSpec: template.ModelSpec{Type: template.Ptr(template.Terrain)}}))
	require.NoError(t, r.Define("door", template.StructureSpec{ModelSpec: template.ModelSpec{Type: template.Ptr(template.Barrier)}}))

	ball, err := r.Create(DefaultKind)
	require.NoError(t, err)
	wall, err := r.Create("wall")
	require.NoError(t, err)
	door, err := r.Create("door")
	require.NoError(t, err)

	assert.Equal(t, EntityID(0), ball)
	assert.Equal(t, EntityID(2), door)
	assert.Equal(t, 3, w.BodyCount())

	assert.Equal(t, []EntityID{ball, wall, door}, r.Of(Instances))
	assert.Equal(t, []EntityID{ball}, r.Of(Entities))
	assert.Equal(t, []EntityID{door}, r.Of(Barriers))
	assert.Equal(t, []EntityID{wall}, r.Of(Terrain))
	assert.Equal(t, []EntityID{ball, door}, r.Of(Dynamics))
	assert.Equal(t, []EntityID{wall, door}, r.Of("wall", "door", "unknown"))
	assert.Empty(t, r.Of("unknown"))

	g, ok := r.Get(wall)
	require.True(t, ok)
	require.Contains(t, g, template.DefaultName)
	assert.Equal(t, template.Terrain, g[template.DefaultName].Type())

	kind, ok := r.KindOf(door)
	assert.True(t, ok)
	assert.Equal(t, "door", kind)
}

func TestCreate_UndefinedKind(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Create("ghost")
	assert.ErrorIs(t, err, ErrUndefinedKind)
	_, err = r.Spawn("ghost", template.StructureSpec{})
	assert.ErrorIs(t, err, ErrUndefinedKind)
	assert.Equal(t, 0, r.Len())
}

func TestCreate_OverrideReplacesStructures(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Define("ball", template.StructureSpec{Parts: circle(2)}))

	id, err := r.Create("ball", template.TemplateSpec{Structures: map[string]template.StructureSpec{
		template.DefaultName: {ModelSpec: template.ModelSpec{X: template.Ptr(3.0)}},
	}})
	require.NoError(t, err)

	tpl, ok := r.TemplateOf(id)
	require.True(t, ok)
	s := tpl.Structures[template.DefaultName]
	assert.Equal(t, 3.0, s.X)
	// the stored structure was replaced, not merged into
	assert.Equal(t, 1.0, s.Parts[0].Form.R)

	// still counted as the kind it was created from
	assert.Equal(t, []EntityID{id}, r.Of("ball"))
}

func TestSpawn_MergesIntoKindDefault(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Define("ball", template.StructureSpec{Parts: circle(2)}))

	id, err := r.Spawn("ball", template.StructureSpec{ModelSpec: template.ModelSpec{X: template.Ptr(3.0), Y: template.Ptr(-1.0)}})
	require.NoError(t, err)

	g, ok := r.Get(id)
	require.True(t, ok)
	e := g[template.DefaultName]
	assert.Equal(t, 3.0, e.X())
	assert.Equal(t, -1.0, e.Y())
	assert.Equal(t, 2.0, e.Parts()[0].Form().R())
}

func TestCreate_IsAtomic(t *testing.T) {
	r, w := newRegistry(t)
	r.DefineGroup("cart", template.TemplateSpec{Structures: map[string]template.StructureSpec{
		template.DefaultName: {},
		"wheel":              {Parts: degenerate()},
	}})
	before := r.Of(Instances)

	_, err := r.Create("cart")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstruction)

	assert.Equal(t, 0, w.BodyCount())
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, before, r.Of(Instances))
	assert.Empty(t, r.Of("cart"))

	// lowering errors never reach the engine
	require.NoError(t, r.Define("bad", template.StructureSpec{Parts: []template.PartSpec{{Channels: []int{99}}}}))
	_, err = r.Create("bad")
	assert.ErrorIs(t, err, template.ErrChannelRange)
	assert.Equal(t, 0, w.BodyCount())
}

func TestDestroy(t *testing.T) {
	r, w := newRegistry(t)
	id, err := r.Create(DefaultKind)
	require.NoError(t, err)

	assert.True(t, r.Destroy(id))
	assert.False(t, r.Destroy(id))
	assert.Equal(t, 0, w.BodyCount())

	_, ok := r.Get(id)
	assert.False(t, ok)
	for _, name := range r.Namespaces() {
		assert.NotContains(t, r.Of(name), id, name)
	}

	// ids are never reused
	next, err := r.Create(DefaultKind)
	require.NoError(t, err)
	assert.Greater(t, next, id)
}

func TestDestroyAll_Dynamics(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Define("wall", template.StructureSpec{ModelSpec: template.ModelSpec{Type: template.Ptr(template.Terrain)}}))
	for i := 0; i < 3; i++ {
		_, err := r.Create(DefaultKind)
		require.NoError(t, err)
	}
	wall, err := r.Create("wall")
	require.NoError(t, err)

	destroyed := r.DestroyAll(append(r.Of(Dynamics), 1000))
	assert.Len(t, destroyed, 3)
	assert.Empty(t, r.Of(Dynamics))
	assert.Equal(t, []EntityID{wall}, r.Of(Instances))
}

func TestGetAll_SkipsAbsent(t *testing.T) {
	r, _ := newRegistry(t)
	a, err := r.Create(DefaultKind)
	require.NoError(t, err)

	all := r.GetAll([]EntityID{a, 42})
	assert.Len(t, all, 1)
	assert.Contains(t, all, a)
}

func TestRebuild(t *testing.T) {
	r, w := newRegistry(t)
	id, err := r.Create(DefaultKind)
	require.NoError(t, err)

	tpl, _ := r.TemplateOf(id)
	s := tpl.Structures[template.DefaultName]
	s.X = 7
	tpl.Structures[template.DefaultName] = s
	require.NoError(t, r.Rebuild(id, tpl))

	g, _ := r.Get(id)
	assert.Equal(t, 7.0, g[template.DefaultName].X())
	assert.Equal(t, 1, w.BodyCount())

	// a failing rebuild leaves the old bodies in place
	bad, _ := r.TemplateOf(id)
	bad.Structures["wheel"] = template.DefineStructure(template.StructureSpec{Parts: degenerate()})
	assert.ErrorIs(t, r.Rebuild(id, bad), ErrConstruction)

	g, _ = r.Get(id)
	assert.Equal(t, 7.0, g[template.DefaultName].X())
	assert.Len(t, g, 1)
	assert.Equal(t, 1, w.BodyCount())
	after, _ := r.TemplateOf(id)
	assert.Equal(t, tpl, after)

	assert.NoError(t, r.Rebuild(999, tpl))
}

func TestNamespace_RegisteredLate(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Define("ball", template.StructureSpec{Parts: circle(2)}))
	a, err := r.Create("ball")
	require.NoError(t, err)
	_, err = r.Create(DefaultKind)
	require.NoError(t, err)

	r.Namespace("balls", KindIs("ball"))
	assert.Equal(t, []EntityID{a}, r.Of("balls"))
}

// Every namespace must equal its predicate over the live set after any sequence of
// creates and destroys.
func TestNamespaces_ConsistentUnderChurn(t *testing.T) {
	r, w := newRegistry(t)
	require.NoError(t, r.Define("wall", template.StructureSpec{ModelSpec: template.ModelSpec{Type: template.Ptr(template.Terrain)}}))
	require.NoError(t, r.Define("door", template.StructureSpec{ModelSpec: template.ModelSpec{Type: template.Ptr(template.Barrier)}}))
	kinds := []string{DefaultKind, "wall", "door"}

	preds := map[string]Predicate{
		Instances: func(template.Info) bool { return true },
		Entities:  TypeIs(template.Entity),
		Barriers:  TypeIs(template.Barrier),
		Terrain:   TypeIs(template.Terrain),
		Dynamics: func(i template.Info) bool {
			return TypeIs(template.Entity)(i) || TypeIs(template.Barrier)(i)
		},
		"wall": KindIs("wall"),
	}

	rng := rand.New(rand.NewSource(1))
	for step := 0; step < 1000; step++ {
		live := r.IDs()
		if len(live) == 0 || rng.Intn(2) == 0 {
			_, err := r.Create(kinds[rng.Intn(len(kinds))])
			require.NoError(t, err)
		} else {
			r.Destroy(live[rng.Intn(len(live))])
		}

		for name, pred := range preds {
			var want []EntityID
			for _, id := range r.IDs() {
				kind, _ := r.KindOf(id)
				tpl, _ := r.Definition(kind)
				if pred(tpl.Info(kind)) {
					want = append(want, id)
				}
			}
			if want == nil {
				want = []EntityID{}
			}
			require.Equal(t, want, r.Of(name), "namespace %s at step %d", name, step)
		}
	}
	assert.Equal(t, r.Len(), w.BodyCount())
}
