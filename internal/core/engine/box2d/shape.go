package box2d

import (
	b2 "github.com/ByteArena/box2d"
	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/engine"
)

// maxPolygonVertices matches b2_maxPolygonVertices.
const maxPolygonVertices = 8

func buildShape(def engine.ShapeDef) (b2.B2ShapeInterface, error) {
	switch d := def.(type) {
	case engine.CircleDef:
		if !(d.Radius > 0) {
			return nil, errors.Wrapf(engine.ErrConstruction, "circle radius %v", d.Radius)
		}
		s := b2.MakeB2CircleShape()
		s.M_p = vec(d.Center)
		s.M_radius = d.Radius
		return &s, nil
	case engine.BoxDef:
		if !(d.HalfWidth > 0) || !(d.HalfHeight > 0) {
			return nil, errors.Wrapf(engine.ErrConstruction, "box half extents %vx%v", d.HalfWidth, d.HalfHeight)
		}
		s := b2.MakeB2PolygonShape()
		s.SetAsBoxFromCenterAndAngle(d.HalfWidth, d.HalfHeight, vec(d.Center), d.Angle)
		return &s, nil
	case engine.PolygonDef:
		if len(d.Vertices) < 3 || len(d.Vertices) > maxPolygonVertices {
			return nil, errors.Wrapf(engine.ErrConstruction, "polygon with %d vertices", len(d.Vertices))
		}
		s := b2.MakeB2PolygonShape()
		s.Set(vecs(d.Vertices), len(d.Vertices))
		return &s, nil
	case engine.EdgeDef:
		s := b2.MakeB2EdgeShape()
		s.Set(vec(d.V1), vec(d.V2))
		if d.Prev != nil {
			s.M_vertex0 = vec(*d.Prev)
			s.M_hasVertex0 = true
		}
		if d.Next != nil {
			s.M_vertex3 = vec(*d.Next)
			s.M_hasVertex3 = true
		}
		return &s, nil
	case engine.ChainDef:
		s := b2.MakeB2ChainShape()
		if d.Loop {
			s.CreateLoop(vecs(d.Vertices), len(d.Vertices))
			return &s, nil
		}
		s.CreateChain(vecs(d.Vertices), len(d.Vertices))
		if d.Prev != nil {
			s.SetPrevVertex(vec(*d.Prev))
		}
		if d.Next != nil {
			s.SetNextVertex(vec(*d.Next))
		}
		return &s, nil
	case nil:
		return nil, errors.Wrap(engine.ErrConstruction, "fixture without shape")
	default:
		return nil, errors.Wrapf(engine.ErrConstruction, "unsupported shape %T", def)
	}
}

func vecs(vs []engine.Vec2) []b2.B2Vec2 {
	out := make([]b2.B2Vec2, len(vs))
	for i, v := range vs {
		out[i] = vec(v)
	}
	return out
}

func unvecs(vs []b2.B2Vec2) []engine.Vec2 {
	out := make([]engine.Vec2, len(vs))
	for i, v := range vs {
		out[i] = unvec(v)
	}
	return out
}

type circle struct{ s *b2.B2CircleShape }

func (c circle) Type() engine.ShapeType { return engine.CircleType }
func (c circle) Center() engine.Vec2    { return unvec(c.s.M_p) }
func (c circle) Radius() float64        { return c.s.M_radius }

type polygon struct {
	native *b2.B2PolygonShape
	box    bool
}

func (p polygon) Type() engine.ShapeType { return engine.PolygonType }
func (p polygon) Centroid() engine.Vec2  { return unvec(p.native.M_centroid) }
func (p polygon) IsBox() bool            { return p.box }

func (p polygon) Vertices() []engine.Vec2 {
	return unvecs(p.native.M_vertices[:p.native.M_count])
}

type edge struct{ s *b2.B2EdgeShape }

func (e edge) Type() engine.ShapeType { return engine.EdgeType }
func (e edge) Vertex1() engine.Vec2   { return unvec(e.s.M_vertex1) }
func (e edge) Vertex2() engine.Vec2   { return unvec(e.s.M_vertex2) }

func (e edge) PrevVertex() (engine.Vec2, bool) {
	return unvec(e.s.M_vertex0), e.s.M_hasVertex0
}

func (e edge) NextVertex() (engine.Vec2, bool) {
	return unvec(e.s.M_vertex3), e.s.M_hasVertex3
}

type chain struct{ s *b2.B2ChainShape }

func (c chain) Type() engine.ShapeType { return engine.ChainType }

// IsLoop relies on CreateLoop closing the ring by repeating the first vertex.
func (c chain) IsLoop() bool {
	n := c.s.M_count
	return n > 2 && c.s.M_vertices[0] == c.s.M_vertices[n-1]
}

func (c chain) Vertices() []engine.Vec2 {
	vs := c.s.M_vertices[:c.s.M_count]
	if c.IsLoop() {
		vs = vs[:len(vs)-1]
	}
	return unvecs(vs)
}

func (c chain) PrevVertex() (engine.Vec2, bool) {
	return unvec(c.s.M_prevVertex), c.s.M_hasPrevVertex
}

func (c chain) NextVertex() (engine.Vec2, bool) {
	return unvec(c.s.M_nextVertex), c.s.M_hasNextVertex
}
