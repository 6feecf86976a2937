// Package adapter exposes live engine objects as plain records. The views hold
// engine capability interfaces only, never a backend's native handles.
package adapter

import (
	"math"

	"github.com/zeusync/bodysync/internal/core/engine"
	"github.com/zeusync/bodysync/internal/core/template"
)

// Form is a read-only view over an engine shape.
type Form struct {
	shape engine.Shape
}

func NewForm(shape engine.Shape) Form {
	return Form{shape: shape}
}

// Type reports the form type. Polygons built from a box report template.Box.
func (f Form) Type() template.FormType {
	switch s := f.shape.(type) {
	case engine.CircleShape:
		return template.Circle
	case engine.EdgeShape:
		return template.Edge
	case engine.ChainShape:
		return template.Chain
	case engine.PolygonShape:
		if s.IsBox() {
			return template.Box
		}
		return template.Polygon
	default:
		return ""
	}
}

// X and Y are the circle center, the edge start, or the polygon centroid.
func (f Form) X() float64 { return f.pos().X }
func (f Form) Y() float64 { return f.pos().Y }

func (f Form) pos() engine.Vec2 {
	switch s := f.shape.(type) {
	case engine.CircleShape:
		return s.Center()
	case engine.EdgeShape:
		return s.Vertex1()
	case engine.PolygonShape:
		return s.Centroid()
	default:
		return engine.Vec2{}
	}
}

func (f Form) R() float64 {
	if c, ok := f.shape.(engine.CircleShape); ok {
		return c.Radius()
	}
	return 0
}

func (f Form) X2() float64 { return f.end().X }
func (f Form) Y2() float64 { return f.end().Y }

func (f Form) end() engine.Vec2 {
	if e, ok := f.shape.(engine.EdgeShape); ok {
		return e.Vertex2()
	}
	return engine.Vec2{}
}

// Low and High are the box corners at vertex 3 and vertex 1.
func (f Form) Low() engine.Vec2  { return f.corner(3) }
func (f Form) High() engine.Vec2 { return f.corner(1) }

func (f Form) corner(i int) engine.Vec2 {
	p, ok := f.shape.(engine.PolygonShape)
	if !ok || !p.IsBox() {
		return engine.Vec2{}
	}
	vs := p.Vertices()
	if i >= len(vs) {
		return engine.Vec2{}
	}
	return vs[i]
}

func (f Form) W() float64 { return math.Abs(f.High().X - f.Low().X) }
func (f Form) H() float64 { return math.Abs(f.High().Y - f.Low().Y) }

func (f Form) Points() []template.Point {
	var vs []engine.Vec2
	switch s := f.shape.(type) {
	case engine.ChainShape:
		vs = s.Vertices()
	case engine.PolygonShape:
		vs = s.Vertices()
	default:
		return nil
	}
	points := make([]template.Point, len(vs))
	for i, v := range vs {
		points[i] = template.Point{X: v.X, Y: v.Y}
	}
	return points
}

func (f Form) UseLoop() bool {
	c, ok := f.shape.(engine.ChainShape)
	return ok && c.IsLoop()
}

// Prev and Next are the ghost vertices of edges and chains, nil when absent.
func (f Form) Prev() *template.Point {
	if s, ok := f.shape.(engine.TwoSidedShape); ok {
		return point(s.PrevVertex())
	}
	return nil
}

func (f Form) Next() *template.Point {
	if s, ok := f.shape.(engine.TwoSidedShape); ok {
		return point(s.NextVertex())
	}
	return nil
}

// Record reads the form back into the record the compiler would produce for it.
// Loop chains report their ghost vertices as nil since the loop implies them.
func (f Form) Record() template.Form {
	rec := template.Form{Type: f.Type()}
	switch rec.Type {
	case template.Circle:
		rec.X, rec.Y, rec.R = f.X(), f.Y(), f.R()
	case template.Box:
		rec.X, rec.Y, rec.W, rec.H = f.X(), f.Y(), f.W(), f.H()
	case template.Edge:
		rec.X, rec.Y, rec.X2, rec.Y2 = f.X(), f.Y(), f.X2(), f.Y2()
		rec.Prev, rec.Next = f.Prev(), f.Next()
	case template.Chain:
		rec.Points, rec.UseLoop = f.Points(), f.UseLoop()
		if !rec.UseLoop {
			rec.Prev, rec.Next = f.Prev(), f.Next()
		}
	case template.Polygon:
		rec.Points = f.Points()
	}
	return rec
}

func point(v engine.Vec2, ok bool) *template.Point {
	if !ok {
		return nil
	}
	return &template.Point{X: v.X, Y: v.Y}
}
