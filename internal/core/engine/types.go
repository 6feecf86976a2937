package engine

import (
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrConstruction marks a body, fixture or shape the engine refused to build.
	ErrConstruction = errors.New("engine rejected construction")
	// ErrForeignBody is returned when a body from another world is handed back to a world.
	ErrForeignBody = errors.New("body does not belong to this world")
)

// Vec2 is a plain 2D vector.
type Vec2 struct{ X, Y float64 }

func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

func (v Vec2) Cross(o Vec2) float64 { return v.X*o.Y - v.Y*o.X }

// Rotate turns v counter-clockwise by a radians.
func (v Vec2) Rotate(a float64) Vec2 {
	s, c := math.Sincos(a)
	return Vec2{c*v.X - s*v.Y, s*v.X + c*v.Y}
}

// Normalize returns the unit vector in the direction of v, or the zero vector.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l == 0 {
		return Vec2{}
	}
	return v.Scale(1 / l)
}

// BodyType is the engine's body category.
type BodyType uint8

const (
	StaticBody BodyType = iota
	KinematicBody
	DynamicBody
)

func (t BodyType) String() string {
	switch t {
	case StaticBody:
		return "static"
	case KinematicBody:
		return "kinematic"
	case DynamicBody:
		return "dynamic"
	default:
		return "unknown"
	}
}

// ShapeType tags the geometry variant.
type ShapeType uint8

const (
	CircleType ShapeType = iota
	EdgeType
	PolygonType
	ChainType
)

func (t ShapeType) String() string {
	switch t {
	case CircleType:
		return "circle"
	case EdgeType:
		return "edge"
	case PolygonType:
		return "polygon"
	case ChainType:
		return "chain"
	default:
		return "unknown"
	}
}

// BodyDef holds body construction parameters.
type BodyDef struct {
	Type            BodyType
	Position        Vec2
	Angle           float64
	LinearVelocity  Vec2
	AngularVelocity float64
	LinearDamping   float64
	AngularDamping  float64
	FixedRotation   bool
	Awake           bool
	AllowSleep      bool
	Active          bool
	Bullet          bool
}

// DefaultBodyDef mirrors the engine defaults: a static, awake, active body that may sleep.
func DefaultBodyDef() BodyDef {
	return BodyDef{
		Type:       StaticBody,
		Awake:      true,
		AllowSleep: true,
		Active:     true,
	}
}

// FixtureDef holds fixture construction parameters.
type FixtureDef struct {
	Shape        ShapeDef
	Density      float64
	Friction     float64
	Restitution  float64
	IsSensor     bool
	CategoryBits uint32
	MaskBits     uint32
}

// ShapeDef is one of CircleDef, BoxDef, EdgeDef, ChainDef, PolygonDef.
type ShapeDef interface {
	ShapeType() ShapeType
}

type CircleDef struct {
	Center Vec2
	Radius float64
}

// BoxDef is an oriented rectangle described by its half extents.
type BoxDef struct {
	HalfWidth  float64
	HalfHeight float64
	Center     Vec2
	Angle      float64
}

type EdgeDef struct {
	V1, V2     Vec2
	Prev, Next *Vec2
}

type ChainDef struct {
	Vertices   []Vec2
	Loop       bool
	Prev, Next *Vec2
}

type PolygonDef struct {
	Vertices []Vec2
}

func (CircleDef) ShapeType() ShapeType  { return CircleType }
func (BoxDef) ShapeType() ShapeType     { return PolygonType }
func (EdgeDef) ShapeType() ShapeType    { return EdgeType }
func (ChainDef) ShapeType() ShapeType   { return ChainType }
func (PolygonDef) ShapeType() ShapeType { return PolygonType }

// Vertices returns the box corners counter-clockwise starting at the lower-left corner.
func (b BoxDef) Vertices() []Vec2 {
	corners := []Vec2{
		{-b.HalfWidth, -b.HalfHeight},
		{b.HalfWidth, -b.HalfHeight},
		{b.HalfWidth, b.HalfHeight},
		{-b.HalfWidth, b.HalfHeight},
	}
	for i, c := range corners {
		corners[i] = c.Rotate(b.Angle).Add(b.Center)
	}
	return corners
}

// Centroid returns the area centroid of a simple polygon.
func Centroid(vertices []Vec2) Vec2 {
	var c Vec2
	var area float64
	for i := range vertices {
		p1 := vertices[i]
		p2 := vertices[(i+1)%len(vertices)]
		cross := p1.Cross(p2)
		area += cross
		c = c.Add(p1.Add(p2).Scale(cross))
	}
	if area == 0 {
		return Vec2{}
	}
	return c.Scale(1 / (3 * area))
}

// Area returns the unsigned area of a simple polygon.
func Area(vertices []Vec2) float64 {
	var area float64
	for i := range vertices {
		area += vertices[i].Cross(vertices[(i+1)%len(vertices)])
	}
	return math.Abs(area) / 2
}
