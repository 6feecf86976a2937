// Package engine declares the capability surface the simulation core needs from a
// 2D rigid-body physics engine. Backends (box2d, memory) implement it; nothing above
// this package ever sees a backend's native handle types.
package engine

// World owns bodies and advances them in time.
type World interface {
	CreateBody(def BodyDef) (Body, error)
	DestroyBody(body Body) error
	Step(dt float64, velocityIterations, positionIterations int)
}

// Body is a live rigid body.
type Body interface {
	CreateFixture(def FixtureDef) (Fixture, error)

	Type() BodyType
	Position() Vec2
	LinearVelocity() Vec2
	Angle() float64
	AngularVelocity() float64
	LinearDamping() float64
	AngularDamping() float64

	IsFixedRotation() bool
	IsAwake() bool
	IsSleepingAllowed() bool
	IsActive() bool
	IsBullet() bool

	// Fixtures returns the attached fixtures in the engine's own iteration order.
	Fixtures() []Fixture

	Mass() float64
	WorldCenter() Vec2
	ApplyLinearImpulse(impulse, point Vec2, wake bool)
}

// Fixture binds a shape and material to a body.
type Fixture interface {
	Shape() Shape
	Density() float64
	Friction() float64
	Restitution() float64
	CategoryBits() uint32
	MaskBits() uint32
	IsSensor() bool
	ShouldCollide(other Fixture) bool
}

// Shape is implemented by every geometry view. Use a type switch on the
// variant interfaces below to read the geometry.
type Shape interface {
	Type() ShapeType
}

type CircleShape interface {
	Shape
	Center() Vec2
	Radius() float64
}

// TwoSidedShape is an edge or chain with optional ghost vertices.
type TwoSidedShape interface {
	Shape
	PrevVertex() (Vec2, bool)
	NextVertex() (Vec2, bool)
}

type EdgeShape interface {
	TwoSidedShape
	Vertex1() Vec2
	Vertex2() Vec2
}

type ChainShape interface {
	TwoSidedShape
	Vertices() []Vec2
	IsLoop() bool
}

type PolygonShape interface {
	Shape
	Vertices() []Vec2
	Centroid() Vec2
	// IsBox reports whether the polygon was built from a BoxDef.
	IsBox() bool
}

// ShouldCollide is the category/mask rule shared by the backends.
func ShouldCollide(a, b Fixture) bool {
	return a.MaskBits()&b.CategoryBits() != 0 && a.CategoryBits()&b.MaskBits() != 0
}
