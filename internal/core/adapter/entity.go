package adapter

import (
	"github.com/zeusync/bodysync/internal/core/engine"
	"github.com/zeusync/bodysync/internal/core/template"
)

// Entity is a read-only view over an engine body.
type Entity struct {
	body engine.Body
}

func NewEntity(body engine.Body) *Entity {
	return &Entity{body: body}
}

// Body returns the underlying engine body, for callers that drive it directly
// (impulses, the registry's destroy path).
func (e *Entity) Body() engine.Body { return e.body }

func (e *Entity) X() float64       { return e.body.Position().X }
func (e *Entity) Y() float64       { return e.body.Position().Y }
func (e *Entity) VX() float64      { return e.body.LinearVelocity().X }
func (e *Entity) VY() float64      { return e.body.LinearVelocity().Y }
func (e *Entity) Ang() float64     { return e.body.Angle() }
func (e *Entity) Rot() float64     { return e.body.AngularVelocity() }
func (e *Entity) DampVel() float64 { return e.body.LinearDamping() }
func (e *Entity) DampRot() float64 { return e.body.AngularDamping() }

func (e *Entity) CanRotate() bool  { return !e.body.IsFixedRotation() }
func (e *Entity) Offload() bool    { return !e.body.IsAwake() }
func (e *Entity) CanOffload() bool { return e.body.IsSleepingAllowed() }
func (e *Entity) CanCollide() bool { return e.body.IsActive() }

// IsExact is the bullet flag for dynamic bodies. Other bodies always resolve
// continuously against dynamics, so they report true.
func (e *Entity) IsExact() bool {
	if e.body.Type() == engine.DynamicBody {
		return e.body.IsBullet()
	}
	return true
}

// Type maps the body category back onto a structure type.
func (e *Entity) Type() template.StructureType {
	switch e.body.Type() {
	case engine.StaticBody:
		return template.Terrain
	case engine.KinematicBody:
		return template.Barrier
	default:
		return template.Entity
	}
}

// Parts lists the fixtures in the engine's iteration order.
func (e *Entity) Parts() []Part {
	fixtures := e.body.Fixtures()
	parts := make([]Part, len(fixtures))
	for i, f := range fixtures {
		parts[i] = NewPart(f)
	}
	return parts
}

// Field reads one protocol field. Every body category reports every field; a static
// body simply reads zero velocity and damping.
func (e *Entity) Field(name string) (float64, bool) {
	switch name {
	case template.FieldX:
		return e.X(), true
	case template.FieldY:
		return e.Y(), true
	case template.FieldAng:
		return e.Ang(), true
	case template.FieldVX:
		return e.VX(), true
	case template.FieldVY:
		return e.VY(), true
	case template.FieldRot:
		return e.Rot(), true
	case template.FieldDampVel:
		return e.DampVel(), true
	case template.FieldDampRot:
		return e.DampRot(), true
	default:
		return 0, false
	}
}

// Project reads the named fields into a sparse record; absent fields are omitted.
func (e *Entity) Project(fields []string) template.Record {
	rec := make(template.Record, len(fields))
	for _, name := range fields {
		if v, ok := e.Field(name); ok {
			rec[name] = v
		}
	}
	return rec
}
