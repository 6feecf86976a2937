package adapter

import (
	"github.com/zeusync/bodysync/internal/core/engine"
	"github.com/zeusync/bodysync/internal/core/template"
)

// Part is a read-only view over an engine fixture.
type Part struct {
	fixture engine.Fixture
}

func NewPart(fixture engine.Fixture) Part {
	return Part{fixture: fixture}
}

func (p Part) Form() Form              { return NewForm(p.fixture.Shape()) }
func (p Part) Density() float64        { return p.fixture.Density() }
func (p Part) Friction() float64       { return p.fixture.Friction() }
func (p Part) Elasticity() float64     { return p.fixture.Restitution() }
func (p Part) Channels() []int         { return template.ReadBits(p.fixture.CategoryBits()) }
func (p Part) CollidesWith() []int     { return template.ReadBits(p.fixture.MaskBits()) }
func (p Part) UseCollision() bool      { return !p.fixture.IsSensor() }
func (p Part) Fixture() engine.Fixture { return p.fixture }

// CanCollide applies the engine's filter rule between two parts.
func (p Part) CanCollide(other Part) bool {
	return p.fixture.ShouldCollide(other.fixture)
}

func (p Part) Record() template.Part {
	return template.Part{
		Form:         p.Form().Record(),
		Density:      p.Density(),
		Friction:     p.Friction(),
		Elasticity:   p.Elasticity(),
		Channels:     p.Channels(),
		CollidesWith: p.CollidesWith(),
		UseCollision: p.UseCollision(),
	}
}
