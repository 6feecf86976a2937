package main

import (
	"fmt"
	"math/rand"

	"github.com/zeusync/bodysync/internal/core/engine"
	"github.com/zeusync/bodysync/internal/core/input"
	"github.com/zeusync/bodysync/internal/core/registry"
	"github.com/zeusync/bodysync/internal/core/simulation"
	"github.com/zeusync/bodysync/internal/core/template"
)

const moveForce = 0.5

// Sandbox is the frame logic of the terminal harness, kept apart from the screen so it
// can be driven by tests.
type Sandbox struct {
	sim   *simulation.Simulation
	keys  *input.Keyboard
	mouse *input.Mouse
	rng   *rand.Rand

	player   simulation.EntityID
	snapshot simulation.State
	status   string
}

// NewSandbox expects sim to define ball, box, player and wall.
func NewSandbox(sim *simulation.Simulation, seed int64) (*Sandbox, error) {
	s := &Sandbox{
		sim:   sim,
		keys:  input.NewKeyboard(),
		mouse: input.NewMouse(),
		rng:   rand.New(rand.NewSource(seed)),
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sandbox) Keyboard() *input.Keyboard { return s.keys }
func (s *Sandbox) Mouse() *input.Mouse       { return s.mouse }
func (s *Sandbox) Status() string            { return s.status }

// Reset destroys everything and lays out the starting scene.
func (s *Sandbox) Reset() error {
	s.sim.DestroyAll(s.sim.Of(registry.Instances))
	s.snapshot = nil

	if _, err := s.sim.Spawn("wall", at(0, -8)); err != nil {
		return err
	}
	player, err := s.sim.Spawn("player", at(0, 0))
	if err != nil {
		return err
	}
	s.player = player
	for _, p := range []engine.Vec2{{X: -6, Y: 4}, {X: 6, Y: 4}} {
		if _, err := s.sim.Spawn("ball", at(p.X, p.Y)); err != nil {
			return err
		}
	}
	if _, err := s.sim.Spawn("box", at(0, 6)); err != nil {
		return err
	}
	s.status = "reset"
	return nil
}

// Frame consumes one frame of input and steps the simulation. Terminals report no key
// releases, so every key is released once the frame has seen it.
func (s *Sandbox) Frame() error {
	s.keys.AdvanceFrame()
	s.mouse.AdvanceFrame()
	defer s.keys.ReleaseAll()

	var push engine.Vec2
	if s.keys.IsDown("ArrowUp|KeyW") {
		push.Y += moveForce
	}
	if s.keys.IsDown("ArrowDown|KeyS") {
		push.Y -= moveForce
	}
	if s.keys.IsDown("ArrowLeft|KeyA") {
		push.X -= moveForce
	}
	if s.keys.IsDown("ArrowRight|KeyD") {
		push.X += moveForce
	}
	if push != (engine.Vec2{}) {
		s.sim.Impulse(s.player, template.DefaultName, push)
	}

	switch {
	case s.keys.IsPressed("Digit1"):
		s.snapshot = s.sim.State()
		s.status = fmt.Sprintf("snapshot of %d", len(s.snapshot))
	case s.keys.IsPressed("Digit2"):
		if s.snapshot == nil {
			s.status = "no snapshot"
			break
		}
		if err := s.sim.Sync(s.snapshot); err != nil {
			return err
		}
		s.status = "synced"
	case s.keys.IsPressed("Digit3"):
		if err := s.sim.Quantize(s.sim.Of(registry.Dynamics)); err != nil {
			return err
		}
		s.status = "quantized"
	case s.keys.IsPressed("Digit4"):
		if err := s.Reset(); err != nil {
			return err
		}
	case s.keys.IsPressed("KeyC"):
		x, y := s.rng.Float64()*30-15, s.rng.Float64()*10
		id, err := s.sim.Spawn("box", at(x, y))
		if err != nil {
			return err
		}
		s.status = fmt.Sprintf("box %d", id)
	}

	if s.mouse.IsPressed("Left") {
		id, err := s.sim.Spawn("ball", at(s.mouse.X(), s.mouse.Y()))
		if err != nil {
			return err
		}
		s.status = fmt.Sprintf("ball %d", id)
	}
	if s.mouse.IsPressed("Right") {
		s.sim.DestroyAll(s.sim.Of(registry.Dynamics))
		s.status = "cleared dynamics"
	}

	s.sim.Step()
	return nil
}

func at(x, y float64) template.StructureSpec {
	return template.StructureSpec{ModelSpec: template.ModelSpec{X: template.Ptr(x), Y: template.Ptr(y)}}
}
