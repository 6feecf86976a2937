package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/bodysync/internal/config"
	"github.com/zeusync/bodysync/internal/core/engine/memory"
	"github.com/zeusync/bodysync/internal/core/input"
	"github.com/zeusync/bodysync/internal/core/registry"
	"github.com/zeusync/bodysync/internal/core/simulation"
	"github.com/zeusync/bodysync/internal/core/template"
)

func newSandbox(t *testing.T) (*Sandbox, *simulation.Simulation) {
	t.Helper()
	kinds, err := config.LoadCatalogFile("../../configs/catalog.yaml")
	require.NoError(t, err)
	cfg := simulation.DefaultConfig()
	cfg.Kinds = kinds
	sim, err := simulation.New(memory.NewWorld(), cfg)
	require.NoError(t, err)
	s, err := NewSandbox(sim, 1)
	require.NoError(t, err)
	return s, sim
}

func press(t *testing.T, s *Sandbox, code string) {
	t.Helper()
	s.Keyboard().Press(code)
	require.NoError(t, s.Frame())
}

func playerX(t *testing.T, s *Sandbox, sim *simulation.Simulation) float64 {
	t.Helper()
	g, ok := sim.StateOf(s.player)
	require.True(t, ok)
	return g[template.DefaultName][template.FieldX]
}

func TestSandbox_Scene(t *testing.T) {
	s, sim := newSandbox(t)
	assert.Equal(t, 5, sim.Len())
	assert.Len(t, sim.Of(registry.Terrain), 1)

	press(t, s, "KeyC")
	assert.Equal(t, 6, sim.Len())
	assert.Contains(t, s.Status(), "box")

	press(t, s, "Digit4")
	assert.Equal(t, 5, sim.Len())
	assert.Equal(t, "reset", s.Status())
}

func TestSandbox_SnapshotAndSync(t *testing.T) {
	s, sim := newSandbox(t)

	press(t, s, "Digit2")
	assert.Equal(t, "no snapshot", s.Status())

	press(t, s, "Digit1")
	start := playerX(t, s, sim)

	for range 10 {
		press(t, s, "ArrowRight")
	}
	assert.Greater(t, playerX(t, s, sim), start)

	press(t, s, "Digit2")
	assert.Equal(t, "synced", s.Status())
	assert.InDelta(t, start, playerX(t, s, sim), 1e-9)
}

func TestSandbox_KeysReleaseEachFrame(t *testing.T) {
	s, _ := newSandbox(t)
	press(t, s, "KeyD")
	require.NoError(t, s.Frame())
	assert.True(t, s.Keyboard().IsReleased("KeyD"))
}

func TestSandbox_MouseSpawnsAndClears(t *testing.T) {
	s, sim := newSandbox(t)

	s.Mouse().Move(3, 3)
	s.Mouse().Press(input.ButtonLeft)
	require.NoError(t, s.Frame())
	assert.Equal(t, 6, sim.Len())
	// holding the button does not spawn again
	require.NoError(t, s.Frame())
	assert.Equal(t, 6, sim.Len())

	s.Mouse().Release(input.ButtonLeft)
	s.Mouse().Press(input.ButtonRight)
	require.NoError(t, s.Frame())
	assert.Empty(t, sim.Of(registry.Dynamics))
	assert.Equal(t, 1, sim.Len())
}
