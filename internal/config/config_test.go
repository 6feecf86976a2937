package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/bodysync/internal/core/engine/memory"
	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/core/registry"
	"github.com/zeusync/bodysync/internal/core/simulation"
	"github.com/zeusync/bodysync/internal/core/template"
)

func TestLoadCatalogFile(t *testing.T) {
	kinds, err := LoadCatalogFile("../../configs/catalog.yaml")
	require.NoError(t, err)

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.Name
	}
	assert.Equal(t, []string{"topdown", "ball", "box", "player", "wall", "cart"}, names)

	cfg := simulation.DefaultConfig()
	cfg.Kinds = kinds
	sim, err := simulation.New(memory.NewWorld(), cfg)
	require.NoError(t, err)

	box, ok := sim.Definition("box")
	require.True(t, ok)
	s := box.Structures[template.DefaultName]
	assert.Equal(t, 1.0, s.DampVel)
	assert.Equal(t, template.Box, s.Parts[0].Form.Type)

	id, err := sim.Create("wall")
	require.NoError(t, err)
	assert.Contains(t, sim.Of(registry.Terrain), id)

	id, err = sim.Create("cart")
	require.NoError(t, err)
	g, _ := sim.StateOf(id)
	assert.Len(t, g, 2)
}

func TestLoadCatalogJSON(t *testing.T) {
	kinds, err := LoadCatalogJSON(strings.NewReader(`{"kinds":[
		{"name":"ball","structure":{"vx":1,"parts":[{"form":{"r":2}}]}},
		{"name":"fast","base":"ball","structure":{"vx":9}}
	]}`))
	require.NoError(t, err)
	require.Len(t, kinds, 2)
	assert.Equal(t, 1.0, *kinds[0].Structure.VX)
	assert.Equal(t, 2.0, *kinds[0].Structure.Parts[0].Form.R)
	assert.Equal(t, "ball", kinds[1].Base)
}

func TestLoadCatalog_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing name":   "kinds:\n  - base: default\n",
		"unknown base":   "kinds:\n  - name: a\n    base: b\n",
		"forward base":   "kinds:\n  - name: a\n    base: b\n  - name: b\n",
		"template+base":  "kinds:\n  - name: a\n    base: default\n    template: {}\n",
		"unknown field":  "kinds:\n  - name: a\n    colour: red\n",
		"not a catalog":  "kinds: 3\n",
		"broken mapping": "kinds: [\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalogYAML(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrBadCatalog)
		})
	}

	_, err := LoadCatalogJSON(strings.NewReader(`{"kinds":[{"name":"a","colour":1}]}`))
	assert.ErrorIs(t, err, ErrBadCatalog)

	kinds, err := LoadCatalogYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, kinds)
}

func TestLoadServerYAML(t *testing.T) {
	cfg, err := LoadServerYAML(strings.NewReader(`
server:
  quic_addr: ""
  broadcast_every: 5
  write_timeout: 250ms
simulation:
  tickRate: 30
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Server.BroadcastEvery)
	assert.Equal(t, "", cfg.Server.QUICAddr)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.WebSocketAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{registry.Dynamics}, cfg.Server.Namespaces)
	assert.Equal(t, 30.0, cfg.Simulation.TickRate)
	assert.Equal(t, simulation.DefaultProtocol(), cfg.Simulation.Protocol)
	assert.Equal(t, log.LevelDebug, cfg.Log.Level)

	_, err = LoadServerYAML(strings.NewReader("simulation:\n  tickRate: 0\n"))
	assert.ErrorIs(t, err, ErrBadServer)
}

func TestLoadServerFile(t *testing.T) {
	cfg, err := LoadServerFile("../../configs/server.yaml")
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Log.Encoding)
	assert.Equal(t, 3, cfg.Server.BroadcastEvery)
	require.NotEmpty(t, cfg.Simulation.Kinds)
	assert.Equal(t, "topdown", cfg.Simulation.Kinds[0].Name)

	_, err = LoadServerFile("../../configs/missing.yaml")
	assert.Error(t, err)
}
