package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLevelText(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("level: warning\nencoding: console\n"), &cfg))
	assert.Equal(t, LevelWarn, cfg.Level)

	out, err := yaml.Marshal(Config{Level: LevelDebug})
	require.NoError(t, err)
	assert.Contains(t, string(out), "level: debug")

	assert.Equal(t, LevelInfo, ParseLevel("loud"))
}

func TestNewWithConfig_FiltersByLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l := NewWithConfig(Config{Level: LevelWarn, OutputPaths: []string{path}})

	l.Info("dropped")
	l.With(Session("s1")).Warn("kept", EntityID(7), Kind("ball"))
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "dropped")
	assert.Contains(t, string(raw), `"msg":"kept"`)
	assert.Contains(t, string(raw), `"session":"s1"`)

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Error("nothing")
	assert.NotPanics(t, func() { l.With(String("k", "v")).Debug("x") })
}
