package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 16, cfg.DebounceMillis)
	assert.Equal(t, 1000.0, cfg.ThroughAllDistance)
	assert.Len(t, cfg.Palette, 6)
	assert.Equal(t, "#6699cc", cfg.Palette[0])
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	content := []byte("debounceMillis: 40\ntolerances:\n  solve: 1e-10\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.DebounceMillis)
	assert.Equal(t, 1e-10, cfg.NumericContext().SolveEps)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1000.0, cfg.ThroughAllDistance)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
