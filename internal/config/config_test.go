package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvWorkers, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anvil2snbt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workers: 3
log:
  format: json
snbt:
  indent: "\t"
region:
  default_compression: lz4
  chunk_mode_threshold: 10
metrics:
  textfile: /tmp/anvil2snbt.prom
`), 0o644))

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvWorkers, "")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "\t", cfg.SNBT.Indent)
	assert.Equal(t, "lz4", cfg.Region.DefaultCompression)
	assert.Equal(t, 10, cfg.Region.ChunkModeThreshold)
	assert.Equal(t, "/tmp/anvil2snbt.prom", cfg.Metrics.Textfile)

	t.Setenv(EnvWorkers, "8")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvWorkers, "")
	t.Setenv(EnvLogLevel, "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: -2\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	t.Setenv(EnvWorkers, "many")
	_, err = Load("")
	assert.Error(t, err)
}
