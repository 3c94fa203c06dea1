package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithoutAFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./storage", cfg.LocalStorageDir)
	assert.Equal(t, "default", cfg.DefaultRequestQueueID)
	assert.True(t, cfg.PersistStorage)
	assert.False(t, cfg.ForceCloud)
}

func TestLoadReadsConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("force_cloud: true\ndefault_request_queue_id: mine\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.ForceCloud)
	assert.Equal(t, "mine", cfg.DefaultRequestQueueID)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("RQUEUE_FORCE_CLOUD", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.ForceCloud)
}
