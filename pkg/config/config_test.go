package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 60, cfg.PublishingIntervalSeconds)
	assert.Equal(t, 60, cfg.HeadMergerJitterMaxSeconds)
	assert.Equal(t, 600, cfg.ContentFetchIntervalSeconds)
	assert.Equal(t, 100, cfg.MissingEventChanCapacity)
	assert.Equal(t, 32, cfg.PerConnRPCConcurrency)
	assert.Equal(t, 10, cfg.IdsNodesKeepLatest)
	assert.False(t, cfg.DevMode)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().PublishingIntervalSeconds, cfg.PublishingIntervalSeconds)
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rostra.yaml")
	writeFile(t, path, "publishing_interval: 30\nmulti_client_max: 4\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.PublishingIntervalSeconds)
	assert.Equal(t, 4, cfg.MultiClientMax)
	// Untouched options keep their defaults.
	assert.Equal(t, 600, cfg.ContentFetchIntervalSeconds)
}

func TestDevModeShortensTimersAndLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rostra.yaml")
	writeFile(t, path, "dev_mode: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ContentFetchIntervalSeconds)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
