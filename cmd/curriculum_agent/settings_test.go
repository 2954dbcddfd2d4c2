package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/curriculum-fetcher/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"output_root": "from-file",
		"base_url": "https://file.example/",
		"download_delay_ms": 50
	}`), 0644))
	t.Setenv(config.EnvOutputRoot, "from-env")
	t.Setenv(config.EnvBaseURL, "")

	g := &globalOptions{configPath: path, verbose: true}
	cfg, err := g.loadSettings(func(c *config.Config) {
		c.DownloadDelayMS = 75
	})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.OutputRoot)
	assert.Equal(t, "https://file.example/", cfg.BaseURL)
	assert.Equal(t, 75, cfg.DownloadDelayMS)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, config.DefaultStartPath, cfg.StartPath)
}

func TestLoadSettings_DefaultsOnly(t *testing.T) {
	t.Setenv(config.EnvOutputRoot, "")
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvOnly, "")
	t.Setenv(config.EnvUserAgent, "")
	t.Setenv(config.EnvDownloadDelayMS, "")

	cfg, err := (&globalOptions{}).loadSettings(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
}
