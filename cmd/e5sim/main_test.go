package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/e5sim/internal/config"
	"github.com/thebtf/e5sim/internal/embedding"
)

func TestModelsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"models"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	text := out.String()
	assert.Contains(t, text, "VARIANT")
	for _, m := range embedding.Variants() {
		assert.Contains(t, text, m.Name)
		assert.Contains(t, text, m.AssetName)
	}
}

func TestSetupLogging(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	setupLogging(config.LogSettings{Level: "debug"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	setupLogging(config.LogSettings{Level: "not-a-level"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "e5sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  variant: huge\n"), 0o600))

	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = prev })

	_, err := loadConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, embedding.ErrUnsupportedVariant))
}

func TestOpenPipeline_MissingAssets(t *testing.T) {
	cfg := config.Default()
	cfg.Model.AssetsDir = t.TempDir()

	_, _, err := openPipeline(cfg)
	assert.Error(t, err)
}
