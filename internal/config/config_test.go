package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/e5sim/internal/embedding"
)

// clearEnv unsets every E5SIM_* override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"E5SIM_MODEL", "E5SIM_ASSETS_DIR", "E5SIM_TOKENIZER", "E5SIM_ORT_LIBRARY",
		"E5SIM_PORT", "E5SIM_CACHE_DSN", "E5SIM_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "small", cfg.Model.Variant)
	assert.Equal(t, DefaultAssetsDir, cfg.Model.AssetsDir)
	assert.Equal(t, "sentencepiece", cfg.Tokenizer.Backend)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultRequestTimeout, cfg.Server.RequestTimeout)
	assert.Empty(t, cfg.Cache.DSN)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "e5sim.yaml")
	content := `
model:
  variant: large
  assets_dir: /opt/e5
server:
  port: 9000
  request_timeout: 5s
cache:
  dsn: /tmp/cache.db
score:
  query: "query: what is a cat"
  passages:
    - "passage: a cat is a small domesticated feline"
    - "passage: rockets use liquid fuel"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "large", cfg.Model.Variant)
	assert.Equal(t, "/opt/e5", cfg.Model.AssetsDir)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset keys keep defaults")
	assert.Equal(t, "/tmp/cache.db", cfg.Cache.DSN)
	assert.Equal(t, "query: what is a cat", cfg.Score.Query)
	assert.Len(t, cfg.Score.Passages, 2)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("E5SIM_MODEL", "base")
	t.Setenv("E5SIM_PORT", "8123")
	t.Setenv("E5SIM_CACHE_DSN", "postgres://localhost/e5")
	t.Setenv("E5SIM_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "base", cfg.Model.Variant)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/e5", cfg.Cache.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:8123", cfg.Addr())
}

func TestLoad_InvalidPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("E5SIM_PORT", "abc")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unsupported variant", func(c *Config) { c.Model.Variant = "xl" }},
		{"unknown tokenizer", func(c *Config) { c.Tokenizer.Backend = "wordpiece" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }},
		{"negative threads", func(c *Config) { c.Runtime.IntraOpThreads = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_UnsupportedVariantIsSentinel(t *testing.T) {
	cfg := Default()
	cfg.Model.Variant = "giant"

	assert.ErrorIs(t, cfg.Validate(), embedding.ErrUnsupportedVariant)
}

func TestPipelineOptions(t *testing.T) {
	cfg := Default()
	cfg.Model.Variant = "e5-base"
	cfg.Model.AssetsDir = "/srv/models"
	cfg.Runtime.UseCUDA = true

	opts, err := cfg.PipelineOptions()
	require.NoError(t, err)

	assert.Equal(t, embedding.VariantBase, opts.Variant)
	assert.Equal(t, filepath.Join("/srv/models", "e5-base.onnx"), opts.ModelPath)
	assert.Equal(t, embedding.TokenizerSentencePiece, opts.TokenizerBackend)
	assert.Equal(t, filepath.Join("/srv/models", "sentencepiece.bpe.model"), opts.TokenizerPath)
	assert.True(t, opts.Runtime.UseCUDA)
}

func TestPipelineOptions_FileOverrides(t *testing.T) {
	cfg := Default()
	cfg.Model.File = "/abs/custom.onnx"
	cfg.Tokenizer.Backend = "huggingface"

	opts, err := cfg.PipelineOptions()
	require.NoError(t, err)

	assert.Equal(t, "/abs/custom.onnx", opts.ModelPath)
	assert.Equal(t, filepath.Join(DefaultAssetsDir, "tokenizer.json"), opts.TokenizerPath)
}
