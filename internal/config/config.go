// Package config provides configuration management for e5sim.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/e5sim/internal/embedding"
)

const (
	// DefaultPort is the default HTTP port for the similarity API.
	DefaultPort = 37790

	// DefaultAssetsDir is where model and tokenizer files are looked up.
	DefaultAssetsDir = "assets"

	// DefaultMaxBodyBytes caps request bodies on the HTTP API.
	DefaultMaxBodyBytes = 1 << 20

	// DefaultRequestTimeout bounds a single HTTP request.
	DefaultRequestTimeout = 30 * time.Second
)

// Config holds the application configuration.
type Config struct {
	Model     ModelSettings     `yaml:"model"`
	Tokenizer TokenizerSettings `yaml:"tokenizer"`
	Runtime   RuntimeSettings   `yaml:"runtime"`
	Server    ServerSettings    `yaml:"server"`
	Cache     CacheSettings     `yaml:"cache"`
	Log       LogSettings       `yaml:"log"`
	Score     ScoreSettings     `yaml:"score"`
}

// ModelSettings selects the E5 variant and where its file lives.
type ModelSettings struct {
	Variant   string `yaml:"variant"`    // small, base or large
	AssetsDir string `yaml:"assets_dir"` // directory holding model and tokenizer files
	File      string `yaml:"file"`       // overrides the variant's default file name
}

// TokenizerSettings selects the tokenizer backend and asset.
type TokenizerSettings struct {
	Backend string `yaml:"backend"` // sentencepiece or huggingface
	File    string `yaml:"file"`    // overrides the backend's default file name
}

// RuntimeSettings configures ONNX Runtime.
type RuntimeSettings struct {
	LibraryPath    string `yaml:"library_path"`
	UseCUDA        bool   `yaml:"use_cuda"`
	IntraOpThreads int    `yaml:"intra_op_threads"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CacheSettings configures the optional embedding cache. An empty DSN disables it.
type CacheSettings struct {
	DSN      string `yaml:"dsn"` // postgres://... or a SQLite file path
	MaxConns int    `yaml:"max_conns"`
}

// ScoreSettings holds a default query and passages for the score command.
type ScoreSettings struct {
	Query    string   `yaml:"query"`    // conventionally prefixed "query: "
	Passages []string `yaml:"passages"` // conventionally prefixed "passage: "
}

// LogSettings configures zerolog.
type LogSettings struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Model: ModelSettings{
			Variant:   string(embedding.DefaultVariant),
			AssetsDir: DefaultAssetsDir,
		},
		Tokenizer: TokenizerSettings{
			Backend: string(embedding.TokenizerSentencePiece),
		},
		Server: ServerSettings{
			Host:           "127.0.0.1",
			Port:           DefaultPort,
			MaxBodyBytes:   DefaultMaxBodyBytes,
			RequestTimeout: DefaultRequestTimeout,
		},
		Cache: CacheSettings{
			MaxConns: 4,
		},
		Log: LogSettings{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment overrides.
// A missing file is not an error; an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from E5SIM_* environment variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("E5SIM_MODEL"); v != "" {
		c.Model.Variant = v
	}
	if v := os.Getenv("E5SIM_ASSETS_DIR"); v != "" {
		c.Model.AssetsDir = v
	}
	if v := os.Getenv("E5SIM_TOKENIZER"); v != "" {
		c.Tokenizer.Backend = v
	}
	if v := os.Getenv("E5SIM_ORT_LIBRARY"); v != "" {
		c.Runtime.LibraryPath = v
	}
	if v := os.Getenv("E5SIM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid E5SIM_PORT %q", v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("E5SIM_CACHE_DSN"); v != "" {
		c.Cache.DSN = v
	}
	if v := os.Getenv("E5SIM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := embedding.ParseVariant(c.Model.Variant); err != nil {
		return fmt.Errorf("model.variant: %w", err)
	}
	if _, err := embedding.ParseTokenizerBackend(c.Tokenizer.Backend); err != nil {
		return fmt.Errorf("tokenizer.backend: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: out of range: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes: must be positive")
	}
	if c.Runtime.IntraOpThreads < 0 {
		return fmt.Errorf("runtime.intra_op_threads: must not be negative")
	}
	return nil
}

// PipelineOptions resolves asset paths and returns the options for embedding.NewPipeline.
func (c *Config) PipelineOptions() (embedding.Options, error) {
	variant, err := embedding.ParseVariant(c.Model.Variant)
	if err != nil {
		return embedding.Options{}, err
	}
	model, err := embedding.ConfigFor(variant)
	if err != nil {
		return embedding.Options{}, err
	}
	backend, err := embedding.ParseTokenizerBackend(c.Tokenizer.Backend)
	if err != nil {
		return embedding.Options{}, err
	}

	modelFile := c.Model.File
	if modelFile == "" {
		modelFile = model.AssetName
	}
	tokenizerFile := c.Tokenizer.File
	if tokenizerFile == "" {
		tokenizerFile = embedding.DefaultTokenizerFile(backend)
	}

	return embedding.Options{
		Variant:          variant,
		ModelPath:        c.assetPath(modelFile),
		TokenizerBackend: backend,
		TokenizerPath:    c.assetPath(tokenizerFile),
		Runtime: embedding.RuntimeOptions{
			LibraryPath:    c.Runtime.LibraryPath,
			UseCUDA:        c.Runtime.UseCUDA,
			IntraOpThreads: c.Runtime.IntraOpThreads,
		},
	}, nil
}

// Addr returns the host:port the HTTP API listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) assetPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Model.AssetsDir, name)
}
