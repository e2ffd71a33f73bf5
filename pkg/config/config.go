// Package config loads and validates configuration from YAML files with
// environment-variable overrides. It provides typed structs for the indexing
// pipeline, the index simplifier, logging, and metrics.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/blockindex/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Indexer  IndexerConfig  `yaml:"indexer"`
	Simplify SimplifyConfig `yaml:"simplify"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexerConfig controls the block build and the merge. BlockSize is the
// number of tokens per block; Workers caps concurrent block writers, 0 meaning
// one per CPU. AllowMissingBlocks lets the merge run even when some blocks
// failed. BlockAttempts is how many times a block write is tried before the
// block counts as failed.
type IndexerConfig struct {
	CorpusPath         string `yaml:"corpusPath"`
	BlockDir           string `yaml:"blockDir"`
	BlockPrefix        string `yaml:"blockPrefix"`
	BlockExt           string `yaml:"blockExt"`
	BlockSize          int    `yaml:"blockSize"`
	Workers            int    `yaml:"workers"`
	OutputPath         string `yaml:"outputPath"`
	AllowMissingBlocks bool   `yaml:"allowMissingBlocks"`
	MaxWordBytes       int    `yaml:"maxWordBytes"`
	BlockAttempts      int    `yaml:"blockAttempts"`
}

// SimplifyConfig controls the byte-range rewrite of the final index.
type SimplifyConfig struct {
	InputPath  string `yaml:"inputPath"`
	OutputPath string `yaml:"outputPath"`
	Workers    int    `yaml:"workers"`
	TempDir    string `yaml:"tempDir"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Indexer: IndexerConfig{
			CorpusPath:    "wikipedia.txt",
			BlockDir:      "blocks",
			BlockPrefix:   "block_",
			BlockExt:      ".idx",
			BlockSize:     25_000_000,
			OutputPath:    "final_index.idx",
			MaxWordBytes:  1 << 20,
			BlockAttempts: 2,
		},
		Simplify: SimplifyConfig{
			InputPath:  "final_index.idx",
			OutputPath: "simplified_index.txt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	ic := c.Indexer
	switch {
	case ic.BlockSize <= 0:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "indexer.blockSize must be positive, got %d", ic.BlockSize)
	case ic.Workers < 0:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "indexer.workers must not be negative, got %d", ic.Workers)
	case ic.BlockDir == "":
		return apperrors.Newf(apperrors.ErrInvalidConfig, "indexer.blockDir is required")
	case ic.BlockPrefix == "":
		return apperrors.Newf(apperrors.ErrInvalidConfig, "indexer.blockPrefix is required")
	case ic.BlockExt == "":
		return apperrors.Newf(apperrors.ErrInvalidConfig, "indexer.blockExt is required")
	case ic.BlockAttempts < 0:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "indexer.blockAttempts must not be negative, got %d", ic.BlockAttempts)
	case ic.OutputPath == "":
		return apperrors.Newf(apperrors.ErrInvalidConfig, "indexer.outputPath is required")
	case c.Simplify.Workers < 0:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "simplify.workers must not be negative, got %d", c.Simplify.Workers)
	}
	return nil
}

// applyEnvOverrides reads BI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BI_INDEXER_CORPUS_PATH"); v != "" {
		cfg.Indexer.CorpusPath = v
	}
	if v := os.Getenv("BI_INDEXER_BLOCK_DIR"); v != "" {
		cfg.Indexer.BlockDir = v
	}
	if v := os.Getenv("BI_INDEXER_BLOCK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.BlockSize = n
		}
	}
	if v := os.Getenv("BI_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("BI_INDEXER_BLOCK_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.BlockAttempts = n
		}
	}
	if v := os.Getenv("BI_INDEXER_OUTPUT_PATH"); v != "" {
		cfg.Indexer.OutputPath = v
	}
	if v := os.Getenv("BI_INDEXER_ALLOW_MISSING_BLOCKS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Indexer.AllowMissingBlocks = b
		}
	}
	if v := os.Getenv("BI_SIMPLIFY_OUTPUT_PATH"); v != "" {
		cfg.Simplify.OutputPath = v
	}
	if v := os.Getenv("BI_SIMPLIFY_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Simplify.Workers = n
		}
	}
	if v := os.Getenv("BI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BI_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("BI_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
