package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/blockindex/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 25_000_000, cfg.Indexer.BlockSize)
	assert.Equal(t, "blocks", cfg.Indexer.BlockDir)
	assert.Equal(t, "block_", cfg.Indexer.BlockPrefix)
	assert.Equal(t, ".idx", cfg.Indexer.BlockExt)
	assert.Equal(t, "final_index.idx", cfg.Indexer.OutputPath)
	assert.Zero(t, cfg.Indexer.Workers)
	assert.Equal(t, 2, cfg.Indexer.BlockAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	// Given: a config file and an env override for one of its fields
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
indexer:
  blockDir: /data/blocks
  blockSize: 1000
  workers: 3
logging:
  level: debug
`), 0644))
	t.Setenv("BI_INDEXER_WORKERS", "6")
	t.Setenv("BI_INDEXER_ALLOW_MISSING_BLOCKS", "true")

	// When: loading
	cfg, err := Load(path)

	// Then: file values apply, env wins, untouched fields keep defaults
	require.NoError(t, err)
	assert.Equal(t, "/data/blocks", cfg.Indexer.BlockDir)
	assert.Equal(t, 1000, cfg.Indexer.BlockSize)
	assert.Equal(t, 6, cfg.Indexer.Workers)
	assert.True(t, cfg.Indexer.AllowMissingBlocks)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "block_", cfg.Indexer.BlockPrefix)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indexer: [unclosed"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero block size", func(c *Config) { c.Indexer.BlockSize = 0 }},
		{"negative workers", func(c *Config) { c.Indexer.Workers = -1 }},
		{"empty block dir", func(c *Config) { c.Indexer.BlockDir = "" }},
		{"empty prefix", func(c *Config) { c.Indexer.BlockPrefix = "" }},
		{"empty extension", func(c *Config) { c.Indexer.BlockExt = "" }},
		{"negative block attempts", func(c *Config) { c.Indexer.BlockAttempts = -1 }},
		{"empty output", func(c *Config) { c.Indexer.OutputPath = "" }},
		{"negative simplify workers", func(c *Config) { c.Simplify.Workers = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidConfig)
		})
	}
}
