package ingestion

import (
	"testing"
	"time"

	"github.com/poiesic/ragingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "langchain_demo", cfg.Database)
	assert.Equal(t, "collection_of_text_blobs", cfg.Collection)
	assert.Equal(t, "./sample_files", cfg.SourceDir)
	assert.Equal(t, "*.txt", cfg.Glob)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 150, cfg.ChunkOverlap)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Equal(t, 1, cfg.MaxRetries, "retries are off by default")
	assert.False(t, cfg.SkipSplit)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(
		WithDatabase("db"),
		WithCollection("coll"),
		WithSource("/data", "**/*.md"),
		WithChunking(200, 20),
		WithBatching(10, 3),
		WithRetries(4, 50*time.Millisecond),
		WithTimeouts(time.Second, time.Minute),
		WithSkipSplit(true),
	)

	assert.Equal(t, "db", cfg.Database)
	assert.Equal(t, "coll", cfg.Collection)
	assert.Equal(t, "/data", cfg.SourceDir)
	assert.Equal(t, "**/*.md", cfg.Glob)
	assert.Equal(t, 200, cfg.ChunkSize)
	assert.Equal(t, 20, cfg.ChunkOverlap)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, time.Second, cfg.EmbedTimeout)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.True(t, cfg.SkipSplit)
}

func TestConfigNormalize(t *testing.T) {
	cfg := &Config{Database: " db ", Collection: "coll", SourceDir: "dir", ChunkSize: 10}
	cfg.Normalize()

	assert.Equal(t, "db", cfg.Database)
	assert.Equal(t, DefaultGlob, cfg.Glob)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty database", func(c *Config) { c.Database = "" }},
		{"blank collection", func(c *Config) { c.Collection = "   " }},
		{"empty source dir", func(c *Config) { c.SourceDir = "" }},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"overlap exceeds size", func(c *Config) { c.ChunkSize, c.ChunkOverlap = 100, 200 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfig)
		})
	}
}
