// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/loader"
	"github.com/poiesic/ragingest/splitter"
)

// Defaults mirror the settings the sample data set was prepared with.
const (
	DefaultDatabase     = "langchain_demo"
	DefaultCollection   = "collection_of_text_blobs"
	DefaultSourceDir    = "./sample_files"
	DefaultGlob         = loader.DefaultPattern
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150

	DefaultBatchSize    = 100
	DefaultEmbedTimeout = 60 * time.Second
	DefaultMaxRetries   = 1
	DefaultRetryDelay   = time.Second
)

// Config holds the settings for one pipeline run.
type Config struct {
	// Database and Collection name the target in the document store.
	Database   string
	Collection string

	// SourceDir is searched with Glob for input files.
	SourceDir string
	Glob      string

	// ChunkSize and ChunkOverlap are measured in code points.
	ChunkSize    int
	ChunkOverlap int

	// BatchSize is the number of chunks per embedding call and per write.
	BatchSize int

	// Workers bounds concurrent embedding calls.
	Workers int

	// EmbedTimeout limits each embedding call. Zero disables the limit.
	EmbedTimeout time.Duration

	// Timeout limits the whole run. Zero disables the limit.
	Timeout time.Duration

	// MaxRetries is the number of attempts per embedding call; 1 means no retry.
	MaxRetries int
	RetryDelay time.Duration

	// SkipSplit stores each document whole as a single chunk.
	SkipSplit bool

	// NormalizeVectors scales every embedding to unit length before storing it.
	NormalizeVectors bool
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithDatabase sets the target database.
func WithDatabase(name string) ConfigOption {
	return func(c *Config) {
		c.Database = name
	}
}

// WithCollection sets the target collection.
func WithCollection(name string) ConfigOption {
	return func(c *Config) {
		c.Collection = name
	}
}

// WithSource sets the source directory and glob pattern.
func WithSource(dir, glob string) ConfigOption {
	return func(c *Config) {
		c.SourceDir = dir
		c.Glob = glob
	}
}

// WithChunking sets chunk size and overlap.
func WithChunking(size, overlap int) ConfigOption {
	return func(c *Config) {
		c.ChunkSize = size
		c.ChunkOverlap = overlap
	}
}

// WithBatching sets the batch size and number of embedding workers.
func WithBatching(batchSize, workers int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = batchSize
		c.Workers = workers
	}
}

// WithRetries sets embedding attempts and the base backoff delay.
func WithRetries(maxRetries int, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithTimeouts sets the per-call embedding timeout and the overall run timeout.
func WithTimeouts(embed, run time.Duration) ConfigOption {
	return func(c *Config) {
		c.EmbedTimeout = embed
		c.Timeout = run
	}
}

// WithSkipSplit stores documents whole instead of splitting them.
func WithSkipSplit(skip bool) ConfigOption {
	return func(c *Config) {
		c.SkipSplit = skip
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Database:     DefaultDatabase,
		Collection:   DefaultCollection,
		SourceDir:    DefaultSourceDir,
		Glob:         DefaultGlob,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		BatchSize:    DefaultBatchSize,
		Workers:      defaultWorkers(),
		EmbedTimeout: DefaultEmbedTimeout,
		MaxRetries:   DefaultMaxRetries,
		RetryDelay:   DefaultRetryDelay,
	}
}

// NewConfig creates a new Config with the given options applied to defaults.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize fills unset tuning knobs with defaults.
// Names, paths and chunk sizes are left alone so Validate can reject them.
func (c *Config) Normalize() {
	c.Database = strings.TrimSpace(c.Database)
	c.Collection = strings.TrimSpace(c.Collection)
	if strings.TrimSpace(c.Glob) == "" {
		c.Glob = DefaultGlob
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers()
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Database == "" {
		return fmt.Errorf("%w: database name is required", core.ErrConfig)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection name is required", core.ErrConfig)
	}
	if strings.TrimSpace(c.SourceDir) == "" {
		return fmt.Errorf("%w: source directory is required", core.ErrConfig)
	}
	if err := splitter.ValidateSizes(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if c.EmbedTimeout < 0 || c.Timeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", core.ErrConfig)
	}
	return nil
}

// defaultWorkers is runtime.NumCPU() / 2, with a minimum of 1.
func defaultWorkers() int {
	return max(runtime.NumCPU()/2, 1)
}
