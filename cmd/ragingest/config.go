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


package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/ragingest/ai"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/ingestion"
	"gopkg.in/yaml.v3"
)

// secretKeys may only be supplied through the environment or flags.
var secretKeys = []string{
	"uri",
	"mongo_uri",
	"database_uri",
	"api_key",
	"openai_api_key",
	"embedding_api_key",
	"gemini_api_key",
}

// fileConfig mirrors the settings file. Pointer fields distinguish an
// absent key from a zero value.
type fileConfig struct {
	Database       string   `toml:"db_name" yaml:"db_name"`
	Collection     string   `toml:"collection_name" yaml:"collection_name"`
	SourceDir      string   `toml:"file_paths" yaml:"file_paths"`
	Glob           string   `toml:"glob" yaml:"glob"`
	ChunkSize      *int     `toml:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap   *int     `toml:"chunk_overlap" yaml:"chunk_overlap"`
	BatchSize      *int     `toml:"batch_size" yaml:"batch_size"`
	Workers        *int     `toml:"workers" yaml:"workers"`
	MaxRetries     *int     `toml:"max_retries" yaml:"max_retries"`
	RetryDelay     string   `toml:"retry_delay" yaml:"retry_delay"`
	EmbedTimeout   string   `toml:"embed_timeout" yaml:"embed_timeout"`
	Timeout        string   `toml:"timeout" yaml:"timeout"`
	Normalize      *bool    `toml:"normalize" yaml:"normalize"`
	Provider       string   `toml:"provider" yaml:"provider"`
	EmbeddingHost  string   `toml:"embedding_host" yaml:"embedding_host"`
	EmbeddingModel string   `toml:"embedding_model" yaml:"embedding_model"`
	RateLimit      *float64 `toml:"rate_limit" yaml:"rate_limit"`
}

type decodeFunc func(data []byte, v any) error

func decoderFor(path string) (decodeFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal, nil
	case ".yaml", ".yml":
		return yaml.Unmarshal, nil
	default:
		return nil, fmt.Errorf("%w: unsupported config file type %q (use .toml, .yaml or .yml)", core.ErrConfig, filepath.Ext(path))
	}
}

// loadFileConfig reads a TOML or YAML settings file. Files naming a secret
// are rejected.
func loadFileConfig(path string) (*fileConfig, error) {
	decode, err := decoderFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config file: %w", core.ErrConfig, err)
	}

	var raw map[string]any
	if err := decode(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", core.ErrConfig, path, err)
	}
	for key := range raw {
		if slices.Contains(secretKeys, strings.ToLower(key)) {
			return nil, fmt.Errorf("%w: %s must not appear in %s; set it in the environment", core.ErrConfig, key, path)
		}
	}

	var fc fileConfig
	if err := decode(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", core.ErrConfig, path, err)
	}
	return &fc, nil
}

// apply overlays the values present in the file onto the configs.
func (fc *fileConfig) apply(cfg *ingestion.Config, aiConfig *ai.Config) error {
	setString := func(src string, dst *string) {
		if src != "" {
			*dst = src
		}
	}
	setInt := func(src *int, dst *int) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(name, src string, dst *time.Duration) error {
		if src == "" {
			return nil
		}
		d, err := time.ParseDuration(src)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", core.ErrConfig, name, err)
		}
		*dst = d
		return nil
	}

	setString(fc.Database, &cfg.Database)
	setString(fc.Collection, &cfg.Collection)
	setString(fc.SourceDir, &cfg.SourceDir)
	setString(fc.Glob, &cfg.Glob)
	setInt(fc.ChunkSize, &cfg.ChunkSize)
	setInt(fc.ChunkOverlap, &cfg.ChunkOverlap)
	setInt(fc.BatchSize, &cfg.BatchSize)
	setInt(fc.Workers, &cfg.Workers)
	setInt(fc.MaxRetries, &cfg.MaxRetries)
	if err := setDuration("retry_delay", fc.RetryDelay, &cfg.RetryDelay); err != nil {
		return err
	}
	if err := setDuration("embed_timeout", fc.EmbedTimeout, &cfg.EmbedTimeout); err != nil {
		return err
	}
	if err := setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}
	if fc.Normalize != nil {
		cfg.NormalizeVectors = *fc.Normalize
	}

	if fc.Provider != "" {
		aiConfig.Provider = ai.ProviderKind(fc.Provider)
	}
	setString(fc.EmbeddingHost, &aiConfig.Host)
	setString(fc.EmbeddingModel, &aiConfig.Model)
	if fc.RateLimit != nil {
		aiConfig.RequestsPerSecond = *fc.RateLimit
	}
	return nil
}
