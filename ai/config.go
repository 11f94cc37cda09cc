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


package ai

import (
	"fmt"
	"strings"

	"github.com/poiesic/ragingest/core"
)

// ProviderKind names an embedding service implementation.
type ProviderKind string

const (
	// ProviderOpenAI selects OpenAI or an OpenAI-compatible server (Ollama, LocalAI, vLLM).
	ProviderOpenAI ProviderKind = "openai"
	// ProviderGemini selects Google Gemini embeddings.
	ProviderGemini ProviderKind = "gemini"
)

const (
	// DefaultOpenAIHost is the public OpenAI API endpoint.
	DefaultOpenAIHost = "https://api.openai.com/v1"
	// DefaultOpenAIModel is the embedding model used when none is configured.
	DefaultOpenAIModel = "text-embedding-ada-002"
	// DefaultGeminiModel is the Gemini embedding model used when none is configured.
	DefaultGeminiModel = "text-embedding-004"
	// DefaultBatchSize is the number of texts sent per provider request.
	DefaultBatchSize = 512
	// GeminiMaxBatchSize is the most texts BatchEmbedContents accepts per request.
	GeminiMaxBatchSize = 100
)

// Config holds configuration for the embedding provider.
type Config struct {
	// Provider selects the embedding implementation.
	// Default: openai
	Provider ProviderKind

	// Host is the base URL for OpenAI-compatible APIs. Ignored by gemini.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	Host string

	// Model is the embedding model identifier. Empty selects the provider default.
	// Example: "text-embedding-3-small", "nomic-embed-text"
	Model string

	// APIKey authenticates against the provider. It is supplied out of band
	// (environment or .env file) and never read from the config file.
	APIKey string

	// BatchSize is the maximum number of texts per provider request.
	BatchSize int

	// RequestsPerSecond throttles embedding calls. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the token bucket size used when RequestsPerSecond is set.
	Burst int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the embedding provider kind.
func WithProvider(kind ProviderKind) ConfigOption {
	return func(c *Config) {
		c.Provider = kind
	}
}

// WithHost sets the OpenAI-compatible service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the embedding model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the provider credential.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBatchSize sets the number of texts per provider request.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithRateLimit throttles embedding calls to rps requests per second.
func WithRateLimit(rps float64, burst int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
		c.Burst = burst
	}
}

// DefaultConfig returns a Config targeting the public OpenAI API.
func DefaultConfig() *Config {
	return &Config{
		Provider:  ProviderOpenAI,
		Host:      DefaultOpenAIHost,
		BatchSize: DefaultBatchSize,
		Burst:     1,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434"),
//	    WithModel("nomic-embed-text"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It lowercases the provider, fills in the provider's default model,
// adds the /v1 suffix to OpenAI-compatible hosts if missing and caps
// Gemini batches at GeminiMaxBatchSize.
func (c *Config) Normalize() {
	c.Provider = ProviderKind(strings.ToLower(strings.TrimSpace(string(c.Provider))))
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}

	if c.Model == "" {
		switch c.Provider {
		case ProviderOpenAI:
			c.Model = DefaultOpenAIModel
		case ProviderGemini:
			c.Model = DefaultGeminiModel
		}
	}

	if c.Provider == ProviderOpenAI && c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		// Remove trailing slash if present before adding /v1
		c.Host = strings.TrimSuffix(c.Host, "/")
		c.Host = c.Host + "/v1"
	}

	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Provider == ProviderGemini && c.BatchSize > GeminiMaxBatchSize {
		c.BatchSize = GeminiMaxBatchSize
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		c.Burst = 1
	}
}

// RequiresAPIKey reports whether the configured endpoint needs a credential.
// Local OpenAI-compatible servers accept anonymous requests.
func (c *Config) RequiresAPIKey() bool {
	return c.Provider == ProviderGemini || c.Host == DefaultOpenAIHost
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderOpenAI:
		if c.Host == "" {
			return fmt.Errorf("%w: ai config: Host is required", core.ErrConfig)
		}
	case ProviderGemini:
	default:
		return fmt.Errorf("%w: ai config: unknown provider %q", core.ErrConfig, c.Provider)
	}

	if c.RequiresAPIKey() && c.APIKey == "" {
		return fmt.Errorf("%w: ai config: APIKey is required for %s", core.ErrConfig, c.Provider)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: ai config: BatchSize must be greater than 0", core.ErrConfig)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: ai config: RequestsPerSecond cannot be negative", core.ErrConfig)
	}
	return nil
}
