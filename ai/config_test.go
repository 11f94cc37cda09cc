package ai

import (
	"testing"

	"github.com/poiesic/ragingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Host)
	assert.Empty(t, cfg.Model, "model is resolved per provider by Normalize")
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Zero(t, cfg.RequestsPerSecond)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, DefaultOpenAIHost, cfg.Host)
		assert.Equal(t, ProviderOpenAI, cfg.Provider)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.Host)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider(ProviderGemini),
			WithModel("custom-embed"),
			WithAPIKey("secret"),
			WithBatchSize(16),
			WithRateLimit(2.5, 4),
		)

		assert.Equal(t, ProviderGemini, cfg.Provider)
		assert.Equal(t, "custom-embed", cfg.Model)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, 16, cfg.BatchSize)
		assert.Equal(t, 2.5, cfg.RequestsPerSecond)
		assert.Equal(t, 4, cfg.Burst)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name          string
		provider      ProviderKind
		host          string
		model         string
		expectedHost  string
		expectedModel string
	}{
		{
			name:          "already has /v1",
			provider:      ProviderOpenAI,
			host:          "http://localhost:11434/v1",
			expectedHost:  "http://localhost:11434/v1",
			expectedModel: DefaultOpenAIModel,
		},
		{
			name:          "missing /v1",
			provider:      ProviderOpenAI,
			host:          "http://localhost:11434",
			expectedHost:  "http://localhost:11434/v1",
			expectedModel: DefaultOpenAIModel,
		},
		{
			name:          "has trailing slash",
			provider:      ProviderOpenAI,
			host:          "http://localhost:11434/",
			expectedHost:  "http://localhost:11434/v1",
			expectedModel: DefaultOpenAIModel,
		},
		{
			name:          "empty provider defaults to openai",
			provider:      "",
			host:          "",
			expectedHost:  "",
			expectedModel: DefaultOpenAIModel,
		},
		{
			name:          "gemini keeps host untouched",
			provider:      " Gemini ",
			host:          "http://ignored",
			expectedHost:  "http://ignored",
			expectedModel: DefaultGeminiModel,
		},
		{
			name:          "explicit model wins",
			provider:      ProviderOpenAI,
			host:          DefaultOpenAIHost,
			model:         "text-embedding-3-small",
			expectedHost:  DefaultOpenAIHost,
			expectedModel: "text-embedding-3-small",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Provider: tt.provider,
				Host:     tt.host,
				Model:    tt.model,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expectedHost, cfg.Host)
			assert.Equal(t, tt.expectedModel, cfg.Model)
			if cfg.Provider == ProviderGemini {
				assert.Equal(t, GeminiMaxBatchSize, cfg.BatchSize)
			} else {
				assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
			}
		})
	}
}

func TestConfigNormalize_GeminiBatchCap(t *testing.T) {
	tests := []struct {
		name      string
		provider  ProviderKind
		batchSize int
		expected  int
	}{
		{name: "gemini default is capped", provider: ProviderGemini, batchSize: 0, expected: GeminiMaxBatchSize},
		{name: "gemini above limit is capped", provider: ProviderGemini, batchSize: 150, expected: GeminiMaxBatchSize},
		{name: "gemini below limit is kept", provider: ProviderGemini, batchSize: 40, expected: 40},
		{name: "openai is not capped", provider: ProviderOpenAI, batchSize: 150, expected: 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithProvider(tt.provider), WithBatchSize(tt.batchSize), WithAPIKey("key"))
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.expected, cfg.BatchSize)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid local config without key", func(t *testing.T) {
		cfg := &Config{
			Provider: ProviderOpenAI,
			Host:     "http://localhost:11434",
			Model:    "nomic-embed-text",
		}

		err := cfg.Validate()
		assert.NoError(t, err)

		// Should also normalize
		assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	})

	t.Run("public endpoint requires key", func(t *testing.T) {
		cfg := DefaultConfig()

		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfig)
		assert.Contains(t, err.Error(), "APIKey")
	})

	t.Run("gemini requires key", func(t *testing.T) {
		cfg := NewConfig(WithProvider(ProviderGemini))

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "APIKey")
	})

	t.Run("missing host", func(t *testing.T) {
		cfg := &Config{Provider: ProviderOpenAI, APIKey: "k"}

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Host")
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := NewConfig(WithProvider("cohere"), WithAPIKey("k"))

		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfig)
		assert.Contains(t, err.Error(), "cohere")
	})

	t.Run("negative batch size", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("k"), WithBatchSize(-1))

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BatchSize")
	})

	t.Run("negative rate", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("k"), WithRateLimit(-1, 1))

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RequestsPerSecond")
	})

	t.Run("rate limit burst floor", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("k"), WithRateLimit(3, 0))

		require.NoError(t, cfg.Validate())
		assert.Equal(t, 1, cfg.Burst)
	})
}

func TestConfigValidate_Integration(t *testing.T) {
	cfg := NewConfig(WithAPIKey("sk-test"))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultOpenAIModel, cfg.Model)
}
