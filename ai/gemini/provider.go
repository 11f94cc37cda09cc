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


// Package gemini provides the embedding service implementation for Google Gemini.
//
//	config := ai.NewConfig(
//	    ai.WithProvider(ai.ProviderGemini),
//	    ai.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	)
//	provider, err := gemini.NewProvider(ctx, config)
package gemini

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragingest/ai"
)

// Provider implements ai.Provider using Gemini embeddings.
type Provider struct {
	embedder *Embedder
	limited  ai.Embedder
	logger   *slog.Logger
}

// NewProvider creates a new Gemini provider.
// The client is created eagerly so credential problems surface here.
func NewProvider(ctx context.Context, config *ai.Config) (ai.Provider, error) {
	embedder, err := newEmbedder(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		embedder: embedder,
		limited:  ai.WithRateLimiting(embedder, config.RequestsPerSecond, config.Burst),
		logger:   slog.Default().With("component", "gemini-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.limited
}

// Close releases the Gemini client.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return p.embedder.Close()
}
